package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"worldbank-panel/models"
)

// envPrefix namespaces every variable, e.g. WBPANEL_START_YEAR. The bare
// name (START_YEAR) is accepted as a fallback.
const envPrefix = "WBPANEL"

// Config holds all pipeline configuration. It is built once in main and
// passed explicitly to every stage.
type Config struct {
	BaseURL        string        `envconfig:"BASE_URL" default:"https://api.worldbank.org/v2/country/all/indicator" validate:"required,url"`
	StartYear      int           `envconfig:"START_YEAR" default:"2000" validate:"gte=1960"`
	EndYear        int           `envconfig:"END_YEAR" default:"2023" validate:"gtefield=StartYear"`
	PerPage        int           `envconfig:"PER_PAGE" default:"20000" validate:"gt=0"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"60s" validate:"gt=0"`

	IndicatorsFile string             `envconfig:"INDICATORS_FILE"`
	Indicators     []models.Indicator `ignored:"true" validate:"required,min=1,unique=Name,dive"`

	DataRoot         string `envconfig:"DATA_ROOT" default:"data" validate:"required"`
	MergedFilename   string `envconfig:"MERGED_FILENAME" default:"merged_dataset.csv" validate:"required"`
	EnrichedFilename string `envconfig:"ENRICHED_FILENAME" default:"final_enriched_dataset.csv" validate:"required"`

	FeatureLag int    `envconfig:"FEATURE_LAG" default:"1" validate:"gte=1"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn warning error"`

	PostgresEnabled  bool   `envconfig:"POSTGRES_ENABLED" default:"false"`
	PostgresHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort     string `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresUser     string `envconfig:"POSTGRES_USER" default:"panel"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD" default:"panel123"`
	PostgresDB       string `envconfig:"POSTGRES_DB" default:"worldbank"`
	PostgresSSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
	MaxRetries       int    `envconfig:"MAX_RETRIES" default:"5" validate:"gte=1"`

	XLSXOutputPath  string `envconfig:"XLSX_OUTPUT_PATH"`
	MetricsTextfile string `envconfig:"METRICS_TEXTFILE"`
}

// DefaultIndicators returns the series the pipeline extracts when no
// indicator file is configured. Order determines merge order.
func DefaultIndicators() []models.Indicator {
	return []models.Indicator{
		{Name: "life_expectancy", Code: "SP.DYN.LE00.IN"},
		{Name: "health_expenditure_pct_gdp", Code: "SH.XPD.CHEX.GD.ZS"},
		{Name: "infant_mortality", Code: "SP.DYN.IMRT.IN"},
		{Name: "gdp_per_capita", Code: "NY.GDP.PCAP.CD"},
	}
}

// Load reads the .env file (if any) and the environment, and returns a
// validated Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	cfg.Indicators = DefaultIndicators()
	if cfg.IndicatorsFile != "" {
		indicators, err := LoadIndicators(cfg.IndicatorsFile)
		if err != nil {
			return nil, err
		}
		cfg.Indicators = indicators
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type indicatorFile struct {
	Indicators []models.Indicator `yaml:"indicators"`
}

// LoadIndicators reads an ordered indicator list from a YAML file:
//
//	indicators:
//	  - name: life_expectancy
//	    code: SP.DYN.LE00.IN
func LoadIndicators(path string) ([]models.Indicator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read indicators file: %w", err)
	}
	var f indicatorFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse indicators file %q: %w", path, err)
	}
	return f.Indicators, nil
}

// Validate checks field constraints and reports every violation.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: validate: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
}

// RawDir is where each indicator's unprocessed records are written.
func (c *Config) RawDir() string {
	return filepath.Join(c.DataRoot, "raw")
}

// CleanedDir is where per-indicator cleaned tables are written.
func (c *Config) CleanedDir() string {
	return filepath.Join(c.DataRoot, "processed", "cleaned_indicators")
}

// FinalDir is where merged and enriched datasets are written.
func (c *Config) FinalDir() string {
	return filepath.Join(c.DataRoot, "processed", "final")
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}
