package services

import (
	"fmt"
	"math"

	"worldbank-panel/models"
	"worldbank-panel/utils"
)

// Source and derived column names.
const (
	ColGDPPerCapita      = "gdp_per_capita"
	ColHealthExpenditure = "health_expenditure_pct_gdp"
	ColLifeExpectancy    = "life_expectancy"

	ColLogGDPPerCapita         = "log_gdp_per_capita"
	ColHealthExpYoYGrowth      = "health_exp_yoy_growth"
	ColLifeExpectancyYoYChange = "life_expectancy_yoy_change"
	ColLifeExpPerHealthExp     = "life_expectancy_per_health_exp"
)

// LagColumnName names the lagged health expenditure column.
func LagColumnName(lag int) string {
	return fmt.Sprintf("health_exp_lag_%dy", lag)
}

// FeatureService derives analysis features from the merged panel.
type FeatureService struct {
	logger *utils.Logger
	lag    int
}

// NewFeatureService creates a FeatureService producing a lag-row lag column.
func NewFeatureService(logger *utils.Logger, lag int) *FeatureService {
	return &FeatureService{logger: logger, lag: lag}
}

// Apply runs ApplyFeatureEngineering with the configured lag.
func (s *FeatureService) Apply(panel *models.Panel) (*models.Panel, error) {
	out, err := ApplyFeatureEngineering(panel, s.lag)
	if err != nil {
		return nil, err
	}
	s.logger.Info("[features] Added %d feature columns to %d rows",
		len(out.Columns)-len(panel.Columns), len(out.Rows))
	return out, nil
}

// ApplyFeatureEngineering adds, in order, the log, year-over-year, lag and
// efficiency features. The input panel is not modified.
func ApplyFeatureEngineering(panel *models.Panel, lag int) (*models.Panel, error) {
	out, err := AddLogFeatures(panel)
	if err != nil {
		return nil, err
	}
	if out, err = AddYoYFeatures(out); err != nil {
		return nil, err
	}
	if out, err = AddLagFeatures(out, lag); err != nil {
		return nil, err
	}
	return AddEfficiencyFeatures(out)
}

// AddLogFeatures adds log_gdp_per_capita. Zero gives -Inf and negative
// values give NaN.
func AddLogFeatures(panel *models.Panel) (*models.Panel, error) {
	gdp, err := requireColumn(panel, ColGDPPerCapita)
	if err != nil {
		return nil, err
	}
	logs := make([]float64, len(gdp))
	for i, v := range gdp {
		logs[i] = math.Log(v)
	}
	return panel.WithColumn(ColLogGDPPerCapita, logs), nil
}

// AddYoYFeatures re-sorts by (country_code, year) and adds the fractional
// change of health expenditure and the absolute change of life expectancy
// against the previous row of the same country. The first row of each
// country is NaN. Year gaps are not detected: the previous row is used
// whatever its year.
func AddYoYFeatures(panel *models.Panel) (*models.Panel, error) {
	sorted := panel.Clone()
	sortPanel(sorted)

	health, err := requireColumn(sorted, ColHealthExpenditure)
	if err != nil {
		return nil, err
	}
	life, err := requireColumn(sorted, ColLifeExpectancy)
	if err != nil {
		return nil, err
	}

	prevHealth := groupShift(sorted, health, 1)
	prevLife := groupShift(sorted, life, 1)

	growth := make([]float64, len(health))
	change := make([]float64, len(life))
	for i := range sorted.Rows {
		growth[i] = (health[i] - prevHealth[i]) / prevHealth[i]
		change[i] = life[i] - prevLife[i]
	}

	out := sorted.WithColumn(ColHealthExpYoYGrowth, growth)
	return out.WithColumn(ColLifeExpectancyYoYChange, change), nil
}

// AddLagFeatures adds health_exp_lag_{lag}y: the health expenditure lag rows
// earlier within the same country, in current row order.
func AddLagFeatures(panel *models.Panel, lag int) (*models.Panel, error) {
	health, err := requireColumn(panel, ColHealthExpenditure)
	if err != nil {
		return nil, err
	}
	return panel.WithColumn(LagColumnName(lag), groupShift(panel, health, lag)), nil
}

// AddEfficiencyFeatures adds life expectancy per point of health expenditure.
// Division by zero follows IEEE-754.
func AddEfficiencyFeatures(panel *models.Panel) (*models.Panel, error) {
	life, err := requireColumn(panel, ColLifeExpectancy)
	if err != nil {
		return nil, err
	}
	health, err := requireColumn(panel, ColHealthExpenditure)
	if err != nil {
		return nil, err
	}
	ratio := make([]float64, len(life))
	for i := range life {
		ratio[i] = life[i] / health[i]
	}
	return panel.WithColumn(ColLifeExpPerHealthExp, ratio), nil
}

func requireColumn(panel *models.Panel, name string) ([]float64, error) {
	col, ok := panel.Column(name)
	if !ok {
		return nil, &SchemaError{Column: name}
	}
	return col, nil
}

// groupShift returns values shifted by lag positions within each country
// partition, keeping row order. Positions without a source row are NaN.
// A negative lag looks forward.
func groupShift(panel *models.Panel, values []float64, lag int) []float64 {
	groups := make(map[string][]int)
	for i, r := range panel.Rows {
		groups[r.CountryCode] = append(groups[r.CountryCode], i)
	}

	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	for _, rows := range groups {
		for pos, i := range rows {
			src := pos - lag
			if src >= 0 && src < len(rows) {
				out[i] = values[rows[src]]
			}
		}
	}
	return out
}
