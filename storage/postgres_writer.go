package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"worldbank-panel/models"
	"worldbank-panel/utils"
)

const observationColumns = 6

// PostgresWriter persists the enriched panel to PostgreSQL in long format,
// one row per (country_code, year, metric).
type PostgresWriter struct {
	db    *sql.DB
	runID uuid.UUID
}

// NewPostgresWriter opens a connection to PostgreSQL, waits for it to answer,
// runs schema migrations, and returns a ready-to-use PostgresWriter. Rows
// written through it are tagged with runID.
func NewPostgresWriter(ctx context.Context, dsn string, runID uuid.UUID, retry *utils.RetryConfig) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	if err := retry.Do(ctx, "postgres ping", func() error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	pw := &PostgresWriter{db: db, runID: runID}
	if err := pw.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS panel_observations (
			id           BIGSERIAL PRIMARY KEY,
			run_id       UUID             NOT NULL,
			country      TEXT             NOT NULL,
			country_code VARCHAR(3)       NOT NULL,
			year         INTEGER          NOT NULL,
			metric       TEXT             NOT NULL,
			value        DOUBLE PRECISION,
			created_at   TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
			UNIQUE (country_code, year, metric)
		);

		CREATE INDEX IF NOT EXISTS idx_panel_observations_metric ON panel_observations(metric);
		CREATE INDEX IF NOT EXISTS idx_panel_observations_run    ON panel_observations(run_id);
	`)
	return err
}

// WritePanel upserts every cell of the panel. Non-finite values are stored
// as NULL and rows without a year are skipped.
func (pw *PostgresWriter) WritePanel(panel *models.Panel) error {
	obs := observations(panel)
	if len(obs) == 0 {
		return nil
	}

	const batchSize = 500
	for i := 0; i < len(obs); i += batchSize {
		end := min(i+batchSize, len(obs))
		query, args := upsertQuery(pw.runID, obs[i:end])
		if _, err := pw.db.Exec(query, args...); err != nil {
			return fmt.Errorf("postgres: upsert batch %d: %w", i/batchSize, err)
		}
	}
	return nil
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

type observation struct {
	country     string
	countryCode string
	year        int64
	metric      string
	value       sql.NullFloat64
}

func observations(panel *models.Panel) []observation {
	out := make([]observation, 0, len(panel.Rows)*len(panel.Columns))
	for _, r := range panel.Rows {
		if !r.Year.Valid {
			continue
		}
		for i, col := range panel.Columns {
			v := r.Values[i]
			out = append(out, observation{
				country:     r.Country,
				countryCode: r.CountryCode,
				year:        r.Year.Int64,
				metric:      col,
				value:       sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v) && !math.IsInf(v, 0)},
			})
		}
	}
	return out
}

func upsertQuery(runID uuid.UUID, batch []observation) (string, []any) {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*observationColumns)

	for idx, o := range batch {
		base := idx * observationColumns
		valueStrings = append(valueStrings,
			fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d)",
				base+1, base+2, base+3, base+4, base+5, base+6))
		valueArgs = append(valueArgs,
			runID.String(), o.country, o.countryCode, o.year, o.metric, o.value)
	}

	query := fmt.Sprintf(`
		INSERT INTO panel_observations (run_id, country, country_code, year, metric, value)
		VALUES %s
		ON CONFLICT (country_code, year, metric)
		DO UPDATE SET run_id = EXCLUDED.run_id, country = EXCLUDED.country,
		              value = EXCLUDED.value, created_at = NOW()
	`, strings.Join(valueStrings, ","))

	return query, valueArgs
}
