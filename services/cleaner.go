package services

import (
	"database/sql"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"worldbank-panel/models"
	"worldbank-panel/storage"
	"worldbank-panel/utils"
)

// Raw columns the cleaner projects, in output order: country, country_code,
// year, value.
var cleanSourceColumns = []string{"country.value", "country.id", "date", "value"}

// Cleaner transforms raw indicator tables into clean, sorted records.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean projects the raw table to country, country_code, year and value,
// coerces year and value to numbers, drops rows whose value is missing and
// sorts by (country_code, year). Rows with a missing year but a valid value
// are kept.
func (c *Cleaner) Clean(raw *models.RawTable) ([]models.CleanRecord, error) {
	idx := make([]int, len(cleanSourceColumns))
	for i, col := range cleanSourceColumns {
		idx[i] = raw.ColumnIndex(col)
		if idx[i] < 0 {
			return nil, &SchemaError{Column: col}
		}
	}

	result := make([]models.CleanRecord, 0, len(raw.Rows))
	for _, row := range raw.Rows {
		value, ok := ParseNumber(cell(row, idx[3]))
		if !ok {
			continue
		}
		result = append(result, models.CleanRecord{
			Country:     cell(row, idx[0]),
			CountryCode: cell(row, idx[1]),
			Year:        ParseYear(cell(row, idx[2])),
			Value:       value,
		})
	}

	slices.SortStableFunc(result, func(a, b models.CleanRecord) int {
		return models.CompareKey(a.CountryCode, a.Year, b.CountryCode, b.Year)
	})
	return result, nil
}

// CleanAll loads every configured indicator's raw table, cleans it and
// returns the results in indicator order. A missing raw file aborts.
func (c *Cleaner) CleanAll(indicators []models.Indicator, loader storage.RawLoader) ([]models.CleanedIndicator, error) {
	out := make([]models.CleanedIndicator, 0, len(indicators))
	for _, ind := range indicators {
		raw, err := loader.LoadRaw(ind.Name)
		if err != nil {
			return nil, fmt.Errorf("clean %s: %w", ind.Name, err)
		}
		records, err := c.Clean(raw)
		if err != nil {
			return nil, fmt.Errorf("clean %s: %w", ind.Name, err)
		}

		dropped := len(raw.Rows) - len(records)
		c.logger.Info("[cleaner] %s: cleaned %d → %d rows (dropped %d)",
			ind.Name, len(raw.Rows), len(records), dropped)
		if undated := countUndated(records); undated > 0 {
			c.logger.Warn("[cleaner] %s: %d rows have a value but no parsable year", ind.Name, undated)
		}

		out = append(out, models.CleanedIndicator{
			Name:    ind.Name,
			RawRows: len(raw.Rows),
			Records: records,
		})
	}
	return out, nil
}

// ParseNumber coerces a cell to a float. Empty, unparsable and NaN cells are
// reported as missing; it never fails.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// ParseYear coerces a cell to a year. Values that are not whole numbers are
// missing.
func ParseYear(s string) sql.NullInt64 {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return sql.NullInt64{Int64: n, Valid: true}
	}
	v, ok := ParseNumber(s)
	if !ok || math.IsInf(v, 0) || v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(v), Valid: true}
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func countUndated(records []models.CleanRecord) int {
	n := 0
	for _, r := range records {
		if !r.Year.Valid {
			n++
		}
	}
	return n
}
