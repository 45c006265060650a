package models

import (
	"cmp"
	"database/sql"
)

// Indicator maps a descriptive series name to its World Bank indicator code.
type Indicator struct {
	Name string `yaml:"name" validate:"required"`
	Code string `yaml:"code" validate:"required"`
}

// RawTable holds the flattened API records of one indicator exactly as they
// are written to the raw CSV. Missing or null cells are empty strings.
type RawTable struct {
	Columns []string
	Rows    [][]string
}

// ColumnIndex returns the position of the named column, or -1.
func (t *RawTable) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// CleanRecord is one validated observation of a single indicator.
// Value is never missing; Year may be (see Cleaner).
type CleanRecord struct {
	Country     string
	CountryCode string
	Year        sql.NullInt64
	Value       float64
}

// CleanedIndicator is the cleaned table of one indicator together with the
// row count of the raw table it came from.
type CleanedIndicator struct {
	Name    string
	RawRows int
	Records []CleanRecord
}

// PanelRow is one (country, year) observation. Values is aligned with the
// owning Panel's Columns.
type PanelRow struct {
	Country     string
	CountryCode string
	Year        sql.NullInt64
	Values      []float64
}

// Panel is a country/year table with an ordered set of numeric columns.
// The merged dataset carries one column per indicator; feature derivation
// appends further columns.
type Panel struct {
	Columns []string
	Rows    []PanelRow
}

// ColumnIndex returns the position of the named value column, or -1.
func (p *Panel) ColumnIndex(name string) int {
	for i, c := range p.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the named column's values in row order.
func (p *Panel) Column(name string) ([]float64, bool) {
	idx := p.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]float64, len(p.Rows))
	for i, r := range p.Rows {
		out[i] = r.Values[idx]
	}
	return out, true
}

// Clone returns a deep copy of the panel.
func (p *Panel) Clone() *Panel {
	out := &Panel{
		Columns: append([]string(nil), p.Columns...),
		Rows:    make([]PanelRow, len(p.Rows)),
	}
	for i, r := range p.Rows {
		r.Values = append([]float64(nil), r.Values...)
		out.Rows[i] = r
	}
	return out
}

// WithColumn returns a copy of the panel widened by one column. values must
// be aligned with the panel's rows.
func (p *Panel) WithColumn(name string, values []float64) *Panel {
	out := &Panel{
		Columns: append(append(make([]string, 0, len(p.Columns)+1), p.Columns...), name),
		Rows:    make([]PanelRow, len(p.Rows)),
	}
	for i, r := range p.Rows {
		vals := make([]float64, 0, len(r.Values)+1)
		vals = append(vals, r.Values...)
		r.Values = append(vals, values[i])
		out.Rows[i] = r
	}
	return out
}

// CompareKey orders observations by country code, then year. Rows without a
// year sort after every dated row of the same country.
func CompareKey(aCode string, aYear sql.NullInt64, bCode string, bYear sql.NullInt64) int {
	if c := cmp.Compare(aCode, bCode); c != 0 {
		return c
	}
	switch {
	case aYear.Valid && bYear.Valid:
		return cmp.Compare(aYear.Int64, bYear.Int64)
	case aYear.Valid:
		return -1
	case bYear.Valid:
		return 1
	}
	return 0
}
