package storage

import (
	"database/sql"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worldbank-panel/models"
	"worldbank-panel/utils"
)

func newTestStore(t *testing.T) (*CSVStore, string) {
	t.Helper()
	root := t.TempDir()
	return NewCSVStore(
		filepath.Join(root, "raw"),
		filepath.Join(root, "processed", "cleaned_indicators"),
		filepath.Join(root, "processed", "final"),
		utils.Discard(),
	), root
}

func year(y int64) sql.NullInt64 { return sql.NullInt64{Int64: y, Valid: true} }

func TestRawRoundTrip(t *testing.T) {
	s, root := newTestStore(t)
	table := &models.RawTable{
		Columns: []string{"indicator.id", "country.id", "country.value", "date", "value"},
		Rows: [][]string{
			{"NY.GDP.PCAP.CD", "BR", "Brazil", "2000", "1000"},
			{"NY.GDP.PCAP.CD", "BR", "Brazil, Fed. Rep.", "2001", ""},
		},
	}

	require.NoError(t, s.SaveRaw(table, "gdp_per_capita"))
	assert.FileExists(t, filepath.Join(root, "raw", "gdp_per_capita.csv"))

	got, err := s.LoadRaw("gdp_per_capita")
	require.NoError(t, err)
	assert.Equal(t, table, got)
}

func TestSaveRawOverwrites(t *testing.T) {
	s, _ := newTestStore(t)
	first := &models.RawTable{Columns: []string{"a"}, Rows: [][]string{{"1"}, {"2"}}}
	second := &models.RawTable{Columns: []string{"a"}, Rows: [][]string{{"3"}}}

	require.NoError(t, s.SaveRaw(first, "x"))
	require.NoError(t, s.SaveRaw(second, "x"))

	got, err := s.LoadRaw("x")
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestLoadRawMissingFile(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.LoadRaw("life_expectancy")
	var fae *FileAccessError
	require.True(t, errors.As(err, &fae), "expected *FileAccessError, got %T", err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadRawEmptyTable(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.SaveRaw(&models.RawTable{}, "empty"))

	got, err := s.LoadRaw("empty")
	require.NoError(t, err)
	assert.Empty(t, got.Columns)
	assert.Empty(t, got.Rows)
}

func TestSaveCleanedLayout(t *testing.T) {
	s, root := newTestStore(t)
	cleaned := []models.CleanedIndicator{{
		Name: "life_expectancy",
		Records: []models.CleanRecord{
			{Country: "Brazil", CountryCode: "BRA", Year: year(2000), Value: 70.1},
			{Country: "Brazil", CountryCode: "BRA", Value: 71},
		},
	}}
	require.NoError(t, s.SaveCleaned(cleaned))

	data, err := os.ReadFile(filepath.Join(root, "processed", "cleaned_indicators", "life_expectancy_clean.csv"))
	require.NoError(t, err)
	assert.Equal(t, "country,country_code,year,value\nBrazil,BRA,2000,70.1\nBrazil,BRA,,71\n", string(data))
}

func TestSaveDatasetLayout(t *testing.T) {
	s, root := newTestStore(t)
	panel := &models.Panel{
		Columns: []string{"gdp_per_capita", "log_gdp_per_capita", "health_exp_yoy_growth"},
		Rows: []models.PanelRow{
			{Country: "Brazil", CountryCode: "BRA", Year: year(2002), Values: []float64{0, math.Inf(-1), math.NaN()}},
		},
	}
	require.NoError(t, s.SaveDataset(panel, "merged_dataset.csv"))

	data, err := os.ReadFile(filepath.Join(root, "processed", "final", "merged_dataset.csv"))
	require.NoError(t, err)
	assert.Equal(t,
		"country,country_code,year,gdp_per_capita,log_gdp_per_capita,health_exp_yoy_growth\nBrazil,BRA,2002,0,-inf,\n",
		string(data))
}

func TestSaveDatasetUnwritablePath(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "final")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	s := NewCSVStore(root, root, blocker, utils.Discard())

	err := s.SaveDataset(&models.Panel{}, "out.csv")
	var fae *FileAccessError
	require.ErrorAs(t, err, &fae)
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1000, "1000"},
		{0.25, "0.25"},
		{-3.5, "-3.5"},
		{math.NaN(), ""},
		{math.Inf(1), "inf"},
		{math.Inf(-1), "-inf"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatFloat(tt.in))
	}
}
