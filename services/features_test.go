package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worldbank-panel/models"
)

var mergedColumns = []string{ColLifeExpectancy, ColHealthExpenditure, "infant_mortality", ColGDPPerCapita}

func prow(code string, year int64, life, health, infant, gdp float64) models.PanelRow {
	return models.PanelRow{
		Country:     "Country " + code,
		CountryCode: code,
		Year:        yr(year),
		Values:      []float64{life, health, infant, gdp},
	}
}

func sampleMerged() *models.Panel {
	return &models.Panel{
		Columns: mergedColumns,
		Rows: []models.PanelRow{
			prow("BRA", 2001, 70.5, 8.8, 30, 1100),
			prow("ARG", 2000, 74, 8, 18, 7700),
			prow("BRA", 2000, 70, 8, 31, 1000),
			prow("BRA", 2002, 71, 0, 29, 0),
			prow("ARG", 2005, 75, 10, 15, -1),
		},
	}
}

func column(t *testing.T, p *models.Panel, name string) []float64 {
	t.Helper()
	col, ok := p.Column(name)
	require.True(t, ok, "column %s missing", name)
	return col
}

func TestApplyFeatureEngineeringColumns(t *testing.T) {
	out, err := ApplyFeatureEngineering(sampleMerged(), 1)
	require.NoError(t, err)

	assert.Equal(t, append(append([]string{}, mergedColumns...),
		ColLogGDPPerCapita,
		ColHealthExpYoYGrowth,
		ColLifeExpectancyYoYChange,
		"health_exp_lag_1y",
		ColLifeExpPerHealthExp,
	), out.Columns)
	assert.Len(t, out.Rows, 5)
}

func TestApplyFeatureEngineeringDoesNotMutateInput(t *testing.T) {
	in := sampleMerged()
	before := in.Clone()

	_, err := ApplyFeatureEngineering(in, 1)
	require.NoError(t, err)
	assert.Equal(t, before.Columns, in.Columns)
	for i := range before.Rows {
		assert.Equal(t, before.Rows[i].CountryCode, in.Rows[i].CountryCode)
		assert.Equal(t, before.Rows[i].Year, in.Rows[i].Year)
		assert.Equal(t, before.Rows[i].Values, in.Rows[i].Values)
	}
}

func TestAddLogFeatures(t *testing.T) {
	out, err := AddLogFeatures(sampleMerged())
	require.NoError(t, err)

	logs := column(t, out, ColLogGDPPerCapita)
	assert.InDelta(t, math.Log(1100), logs[0], 1e-12)
	assert.True(t, math.IsInf(logs[3], -1), "log(0) should be -Inf")
	assert.True(t, math.IsNaN(logs[4]), "log of a negative value should be NaN")
}

func TestAddYoYFeatures(t *testing.T) {
	out, err := AddYoYFeatures(sampleMerged())
	require.NoError(t, err)

	codes := make([]string, len(out.Rows))
	for i, r := range out.Rows {
		codes[i] = r.CountryCode
	}
	assert.Equal(t, []string{"ARG", "ARG", "BRA", "BRA", "BRA"}, codes)

	growth := column(t, out, ColHealthExpYoYGrowth)
	change := column(t, out, ColLifeExpectancyYoYChange)

	// First row of each country is missing.
	assert.True(t, math.IsNaN(growth[0]))
	assert.True(t, math.IsNaN(change[0]))
	assert.True(t, math.IsNaN(growth[2]))
	assert.True(t, math.IsNaN(change[2]))

	// BRA 2001 against 2000.
	assert.InDelta(t, (8.8-8)/8, growth[3], 1e-12)
	assert.InDelta(t, 0.5, change[3], 1e-12)

	// BRA 2002: health falls to zero.
	assert.InDelta(t, -1.0, growth[4], 1e-12)
}

// ARG has 2000 and 2005 only; the change is computed across the gap as if
// the years were adjacent.
func TestAddYoYFeaturesIgnoresYearGaps(t *testing.T) {
	out, err := AddYoYFeatures(sampleMerged())
	require.NoError(t, err)

	growth := column(t, out, ColHealthExpYoYGrowth)
	change := column(t, out, ColLifeExpectancyYoYChange)
	assert.Equal(t, int64(2005), out.Rows[1].Year.Int64)
	assert.InDelta(t, 0.25, growth[1], 1e-12)
	assert.InDelta(t, 1.0, change[1], 1e-12)
}

func TestAddYoYFeaturesDivisionByZero(t *testing.T) {
	p := &models.Panel{
		Columns: mergedColumns,
		Rows: []models.PanelRow{
			prow("CHL", 2000, 70, 0, 10, 100),
			prow("CHL", 2001, 71, 2, 10, 100),
			prow("COL", 2000, 70, 0, 10, 100),
			prow("COL", 2001, 71, 0, 10, 100),
		},
	}
	out, err := AddYoYFeatures(p)
	require.NoError(t, err)

	growth := column(t, out, ColHealthExpYoYGrowth)
	assert.True(t, math.IsInf(growth[1], 1))
	assert.True(t, math.IsNaN(growth[3]), "0/0 is NaN")
}

func TestAddLagFeatures(t *testing.T) {
	sorted, err := AddYoYFeatures(sampleMerged())
	require.NoError(t, err)

	for _, lag := range []int{1, 2} {
		out, err := AddLagFeatures(sorted, lag)
		require.NoError(t, err)

		lagged := column(t, out, LagColumnName(lag))
		health := column(t, out, ColHealthExpenditure)

		pos := map[string]int{}
		idxByCountry := map[string][]int{}
		for i, r := range out.Rows {
			idxByCountry[r.CountryCode] = append(idxByCountry[r.CountryCode], i)
		}
		for i, r := range out.Rows {
			p := pos[r.CountryCode]
			pos[r.CountryCode]++
			if p < lag {
				assert.True(t, math.IsNaN(lagged[i]), "lag %d row %d should be NaN", lag, i)
				continue
			}
			assert.Equal(t, health[idxByCountry[r.CountryCode][p-lag]], lagged[i])
		}
	}
}

func TestLagColumnName(t *testing.T) {
	assert.Equal(t, "health_exp_lag_1y", LagColumnName(1))
	assert.Equal(t, "health_exp_lag_3y", LagColumnName(3))
}

func TestAddEfficiencyFeatures(t *testing.T) {
	out, err := AddEfficiencyFeatures(sampleMerged())
	require.NoError(t, err)

	ratio := column(t, out, ColLifeExpPerHealthExp)
	assert.InDelta(t, 70.5/8.8, ratio[0], 1e-12)
	assert.True(t, math.IsInf(ratio[3], 1), "division by zero health expenditure")
}

func TestFeaturesMissingSourceColumn(t *testing.T) {
	p := &models.Panel{Columns: []string{ColLifeExpectancy}, Rows: []models.PanelRow{
		{CountryCode: "BRA", Year: yr(2000), Values: []float64{70}},
	}}

	_, err := ApplyFeatureEngineering(p, 1)
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ColGDPPerCapita, se.Column)

	_, err = AddEfficiencyFeatures(p)
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ColHealthExpenditure, se.Column)
}

// Scenario: one country, values 1000, 1100 and 0 for 2000-2002, through the
// cleaner, merger and feature stages.
func TestPipelineZeroGDPScenario(t *testing.T) {
	c := NewCleaner(newTestLogger())
	var cleaned []models.CleanedIndicator
	series := map[string][]string{
		ColGDPPerCapita:      {"1000", "1100", "0"},
		ColHealthExpenditure: {"8", "9", "10"},
		ColLifeExpectancy:    {"70", "70.5", "71"},
	}
	for _, name := range []string{ColGDPPerCapita, ColHealthExpenditure, ColLifeExpectancy} {
		raw := rawTable(
			rawRow("BRA", "Brazil", "2002", series[name][2]),
			rawRow("BRA", "Brazil", "2000", series[name][0]),
			rawRow("BRA", "Brazil", "2001", series[name][1]),
		)
		records, err := c.Clean(raw)
		require.NoError(t, err)
		require.Len(t, records, 3, "zero is a valid value")
		cleaned = append(cleaned, models.CleanedIndicator{Name: name, RawRows: 3, Records: records})
	}

	panel, err := NewMerger(newTestLogger()).BuildMerged(cleaned)
	require.NoError(t, err)

	out, err := NewFeatureService(newTestLogger(), 1).Apply(panel)
	require.NoError(t, err)

	logs := column(t, out, ColLogGDPPerCapita)
	assert.InDelta(t, math.Log(1000), logs[0], 1e-12)
	assert.True(t, math.IsInf(logs[2], -1))

	lag := column(t, out, "health_exp_lag_1y")
	assert.True(t, math.IsNaN(lag[0]))
	assert.Equal(t, []float64{8, 9}, lag[1:])
}
