package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCleanCountsDrops(t *testing.T) {
	m := New()
	m.ObserveFetch("gdp_per_capita", 10)
	m.ObserveClean("gdp_per_capita", 10, 7)
	m.ObservePanel(42)

	assert.Equal(t, 10.0, testutil.ToFloat64(m.RecordsFetched.WithLabelValues("gdp_per_capita")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RowsDropped.WithLabelValues("gdp_per_capita")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.CleanRows.WithLabelValues("gdp_per_capita")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.PanelRows))
}

func TestNilPipelineIsNoop(t *testing.T) {
	var m *Pipeline
	assert.NotPanics(t, func() {
		m.ObserveFetch("x", 1)
		m.ObserveClean("x", 2, 1)
		m.ObservePanel(3)
		m.TimeStage("fetch")()
	})
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObservePanel(5)
	m.TimeStage("merge")()

	path := filepath.Join(t.TempDir(), "wbpanel.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "wbpanel_panel_rows 5")
	assert.Contains(t, string(data), `wbpanel_stage_duration_seconds{stage="merge"}`)
}
