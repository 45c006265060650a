// Package metrics records per-run pipeline counters on a private Prometheus
// registry and writes them in the node-exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline holds the metrics of one pipeline run. A nil *Pipeline is valid
// and records nothing.
type Pipeline struct {
	registry *prometheus.Registry

	RecordsFetched *prometheus.CounterVec
	RowsDropped    *prometheus.CounterVec
	CleanRows      *prometheus.GaugeVec
	PanelRows      prometheus.Gauge
	StageDuration  *prometheus.GaugeVec
}

// New creates and registers the pipeline metrics.
func New() *Pipeline {
	p := &Pipeline{
		registry: prometheus.NewRegistry(),
		RecordsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wbpanel_records_fetched_total",
			Help: "Records returned by the indicator API.",
		}, []string{"indicator"}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wbpanel_rows_dropped_total",
			Help: "Raw rows dropped by the cleaner because the value was missing.",
		}, []string{"indicator"}),
		CleanRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wbpanel_clean_rows",
			Help: "Rows in each cleaned indicator table.",
		}, []string{"indicator"}),
		PanelRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wbpanel_panel_rows",
			Help: "Rows in the merged panel.",
		}),
		StageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wbpanel_stage_duration_seconds",
			Help: "Wall time spent in each pipeline stage.",
		}, []string{"stage"}),
	}
	p.registry.MustRegister(p.RecordsFetched, p.RowsDropped, p.CleanRows, p.PanelRows, p.StageDuration)
	return p
}

// ObserveFetch records the size of one indicator's API response.
func (p *Pipeline) ObserveFetch(indicator string, records int) {
	if p == nil {
		return
	}
	p.RecordsFetched.WithLabelValues(indicator).Add(float64(records))
}

// ObserveClean records how many rows one indicator kept and dropped.
func (p *Pipeline) ObserveClean(indicator string, rawRows, cleanRows int) {
	if p == nil {
		return
	}
	p.CleanRows.WithLabelValues(indicator).Set(float64(cleanRows))
	p.RowsDropped.WithLabelValues(indicator).Add(float64(rawRows - cleanRows))
}

// ObservePanel records the merged panel size.
func (p *Pipeline) ObservePanel(rows int) {
	if p == nil {
		return
	}
	p.PanelRows.Set(float64(rows))
}

// TimeStage returns a func that records the elapsed time for stage when
// called.
//
//	defer m.TimeStage("merge")()
func (p *Pipeline) TimeStage(stage string) func() {
	start := time.Now()
	return func() {
		if p == nil {
			return
		}
		p.StageDuration.WithLabelValues(stage).Set(time.Since(start).Seconds())
	}
}

// WriteTextfile writes all metrics to path for the node-exporter textfile
// collector.
func (p *Pipeline) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, p.registry); err != nil {
		return fmt.Errorf("metrics: write textfile: %w", err)
	}
	return nil
}
