package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ssotgen/pkg/lint"
)

// Run outcome labels.
const (
	StatusStored  = "stored"
	StatusBlocked = "blocked"
	StatusFailed  = "failed"
)

// Metrics tracks feature run outcomes and consistency findings.
type Metrics struct {
	runs          *prometheus.CounterVec
	discrepancies *prometheus.CounterVec
	duration      prometheus.Histogram
}

// NewMetrics registers the pipeline metrics on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		runs: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ssotgen_feature_runs_total",
			Help: "Feature runs by outcome.",
		}, []string{"status"}),
		discrepancies: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ssotgen_discrepancies_total",
			Help: "Consistency findings by kind.",
		}, []string{"kind"}),
		duration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ssotgen_feature_run_duration_seconds",
			Help:    "Wall time of feature runs.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) observeRun(status string, seconds float64) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
	m.duration.Observe(seconds)
}

func (m *Metrics) observeReport(report *lint.Report) {
	if m == nil || report == nil {
		return
	}
	for _, d := range report.Discrepancies {
		m.discrepancies.WithLabelValues(string(d.Kind)).Inc()
	}
}
