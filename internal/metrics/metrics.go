// Package metrics holds the Prometheus instruments of the decision pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the decision pipeline. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	// Completed insights by template and gate outcome
	Insights *prometheus.CounterVec

	// Gate violations by kind (FORBIDDEN and FLAG are not split per pattern)
	Violations *prometheus.CounterVec

	// Release verification failures by integrity reason
	IntegrityFailures *prometheus.CounterVec

	// End-to-end pipeline latency
	PipelineDuration prometheus.Histogram
}

// New registers all pipeline metrics with reg. Pass a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Insights: f.NewCounterVec(prometheus.CounterOpts{
			Name: "microinx_insights_total",
			Help: "Total insights produced by template id and gate outcome",
		}, []string{"template_id", "sdt_pass"}),

		Violations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "microinx_sdt_violations_total",
			Help: "Total output gate violations by kind",
		}, []string{"kind"}),

		IntegrityFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "microinx_integrity_failures_total",
			Help: "Total release integrity failures by reason",
		}, []string{"reason"}),

		PipelineDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "microinx_pipeline_duration_seconds",
			Help:    "Duration of a full pipeline run including the integrity check",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
		}),
	}
}

// IncrementInsight records a completed insight.
func (m *Metrics) IncrementInsight(templateID string, pass bool) {
	if m != nil {
		m.Insights.WithLabelValues(templateID, strconv.FormatBool(pass)).Inc()
	}
}

// IncrementViolation records one gate violation of the given kind.
func (m *Metrics) IncrementViolation(kind string) {
	if m != nil {
		m.Violations.WithLabelValues(kind).Inc()
	}
}

// IncrementIntegrityFailure records a failed verification.
func (m *Metrics) IncrementIntegrityFailure(reason string) {
	if m != nil {
		m.IntegrityFailures.WithLabelValues(reason).Inc()
	}
}

// ObservePipeline records the duration of a pipeline run.
func (m *Metrics) ObservePipeline(d time.Duration) {
	if m != nil {
		m.PipelineDuration.Observe(d.Seconds())
	}
}
