package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SaleMetrics tracks checkout outcomes across the sale completion pipeline.
type SaleMetrics struct {
	completed    *prometheus.CounterVec
	stageFailure *prometheus.CounterVec
	duration     prometheus.Histogram
	oversell     prometheus.Counter
}

// NewSaleMetrics registers the sale completion metrics on the provided registerer.
func NewSaleMetrics(reg prometheus.Registerer) *SaleMetrics {
	if reg == nil {
		return &SaleMetrics{}
	}
	completed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_completed_total",
		Help: "Completed sales by outcome.",
	}, []string{"outcome"})
	stageFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_stage_failures_total",
		Help: "Sale completions aborted, by pipeline stage.",
	}, []string{"stage"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sale_completion_duration_seconds",
		Help:    "End to end duration of sale completion.",
		Buckets: prometheus.DefBuckets,
	})
	oversell := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sales_oversell_flagged_total",
		Help: "Sales where requested quantity exceeded available stock.",
	})
	reg.MustRegister(completed, stageFailure, duration, oversell)
	return &SaleMetrics{
		completed:    completed,
		stageFailure: stageFailure,
		duration:     duration,
		oversell:     oversell,
	}
}

// IncCompleted counts a sale completion attempt with the given outcome label
// ("success" or "failure").
func (s *SaleMetrics) IncCompleted(outcome string) {
	if s == nil || s.completed == nil {
		return
	}
	s.completed.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncStageFailure counts an aborted completion at the named stage.
func (s *SaleMetrics) IncStageFailure(stage string) {
	if s == nil || s.stageFailure == nil {
		return
	}
	s.stageFailure.WithLabelValues(normalizeLabel(stage)).Inc()
}

// ObserveDuration records how long a completion took.
func (s *SaleMetrics) ObserveDuration(d time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	s.duration.Observe(d.Seconds())
}

// IncOversell counts a sale that clamped one or more lines to available stock.
func (s *SaleMetrics) IncOversell() {
	if s == nil || s.oversell == nil {
		return
	}
	s.oversell.Inc()
}
