package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PurchaseMetrics records orchestrator step outcomes and token dispatches.
type PurchaseMetrics struct {
	steps            *prometheus.CounterVec
	stepDuration     *prometheus.HistogramVec
	dispatchFailures prometheus.Counter
	fragments        *prometheus.CounterVec
}

// NewPurchaseMetrics registers the purchase-flow metrics on the provided registerer.
func NewPurchaseMetrics(reg prometheus.Registerer) *PurchaseMetrics {
	if reg == nil {
		return &PurchaseMetrics{}
	}
	steps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "purchase_step_total",
		Help: "Purchase flow step executions by step and outcome.",
	}, []string{"step", "outcome"})
	stepDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "purchase_step_duration_seconds",
		Help:    "Duration of purchase flow steps in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"step"})
	dispatchFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "token_dispatch_failures_total",
		Help: "OTP dispatches that failed delivery and were logged instead.",
	})
	fragments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assistant_fragments_total",
		Help: "Assistant response fragments emitted by type.",
	}, []string{"type"})
	reg.MustRegister(steps, stepDuration, dispatchFailures, fragments)
	return &PurchaseMetrics{
		steps:            steps,
		stepDuration:     stepDuration,
		dispatchFailures: dispatchFailures,
		fragments:        fragments,
	}
}

// ObserveStep records one step execution with its outcome and duration.
func (m *PurchaseMetrics) ObserveStep(step, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if m.steps != nil {
		m.steps.WithLabelValues(normalizeLabel(step), normalizeLabel(outcome)).Inc()
	}
	if m.stepDuration != nil {
		m.stepDuration.WithLabelValues(normalizeLabel(step)).Observe(duration.Seconds())
	}
}

// IncDispatchFailure counts one failed OTP delivery.
func (m *PurchaseMetrics) IncDispatchFailure() {
	if m == nil || m.dispatchFailures == nil {
		return
	}
	m.dispatchFailures.Inc()
}

// IncFragment counts one emitted assistant fragment.
func (m *PurchaseMetrics) IncFragment(fragmentType string) {
	if m == nil || m.fragments == nil {
		return
	}
	m.fragments.WithLabelValues(normalizeLabel(fragmentType)).Inc()
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
