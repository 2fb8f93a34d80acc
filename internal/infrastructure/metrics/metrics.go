// Package metrics exposes expense workflow counters to Prometheus.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyjia/expense-approval/internal/application/dispatcher"
	"github.com/garyjia/expense-approval/internal/domain/event"
)

const namespace = "expense"

// Recorder turns domain events into metrics
type Recorder struct {
	registry *prometheus.Registry

	submitted *prometheus.CounterVec
	decisions *prometheus.CounterVec
	outcomes  *prometheus.CounterVec
	conflicts prometheus.Counter
	stalled   prometheus.Gauge
	rules     prometheus.Counter
}

// NewRecorder registers the collectors on a fresh registry, together with
// the Go runtime and process collectors
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		submitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submitted_total",
			Help:      "Expenses submitted, by snapshotted rule type.",
		}, []string{"rule_type"}),
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "approval",
			Name:      "decisions_total",
			Help:      "Step decisions recorded, by decision and approver role.",
		}, []string{"decision", "role"}),
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "finalized_total",
			Help:      "Expenses reaching a final status, by status and rule type.",
		}, []string{"status", "rule_type"}),
		conflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "approval",
			Name:      "version_conflicts_total",
			Help:      "Decisions that lost a concurrent update and were retried.",
		}),
		stalled: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stalled",
			Help:      "Pending specific-rule expenses whose named approver holds no step.",
		}),
		rules: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_activations_total",
			Help:      "Approval rule activations.",
		}),
	}
}

// Subscribe records every event published on the dispatcher
func (r *Recorder) Subscribe(d dispatcher.Dispatcher) {
	d.SubscribeNamed(dispatcher.AllEvents, "metrics", r.Handle)
}

// Handle updates counters for one event
func (r *Recorder) Handle(_ context.Context, evt *event.Event) error {
	switch evt.Type {
	case event.TypeExpenseSubmitted:
		r.submitted.WithLabelValues(evt.GetPayloadString(event.KeyRuleType)).Inc()
	case event.TypeDecisionRecorded:
		r.decisions.WithLabelValues(
			evt.GetPayloadString(event.KeyDecision),
			evt.GetPayloadString(event.KeyActorRole),
		).Inc()
	case event.TypeExpenseApproved, event.TypeExpenseRejected:
		r.outcomes.WithLabelValues(
			evt.GetPayloadString(event.KeyStatus),
			evt.GetPayloadString(event.KeyRuleType),
		).Inc()
	case event.TypeRuleActivated:
		r.rules.Inc()
	}
	return nil
}

// RecordConflict counts a lost compare-and-swap
func (r *Recorder) RecordConflict() {
	r.conflicts.Inc()
}

// SetStalled publishes the latest stalled-expense count
func (r *Recorder) SetStalled(n int) {
	r.stalled.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry exposes the underlying registry for tests and extra collectors
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
