package observability

import (
	"context"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors fed by lifecycle hooks.
type Metrics struct {
	Steps    *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	Attempts *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tendril_step_total",
				Help: "Workflow steps finished, by outcome",
			},
			[]string{"graph", "step", "outcome"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tendril_step_duration_seconds",
				Help:    "Duration of workflow steps",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"graph", "step"},
		),
		Attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tendril_action_attempts_total",
				Help: "Activation techniques tried, by result",
			},
			[]string{"technique", "result"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Steps, m.Duration, m.Attempts)
	}
	return m
}

// Hooks returns lifecycle hooks recording into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepLeave: func(_ context.Context, e *domain.StepEvent) {
			m.Steps.WithLabelValues(e.Graph, e.Step, string(e.Outcome)).Inc()
			m.Duration.WithLabelValues(e.Graph, e.Step).Observe(e.Duration.Seconds())
		},
		OnAction: func(_ context.Context, e *domain.ActionEvent) {
			result := "failed"
			if e.Succeeded {
				result = "ok"
			}
			m.Attempts.WithLabelValues(e.Technique, result).Inc()
		},
	}
}
