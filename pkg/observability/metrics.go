// Package observability provides prometheus-backed lifecycle hooks.
package observability

import (
	"context"

	"github.com/aretw0/espalier/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records pipeline activity as prometheus collectors.
type Metrics struct {
	mounts    *prometheus.CounterVec
	events    *prometheus.CounterVec
	rejects   *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on the given
// registerer. Pass prometheus.DefaultRegisterer for the global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		mounts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "espalier_mounts_total",
				Help: "Total number of completed mount pipeline runs",
			},
			[]string{"controller", "action", "redirected"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "espalier_events_total",
				Help: "Total number of completed event pipeline runs",
			},
			[]string{"controller", "event", "redirected"},
		),
		rejects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "espalier_rejects_total",
				Help: "Total number of rejected unknown action or event names",
			},
			// The raw name is never a label: unknown input would explode
			// the cardinality.
			[]string{"controller", "kind"},
		),
		durations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "espalier_pipeline_duration_seconds",
				Help: "Duration of pipeline runs",
			},
			[]string{"controller", "type"},
		),
	}
	reg.MustRegister(m.mounts, m.events, m.rejects, m.durations)
	return m
}

// Hooks returns lifecycle hooks that feed the collectors. Compose with your
// own hooks if you also want logging.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnMount:    m.onMount,
		OnDispatch: m.onDispatch,
		OnReject:   m.onReject,
	}
}

func (m *Metrics) onMount(ctx context.Context, e *domain.MountEvent) {
	m.mounts.WithLabelValues(e.Controller, e.Action, boolLabel(e.Redirected)).Inc()
	m.durations.WithLabelValues(e.Controller, string(e.Type)).Observe(e.Duration.Seconds())
}

func (m *Metrics) onDispatch(ctx context.Context, e *domain.DispatchEventInfo) {
	m.events.WithLabelValues(e.Controller, e.Event, boolLabel(e.Redirected)).Inc()
	m.durations.WithLabelValues(e.Controller, string(e.Type)).Observe(e.Duration.Seconds())
}

func (m *Metrics) onReject(ctx context.Context, e *domain.RejectEventInfo) {
	m.rejects.WithLabelValues(e.Controller, string(e.Kind)).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
