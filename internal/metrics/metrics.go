// ABOUTME: Prometheus collectors for wizard sessions, steps and deliverables
// ABOUTME: Owns a private registry and serves it with promhttp

// Package metrics exports wizard activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/2389/coven-wizard/internal/engine"
	"github.com/2389/coven-wizard/internal/workflow"
)

const namespace = "coven_wizard"

// Metrics holds every collector on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	sessionsActive       prometheus.Gauge
	stepsPrompted        *prometheus.CounterVec
	stepsSubmitted       *prometheus.CounterVec
	validationFailures   *prometheus.CounterVec
	workflowsCompleted   *prometheus.CounterVec
	workflowDuration     *prometheus.HistogramVec
	deliverablesProduced *prometheus.CounterVec
}

// New creates the collectors and registers them, plus the Go runtime and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of mounted chat views",
		}),
		stepsPrompted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_prompted_total",
			Help:      "Step forms presented, by display mode",
		}, []string{"workflow", "mode"}),
		stepsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_submitted_total",
			Help:      "Step submissions accepted",
		}, []string{"workflow"}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Submissions rejected for missing required fields",
		}, []string{"workflow"}),
		workflowsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_completed_total",
			Help:      "Workflows with every step submitted",
		}, []string{"workflow"}),
		workflowDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_duration_seconds",
			Help:      "Time from mounting a chat view to completing its workflow",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 3600},
		}, []string{"workflow"}),
		deliverablesProduced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliverables_total",
			Help:      "Deliverables produced, by outcome",
		}, []string{"workflow", "status"}),
	}

	m.registry.MustRegister(
		m.sessionsActive,
		m.stepsPrompted,
		m.stepsSubmitted,
		m.validationFailures,
		m.workflowsCompleted,
		m.workflowDuration,
		m.deliverablesProduced,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// SessionOpened records a mounted chat view.
func (m *Metrics) SessionOpened() { m.sessionsActive.Inc() }

// SessionClosed records an unmounted chat view.
func (m *Metrics) SessionClosed() { m.sessionsActive.Dec() }

// DeliverableProduced records one deliverable attempt.
func (m *Metrics) DeliverableProduced(workflowID string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.deliverablesProduced.WithLabelValues(workflowID, status).Inc()
}

// Listener returns an engine.Listener recording one session's activity.
func (m *Metrics) Listener(workflowID string) engine.Listener {
	return &listener{m: m, workflowID: workflowID, started: time.Now(), now: time.Now}
}

type listener struct {
	engine.NopListener
	m          *Metrics
	workflowID string
	started    time.Time
	now        func() time.Time
}

func (l *listener) StepPrompted(_ workflow.Step, mode engine.Mode) {
	l.m.stepsPrompted.WithLabelValues(l.workflowID, mode.String()).Inc()
}

func (l *listener) StepSubmitted(string) {
	l.m.stepsSubmitted.WithLabelValues(l.workflowID).Inc()
}

func (l *listener) ValidationFailed(string, []string) {
	l.m.validationFailures.WithLabelValues(l.workflowID).Inc()
}

func (l *listener) WorkflowCompleted() {
	l.m.workflowsCompleted.WithLabelValues(l.workflowID).Inc()
	l.m.workflowDuration.WithLabelValues(l.workflowID).Observe(l.now().Sub(l.started).Seconds())
}
