// Package metrics exposes prometheus collectors for workflow runs, action
// executions and notification delivery.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyjia/flooring-crm/internal/application/workflow"
)

const namespace = "floorcrm"

// Metrics owns a private registry so tests can build as many as they like
type Metrics struct {
	registry *prometheus.Registry

	workflowRuns     *prometheus.CounterVec
	actionExecutions *prometheus.CounterVec
	actionDuration   *prometheus.HistogramVec
	notifications    *prometheus.CounterVec
	invoicesOverdue  prometheus.Counter
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		workflowRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "runs_total",
			Help:      "Workflow runs by trigger type and outcome.",
		}, []string{"trigger", "outcome"}),
		actionExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "action_executions_total",
			Help:      "Action executions by kind and success.",
		}, []string{"kind", "success"}),
		actionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "action_duration_seconds",
			Help:      "Action execution latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "sent_total",
			Help:      "Notification attempts by channel and success.",
		}, []string{"channel", "success"}),
		invoicesOverdue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "invoice",
			Name:      "marked_overdue_total",
			Help:      "Invoices moved to overdue by the sweeper.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.workflowRuns,
		m.actionExecutions,
		m.actionDuration,
		m.notifications,
		m.invoicesOverdue,
	)
	return m
}

// WorkflowRun counts one workflow run
func (m *Metrics) WorkflowRun(trigger, outcome string) {
	m.workflowRuns.WithLabelValues(trigger, outcome).Inc()
}

// ActionExecuted counts one action execution and observes its latency
func (m *Metrics) ActionExecuted(kind string, success bool, elapsed time.Duration) {
	m.actionExecutions.WithLabelValues(kind, strconv.FormatBool(success)).Inc()
	m.actionDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// NotificationSent counts one notification attempt
func (m *Metrics) NotificationSent(channel string, success bool) {
	m.notifications.WithLabelValues(channel, strconv.FormatBool(success)).Inc()
}

// InvoicesMarkedOverdue adds n invoices to the overdue counter
func (m *Metrics) InvoicesMarkedOverdue(n int) {
	if n > 0 {
		m.invoicesOverdue.Add(float64(n))
	}
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Verify interface compliance
var _ workflow.Metrics = (*Metrics)(nil)
