package taskexec

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the observability seam the executor writes through. Any
// implementation works; NewPrometheusMetrics registers the counters and
// gauges a Group's three bands actually produce.
type Metrics interface {
	SetQueueDepth(executor string, depth int)
	IncCompleted(executor, mode string)
	IncShutdown(executor string)
}

type nopMetrics struct{}

func (nopMetrics) SetQueueDepth(string, int)    {}
func (nopMetrics) IncCompleted(string, string)  {}
func (nopMetrics) IncShutdown(string)           {}

// PrometheusMetrics registers and updates the executor's Prometheus
// series under namespace.
type PrometheusMetrics struct {
	queueDepth     *prometheus.GaugeVec
	tasksCompleted *prometheus.CounterVec
	shutdowns      *prometheus.CounterVec
}

// NewPrometheusMetrics builds and registers the executor's metrics
// family. Pass the result to WithMetrics.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	m := &PrometheusMetrics{
		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "executor_queue_depth",
				Help:      "Number of tasks currently queued, per executor.",
			},
			[]string{"executor"},
		),
		tasksCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executor_tasks_completed_total",
				Help:      "Total number of tasks completed, per executor and dispatch mode.",
			},
			[]string{"executor", "mode"},
		),
		shutdowns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executor_shutdowns_total",
				Help:      "Total number of executor shutdowns.",
			},
			[]string{"executor"},
		),
	}
	prometheus.MustRegister(m.queueDepth, m.tasksCompleted, m.shutdowns)
	return m
}

func (m *PrometheusMetrics) SetQueueDepth(executor string, depth int) {
	m.queueDepth.WithLabelValues(executor).Set(float64(depth))
}

func (m *PrometheusMetrics) IncCompleted(executor, mode string) {
	m.tasksCompleted.WithLabelValues(executor, mode).Inc()
}

func (m *PrometheusMetrics) IncShutdown(executor string) {
	m.shutdowns.WithLabelValues(executor).Inc()
}
