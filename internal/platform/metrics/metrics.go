// Package metrics exposes the task engine's state as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pzielinski/tourney-api/internal/task"
)

// StatsProvider is the slice of the engine the collector needs.
type StatsProvider interface {
	QueueStats() task.Stats
}

// EngineCollector implements prometheus.Collector by sampling the engine's
// queue statistics on every scrape. Gauges rather than counters: the
// per-status numbers shrink when the retention sweeper removes old tasks.
type EngineCollector struct {
	provider StatsProvider

	tasksDesc      *prometheus.Desc
	queueDepthDesc *prometheus.Desc
	workersDesc    *prometheus.Desc
}

// NewEngineCollector creates a collector for the given engine.
func NewEngineCollector(provider StatsProvider) *EngineCollector {
	return &EngineCollector{
		provider: provider,
		tasksDesc: prometheus.NewDesc(
			"tourney_tasks",
			"Number of tracked tasks by status.",
			[]string{"status"}, nil,
		),
		queueDepthDesc: prometheus.NewDesc(
			"tourney_task_queue_depth",
			"Number of dispatch entries waiting for a worker.",
			nil, nil,
		),
		workersDesc: prometheus.NewDesc(
			"tourney_task_workers",
			"Size of the task worker pool.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *EngineCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.tasksDesc
	ch <- c.queueDepthDesc
	ch <- c.workersDesc
}

// Collect implements prometheus.Collector.
func (c *EngineCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.provider.QueueStats()

	byStatus := map[string]int{
		string(task.StatusPending):   stats.Pending,
		string(task.StatusRunning):   stats.Running,
		string(task.StatusCompleted): stats.Completed,
		string(task.StatusFailed):    stats.Failed,
		string(task.StatusCancelled): stats.Cancelled,
	}
	for status, count := range byStatus {
		ch <- prometheus.MustNewConstMetric(c.tasksDesc, prometheus.GaugeValue, float64(count), status)
	}

	ch <- prometheus.MustNewConstMetric(c.queueDepthDesc, prometheus.GaugeValue, float64(stats.QueueDepth))
	ch <- prometheus.MustNewConstMetric(c.workersDesc, prometheus.GaugeValue, float64(stats.WorkerCount))
}

// Register creates a dedicated registry holding the engine collector,
// ready to serve via promhttp.
func Register(provider StatsProvider) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewEngineCollector(provider))
	return reg
}
