// Package metrics exposes Prometheus collectors for task execution and
// registry traffic, plus the HTTP handler that serves them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	tasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "computeengine_tasks_total",
			Help: "Total number of tasks received by the compute engine.",
		},
		[]string{"kind", "outcome"},
	)

	taskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "computeengine_task_duration_seconds",
			Help:    "Task execution duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	registryOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "computeengine_registry_operations_total",
			Help: "Total number of naming service operations.",
		},
		[]string{"op", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(tasksTotal)
	prometheus.MustRegister(taskDuration)
	prometheus.MustRegister(registryOpsTotal)
}

// TaskObserver records task executions. It satisfies core.TaskObserver.
type TaskObserver struct{}

// ObserveTask counts one task execution. Rejected tasks never ran, so they
// are counted but not timed.
func (TaskObserver) ObserveTask(kind, outcome string, elapsed time.Duration) {
	tasksTotal.WithLabelValues(kind, outcome).Inc()
	if elapsed > 0 {
		taskDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	}
}

// ObserveRegistry counts one naming service operation.
func ObserveRegistry(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	registryOpsTotal.WithLabelValues(op, outcome).Inc()
}
