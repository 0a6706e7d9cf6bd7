// Package metrics declares the Prometheus collectors hookshot exposes
// on /metrics: promauto.New*Vec collectors at package scope, labelled,
// incremented from the code path that observes the event.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueueDepth is the number of tasks currently sitting in a queue,
	// waiting for their worker to pick them up.
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hookshot_queue_depth",
			Help: "Number of deploy tasks waiting in a queue.",
		},
		[]string{"queue"},
	)

	// TasksProcessedTotal counts deploy tasks that finished running,
	// by outcome: "success" or "failed".
	TasksProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookshot_tasks_processed_total",
			Help: "Total deploy tasks that finished running, by outcome.",
		},
		[]string{"outcome"},
	)

	// TasksCancelledTotal counts tasks evicted from a queue by
	// capacity pressure before they ever ran.
	TasksCancelledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookshot_tasks_cancelled_total",
			Help: "Total deploy tasks evicted from a queue before running.",
		},
		[]string{"queue"},
	)

	// NotifyFailuresTotal counts notification POSTs that didn't reach
	// a listener or didn't get a 2xx response back.
	NotifyFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookshot_notify_failures_total",
			Help: "Total notification deliveries that failed.",
		},
		[]string{"reason"},
	)
)
