// Package automation drives the simulated community: a single timer
// goroutine runs activity cycles, and each cycle walks the active bot
// registry, decides per bot, and commits the resulting posts.
//
// This file exposes Prometheus instrumentation for the automation loop.
// Label cardinality is kept deliberately small: the only labeled dimension
// is the action kind ("question"/"answer"), everything else is a plain
// counter or histogram.
package automation

import "github.com/prometheus/client_golang/prometheus"

var (
	// cyclesTotal counts completed activity cycles, scheduled and manual.
	cyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "automation_cycles_total",
			Help: "Total number of completed automation cycles.",
		},
	)

	// cycleDuration records wall time per cycle. Buckets are tuned for a
	// loop dominated by local SQLite round trips.
	cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "automation_cycle_duration_seconds",
			Help:    "Duration of automation cycles in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// botActions counts committed bot actions by kind.
	botActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_bot_actions_total",
			Help: "Total number of committed bot actions.",
		},
		[]string{"action"},
	)

	// botFailures counts per-bot errors that were isolated within a cycle.
	botFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "automation_bot_failures_total",
			Help: "Total number of per-bot failures during automation cycles.",
		},
	)

	// duplicateSkips counts bots that generated only near-duplicate content
	// and therefore skipped their turn.
	duplicateSkips = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "automation_duplicate_skips_total",
			Help: "Total number of bot actions skipped by the duplicate guard.",
		},
	)

	// followUps counts follow-up replies posted in response to real-user
	// interaction events.
	followUps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "automation_follow_ups_total",
			Help: "Total number of follow-up replies posted to user interactions.",
		},
	)
)

func init() {
	prometheus.MustRegister(cyclesTotal, cycleDuration, botActions, botFailures, duplicateSkips, followUps)
}
