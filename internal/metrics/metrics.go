// Package metrics declares the daemon's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"solmon/internal/pace"
)

var (
	// RPC traffic
	RPCRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "solmon_rpc_requests_total",
		Help: "RPC attempts by method and outcome class",
	}, []string{"method", "outcome"})

	RPCDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "solmon_rpc_request_duration_seconds",
		Help:    "RPC attempt latency by method",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
	}, []string{"method"})

	RateLimitHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solmon_rpc_rate_limit_hits_total",
		Help: "Responses classified as rate limiting",
	})

	// Scheduler progress
	PollCycles = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solmon_poll_cycles_total",
		Help: "Completed passes over the working set",
	})

	AccountsPolled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solmon_poll_accounts_total",
		Help: "Per-account signature checks performed",
	})

	WatchedAccounts = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "solmon_watched_accounts",
		Help: "Distinct accounts in the working set",
	})

	SchedulerAlive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "solmon_scheduler_alive",
		Help: "1 while the poll scheduler goroutine is running",
	})

	SchedulerRestarts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solmon_scheduler_restarts_total",
		Help: "Times the supervisor respawned a dead scheduler",
	})

	// Notification flow
	NotificationsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "solmon_notifications_sent_total",
		Help: "Outbound deliveries by event kind",
	}, []string{"kind"})

	NotificationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solmon_notification_failures_total",
		Help: "Deliveries the messenger rejected",
	})

	LedgerDuplicates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solmon_ledger_duplicates_total",
		Help: "Claims that lost to an existing ledger row",
	})

	BotUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "solmon_bot_updates_total",
		Help: "Processed bot updates by kind",
	}, []string{"kind"})

	DustRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solmon_dust_recorded_total",
		Help: "Transactions below the notification threshold",
	})

	// Pace controller
	PaceDelay = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "solmon_pace_delay_seconds",
		Help: "Current per-request delay",
	})

	PaceMode = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "solmon_pace_mode",
		Help: "Current pacing mode (1 fast, 2 normal, 3 careful)",
	})

	PaceBatchSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "solmon_pace_batch_size",
		Help: "Accounts per batch under the current mode",
	})

	PaceWindowCalls = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "solmon_pace_window_calls",
		Help: "Requests in the rolling rate window",
	})
)

func init() {
	prometheus.MustRegister(
		RPCRequests,
		RPCDuration,
		RateLimitHits,
		PollCycles,
		AccountsPolled,
		WatchedAccounts,
		SchedulerAlive,
		SchedulerRestarts,
		NotificationsSent,
		NotificationFailures,
		LedgerDuplicates,
		BotUpdates,
		DustRecorded,
		PaceDelay,
		PaceMode,
		PaceBatchSize,
		PaceWindowCalls,
	)
}

// ObservePace pushes a controller snapshot into the pace gauges.
func ObservePace(s pace.Stats) {
	PaceDelay.Set(s.Delay.Seconds())
	PaceMode.Set(float64(s.Mode))
	PaceBatchSize.Set(float64(s.BatchSize))
	PaceWindowCalls.Set(float64(s.WindowCalls))
}
