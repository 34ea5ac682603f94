package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Latency of the full spin atomic unit (quota check through tier refresh)
	SpinDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "loyalty_wheel_spin_duration_seconds",
		Help:    "Latency of the wheel spin atomic unit",
		Buckets: prometheus.DefBuckets,
	})

	SpinsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "loyalty_wheel_spins_total",
		Help: "Total successful wheel spins",
	})

	SpinQuotaRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "loyalty_wheel_quota_rejections_total",
		Help: "Spin attempts rejected by the daily quota",
	})

	MissionCompletions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "loyalty_mission_completions_total",
		Help: "Missions completed with a reward posted",
	})

	LedgerAppends = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "loyalty_ledger_appends_total",
		Help: "Ledger entries appended",
	})

	TierChanges = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "loyalty_tier_changes_total",
		Help: "Member tier reassignments after a ledger append",
	})

	ReconcileRepairs = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "loyalty_reconcile_repairs_total",
		Help: "Cached balances or tiers repaired by the reconciler",
	})
)

func Init() {
	prometheus.MustRegister(
		SpinDuration,
		SpinsTotal,
		SpinQuotaRejections,
		MissionCompletions,
		LedgerAppends,
		TierChanges,
		ReconcileRepairs,
	)
}
