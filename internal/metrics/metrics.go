// Package metrics exposes Prometheus counters/gauges for the round
// engine and gateway, trimmed from the business/performance metric
// groups in bigthdgh-bkc_coin_2's internal/monitoring/prometheus_metrics.go
// (which already tracks "crashGames"/"gameBets"-shaped counters for a
// crash-style game) down to what this spec actually measures — no
// payment/NFT/system metric groups, since this spec has none of those
// collaborators.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every counter/gauge the engine and gateway update.
type Metrics struct {
	RoundsStarted     prometheus.Counter
	RoundsCrashed     prometheus.Counter
	RoundsAborted     prometheus.Counter
	BetsPlaced        prometheus.Counter
	BetsRejected      *prometheus.CounterVec
	Cashouts          prometheus.Counter
	CrashPoint        prometheus.Histogram
	BetAmountUSD      prometheus.Histogram
	ConnectedClients  prometheus.Gauge
	SettlementRetries prometheus.Counter
}

// New registers every metric on registry and returns the bundle.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		RoundsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crashcore_rounds_started_total",
			Help: "Total rounds that reached RUNNING.",
		}),
		RoundsCrashed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crashcore_rounds_crashed_total",
			Help: "Total rounds that reached CRASHED.",
		}),
		RoundsAborted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crashcore_rounds_aborted_total",
			Help: "Total rounds aborted by a persistence failure during WAITING->RUNNING.",
		}),
		BetsPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crashcore_bets_placed_total",
			Help: "Total bets accepted by the round engine.",
		}),
		BetsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crashcore_bets_rejected_total",
			Help: "Total bets rejected, labeled by error code.",
		}, []string{"code"}),
		Cashouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crashcore_cashouts_total",
			Help: "Total successful cashouts, manual and auto combined.",
		}),
		CrashPoint: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crashcore_crash_point",
			Help:    "Distribution of crash points.",
			Buckets: []float64{1.1, 1.5, 2, 3, 5, 10, 20, 50, 100, 500, 1000},
		}),
		BetAmountUSD: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crashcore_bet_amount_usd",
			Help:    "Distribution of bet sizes in USD.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 12),
		}),
		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crashcore_connected_clients",
			Help: "Current number of connected WebSocket clients.",
		}),
		SettlementRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crashcore_settlement_retries_total",
			Help: "Total crash-settlement persistence retries.",
		}),
	}

	registry.MustRegister(
		m.RoundsStarted, m.RoundsCrashed, m.RoundsAborted,
		m.BetsPlaced, m.BetsRejected, m.Cashouts,
		m.CrashPoint, m.BetAmountUSD, m.ConnectedClients, m.SettlementRetries,
	)
	return m
}
