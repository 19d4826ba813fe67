package server

import (
	"github.com/shopspring/decimal"

	"crashcore/internal/engine"
	"crashcore/internal/metrics"
)

// metricsAdapter satisfies engine.MetricsRecorder by forwarding to the
// concrete Prometheus bundle, keeping internal/engine free of a direct
// github.com/prometheus/client_golang import.
type metricsAdapter struct {
	m *metrics.Metrics
}

func newMetricsAdapter(m *metrics.Metrics) *metricsAdapter {
	return &metricsAdapter{m: m}
}

func (a *metricsAdapter) RoundStarted() { a.m.RoundsStarted.Inc() }

func (a *metricsAdapter) RoundCrashed(crashPoint decimal.Decimal) {
	a.m.RoundsCrashed.Inc()
	f, _ := crashPoint.Float64()
	a.m.CrashPoint.Observe(f)
}

func (a *metricsAdapter) RoundAborted() { a.m.RoundsAborted.Inc() }

func (a *metricsAdapter) BetPlaced(usdAmount decimal.Decimal) {
	a.m.BetsPlaced.Inc()
	f, _ := usdAmount.Float64()
	a.m.BetAmountUSD.Observe(f)
}

func (a *metricsAdapter) BetRejected(code engine.Code) {
	a.m.BetsRejected.WithLabelValues(string(code)).Inc()
}

func (a *metricsAdapter) CashedOut() { a.m.Cashouts.Inc() }

func (a *metricsAdapter) SettlementRetry() { a.m.SettlementRetries.Inc() }
