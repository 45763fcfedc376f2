package backtest

import (
	"time"

	"trendlab/internal/domain"
)

// Warning kinds recorded in a run's diagnostics. Everything here is degraded
// or local: the run continues, but the condition is never silently dropped.
const (
	WarnInsufficientData = "insufficient_data"
	WarnMissingFeature   = "missing_feature"
	WarnUnfillableSignal = "unfillable_signal"
)

// Warning is one diagnostic recorded during a run.
type Warning struct {
	Kind   string
	Symbol string
	Date   time.Time // zero for per-instrument conditions
	Msg    string
}

// Result is the complete output of one backtest run: the append-only signal
// log, the closed-trade log, the daily snapshot series, summary metrics, and
// the diagnostics collected along the way.
type Result struct {
	Signals   []domain.Signal
	Trades    []domain.ClosedTrade
	Snapshots []domain.PortfolioSnapshot
	Metrics   Metrics
	Warnings  []Warning
}

// FinalEquity returns the last snapshot's equity, or initial if the run
// produced no snapshots.
func (r *Result) FinalEquity(initial float64) float64 {
	if len(r.Snapshots) == 0 {
		return initial
	}
	return r.Snapshots[len(r.Snapshots)-1].Equity
}
