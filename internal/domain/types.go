// Package domain defines the core value types shared across the backtest
// engine: instruments, bars, feature rows, signals, positions, trades, and
// portfolio snapshots.
package domain

import "time"

// ---------------------------------------------------------------------------
// Reference data
// ---------------------------------------------------------------------------

// Instrument describes one futures contract's reference data. It is
// immutable for the duration of a backtest run.
type Instrument struct {
	Symbol     string
	Name       string
	Exchange   string
	TickSize   float64 // minimum price increment, in points
	Multiplier float64 // dollars per point
	Currency   string
	Active     bool
}

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Bar is one instrument's OHLCV for one trading date. Per-symbol bar series
// are strictly ascending by date with no duplicates.
type Bar struct {
	Symbol string
	Date   time.Time // calendar date, UTC midnight
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// FeatureRow holds the precomputed indicator values for one instrument on
// one date. Rows exist only for dates at or after the longest lookback's
// warmup; earlier dates have no row.
type FeatureRow struct {
	Date         time.Time
	ATR          float64 // average true range
	TrendMA      float64 // trend moving average of closes
	MASlope      float64 // least-squares slope of TrendMA
	BreakoutHigh float64 // rolling highest high over the breakout period
	BreakoutLow  float64 // rolling lowest low over the breakout period
	ExitHigh     float64 // rolling highest high over the exit period
	ExitLow      float64 // rolling lowest low over the exit period
}

// ---------------------------------------------------------------------------
// Signals
// ---------------------------------------------------------------------------

// SignalType identifies the kind of trading signal.
type SignalType string

// Signal types emitted by the generator.
const (
	SignalEntryLong  SignalType = "entry_long"
	SignalEntryShort SignalType = "entry_short"
	SignalExitLong   SignalType = "exit_long"
	SignalExitShort  SignalType = "exit_short"
	SignalStopLong   SignalType = "stop_long"
	SignalStopShort  SignalType = "stop_short"
)

// IsEntry reports whether the signal opens a new position.
func (t SignalType) IsEntry() bool {
	return t == SignalEntryLong || t == SignalEntryShort
}

// IsExit reports whether the signal closes an existing position, whether by
// channel exit or by stop.
func (t SignalType) IsExit() bool {
	return !t.IsEntry()
}

// IsLong reports whether the signal refers to the long side.
func (t SignalType) IsLong() bool {
	return t == SignalEntryLong || t == SignalExitLong || t == SignalStopLong
}

// Signal is a dated, typed trading event. Signals are immutable once
// recorded and accumulate in an append-only log.
type Signal struct {
	Date            time.Time
	Symbol          string
	Type            SignalType
	Price           float64 // reference price at signal time
	StopPrice       float64 // initial stop for entries, zero otherwise
	TargetContracts int     // sized contract count for entries
	Reason          string
}

// ---------------------------------------------------------------------------
// Positions and trades
// ---------------------------------------------------------------------------

// Position is an open holding in one instrument. Quantity is positive for
// long, negative for short. A position is closed whole; it is never resized
// in place.
type Position struct {
	Symbol     string
	Quantity   int
	EntryPrice float64
	EntryDate  time.Time
	StopPrice  float64
	Multiplier float64
}

// Value returns the signed notional value of the position at price.
func (p *Position) Value(price float64) float64 {
	return float64(p.Quantity) * price * p.Multiplier
}

// UnrealizedPnL returns the open profit or loss at price.
func (p *Position) UnrealizedPnL(price float64) float64 {
	return float64(p.Quantity) * (price - p.EntryPrice) * p.Multiplier
}

// ClosedTrade records one completed round trip. RealizedPnL is net of the
// exit commission.
type ClosedTrade struct {
	Symbol      string
	Quantity    int
	EntryDate   time.Time
	EntryPrice  float64
	ExitDate    time.Time
	ExitPrice   float64
	RealizedPnL float64
	ExitReason  string
}

// ---------------------------------------------------------------------------
// Portfolio
// ---------------------------------------------------------------------------

// PortfolioSnapshot captures the whole portfolio's state at the end of one
// trading date. The ordered snapshot series drives the metrics calculator.
type PortfolioSnapshot struct {
	Date          time.Time
	Equity        float64
	Cash          float64
	UnrealizedPnL float64
	RealizedPnL   float64 // cumulative net realized P&L to date
	DailyPnL      float64
	Drawdown      float64 // fraction of peak equity, >= 0
	GrossExposure float64 // sum of absolute position notionals
	OpenPositions int
}

// ---------------------------------------------------------------------------
// Risk
// ---------------------------------------------------------------------------

// RiskMode is the portfolio-level risk state controlling position sizing.
type RiskMode string

// Risk modes, in order of increasing severity.
const (
	RiskNormal  RiskMode = "normal"
	RiskWarning RiskMode = "warning"
	RiskHalt    RiskMode = "halt"
)

// Multiplier returns the position-size multiplier for the mode: 1.0 in
// normal, 0.5 in warning, 0.0 in halt.
func (m RiskMode) Multiplier() float64 {
	switch m {
	case RiskWarning:
		return 0.5
	case RiskHalt:
		return 0
	default:
		return 1.0
	}
}

// Date constructs a UTC-midnight calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
