package config

import (
	"fmt"
	"time"
)

// Entry timing modes for simulated fills.
const (
	EntryNextOpen  = "next_open"
	EntryNextClose = "next_close"
)

// CorrelatedGroup names a set of instruments whose combined exposure is
// capped as one unit (e.g. equity-index contracts ES and NQ).
type CorrelatedGroup struct {
	Name        string   `yaml:"name"`
	Symbols     []string `yaml:"symbols"`
	MaxExposure float64  `yaml:"max_exposure"` // fraction of equity
}

// BacktestConfig is the immutable configuration for one backtest run. It is
// constructed once, has every option given an explicit default, and is
// validated before any simulation starts.
type BacktestConfig struct {
	Instruments    []string `yaml:"instruments"`
	StartDate      string   `yaml:"start_date"` // YYYY-MM-DD
	EndDate        string   `yaml:"end_date"`   // YYYY-MM-DD
	InitialCapital float64  `yaml:"initial_capital"`

	// Strategy parameters.
	ATRPeriod       int     `yaml:"atr_period"`
	MAPeriod        int     `yaml:"ma_period"`
	MASlopePeriod   int     `yaml:"ma_slope_period"`
	BreakoutPeriod  int     `yaml:"breakout_period"`
	ExitPeriod      int     `yaml:"exit_period"`
	StopATRMultiple float64 `yaml:"stop_atr_multiple"`
	CooldownDays    int     `yaml:"cooldown_days"`

	// Risk parameters.
	RiskPerTrade              float64           `yaml:"risk_per_trade"`
	MaxContractsPerInstrument int               `yaml:"max_contracts_per_instrument"` // 0 = no cap
	MaxGrossExposure          float64           `yaml:"max_gross_exposure"`           // fraction of equity, 0 = no cap
	CorrelatedGroups          []CorrelatedGroup `yaml:"correlated_groups"`

	// Execution parameters.
	SlippageTicks         float64 `yaml:"slippage_ticks"`
	CommissionPerContract float64 `yaml:"commission_per_contract"`
	EntryTiming           string  `yaml:"entry_timing"`

	// Risk guardrails.
	DrawdownWarningPct float64 `yaml:"drawdown_warning_pct"`
	DrawdownHaltPct    float64 `yaml:"drawdown_halt_pct"`
	DailyLossLimitPct  float64 `yaml:"daily_loss_limit_pct"`
}

// applyDefaults fills zero-valued fields with the canonical strategy
// defaults. Instruments and the date range have no default; they must be
// supplied.
func (c *BacktestConfig) applyDefaults() {
	if c.InitialCapital == 0 {
		c.InitialCapital = 100000
	}
	if c.ATRPeriod == 0 {
		c.ATRPeriod = 20
	}
	if c.MAPeriod == 0 {
		c.MAPeriod = 50
	}
	if c.MASlopePeriod == 0 {
		c.MASlopePeriod = 10
	}
	if c.BreakoutPeriod == 0 {
		c.BreakoutPeriod = 20
	}
	if c.ExitPeriod == 0 {
		c.ExitPeriod = 10
	}
	if c.StopATRMultiple == 0 {
		c.StopATRMultiple = 2.0
	}
	if c.CooldownDays == 0 {
		c.CooldownDays = 3
	}
	if c.RiskPerTrade == 0 {
		c.RiskPerTrade = 0.005
	}
	if c.CommissionPerContract == 0 {
		c.CommissionPerContract = 2.50
	}
	if c.EntryTiming == "" {
		c.EntryTiming = EntryNextOpen
	}
	if c.DrawdownWarningPct == 0 {
		c.DrawdownWarningPct = 0.10
	}
	if c.DrawdownHaltPct == 0 {
		c.DrawdownHaltPct = 0.15
	}
	if c.DailyLossLimitPct == 0 {
		c.DailyLossLimitPct = 0.02
	}
}

// ApplyDefaults fills zero-valued fields with strategy defaults. Exposed for
// callers that construct a BacktestConfig directly rather than via Load.
func (c *BacktestConfig) ApplyDefaults() { c.applyDefaults() }

// ValidationError reports an invalid configuration field. The run never
// starts when validation fails.
type ValidationError struct {
	Field string
	Msg   string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Msg)
}

// Validate checks every field once at run start and returns the first
// offending field as a *ValidationError.
func (c *BacktestConfig) Validate() error {
	if len(c.Instruments) == 0 {
		return &ValidationError{Field: "instruments", Msg: "at least one instrument is required"}
	}

	start, err := c.Start()
	if err != nil {
		return &ValidationError{Field: "start_date", Msg: err.Error()}
	}
	end, err := c.End()
	if err != nil {
		return &ValidationError{Field: "end_date", Msg: err.Error()}
	}
	if end.Before(start) {
		return &ValidationError{Field: "end_date", Msg: "end date is before start date"}
	}

	if c.InitialCapital <= 0 {
		return &ValidationError{Field: "initial_capital", Msg: "must be positive"}
	}

	for field, period := range map[string]int{
		"atr_period":      c.ATRPeriod,
		"ma_period":       c.MAPeriod,
		"ma_slope_period": c.MASlopePeriod,
		"breakout_period": c.BreakoutPeriod,
		"exit_period":     c.ExitPeriod,
	} {
		if period < 1 {
			return &ValidationError{Field: field, Msg: "must be at least 1"}
		}
	}

	if c.StopATRMultiple <= 0 {
		return &ValidationError{Field: "stop_atr_multiple", Msg: "must be positive"}
	}
	if c.CooldownDays < 0 {
		return &ValidationError{Field: "cooldown_days", Msg: "must not be negative"}
	}

	if c.RiskPerTrade <= 0 || c.RiskPerTrade > 1 {
		return &ValidationError{Field: "risk_per_trade", Msg: "must be in (0, 1]"}
	}
	if c.MaxContractsPerInstrument < 0 {
		return &ValidationError{Field: "max_contracts_per_instrument", Msg: "must not be negative"}
	}
	if c.MaxGrossExposure < 0 {
		return &ValidationError{Field: "max_gross_exposure", Msg: "must not be negative"}
	}
	for _, g := range c.CorrelatedGroups {
		if g.Name == "" {
			return &ValidationError{Field: "correlated_groups", Msg: "group name is required"}
		}
		if len(g.Symbols) == 0 {
			return &ValidationError{Field: "correlated_groups", Msg: fmt.Sprintf("group %q has no symbols", g.Name)}
		}
		if g.MaxExposure <= 0 {
			return &ValidationError{Field: "correlated_groups", Msg: fmt.Sprintf("group %q max_exposure must be positive", g.Name)}
		}
	}

	if c.SlippageTicks < 0 {
		return &ValidationError{Field: "slippage_ticks", Msg: "must not be negative"}
	}
	if c.CommissionPerContract < 0 {
		return &ValidationError{Field: "commission_per_contract", Msg: "must not be negative"}
	}
	if c.EntryTiming != EntryNextOpen && c.EntryTiming != EntryNextClose {
		return &ValidationError{Field: "entry_timing", Msg: fmt.Sprintf("must be %q or %q", EntryNextOpen, EntryNextClose)}
	}

	for field, pct := range map[string]float64{
		"drawdown_warning_pct": c.DrawdownWarningPct,
		"drawdown_halt_pct":    c.DrawdownHaltPct,
		"daily_loss_limit_pct": c.DailyLossLimitPct,
	} {
		if pct <= 0 || pct > 1 {
			return &ValidationError{Field: field, Msg: "must be in (0, 1]"}
		}
	}
	if c.DrawdownHaltPct < c.DrawdownWarningPct {
		return &ValidationError{Field: "drawdown_halt_pct", Msg: "must be at least drawdown_warning_pct"}
	}

	return nil
}

// Start returns the parsed start date.
func (c *BacktestConfig) Start() (time.Time, error) {
	return time.Parse("2006-01-02", c.StartDate)
}

// End returns the parsed end date.
func (c *BacktestConfig) End() (time.Time, error) {
	return time.Parse("2006-01-02", c.EndDate)
}

// Warmup returns the longest lookback any feature needs before its first
// valid row. The MA slope needs a full slope window of completed moving
// averages on top of the MA window itself.
func (c *BacktestConfig) Warmup() int {
	warmup := c.MAPeriod + c.MASlopePeriod - 1
	for _, p := range []int{c.ATRPeriod + 1, c.BreakoutPeriod, c.ExitPeriod} {
		if p > warmup {
			warmup = p
		}
	}
	return warmup
}
