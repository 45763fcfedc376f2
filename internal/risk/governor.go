// Package risk implements position sizing and the portfolio risk governor:
// the NORMAL/WARNING/HALT mode machine driven by drawdown and daily loss,
// and the exposure caps applied to new entries.
package risk

import (
	"math"

	"trendlab/internal/config"
	"trendlab/internal/domain"
)

// Exposure is one open position's contribution to portfolio exposure.
type Exposure struct {
	Symbol string
	Value  float64 // signed notional
}

// Governor computes risk mode, position size, and exposure clipping for one
// backtest run. It holds configuration only; all portfolio state is passed
// per call.
type Governor struct {
	riskPerTrade   float64
	maxContracts   int
	maxGross       float64
	groups         []config.CorrelatedGroup
	warningPct     float64
	haltPct        float64
	dailyLossLimit float64
}

// NewGovernor creates a Governor from the run configuration.
func NewGovernor(cfg *config.BacktestConfig) *Governor {
	return &Governor{
		riskPerTrade:   cfg.RiskPerTrade,
		maxContracts:   cfg.MaxContractsPerInstrument,
		maxGross:       cfg.MaxGrossExposure,
		groups:         cfg.CorrelatedGroups,
		warningPct:     cfg.DrawdownWarningPct,
		haltPct:        cfg.DrawdownHaltPct,
		dailyLossLimit: cfg.DailyLossLimitPct,
	}
}

// ModeFor returns the risk mode for a date, from today's values only. A
// breached daily loss limit forces HALT regardless of drawdown; otherwise
// drawdown against peak equity selects the mode. Recovery is automatic: the
// mode is recomputed from scratch every day.
func (g *Governor) ModeFor(equity, peakEquity, dailyPnL, startOfDayEquity float64) domain.RiskMode {
	var dailyLossPct float64
	if startOfDayEquity > 0 {
		dailyLossPct = dailyPnL / startOfDayEquity
	}
	if dailyLossPct <= -g.dailyLossLimit {
		return domain.RiskHalt
	}

	var drawdown float64
	if peakEquity > 0 {
		drawdown = (peakEquity - equity) / peakEquity
	}
	switch {
	case drawdown >= g.haltPct:
		return domain.RiskHalt
	case drawdown >= g.warningPct:
		return domain.RiskWarning
	default:
		return domain.RiskNormal
	}
}

// Size returns the contract count for a new entry:
//
//	floor(equity × riskPerTrade × modeMultiplier / (|entry − stop| × multiplier))
//
// floored at zero. HALT mode always yields zero, suppressing new entries
// while existing stops remain in force.
func (g *Governor) Size(equity, entryPrice, stopPrice, multiplier float64, mode domain.RiskMode) int {
	stopDollars := math.Abs(entryPrice-stopPrice) * multiplier
	if stopDollars <= 0 {
		return 0
	}

	riskAmount := equity * g.riskPerTrade * mode.Multiplier()
	if riskAmount <= 0 {
		return 0
	}

	contracts := int(math.Floor(riskAmount / stopDollars))
	if contracts < 0 {
		return 0
	}
	return contracts
}

// Clip reduces contracts so the per-instrument cap, the gross exposure cap,
// and every correlated-group cap containing symbol are respected. Clipping
// only ever reduces toward zero.
func (g *Governor) Clip(contracts int, symbol string, entryPrice, multiplier, equity float64, open []Exposure) int {
	if contracts <= 0 {
		return 0
	}

	if g.maxContracts > 0 && contracts > g.maxContracts {
		contracts = g.maxContracts
	}

	perContract := math.Abs(entryPrice) * multiplier
	if perContract <= 0 {
		return contracts
	}

	if g.maxGross > 0 {
		var gross float64
		for _, e := range open {
			gross += math.Abs(e.Value)
		}
		contracts = clipToBudget(contracts, equity*g.maxGross-gross, perContract)
	}

	for _, grp := range g.groups {
		if !containsSymbol(grp.Symbols, symbol) {
			continue
		}
		var grouped float64
		for _, e := range open {
			if containsSymbol(grp.Symbols, e.Symbol) {
				grouped += math.Abs(e.Value)
			}
		}
		contracts = clipToBudget(contracts, equity*grp.MaxExposure-grouped, perContract)
	}

	return contracts
}

// clipToBudget returns the largest count not exceeding contracts whose
// notional fits in the remaining budget, floored at zero.
func clipToBudget(contracts int, budget, perContract float64) int {
	if budget <= 0 {
		return 0
	}
	fit := int(math.Floor(budget / perContract))
	if fit < contracts {
		contracts = fit
	}
	if contracts < 0 {
		return 0
	}
	return contracts
}

func containsSymbol(symbols []string, symbol string) bool {
	for _, s := range symbols {
		if s == symbol {
			return true
		}
	}
	return false
}
