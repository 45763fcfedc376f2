// Package strategy implements the breakout trend-following signal generator.
//
// Rules, evaluated in order for each instrument and date:
//
//   - position open: catastrophe stop first (intraday high/low breach of the
//     stop price), then the channel exit (close beyond the exit-period
//     extreme).
//   - no position: trend filter (close versus the trend MA and the MA slope
//     sign), then a breakout of the previous day's breakout-period extreme,
//     subject to the re-entry cooldown.
//
// The generator is pure: it reads its inputs and returns zero or one signal,
// leaving all state mutation to the caller.
package strategy

import (
	"fmt"
	"time"

	"trendlab/internal/domain"
)

// Params holds the strategy parameters the generator needs.
type Params struct {
	StopATRMultiple float64
	CooldownDays    int
	BreakoutPeriod  int // reporting only, used in reason strings
	ExitPeriod      int // reporting only, used in reason strings
}

// Cooldown records the most recent exit for one instrument. Re-entry in the
// same direction is blocked for CooldownDays calendar days after the exit;
// an opposite-direction breakout is never blocked and clears the state.
type Cooldown struct {
	Active   bool
	ExitDate time.Time
	WasLong  bool
}

// Blocks reports whether the cooldown suppresses an entry in the given
// direction on date.
func (c Cooldown) Blocks(date time.Time, long bool, cooldownDays int) bool {
	if !c.Active || c.WasLong != long {
		return false
	}
	days := int(date.Sub(c.ExitDate).Hours() / 24)
	return days < cooldownDays
}

// Generator produces entry, exit, and stop signals from bars and feature
// rows.
type Generator struct {
	params Params
}

// NewGenerator creates a Generator with the given parameters.
func NewGenerator(params Params) *Generator {
	return &Generator{params: params}
}

// Evaluate returns zero or one signal for one instrument on one date.
//
// bar and feat are the date's bar and feature row; prevBar and prevFeat are
// the prior trading day's (prevFeat carries the breakout levels, which must
// exclude the current bar's range). pos is the open position or nil. A nil
// feat means the date is inside warmup or has no snapshot: no signal is
// generated.
func (g *Generator) Evaluate(
	bar domain.Bar,
	prevBar *domain.Bar,
	feat *domain.FeatureRow,
	prevFeat *domain.FeatureRow,
	pos *domain.Position,
	cd Cooldown,
) *domain.Signal {
	if feat == nil {
		return nil
	}

	if pos != nil {
		return g.evaluateExit(bar, feat, pos)
	}
	return g.evaluateEntry(bar, prevBar, feat, prevFeat, cd)
}

// evaluateExit checks the catastrophe stop first, then the channel exit.
// Stop takes precedence when both trigger on the same bar.
func (g *Generator) evaluateExit(bar domain.Bar, feat *domain.FeatureRow, pos *domain.Position) *domain.Signal {
	long := pos.Quantity > 0

	if long && bar.Low <= pos.StopPrice {
		return &domain.Signal{
			Date:   bar.Date,
			Symbol: bar.Symbol,
			Type:   domain.SignalStopLong,
			Price:  pos.StopPrice,
			Reason: fmt.Sprintf("catastrophe stop hit at %.2f", pos.StopPrice),
		}
	}
	if !long && bar.High >= pos.StopPrice {
		return &domain.Signal{
			Date:   bar.Date,
			Symbol: bar.Symbol,
			Type:   domain.SignalStopShort,
			Price:  pos.StopPrice,
			Reason: fmt.Sprintf("catastrophe stop hit at %.2f", pos.StopPrice),
		}
	}

	if long && bar.Close < feat.ExitLow {
		return &domain.Signal{
			Date:   bar.Date,
			Symbol: bar.Symbol,
			Type:   domain.SignalExitLong,
			Price:  bar.Close,
			Reason: fmt.Sprintf("close crossed below %d-day low", g.params.ExitPeriod),
		}
	}
	if !long && bar.Close > feat.ExitHigh {
		return &domain.Signal{
			Date:   bar.Date,
			Symbol: bar.Symbol,
			Type:   domain.SignalExitShort,
			Price:  bar.Close,
			Reason: fmt.Sprintf("close crossed above %d-day high", g.params.ExitPeriod),
		}
	}

	return nil
}

// evaluateEntry checks the trend filter and breakout. Breakout detection
// needs the previous bar's close and the previous day's channel levels, so
// the first evaluated date never enters.
func (g *Generator) evaluateEntry(
	bar domain.Bar,
	prevBar *domain.Bar,
	feat *domain.FeatureRow,
	prevFeat *domain.FeatureRow,
	cd Cooldown,
) *domain.Signal {
	if prevBar == nil || prevFeat == nil {
		return nil
	}

	longTrend := bar.Close > feat.TrendMA && feat.MASlope > 0
	shortTrend := bar.Close < feat.TrendMA && feat.MASlope < 0
	if !longTrend && !shortTrend {
		return nil
	}

	var (
		typ    domain.SignalType
		long   bool
		reason string
	)
	switch {
	case longTrend && bar.Close > prevFeat.BreakoutHigh && prevBar.Close <= prevFeat.BreakoutHigh:
		typ, long = domain.SignalEntryLong, true
		reason = fmt.Sprintf("close broke above %d-day high", g.params.BreakoutPeriod)
	case shortTrend && bar.Close < prevFeat.BreakoutLow && prevBar.Close >= prevFeat.BreakoutLow:
		typ, long = domain.SignalEntryShort, false
		reason = fmt.Sprintf("close broke below %d-day low", g.params.BreakoutPeriod)
	default:
		return nil
	}

	if cd.Blocks(bar.Date, long, g.params.CooldownDays) {
		return nil
	}

	stop := bar.Close - g.params.StopATRMultiple*feat.ATR
	if !long {
		stop = bar.Close + g.params.StopATRMultiple*feat.ATR
	}

	return &domain.Signal{
		Date:      bar.Date,
		Symbol:    bar.Symbol,
		Type:      typ,
		Price:     bar.Close,
		StopPrice: stop,
		Reason:    reason,
	}
}
