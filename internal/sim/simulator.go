// Package sim models order execution for the backtest: fill prices with
// adverse slippage and per-contract commission. Entries fill on the bar after
// the signal bar; exits and stops fill on the signal bar itself.
package sim

import (
	"time"

	"trendlab/internal/config"
	"trendlab/internal/domain"
)

// Fill is one executed order.
type Fill struct {
	Date       time.Time
	Symbol     string
	Quantity   int // signed: positive buys, negative sells
	Price      float64
	Commission float64
}

// Simulator prices fills. Slippage is always adverse: buys fill higher,
// sells fill lower, by slippageTicks of the instrument's tick size.
type Simulator struct {
	slippageTicks float64
	commission    float64
	entryTiming   string
}

// NewSimulator creates a Simulator from the run configuration.
func NewSimulator(cfg *config.BacktestConfig) *Simulator {
	return &Simulator{
		slippageTicks: cfg.SlippageTicks,
		commission:    cfg.CommissionPerContract,
		entryTiming:   cfg.EntryTiming,
	}
}

// FillEntry executes an entry signal against the bar following the signal
// bar. The reference price is that bar's open or close per the configured
// entry timing; slippage moves it against the trade.
func (s *Simulator) FillEntry(sig *domain.Signal, next domain.Bar, tickSize float64, contracts int) Fill {
	ref := next.Open
	if s.entryTiming == config.EntryNextClose {
		ref = next.Close
	}

	qty := contracts
	if !sig.Type.IsLong() {
		qty = -contracts
	}
	return Fill{
		Date:       next.Date,
		Symbol:     sig.Symbol,
		Quantity:   qty,
		Price:      s.slip(ref, tickSize, qty > 0),
		Commission: s.commission * float64(abs(contracts)),
	}
}

// FillExit executes an exit or stop signal on the signal bar. The reference
// price is carried on the signal: the stop price for stops, the close for
// channel exits. The fill quantity flattens the position.
func (s *Simulator) FillExit(sig *domain.Signal, pos *domain.Position, tickSize float64) Fill {
	qty := -pos.Quantity
	return Fill{
		Date:       sig.Date,
		Symbol:     sig.Symbol,
		Quantity:   qty,
		Price:      s.slip(sig.Price, tickSize, qty > 0),
		Commission: s.commission * float64(abs(pos.Quantity)),
	}
}

// slip moves the reference price against the trade by the configured number
// of ticks.
func (s *Simulator) slip(ref, tickSize float64, buying bool) float64 {
	delta := s.slippageTicks * tickSize
	if buying {
		return ref + delta
	}
	return ref - delta
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
