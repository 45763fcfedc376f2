// Package backtest orchestrates the daily simulation loop: it walks the
// ordered union of trading dates, applies queued entry fills, evaluates
// exits and stops, recomputes the risk mode, sizes and queues new entries,
// and marks the portfolio to market into one snapshot per date.
package backtest

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"trendlab/internal/config"
	"trendlab/internal/domain"
	"trendlab/internal/feature"
	"trendlab/internal/risk"
	"trendlab/internal/sim"
	"trendlab/internal/strategy"
)

// MarketData is the fully materialized input for one run. Features are
// optional: any symbol without a feature series gets one computed from its
// bars with the run's lookback parameters.
type MarketData struct {
	Instruments map[string]domain.Instrument
	Bars        map[string][]domain.Bar
	Features    map[string][]domain.FeatureRow
}

// Engine runs backtests. It is stateless across runs; every run owns its
// state exclusively, so independent runs may execute concurrently.
type Engine struct {
	cfg    *config.BacktestConfig
	logger *slog.Logger
	gen    *strategy.Generator
	gov    *risk.Governor
	sim    *sim.Simulator
}

// NewEngine creates an Engine for one configuration.
func NewEngine(cfg *config.BacktestConfig, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: logger,
		gen: strategy.NewGenerator(strategy.Params{
			StopATRMultiple: cfg.StopATRMultiple,
			CooldownDays:    cfg.CooldownDays,
			BreakoutPeriod:  cfg.BreakoutPeriod,
			ExitPeriod:      cfg.ExitPeriod,
		}),
		gov: risk.NewGovernor(cfg),
		sim: sim.NewSimulator(cfg),
	}
}

// pendingEntry is an entry signal waiting for its fill bar.
type pendingEntry struct {
	sig       domain.Signal
	contracts int
}

// runState is the exclusively-owned mutable state of one run.
type runState struct {
	cash      float64
	peak      float64
	prevEq    float64
	realized  float64
	positions map[string]*domain.Position
	cooldowns map[string]strategy.Cooldown
	lastClose map[string]float64
	pending   []pendingEntry

	signals   []domain.Signal
	trades    []domain.ClosedTrade
	snapshots []domain.PortfolioSnapshot
	warnings  []Warning
}

// instrumentSeries is one admitted instrument's indexed data.
type instrumentSeries struct {
	inst      domain.Instrument
	bars      []domain.Bar
	barIdx    map[time.Time]int
	features  map[time.Time]*domain.FeatureRow
	firstFeat time.Time
}

// Run executes the backtest. It validates the configuration, admits or
// excludes each configured instrument, then walks the date range. The run
// is deterministic: identical inputs produce identical output.
func (e *Engine) Run(data MarketData) (*Result, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	start, _ := e.cfg.Start()
	end, _ := e.cfg.End()

	st := &runState{
		cash:      e.cfg.InitialCapital,
		peak:      e.cfg.InitialCapital,
		prevEq:    e.cfg.InitialCapital,
		positions: make(map[string]*domain.Position),
		cooldowns: make(map[string]strategy.Cooldown),
		lastClose: make(map[string]float64),
	}

	series, err := e.admit(data, st)
	if err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(series))
	for sym := range series {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, date := range tradingDates(series, start, end) {
		e.applyPendingFills(st, series, date)
		e.processExits(st, series, symbols, date)

		mode := e.riskMode(st)

		e.processEntries(st, series, symbols, date, mode)
		e.markToMarket(st, series, symbols, date)
	}

	for _, p := range st.pending {
		st.warnings = append(st.warnings, Warning{
			Kind:   WarnUnfillableSignal,
			Symbol: p.sig.Symbol,
			Date:   p.sig.Date,
			Msg:    "no subsequent bar to fill against",
		})
		e.logger.Warn("dropping unfillable signal",
			"symbol", p.sig.Symbol, "date", p.sig.Date.Format("2006-01-02"))
	}

	res := &Result{
		Signals:   st.signals,
		Trades:    st.trades,
		Snapshots: st.snapshots,
		Warnings:  st.warnings,
	}
	res.Metrics = ComputeMetrics(st.snapshots, st.trades, e.cfg.InitialCapital)
	return res, nil
}

// admit indexes each configured instrument's data, excluding instruments
// whose history cannot cover the warmup. An instrument with no reference
// data at all is a configuration error.
func (e *Engine) admit(data MarketData, st *runState) (map[string]*instrumentSeries, error) {
	params := feature.Params{
		ATRPeriod:      e.cfg.ATRPeriod,
		MAPeriod:       e.cfg.MAPeriod,
		MASlopePeriod:  e.cfg.MASlopePeriod,
		BreakoutPeriod: e.cfg.BreakoutPeriod,
		ExitPeriod:     e.cfg.ExitPeriod,
	}

	series := make(map[string]*instrumentSeries, len(e.cfg.Instruments))
	for _, sym := range e.cfg.Instruments {
		inst, ok := data.Instruments[sym]
		if !ok {
			return nil, &config.ValidationError{
				Field: "instruments",
				Msg:   fmt.Sprintf("unknown symbol %q", sym),
			}
		}

		bars := data.Bars[sym]
		feats := data.Features[sym]
		if feats == nil {
			feats = feature.Compute(bars, params)
		}
		if len(bars) == 0 || len(feats) == 0 {
			st.warnings = append(st.warnings, Warning{
				Kind:   WarnInsufficientData,
				Symbol: sym,
				Msg:    fmt.Sprintf("%d bars, need %d for warmup", len(bars), params.Warmup()),
			})
			e.logger.Warn("excluding instrument",
				"symbol", sym, "bars", len(bars), "warmup", params.Warmup())
			continue
		}

		s := &instrumentSeries{
			inst:     inst,
			bars:     bars,
			barIdx:   make(map[time.Time]int, len(bars)),
			features: make(map[time.Time]*domain.FeatureRow, len(feats)),
		}
		for i := range bars {
			s.barIdx[bars[i].Date] = i
		}
		for i := range feats {
			s.features[feats[i].Date] = &feats[i]
		}
		s.firstFeat = feats[0].Date
		series[sym] = s
	}
	return series, nil
}

// tradingDates returns the sorted union of all admitted instruments' bar
// dates inside [start, end].
func tradingDates(series map[string]*instrumentSeries, start, end time.Time) []time.Time {
	seen := make(map[time.Time]struct{})
	for _, s := range series {
		for _, b := range s.bars {
			if b.Date.Before(start) || b.Date.After(end) {
				continue
			}
			seen[b.Date] = struct{}{}
		}
	}
	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// applyPendingFills executes queued entries whose instrument trades on date.
// Entries always lag their signal by at least one bar.
func (e *Engine) applyPendingFills(st *runState, series map[string]*instrumentSeries, date time.Time) {
	remaining := st.pending[:0]
	for _, p := range st.pending {
		s := series[p.sig.Symbol]
		i, ok := s.barIdx[date]
		if !ok || !p.sig.Date.Before(date) {
			remaining = append(remaining, p)
			continue
		}

		fill := e.sim.FillEntry(&p.sig, s.bars[i], s.inst.TickSize, p.contracts)
		st.cash -= fill.Commission
		st.positions[p.sig.Symbol] = &domain.Position{
			Symbol:     p.sig.Symbol,
			Quantity:   fill.Quantity,
			EntryPrice: fill.Price,
			EntryDate:  fill.Date,
			StopPrice:  p.sig.StopPrice,
			Multiplier: s.inst.Multiplier,
		}
		e.logger.Info("entry filled",
			"symbol", p.sig.Symbol, "date", date.Format("2006-01-02"),
			"qty", fill.Quantity, "price", fill.Price)
	}
	st.pending = remaining
}

// processExits evaluates the stop and channel-exit rules for every open
// position trading on date, and closes any that trigger.
func (e *Engine) processExits(st *runState, series map[string]*instrumentSeries, symbols []string, date time.Time) {
	for _, sym := range symbols {
		pos, ok := st.positions[sym]
		if !ok {
			continue
		}
		s := series[sym]
		i, ok := s.barIdx[date]
		if !ok {
			continue
		}
		bar := s.bars[i]

		feat := s.features[date]
		if feat == nil {
			st.warnings = append(st.warnings, Warning{
				Kind:   WarnMissingFeature,
				Symbol: sym,
				Date:   date,
				Msg:    "no feature snapshot for open position",
			})
			continue
		}

		sig := e.gen.Evaluate(bar, nil, feat, nil, pos, strategy.Cooldown{})
		if sig == nil {
			continue
		}

		fill := e.sim.FillExit(sig, pos, s.inst.TickSize)
		gross := float64(pos.Quantity) * (fill.Price - pos.EntryPrice) * pos.Multiplier
		net := gross - fill.Commission
		st.cash += net
		st.realized += net

		st.trades = append(st.trades, domain.ClosedTrade{
			Symbol:      sym,
			Quantity:    pos.Quantity,
			EntryDate:   pos.EntryDate,
			EntryPrice:  pos.EntryPrice,
			ExitDate:    fill.Date,
			ExitPrice:   fill.Price,
			RealizedPnL: net,
			ExitReason:  sig.Reason,
		})
		st.signals = append(st.signals, *sig)
		st.cooldowns[sym] = strategy.Cooldown{
			Active:   true,
			ExitDate: date,
			WasLong:  pos.Quantity > 0,
		}
		delete(st.positions, sym)

		e.logger.Info("position closed",
			"symbol", sym, "date", date.Format("2006-01-02"),
			"pnl", net, "reason", sig.Reason)
	}
}

// riskMode recomputes the risk mode from current equity, once per date,
// after exits and before entries.
func (e *Engine) riskMode(st *runState) domain.RiskMode {
	eq := e.equity(st)
	return e.gov.ModeFor(eq, st.peak, eq-st.prevEq, st.prevEq)
}

// processEntries evaluates the entry rules for every flat instrument trading
// on date, sizes accepted breakouts, and queues them for the next bar. Entry
// signals are logged even when sizing yields zero contracts.
func (e *Engine) processEntries(st *runState, series map[string]*instrumentSeries, symbols []string, date time.Time, mode domain.RiskMode) {
	eq := e.equity(st)

	for _, sym := range symbols {
		if _, open := st.positions[sym]; open {
			continue
		}
		if st.hasPending(sym) {
			continue
		}
		s := series[sym]
		i, ok := s.barIdx[date]
		if !ok {
			continue
		}
		bar := s.bars[i]

		feat := s.features[date]
		if feat == nil {
			// Warmup dates legitimately have no snapshot; only a gap after
			// the first feature date is diagnostic.
			if !date.Before(s.firstFeat) {
				st.warnings = append(st.warnings, Warning{
					Kind:   WarnMissingFeature,
					Symbol: sym,
					Date:   date,
					Msg:    "no feature snapshot inside feature range",
				})
			}
			continue
		}

		var prevBar *domain.Bar
		var prevFeat *domain.FeatureRow
		if i > 0 {
			prevBar = &s.bars[i-1]
			prevFeat = s.features[prevBar.Date]
		}

		sig := e.gen.Evaluate(bar, prevBar, feat, prevFeat, nil, st.cooldowns[sym])
		if sig == nil {
			continue
		}

		// An opposite-direction breakout clears the cooldown.
		if cd, ok := st.cooldowns[sym]; ok && cd.WasLong != sig.Type.IsLong() {
			delete(st.cooldowns, sym)
		}

		contracts := e.gov.Size(eq, sig.Price, sig.StopPrice, s.inst.Multiplier, mode)
		contracts = e.gov.Clip(contracts, sym, sig.Price, s.inst.Multiplier, eq, e.exposures(st))
		sig.TargetContracts = contracts
		st.signals = append(st.signals, *sig)

		if contracts == 0 {
			e.logger.Info("entry suppressed",
				"symbol", sym, "date", date.Format("2006-01-02"), "mode", string(mode))
			continue
		}
		st.pending = append(st.pending, pendingEntry{sig: *sig, contracts: contracts})
	}
}

// markToMarket values the portfolio at the day's closes and appends the
// date's snapshot.
func (e *Engine) markToMarket(st *runState, series map[string]*instrumentSeries, symbols []string, date time.Time) {
	for _, sym := range symbols {
		s := series[sym]
		if i, ok := s.barIdx[date]; ok {
			st.lastClose[sym] = s.bars[i].Close
		}
	}

	var unrealized, gross float64
	for _, sym := range symbols {
		pos, ok := st.positions[sym]
		if !ok {
			continue
		}
		price := st.lastClose[sym]
		unrealized += pos.UnrealizedPnL(price)
		gross += absFloat(pos.Value(price))
	}

	eq := st.cash + unrealized
	if eq > st.peak {
		st.peak = eq
	}
	var drawdown float64
	if st.peak > 0 {
		drawdown = (st.peak - eq) / st.peak
	}

	st.snapshots = append(st.snapshots, domain.PortfolioSnapshot{
		Date:          date,
		Equity:        eq,
		Cash:          st.cash,
		UnrealizedPnL: unrealized,
		RealizedPnL:   st.realized,
		DailyPnL:      eq - st.prevEq,
		Drawdown:      drawdown,
		GrossExposure: gross,
		OpenPositions: len(st.positions),
	})
	st.prevEq = eq
}

// equity values the portfolio at the most recent known closes. Iteration is
// in symbol order so float accumulation is reproducible.
func (e *Engine) equity(st *runState) float64 {
	eq := st.cash
	for _, sym := range st.openSymbols() {
		eq += st.positions[sym].UnrealizedPnL(st.lastClose[sym])
	}
	return eq
}

// exposures snapshots open positions at their most recent closes for the
// exposure governor.
func (e *Engine) exposures(st *runState) []risk.Exposure {
	syms := st.openSymbols()
	out := make([]risk.Exposure, 0, len(syms))
	for _, sym := range syms {
		out = append(out, risk.Exposure{Symbol: sym, Value: st.positions[sym].Value(st.lastClose[sym])})
	}
	return out
}

// openSymbols returns the symbols with open positions, sorted.
func (st *runState) openSymbols() []string {
	syms := make([]string, 0, len(st.positions))
	for sym := range st.positions {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}

func (st *runState) hasPending(symbol string) bool {
	for _, p := range st.pending {
		if p.sig.Symbol == symbol {
			return true
		}
	}
	return false
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
