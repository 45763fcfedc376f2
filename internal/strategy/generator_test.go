package strategy

import (
	"testing"
	"time"

	"trendlab/internal/domain"
)

func testParams() Params {
	return Params{
		StopATRMultiple: 2.0,
		CooldownDays:    3,
		BreakoutPeriod:  20,
		ExitPeriod:      10,
	}
}

func day(d int) time.Time {
	return domain.Date(2024, time.June, d)
}

// Fixture: a long-eligible trend with the close just above the previous
// day's 20-day high.
func breakoutInputs() (domain.Bar, *domain.Bar, *domain.FeatureRow, *domain.FeatureRow) {
	bar := domain.Bar{Symbol: "ES", Date: day(10), Open: 101, High: 106, Low: 100, Close: 105}
	prevBar := &domain.Bar{Symbol: "ES", Date: day(9), Open: 100, High: 102, Low: 99, Close: 101}
	feat := &domain.FeatureRow{
		Date: day(10), ATR: 2, TrendMA: 95, MASlope: 0.5,
		BreakoutHigh: 106, BreakoutLow: 80, ExitHigh: 106, ExitLow: 90,
	}
	prevFeat := &domain.FeatureRow{
		Date: day(9), ATR: 2, TrendMA: 94, MASlope: 0.5,
		BreakoutHigh: 104, BreakoutLow: 80, ExitHigh: 104, ExitLow: 90,
	}
	return bar, prevBar, feat, prevFeat
}

func TestGenerator_LongBreakoutEntry(t *testing.T) {
	g := NewGenerator(testParams())
	bar, prevBar, feat, prevFeat := breakoutInputs()

	sig := g.Evaluate(bar, prevBar, feat, prevFeat, nil, Cooldown{})
	if sig == nil {
		t.Fatal("Evaluate() = nil, want entry_long signal")
	}
	if sig.Type != domain.SignalEntryLong {
		t.Fatalf("Type = %s, want %s", sig.Type, domain.SignalEntryLong)
	}
	if sig.Price != 105 {
		t.Errorf("Price = %v, want 105 (signal bar close)", sig.Price)
	}
	// Stop = close - 2*ATR = 105 - 4.
	if sig.StopPrice != 101 {
		t.Errorf("StopPrice = %v, want 101", sig.StopPrice)
	}
}

func TestGenerator_NoEntryWithoutCross(t *testing.T) {
	g := NewGenerator(testParams())
	bar, prevBar, feat, prevFeat := breakoutInputs()

	// Previous close already above the channel: no fresh breakout.
	prevBar.Close = 104.5
	if sig := g.Evaluate(bar, prevBar, feat, prevFeat, nil, Cooldown{}); sig != nil {
		t.Errorf("Evaluate() = %+v, want nil when prior close is already above the channel", sig)
	}
}

func TestGenerator_TrendFilterBlocksEntry(t *testing.T) {
	g := NewGenerator(testParams())
	bar, prevBar, feat, prevFeat := breakoutInputs()

	// Flat slope: neither long nor short eligible.
	feat.MASlope = 0
	if sig := g.Evaluate(bar, prevBar, feat, prevFeat, nil, Cooldown{}); sig != nil {
		t.Errorf("Evaluate() = %+v, want nil with a flat MA slope", sig)
	}
}

func TestGenerator_ShortBreakoutEntry(t *testing.T) {
	g := NewGenerator(testParams())
	bar := domain.Bar{Symbol: "CL", Date: day(10), Open: 79, High: 80, Low: 74, Close: 75}
	prevBar := &domain.Bar{Symbol: "CL", Date: day(9), Open: 80, High: 81, Low: 78, Close: 79}
	feat := &domain.FeatureRow{Date: day(10), ATR: 1.5, TrendMA: 85, MASlope: -0.4, BreakoutLow: 74, BreakoutHigh: 90, ExitLow: 74, ExitHigh: 90}
	prevFeat := &domain.FeatureRow{Date: day(9), ATR: 1.5, TrendMA: 86, MASlope: -0.4, BreakoutLow: 78, BreakoutHigh: 90, ExitLow: 78, ExitHigh: 90}

	sig := g.Evaluate(bar, prevBar, feat, prevFeat, nil, Cooldown{})
	if sig == nil {
		t.Fatal("Evaluate() = nil, want entry_short signal")
	}
	if sig.Type != domain.SignalEntryShort {
		t.Fatalf("Type = %s, want %s", sig.Type, domain.SignalEntryShort)
	}
	// Stop = close + 2*ATR = 75 + 3.
	if sig.StopPrice != 78 {
		t.Errorf("StopPrice = %v, want 78", sig.StopPrice)
	}
}

func TestGenerator_StopTakesPrecedenceOverExit(t *testing.T) {
	g := NewGenerator(testParams())
	pos := &domain.Position{Symbol: "ES", Quantity: 1, EntryPrice: 105, StopPrice: 101, Multiplier: 50}

	// Both the stop (low 100 <= 101) and the channel exit (close 90 < ExitLow
	// 95) trigger; the stop must win.
	bar := domain.Bar{Symbol: "ES", Date: day(12), Open: 104, High: 104, Low: 100, Close: 90}
	feat := &domain.FeatureRow{Date: day(12), ATR: 2, TrendMA: 100, MASlope: 0.1, ExitLow: 95, ExitHigh: 110}

	sig := g.Evaluate(bar, nil, feat, nil, pos, Cooldown{})
	if sig == nil {
		t.Fatal("Evaluate() = nil, want stop_long signal")
	}
	if sig.Type != domain.SignalStopLong {
		t.Errorf("Type = %s, want %s", sig.Type, domain.SignalStopLong)
	}
	if sig.Price != 101 {
		t.Errorf("Price = %v, want stop price 101", sig.Price)
	}
}

func TestGenerator_ChannelExitLong(t *testing.T) {
	g := NewGenerator(testParams())
	pos := &domain.Position{Symbol: "ES", Quantity: 1, EntryPrice: 105, StopPrice: 90, Multiplier: 50}

	bar := domain.Bar{Symbol: "ES", Date: day(12), Open: 97, High: 98, Low: 94, Close: 94.5}
	feat := &domain.FeatureRow{Date: day(12), ATR: 2, TrendMA: 100, MASlope: 0.1, ExitLow: 95, ExitHigh: 110}

	sig := g.Evaluate(bar, nil, feat, nil, pos, Cooldown{})
	if sig == nil {
		t.Fatal("Evaluate() = nil, want exit_long signal")
	}
	if sig.Type != domain.SignalExitLong {
		t.Errorf("Type = %s, want %s", sig.Type, domain.SignalExitLong)
	}
	if sig.Price != 94.5 {
		t.Errorf("Price = %v, want close 94.5", sig.Price)
	}
}

func TestGenerator_ShortStop(t *testing.T) {
	g := NewGenerator(testParams())
	pos := &domain.Position{Symbol: "CL", Quantity: -2, EntryPrice: 75, StopPrice: 78, Multiplier: 1000}

	bar := domain.Bar{Symbol: "CL", Date: day(12), Open: 76, High: 79, Low: 75, Close: 77}
	feat := &domain.FeatureRow{Date: day(12), ATR: 1.5, TrendMA: 85, MASlope: -0.4, ExitLow: 70, ExitHigh: 90}

	sig := g.Evaluate(bar, nil, feat, nil, pos, Cooldown{})
	if sig == nil {
		t.Fatal("Evaluate() = nil, want stop_short signal")
	}
	if sig.Type != domain.SignalStopShort {
		t.Errorf("Type = %s, want %s", sig.Type, domain.SignalStopShort)
	}
}

func TestGenerator_MissingFeaturesNoSignal(t *testing.T) {
	g := NewGenerator(testParams())
	pos := &domain.Position{Symbol: "ES", Quantity: 1, EntryPrice: 105, StopPrice: 101, Multiplier: 50}
	bar := domain.Bar{Symbol: "ES", Date: day(12), Open: 104, High: 104, Low: 100, Close: 103}

	if sig := g.Evaluate(bar, nil, nil, nil, pos, Cooldown{}); sig != nil {
		t.Errorf("Evaluate() = %+v, want nil without a feature snapshot", sig)
	}
	if sig := g.Evaluate(bar, nil, nil, nil, nil, Cooldown{}); sig != nil {
		t.Errorf("Evaluate() = %+v, want nil without a feature snapshot", sig)
	}
}

func TestGenerator_CooldownSameDirectionOnly(t *testing.T) {
	g := NewGenerator(testParams())
	bar, prevBar, feat, prevFeat := breakoutInputs()

	// Long exit two days ago blocks a long re-entry.
	cd := Cooldown{Active: true, ExitDate: day(8), WasLong: true}
	if sig := g.Evaluate(bar, prevBar, feat, prevFeat, nil, cd); sig != nil {
		t.Errorf("Evaluate() = %+v, want nil inside same-direction cooldown", sig)
	}

	// The same cooldown does not block a short breakout.
	cdShortSide := Cooldown{Active: true, ExitDate: day(8), WasLong: false}
	if sig := g.Evaluate(bar, prevBar, feat, prevFeat, nil, cdShortSide); sig == nil {
		t.Error("Evaluate() = nil, want entry_long despite short-side cooldown")
	}

	// Cooldown expires after CooldownDays calendar days.
	cdExpired := Cooldown{Active: true, ExitDate: day(7), WasLong: true}
	if sig := g.Evaluate(bar, prevBar, feat, prevFeat, nil, cdExpired); sig == nil {
		t.Error("Evaluate() = nil, want entry_long after cooldown expiry")
	}
}

func TestCooldownBlocks(t *testing.T) {
	cd := Cooldown{Active: true, ExitDate: day(10), WasLong: true}

	tests := []struct {
		date time.Time
		long bool
		want bool
	}{
		{day(11), true, true},
		{day(12), true, true},
		{day(13), true, false}, // 3 days elapsed
		{day(11), false, false},
	}
	for _, tt := range tests {
		if got := cd.Blocks(tt.date, tt.long, 3); got != tt.want {
			t.Errorf("Blocks(%v, long=%v) = %v, want %v", tt.date, tt.long, got, tt.want)
		}
	}

	if (Cooldown{}).Blocks(day(11), true, 3) {
		t.Error("inactive cooldown must not block")
	}
}
