package feature

import (
	"math"
	"testing"
	"time"

	"trendlab/internal/domain"
)

// linearBars builds a bar series with close = 1, 2, 3, ... and a fixed
// high/low band of one point around the close.
func linearBars(n int) []domain.Bar {
	bars := make([]domain.Bar, n)
	for i := 0; i < n; i++ {
		c := float64(i + 1)
		bars[i] = domain.Bar{
			Symbol: "ES",
			Date:   domain.Date(2024, time.January, 1).AddDate(0, 0, i),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
		}
	}
	return bars
}

func smallParams() Params {
	return Params{
		ATRPeriod:      3,
		MAPeriod:       3,
		MASlopePeriod:  2,
		BreakoutPeriod: 3,
		ExitPeriod:     2,
	}
}

func TestParamsWarmup(t *testing.T) {
	if got := smallParams().Warmup(); got != 4 {
		t.Errorf("Warmup() = %d, want 4", got)
	}
	if got := DefaultParams().Warmup(); got != 59 {
		t.Errorf("DefaultParams().Warmup() = %d, want 59", got)
	}
}

func TestComputeSkipsWarmup(t *testing.T) {
	p := smallParams()
	bars := linearBars(6)

	rows := Compute(bars, p)
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}

	// First row must fall exactly at the warmup boundary.
	wantFirst := bars[p.Warmup()-1].Date
	if !rows[0].Date.Equal(wantFirst) {
		t.Errorf("rows[0].Date = %v, want %v", rows[0].Date, wantFirst)
	}
}

func TestComputeValues(t *testing.T) {
	rows := Compute(linearBars(6), smallParams())
	if len(rows) == 0 {
		t.Fatal("Compute returned no rows")
	}

	// At index 3 (close = 4): true range is a constant 2, the 3-bar MA of
	// 2, 3, 4 is 3, and the MA advances by 1 per bar so its slope is 1.
	r := rows[0]
	if math.Abs(r.ATR-2) > 1e-12 {
		t.Errorf("ATR = %v, want 2", r.ATR)
	}
	if math.Abs(r.TrendMA-3) > 1e-12 {
		t.Errorf("TrendMA = %v, want 3", r.TrendMA)
	}
	if math.Abs(r.MASlope-1) > 1e-12 {
		t.Errorf("MASlope = %v, want 1", r.MASlope)
	}
	if r.BreakoutHigh != 5 {
		t.Errorf("BreakoutHigh = %v, want 5", r.BreakoutHigh)
	}
	if r.BreakoutLow != 1 {
		t.Errorf("BreakoutLow = %v, want 1", r.BreakoutLow)
	}
	if r.ExitHigh != 5 {
		t.Errorf("ExitHigh = %v, want 5", r.ExitHigh)
	}
	if r.ExitLow != 2 {
		t.Errorf("ExitLow = %v, want 2", r.ExitLow)
	}
}

func TestComputeInsufficientHistory(t *testing.T) {
	if rows := Compute(linearBars(3), smallParams()); rows != nil {
		t.Errorf("Compute() with too few bars = %v, want nil", rows)
	}
}

func TestRollingSlopeLeastSquares(t *testing.T) {
	// A noisy-but-symmetric window: least squares over [1, 3, 2] with
	// x = 0, 1, 2 gives slope 0.5.
	values := []float64{1, 3, 2}
	out := rollingSlope(values, 3)
	if math.Abs(out[2]-0.5) > 1e-12 {
		t.Errorf("rollingSlope = %v, want 0.5", out[2])
	}
}
