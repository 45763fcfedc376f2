// Package feature computes the per-instrument, per-date indicator table the
// strategy consumes: average true range, trend moving average and its slope,
// and rolling highest-high/lowest-low channels.
package feature

import (
	"trendlab/internal/domain"
)

// Params holds the lookback periods for all computed features.
type Params struct {
	ATRPeriod      int
	MAPeriod       int
	MASlopePeriod  int
	BreakoutPeriod int
	ExitPeriod     int
}

// DefaultParams returns the canonical strategy lookbacks.
func DefaultParams() Params {
	return Params{
		ATRPeriod:      20,
		MAPeriod:       50,
		MASlopePeriod:  10,
		BreakoutPeriod: 20,
		ExitPeriod:     10,
	}
}

// Warmup returns the number of leading bars for which no feature row can be
// produced. The slope needs a full window of completed moving averages; the
// ATR needs true ranges that all have a prior close.
func (p Params) Warmup() int {
	warmup := p.MAPeriod + p.MASlopePeriod - 1
	for _, n := range []int{p.ATRPeriod + 1, p.BreakoutPeriod, p.ExitPeriod} {
		if n > warmup {
			warmup = n
		}
	}
	return warmup
}

// Compute derives one FeatureRow per bar at or after warmup. Bars must be a
// single instrument's series in ascending date order. Dates before warmup
// produce no row; they are absent, never zero-filled.
func Compute(bars []domain.Bar, p Params) []domain.FeatureRow {
	n := len(bars)
	warmup := p.Warmup()
	if n < warmup {
		return nil
	}

	atr := computeATR(bars, p.ATRPeriod)
	ma := rollingMean(closes(bars), p.MAPeriod)
	slope := rollingSlope(ma, p.MASlopePeriod)
	breakHigh := rollingMax(highs(bars), p.BreakoutPeriod)
	breakLow := rollingMin(lows(bars), p.BreakoutPeriod)
	exitHigh := rollingMax(highs(bars), p.ExitPeriod)
	exitLow := rollingMin(lows(bars), p.ExitPeriod)

	rows := make([]domain.FeatureRow, 0, n-warmup+1)
	for i := warmup - 1; i < n; i++ {
		rows = append(rows, domain.FeatureRow{
			Date:         bars[i].Date,
			ATR:          atr[i],
			TrendMA:      ma[i],
			MASlope:      slope[i],
			BreakoutHigh: breakHigh[i],
			BreakoutLow:  breakLow[i],
			ExitHigh:     exitHigh[i],
			ExitLow:      exitLow[i],
		})
	}
	return rows
}

func closes(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func highs(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

func lows(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}

// computeATR returns the simple rolling mean of the true range. True range
// for bar i uses bar i-1's close, so atr[i] is valid for i >= period.
// Positions before the first valid index are zero.
func computeATR(bars []domain.Bar, period int) []float64 {
	n := len(bars)
	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		hl := bars[i].High - bars[i].Low
		hc := abs(bars[i].High - bars[i-1].Close)
		lc := abs(bars[i].Low - bars[i-1].Close)
		tr[i] = max3(hl, hc, lc)
	}

	atr := make([]float64, n)
	var sum float64
	for i := 1; i < n; i++ {
		sum += tr[i]
		if i > period {
			sum -= tr[i-period]
		}
		if i >= period {
			atr[i] = sum / float64(period)
		}
	}
	return atr
}

// rollingMean returns the simple moving average over window, valid for
// i >= window-1.
func rollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// rollingSlope fits a least-squares line to the last window values of the
// moving average and returns its slope per bar. Valid only where every value
// in the window is itself a valid moving average, which callers guarantee by
// reading at or after warmup.
func rollingSlope(ma []float64, window int) []float64 {
	out := make([]float64, len(ma))
	if window < 2 {
		return out
	}

	// For x = 0..window-1: mean and sum of squared deviations are constant.
	xMean := float64(window-1) / 2
	var xVar float64
	for x := 0; x < window; x++ {
		d := float64(x) - xMean
		xVar += d * d
	}

	for i := window - 1; i < len(ma); i++ {
		var yMean float64
		for j := i - window + 1; j <= i; j++ {
			yMean += ma[j]
		}
		yMean /= float64(window)

		var cov float64
		for x := 0; x < window; x++ {
			cov += (float64(x) - xMean) * (ma[i-window+1+x] - yMean)
		}
		out[i] = cov / xVar
	}
	return out
}

// rollingMax returns the maximum over the trailing window, valid for
// i >= window-1.
func rollingMax(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := window - 1; i < len(values); i++ {
		m := values[i-window+1]
		for j := i - window + 2; j <= i; j++ {
			if values[j] > m {
				m = values[j]
			}
		}
		out[i] = m
	}
	return out
}

// rollingMin returns the minimum over the trailing window, valid for
// i >= window-1.
func rollingMin(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := window - 1; i < len(values); i++ {
		m := values[i-window+1]
		for j := i - window + 2; j <= i; j++ {
			if values[j] < m {
				m = values[j]
			}
		}
		out[i] = m
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
