package backtest

import (
	"math"

	"trendlab/internal/domain"
)

// Metrics is the flat summary record computed from a run's snapshot series
// and closed-trade log. Pointer fields are nil when the metric is undefined
// (degenerate denominator), which is distinct from zero.
type Metrics struct {
	InitialCapital float64
	FinalEquity    float64
	TotalReturn    float64
	CAGR           *float64
	Sharpe         *float64
	Sortino        *float64
	MaxDrawdown    float64
	MaxDrawdownLen int // dates from peak to recovery, longest such run
	TotalTrades    int
	WinRate        *float64
	ProfitFactor   *float64
}

const tradingDaysPerYear = 252

// ComputeMetrics derives summary metrics from an ordered snapshot series.
// Degenerate inputs never panic: an empty series yields zero-valued metrics,
// and undefined ratios come back nil.
func ComputeMetrics(snapshots []domain.PortfolioSnapshot, trades []domain.ClosedTrade, initialCapital float64) Metrics {
	m := Metrics{
		InitialCapital: initialCapital,
		FinalEquity:    initialCapital,
		TotalTrades:    len(trades),
	}
	if len(snapshots) > 0 {
		m.FinalEquity = snapshots[len(snapshots)-1].Equity
	}
	if initialCapital > 0 {
		m.TotalReturn = m.FinalEquity/initialCapital - 1
	}

	m.CAGR = cagr(snapshots, initialCapital, m.FinalEquity)

	returns := dailyReturns(snapshots)
	m.Sharpe = sharpe(returns)
	m.Sortino = sortino(returns)

	m.MaxDrawdown, m.MaxDrawdownLen = maxDrawdown(snapshots)
	m.WinRate = winRate(trades)
	m.ProfitFactor = profitFactor(trades)
	return m
}

// cagr annualizes over elapsed calendar days. Nil when fewer than one day
// has elapsed or the ratio is not a positive number.
func cagr(snapshots []domain.PortfolioSnapshot, initial, final float64) *float64 {
	if len(snapshots) < 2 || initial <= 0 || final <= 0 {
		return nil
	}
	days := snapshots[len(snapshots)-1].Date.Sub(snapshots[0].Date).Hours() / 24
	if days < 1 {
		return nil
	}
	v := math.Pow(final/initial, 365/days) - 1
	return &v
}

// dailyReturns is the simple percent change of equity between consecutive
// snapshots.
func dailyReturns(snapshots []domain.PortfolioSnapshot) []float64 {
	if len(snapshots) < 2 {
		return nil
	}
	out := make([]float64, 0, len(snapshots)-1)
	for i := 1; i < len(snapshots); i++ {
		prev := snapshots[i-1].Equity
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, snapshots[i].Equity/prev-1)
	}
	return out
}

func sharpe(returns []float64) *float64 {
	if len(returns) < 2 {
		return nil
	}
	mean, std := meanStd(returns)
	if std == 0 {
		return nil
	}
	v := mean / std * math.Sqrt(tradingDaysPerYear)
	return &v
}

// sortino uses only negative returns for the denominator's deviation.
func sortino(returns []float64) *float64 {
	if len(returns) < 2 {
		return nil
	}
	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) < 2 {
		return nil
	}
	mean, _ := meanStd(returns)
	_, downStd := meanStd(downside)
	if downStd == 0 {
		return nil
	}
	v := mean / downStd * math.Sqrt(tradingDaysPerYear)
	return &v
}

// maxDrawdown returns the deepest fractional drawdown and the longest run of
// dates from a peak until equity recovers to at least that peak. A trailing
// drawdown that never recovers counts toward the duration.
func maxDrawdown(snapshots []domain.PortfolioSnapshot) (float64, int) {
	var deepest float64
	var longest, current int
	var peak float64

	for i, s := range snapshots {
		if i == 0 || s.Equity >= peak {
			peak = s.Equity
			current = 0
			continue
		}
		current++
		if current > longest {
			longest = current
		}
		if peak > 0 {
			if dd := (peak - s.Equity) / peak; dd > deepest {
				deepest = dd
			}
		}
	}
	return deepest, longest
}

func winRate(trades []domain.ClosedTrade) *float64 {
	if len(trades) == 0 {
		return nil
	}
	var wins int
	for _, t := range trades {
		if t.RealizedPnL > 0 {
			wins++
		}
	}
	v := float64(wins) / float64(len(trades))
	return &v
}

// profitFactor is gross profit over gross loss. Nil when there are no
// losing trades, which is undefined rather than infinite.
func profitFactor(trades []domain.ClosedTrade) *float64 {
	var profit, loss float64
	for _, t := range trades {
		if t.RealizedPnL > 0 {
			profit += t.RealizedPnL
		} else if t.RealizedPnL < 0 {
			loss += -t.RealizedPnL
		}
	}
	if loss == 0 {
		return nil
	}
	v := profit / loss
	return &v
}

func meanStd(values []float64) (mean, std float64) {
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	std = math.Sqrt(sq / float64(len(values)))
	return mean, std
}
