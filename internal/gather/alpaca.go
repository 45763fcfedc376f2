package gather

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"trendlab/internal/config"
	"trendlab/internal/domain"
	"trendlab/internal/store"
	"trendlab/internal/util"
)

// Compile-time interface check.
var _ Gatherer = (*DailyBarGatherer)(nil)

// barFetcher is the slice of the Alpaca market-data client the gatherer
// uses. Narrowing it keeps tests off the network.
type barFetcher interface {
	GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error)
}

// DailyBarGatherer fetches daily OHLCV bars for a configured symbol list
// from the Alpaca market-data API and writes them to a bar store. Fetches
// are rate limited and retried with exponential backoff.
type DailyBarGatherer struct {
	client      barFetcher
	store       store.BarStore
	symbols     []string
	startDate   string
	limiter     *util.RateLimiter
	maxAttempts int
	retryDelay  time.Duration
	log         *slog.Logger
}

// NewDailyBarGatherer creates a DailyBarGatherer from the Alpaca credentials
// and gather settings in cfg, writing into s.
func NewDailyBarGatherer(cfg *config.Config, s store.BarStore) *DailyBarGatherer {
	opts := marketdata.ClientOpts{
		APIKey:    cfg.Alpaca.APIKey,
		APISecret: cfg.Alpaca.APISecret,
	}
	if cfg.Alpaca.DataURL != "" {
		opts.BaseURL = cfg.Alpaca.DataURL
	}

	perMin := cfg.Gather.RateLimitPerMin
	if perMin <= 0 {
		perMin = 200
	}
	attempts := cfg.Gather.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}

	return &DailyBarGatherer{
		client:      marketdata.NewClient(opts),
		store:       s,
		symbols:     cfg.Gather.Symbols,
		startDate:   cfg.Gather.StartDate,
		limiter:     util.NewRateLimiter(perMin),
		maxAttempts: attempts,
		retryDelay:  time.Second,
		log:         slog.Default().With("gatherer", "daily-bars"),
	}
}

// Name returns the gatherer identifier.
func (g *DailyBarGatherer) Name() string { return "daily-bars" }

// Run fetches daily bars for every configured symbol from the start date up
// to yesterday and writes them to the store. Writes are idempotent: rerunning
// replaces rather than duplicates.
func (g *DailyBarGatherer) Run(ctx context.Context) error {
	if len(g.symbols) == 0 {
		return fmt.Errorf("no gather symbols configured")
	}
	start, err := time.Parse("2006-01-02", g.startDate)
	if err != nil {
		return fmt.Errorf("parsing start date %q: %w", g.startDate, err)
	}
	end := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -1)

	g.log.Info("starting gather",
		"symbols", len(g.symbols),
		"start", g.startDate,
		"end", end.Format("2006-01-02"),
	)

	bars, err := g.fetchMultiBars(ctx, DateRange{Start: start, End: end})
	if err != nil {
		return err
	}
	if err := g.store.WriteBars(ctx, bars); err != nil {
		return fmt.Errorf("writing bars: %w", err)
	}

	g.log.Info("gather complete", "bars", len(bars))
	return nil
}

// fetchMultiBars fetches daily bars for all configured symbols in a single
// rate-limited, retried API call.
func (g *DailyBarGatherer) fetchMultiBars(ctx context.Context, r DateRange) ([]domain.Bar, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var multiBars map[string][]marketdata.Bar
	err := util.Retry(ctx, g.maxAttempts, g.retryDelay, func() error {
		var err error
		multiBars, err = g.client.GetMultiBars(g.symbols, marketdata.GetBarsRequest{
			TimeFrame: marketdata.OneDay,
			Start:     r.Start,
			End:       r.End,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}

	var bars []domain.Bar
	for symbol, alpacaBars := range multiBars {
		for _, ab := range alpacaBars {
			t := ab.Timestamp.UTC()
			bars = append(bars, domain.Bar{
				Symbol: symbol,
				Date:   domain.Date(t.Year(), t.Month(), t.Day()),
				Open:   ab.Open,
				High:   ab.High,
				Low:    ab.Low,
				Close:  ab.Close,
				Volume: float64(ab.Volume),
			})
		}
	}
	return bars, nil
}
