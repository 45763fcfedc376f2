// Command trendlab-features recomputes the indicator table for every
// configured instrument from its stored bars and writes the rows back to
// SQLite.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"trendlab/internal/config"
	"trendlab/internal/feature"
	"trendlab/internal/store"
	"trendlab/internal/util"
)

func main() {
	cfgPath := "config/trendlab.yaml"
	if p := os.Getenv("TRENDLAB_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer db.Close()

	params := feature.Params{
		ATRPeriod:      cfg.Backtest.ATRPeriod,
		MAPeriod:       cfg.Backtest.MAPeriod,
		MASlopePeriod:  cfg.Backtest.MASlopePeriod,
		BreakoutPeriod: cfg.Backtest.BreakoutPeriod,
		ExitPeriod:     cfg.Backtest.ExitPeriod,
	}

	ctx := context.Background()
	symbols := cfg.Backtest.Instruments
	if len(symbols) == 0 {
		symbols, err = db.ListSymbols(ctx)
		if err != nil {
			log.Fatalf("listing symbols: %v", err)
		}
	}

	now := time.Now().UTC()
	for _, sym := range symbols {
		bars, err := db.ReadBars(ctx, sym, time.Time{}, now)
		if err != nil {
			log.Fatalf("reading bars for %s: %v", sym, err)
		}

		rows := feature.Compute(bars, params)
		if rows == nil {
			logger.Warn("not enough history", "symbol", sym, "bars", len(bars), "warmup", params.Warmup())
			continue
		}
		if err := db.WriteFeatures(ctx, sym, rows); err != nil {
			log.Fatalf("writing features for %s: %v", sym, err)
		}
		logger.Info("features computed", "symbol", sym, "rows", len(rows))
	}
}
