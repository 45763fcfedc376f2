// Command trendlab-backtest runs a backtest over the bars stored in SQLite
// and prints the summary metrics. The snapshot series and closed-trade log
// are exported as Parquet under the data directory.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"trendlab/internal/backtest"
	"trendlab/internal/config"
	"trendlab/internal/domain"
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

	ctx := context.Background()
	data, err := loadMarketData(ctx, db, &cfg.Backtest)
	if err != nil {
		log.Fatalf("failed to load market data: %v", err)
	}

	engine := backtest.NewEngine(&cfg.Backtest, logger)
	res, err := engine.Run(data)
	if err != nil {
		log.Fatalf("backtest failed: %v", err)
	}

	for _, w := range res.Warnings {
		logger.Warn("run diagnostic", "kind", w.Kind, "symbol", w.Symbol, "msg", w.Msg)
	}
	printMetrics(res.Metrics)

	runID := time.Now().UTC().Format("20060102-150405")
	ps := store.NewParquetStore(cfg.Storage.DataDir)
	if err := ps.WriteSnapshots(runID, res.Snapshots); err != nil {
		log.Fatalf("exporting snapshots: %v", err)
	}
	if err := ps.WriteTrades(runID, res.Trades); err != nil {
		log.Fatalf("exporting trades: %v", err)
	}
	logger.Info("results exported", "run", runID, "dir", cfg.Storage.DataDir)
}

// loadMarketData reads instruments and full bar history (including warmup
// bars before the start date) for the configured universe. Features are left
// to the engine to compute.
func loadMarketData(ctx context.Context, db *store.SQLiteStore, cfg *config.BacktestConfig) (backtest.MarketData, error) {
	end, err := cfg.End()
	if err != nil {
		return backtest.MarketData{}, err
	}

	data := backtest.MarketData{
		Instruments: make(map[string]domain.Instrument),
		Bars:        make(map[string][]domain.Bar),
	}
	for _, sym := range cfg.Instruments {
		inst, err := db.GetInstrument(ctx, sym)
		if err != nil {
			// The engine reports the unknown symbol as a validation error.
			continue
		}
		data.Instruments[sym] = *inst

		bars, err := db.ReadBars(ctx, sym, time.Time{}, end)
		if err != nil {
			return backtest.MarketData{}, fmt.Errorf("reading bars for %s: %w", sym, err)
		}
		data.Bars[sym] = bars
	}
	return data, nil
}

func printMetrics(m backtest.Metrics) {
	fmt.Printf("initial capital   %14.2f\n", m.InitialCapital)
	fmt.Printf("final equity      %14.2f\n", m.FinalEquity)
	fmt.Printf("total return      %13.2f%%\n", m.TotalReturn*100)
	fmt.Printf("CAGR              %14s\n", fmtPct(m.CAGR))
	fmt.Printf("sharpe            %14s\n", fmtRatio(m.Sharpe))
	fmt.Printf("sortino           %14s\n", fmtRatio(m.Sortino))
	fmt.Printf("max drawdown      %13.2f%%\n", m.MaxDrawdown*100)
	fmt.Printf("drawdown length   %11d days\n", m.MaxDrawdownLen)
	fmt.Printf("trades            %14d\n", m.TotalTrades)
	fmt.Printf("win rate          %14s\n", fmtPct(m.WinRate))
	fmt.Printf("profit factor     %14s\n", fmtRatio(m.ProfitFactor))
}

func fmtRatio(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}

func fmtPct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", *v*100)
}
