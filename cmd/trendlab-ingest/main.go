// Command trendlab-ingest loads a daily OHLCV CSV file into the SQLite
// store and the Parquet archive, seeding the instrument universe on first
// run.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"trendlab/internal/config"
	"trendlab/internal/store"
	"trendlab/internal/util"
)

func main() {
	var (
		csvPath = flag.String("csv", "", "path to a daily OHLCV CSV file")
		symbol  = flag.String("symbol", "", "instrument symbol the file belongs to")
	)
	flag.Parse()
	if *csvPath == "" || *symbol == "" {
		flag.Usage()
		os.Exit(2)
	}

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
	if err := store.SeedInstruments(ctx, db); err != nil {
		log.Fatalf("seeding instruments: %v", err)
	}

	bars, err := store.ReadBarsCSV(*csvPath, *symbol)
	if err != nil {
		log.Fatalf("parsing %s: %v", *csvPath, err)
	}
	if err := db.WriteBars(ctx, bars); err != nil {
		log.Fatalf("writing bars: %v", err)
	}

	archive := store.NewParquetStore(cfg.Storage.DataDir)
	if err := archive.WriteBars(ctx, bars); err != nil {
		log.Fatalf("archiving bars: %v", err)
	}

	logger.Info("ingested", "symbol", *symbol, "bars", len(bars), "file", *csvPath)
}
