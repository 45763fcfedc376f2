package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"trendlab/internal/domain"
)

// Compile-time interface checks.
var _ BarStore = (*ParquetStore)(nil)

// ParquetStore implements BarStore as a columnar archive on disk, and writes
// backtest result exports. It complements the SQLite store: SQLite serves
// queries, Parquet serves bulk archive and downstream analysis.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// BarRecord is the Parquet schema for daily bar data.
type BarRecord struct {
	Symbol string  `parquet:"symbol"`
	Date   int64   `parquet:"date,timestamp(millisecond)"` // UTC midnight, Unix ms
	Open   float64 `parquet:"open"`
	High   float64 `parquet:"high"`
	Low    float64 `parquet:"low"`
	Close  float64 `parquet:"close"`
	Volume float64 `parquet:"volume"`
}

// SnapshotRecord is the Parquet schema for exported portfolio snapshots.
type SnapshotRecord struct {
	Date          int64   `parquet:"date,timestamp(millisecond)"`
	Equity        float64 `parquet:"equity"`
	Cash          float64 `parquet:"cash"`
	UnrealizedPnL float64 `parquet:"unrealized_pnl"`
	RealizedPnL   float64 `parquet:"realized_pnl"`
	DailyPnL      float64 `parquet:"daily_pnl"`
	Drawdown      float64 `parquet:"drawdown"`
	GrossExposure float64 `parquet:"gross_exposure"`
	OpenPositions int32   `parquet:"open_positions"`
}

// TradeRecord is the Parquet schema for exported closed trades.
type TradeRecord struct {
	Symbol      string  `parquet:"symbol"`
	Quantity    int32   `parquet:"quantity"`
	EntryDate   int64   `parquet:"entry_date,timestamp(millisecond)"`
	EntryPrice  float64 `parquet:"entry_price"`
	ExitDate    int64   `parquet:"exit_date,timestamp(millisecond)"`
	ExitPrice   float64 `parquet:"exit_price"`
	RealizedPnL float64 `parquet:"realized_pnl"`
	ExitReason  string  `parquet:"exit_reason"`
}

// ---------------------------------------------------------------------------
// BarStore implementation
// ---------------------------------------------------------------------------

// WriteBars writes bar data to Parquet files organized by symbol and year.
// Each symbol+year combination produces a separate file at:
//
//	<DataDir>/bars/<SYMBOL>/<YYYY>.parquet
//
// Existing records for the same (symbol, date) are replaced by incoming ones.
func (s *ParquetStore) WriteBars(_ context.Context, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	type key struct {
		symbol string
		year   int
	}
	groups := make(map[key][]BarRecord)
	for _, b := range bars {
		k := key{symbol: b.Symbol, year: b.Date.Year()}
		groups[k] = append(groups[k], BarRecord{
			Symbol: b.Symbol,
			Date:   b.Date.UnixMilli(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}

	for k, records := range groups {
		path := s.barPath(k.symbol, k.year)

		existing, _ := readParquetFile[BarRecord](path)
		merged := mergeBarRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing bars for %s/%d: %w", k.symbol, k.year, err)
		}
	}
	return nil
}

// ReadBars reads bar data from Parquet files for the given symbol and date
// range.
func (s *ParquetStore) ReadBars(_ context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	var bars []domain.Bar
	for year := start.Year(); year <= end.Year(); year++ {
		records, err := readParquetFile[BarRecord](s.barPath(symbol, year))
		if err != nil {
			// File doesn't exist for this year — skip.
			continue
		}

		for _, r := range records {
			date := time.UnixMilli(r.Date).UTC()
			if date.Before(start) || date.After(end) {
				continue
			}
			bars = append(bars, domain.Bar{
				Symbol: r.Symbol,
				Date:   date,
				Open:   r.Open,
				High:   r.High,
				Low:    r.Low,
				Close:  r.Close,
				Volume: r.Volume,
			})
		}
	}
	return bars, nil
}

// ListSymbols lists all symbols that have archived bar data.
func (s *ParquetStore) ListSymbols(_ context.Context) ([]string, error) {
	dir := filepath.Join(s.DataDir, "bars")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// ---------------------------------------------------------------------------
// Result export
// ---------------------------------------------------------------------------

// WriteSnapshots exports a run's snapshot series to:
//
//	<DataDir>/results/<runID>/snapshots.parquet
func (s *ParquetStore) WriteSnapshots(runID string, snapshots []domain.PortfolioSnapshot) error {
	records := make([]SnapshotRecord, len(snapshots))
	for i, snap := range snapshots {
		records[i] = SnapshotRecord{
			Date:          snap.Date.UnixMilli(),
			Equity:        snap.Equity,
			Cash:          snap.Cash,
			UnrealizedPnL: snap.UnrealizedPnL,
			RealizedPnL:   snap.RealizedPnL,
			DailyPnL:      snap.DailyPnL,
			Drawdown:      snap.Drawdown,
			GrossExposure: snap.GrossExposure,
			OpenPositions: int32(snap.OpenPositions),
		}
	}
	return writeParquetFile(s.resultPath(runID, "snapshots"), records)
}

// WriteTrades exports a run's closed-trade log to:
//
//	<DataDir>/results/<runID>/trades.parquet
func (s *ParquetStore) WriteTrades(runID string, trades []domain.ClosedTrade) error {
	records := make([]TradeRecord, len(trades))
	for i, t := range trades {
		records[i] = TradeRecord{
			Symbol:      t.Symbol,
			Quantity:    int32(t.Quantity),
			EntryDate:   t.EntryDate.UnixMilli(),
			EntryPrice:  t.EntryPrice,
			ExitDate:    t.ExitDate.UnixMilli(),
			ExitPrice:   t.ExitPrice,
			RealizedPnL: t.RealizedPnL,
			ExitReason:  t.ExitReason,
		}
	}
	return writeParquetFile(s.resultPath(runID, "trades"), records)
}

// ReadSnapshots reads back an exported snapshot series.
func (s *ParquetStore) ReadSnapshots(runID string) ([]domain.PortfolioSnapshot, error) {
	records, err := readParquetFile[SnapshotRecord](s.resultPath(runID, "snapshots"))
	if err != nil {
		return nil, err
	}
	out := make([]domain.PortfolioSnapshot, len(records))
	for i, r := range records {
		out[i] = domain.PortfolioSnapshot{
			Date:          time.UnixMilli(r.Date).UTC(),
			Equity:        r.Equity,
			Cash:          r.Cash,
			UnrealizedPnL: r.UnrealizedPnL,
			RealizedPnL:   r.RealizedPnL,
			DailyPnL:      r.DailyPnL,
			Drawdown:      r.Drawdown,
			GrossExposure: r.GrossExposure,
			OpenPositions: int(r.OpenPositions),
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

// barPath returns the filesystem path for a bar Parquet file.
// Layout: <dataDir>/bars/<SYMBOL>/<YYYY>.parquet
func (s *ParquetStore) barPath(symbol string, year int) string {
	return filepath.Join(s.DataDir, "bars", strings.ToUpper(symbol), fmt.Sprintf("%d.parquet", year))
}

// resultPath returns the filesystem path for a result export file.
// Layout: <dataDir>/results/<runID>/<name>.parquet
func (s *ParquetStore) resultPath(runID, name string) string {
	return filepath.Join(s.DataDir, "results", runID, name+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeBarRecords deduplicates bar records by (symbol, date), preferring new
// records over existing ones. Results are sorted by date.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	type key struct {
		symbol string
		date   int64
	}
	seen := make(map[key]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Symbol, r.Date}] = r
	}
	for _, r := range incoming {
		seen[key{r.Symbol, r.Date}] = r
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Date < merged[j].Date
	})
	return merged
}
