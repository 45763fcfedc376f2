// Package store defines storage interfaces for persisting and retrieving
// domain objects such as instruments, bars, feature rows, and backtest
// results.
package store

import (
	"context"
	"time"

	"trendlab/internal/domain"
)

// InstrumentStore persists and retrieves instrument reference data.
type InstrumentStore interface {
	// SaveInstruments inserts or replaces a batch of instruments.
	SaveInstruments(ctx context.Context, instruments []domain.Instrument) error

	// GetInstrument retrieves one instrument by symbol.
	GetInstrument(ctx context.Context, symbol string) (*domain.Instrument, error)

	// ListInstruments returns all instruments ordered by symbol.
	ListInstruments(ctx context.Context) ([]domain.Instrument, error)
}

// BarStore persists and retrieves daily OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars to storage.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns the symbol's bars within [start, end], date ascending.
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols with bar data.
	ListSymbols(ctx context.Context) ([]string, error)
}

// FeatureStore persists and retrieves precomputed feature rows.
type FeatureStore interface {
	// WriteFeatures replaces the symbol's stored feature rows.
	WriteFeatures(ctx context.Context, symbol string, rows []domain.FeatureRow) error

	// ReadFeatures returns the symbol's feature rows within [start, end],
	// date ascending.
	ReadFeatures(ctx context.Context, symbol string, start, end time.Time) ([]domain.FeatureRow, error)
}
