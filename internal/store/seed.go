package store

import (
	"context"

	"trendlab/internal/domain"
)

// DefaultInstruments is the built-in futures universe: the CME equity
// indexes, NYMEX/COMEX energy and metals, and CBOT treasuries.
var DefaultInstruments = []domain.Instrument{
	{Symbol: "ES", Name: "E-mini S&P 500", Exchange: "CME", TickSize: 0.25, Multiplier: 50, Currency: "USD", Active: true},
	{Symbol: "NQ", Name: "E-mini Nasdaq-100", Exchange: "CME", TickSize: 0.25, Multiplier: 20, Currency: "USD", Active: true},
	{Symbol: "CL", Name: "Crude Oil", Exchange: "NYMEX", TickSize: 0.01, Multiplier: 1000, Currency: "USD", Active: true},
	{Symbol: "GC", Name: "Gold", Exchange: "COMEX", TickSize: 0.10, Multiplier: 100, Currency: "USD", Active: true},
	{Symbol: "ZN", Name: "10-Year T-Note", Exchange: "CBOT", TickSize: 0.015625, Multiplier: 1000, Currency: "USD", Active: true},
}

// SeedInstruments writes the default instrument universe into the store.
// Existing rows for the same symbols are replaced.
func SeedInstruments(ctx context.Context, s InstrumentStore) error {
	return s.SaveInstruments(ctx, DefaultInstruments)
}
