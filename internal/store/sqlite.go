package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"trendlab/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ InstrumentStore = (*SQLiteStore)(nil)
var _ BarStore = (*SQLiteStore)(nil)
var _ FeatureStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS instruments (
	symbol     TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	exchange   TEXT NOT NULL,
	tick_size  REAL NOT NULL,
	multiplier REAL NOT NULL,
	currency   TEXT NOT NULL,
	active     INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS bars (
	symbol TEXT NOT NULL,
	date   TEXT NOT NULL,
	open   REAL NOT NULL,
	high   REAL NOT NULL,
	low    REAL NOT NULL,
	close  REAL NOT NULL,
	volume REAL NOT NULL,
	PRIMARY KEY (symbol, date)
);

CREATE TABLE IF NOT EXISTS features (
	symbol        TEXT NOT NULL,
	date          TEXT NOT NULL,
	atr           REAL NOT NULL,
	trend_ma      REAL NOT NULL,
	ma_slope      REAL NOT NULL,
	breakout_high REAL NOT NULL,
	breakout_low  REAL NOT NULL,
	exit_high     REAL NOT NULL,
	exit_low      REAL NOT NULL,
	PRIMARY KEY (symbol, date)
);
`

// SQLiteStore implements InstrumentStore, BarStore, and FeatureStore backed
// by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, ensures the
// schema exists, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const dateLayout = "2006-01-02"

// ---------------------------------------------------------------------------
// InstrumentStore implementation
// ---------------------------------------------------------------------------

// SaveInstruments inserts or replaces a batch of instruments in one
// transaction.
func (s *SQLiteStore) SaveInstruments(ctx context.Context, instruments []domain.Instrument) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO instruments
			(symbol, name, exchange, tick_size, multiplier, currency, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, inst := range instruments {
		active := 0
		if inst.Active {
			active = 1
		}
		if _, err := stmt.ExecContext(ctx,
			inst.Symbol, inst.Name, inst.Exchange,
			inst.TickSize, inst.Multiplier, inst.Currency, active,
		); err != nil {
			return fmt.Errorf("saving instrument %s: %w", inst.Symbol, err)
		}
	}
	return tx.Commit()
}

// GetInstrument retrieves one instrument by symbol. A missing symbol returns
// sql.ErrNoRows.
func (s *SQLiteStore) GetInstrument(ctx context.Context, symbol string) (*domain.Instrument, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT symbol, name, exchange, tick_size, multiplier, currency, active
		FROM instruments WHERE symbol = ?`, symbol)

	var inst domain.Instrument
	var active int
	if err := row.Scan(&inst.Symbol, &inst.Name, &inst.Exchange,
		&inst.TickSize, &inst.Multiplier, &inst.Currency, &active); err != nil {
		return nil, err
	}
	inst.Active = active != 0
	return &inst, nil
}

// ListInstruments returns all instruments ordered by symbol.
func (s *SQLiteStore) ListInstruments(ctx context.Context) ([]domain.Instrument, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, name, exchange, tick_size, multiplier, currency, active
		FROM instruments ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Instrument
	for rows.Next() {
		var inst domain.Instrument
		var active int
		if err := rows.Scan(&inst.Symbol, &inst.Name, &inst.Exchange,
			&inst.TickSize, &inst.Multiplier, &inst.Currency, &active); err != nil {
			return nil, err
		}
		inst.Active = active != 0
		out = append(out, inst)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// BarStore implementation
// ---------------------------------------------------------------------------

// WriteBars inserts or replaces a batch of bars in one transaction.
func (s *SQLiteStore) WriteBars(ctx context.Context, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO bars (symbol, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx,
			b.Symbol, b.Date.Format(dateLayout),
			b.Open, b.High, b.Low, b.Close, b.Volume,
		); err != nil {
			return fmt.Errorf("writing bar %s/%s: %w", b.Symbol, b.Date.Format(dateLayout), err)
		}
	}
	return tx.Commit()
}

// ReadBars returns the symbol's bars within [start, end], date ascending.
func (s *SQLiteStore) ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, date, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date`,
		symbol, start.Format(dateLayout), end.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Bar
	for rows.Next() {
		var b domain.Bar
		var date string
		if err := rows.Scan(&b.Symbol, &date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		b.Date, err = time.ParseInLocation(dateLayout, date, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parsing bar date %q: %w", date, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListSymbols returns all distinct symbols with bar data.
func (s *SQLiteStore) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM bars ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// FeatureStore implementation
// ---------------------------------------------------------------------------

// WriteFeatures replaces the symbol's stored feature rows in one
// transaction. Recomputation always rewrites the whole series, so stale rows
// from a previous parameter set never linger.
func (s *SQLiteStore) WriteFeatures(ctx context.Context, symbol string, featureRows []domain.FeatureRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM features WHERE symbol = ?`, symbol); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO features
			(symbol, date, atr, trend_ma, ma_slope, breakout_high, breakout_low, exit_high, exit_low)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range featureRows {
		if _, err := stmt.ExecContext(ctx,
			symbol, r.Date.Format(dateLayout),
			r.ATR, r.TrendMA, r.MASlope,
			r.BreakoutHigh, r.BreakoutLow, r.ExitHigh, r.ExitLow,
		); err != nil {
			return fmt.Errorf("writing feature row %s/%s: %w", symbol, r.Date.Format(dateLayout), err)
		}
	}
	return tx.Commit()
}

// ReadFeatures returns the symbol's feature rows within [start, end], date
// ascending.
func (s *SQLiteStore) ReadFeatures(ctx context.Context, symbol string, start, end time.Time) ([]domain.FeatureRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, atr, trend_ma, ma_slope, breakout_high, breakout_low, exit_high, exit_low
		FROM features
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date`,
		symbol, start.Format(dateLayout), end.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FeatureRow
	for rows.Next() {
		var r domain.FeatureRow
		var date string
		if err := rows.Scan(&date, &r.ATR, &r.TrendMA, &r.MASlope,
			&r.BreakoutHigh, &r.BreakoutLow, &r.ExitHigh, &r.ExitLow); err != nil {
			return nil, err
		}
		r.Date, err = time.ParseInLocation(dateLayout, date, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parsing feature date %q: %w", date, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
