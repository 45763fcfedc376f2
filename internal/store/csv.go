package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"trendlab/internal/domain"
)

// ReadBarsCSV parses a daily OHLCV file into bars for one symbol. The
// expected header is:
//
//	date,open,high,low,close,volume
//
// Column order is taken from the header, dates are YYYY-MM-DD, and the
// volume column is optional. Rows come back sorted by date; a duplicate date
// is an error.
func ReadBarsCSV(path, symbol string) ([]domain.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bars, err := parseBarsCSV(f, symbol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}

func parseBarsCSV(r io.Reader, symbol string) ([]domain.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"date", "open", "high", "low", "close"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}
	volCol, hasVolume := cols["volume"]

	var bars []domain.Bar
	seen := make(map[time.Time]struct{})
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		date, err := time.ParseInLocation("2006-01-02", record[cols["date"]], time.UTC)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if _, dup := seen[date]; dup {
			return nil, fmt.Errorf("line %d: duplicate date %s", line, date.Format("2006-01-02"))
		}
		seen[date] = struct{}{}

		bar := domain.Bar{Symbol: symbol, Date: date}
		for _, f := range []struct {
			name string
			dst  *float64
		}{
			{"open", &bar.Open},
			{"high", &bar.High},
			{"low", &bar.Low},
			{"close", &bar.Close},
		} {
			v, err := strconv.ParseFloat(record[cols[f.name]], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, f.name, err)
			}
			*f.dst = v
		}
		if hasVolume && volCol < len(record) && record[volCol] != "" {
			v, err := strconv.ParseFloat(record[volCol], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: volume: %w", line, err)
			}
			bar.Volume = v
		}
		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}
