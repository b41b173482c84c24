package data

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantforge/adaptive/internal/domain"
)

// CSVProvider reads candles from a CSV file with the columns
// open_time,open,high,low,close,volume. open_time is unix milliseconds or
// RFC3339. Rows must already be in ascending time order.
type CSVProvider struct {
	path   string
	loaded *StaticProvider
	symbol string
}

// NewCSVProvider lazily loads the file on first fetch.
func NewCSVProvider(path, symbol string) *CSVProvider {
	return &CSVProvider{path: path, symbol: symbol}
}

// GetCandles loads (once) and serves bars inside the range.
func (p *CSVProvider) GetCandles(ctx context.Context, symbol string, tf domain.Timeframe, tr domain.TimeRange) ([]domain.Candle, error) {
	if p.loaded == nil {
		candles, err := loadCSV(p.path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrDataUnavailable, err)
		}
		sp := NewStaticProvider()
		sp.Add(p.symbol, candles)
		p.loaded = sp
		log.Debug().Str("path", p.path).Int("candles", len(candles)).Msg("csv candle file loaded")
	}
	return p.loaded.GetCandles(ctx, symbol, tf, tr)
}

func loadCSV(path string) ([]domain.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	candles := make([]domain.Candle, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("row %d: expected 6 columns, got %d", i, len(row))
		}
		if i == 0 && row[0] == "open_time" {
			continue // header
		}
		ts, err := parseTime(row[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %v", i, err)
		}
		vals := make([]float64, 5)
		for j := 1; j <= 5; j++ {
			v, err := strconv.ParseFloat(row[j], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d col %d: %v", i, j, err)
			}
			vals[j-1] = v
		}
		candles = append(candles, domain.Candle{
			OpenTime: ts,
			Open:     vals[0],
			High:     vals[1],
			Low:      vals[2],
			Close:    vals[3],
			Volume:   vals[4],
		})
	}
	return candles, nil
}

func parseTime(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Parse(time.RFC3339, s)
}
