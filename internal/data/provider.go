// Package data defines the market-data collaborator boundary. The core
// treats candle retrieval as opaque I/O: failures surface as
// domain.ErrDataUnavailable and are never retried here.
package data

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sony/gobreaker"

	"github.com/quantforge/adaptive/internal/domain"
)

// Provider fetches an ordered candle series for a half-open time range.
// Gaps in the series are returned as-is; the core never synthesizes bars.
type Provider interface {
	GetCandles(ctx context.Context, symbol string, tf domain.Timeframe, tr domain.TimeRange) ([]domain.Candle, error)
}

// BreakerProvider decorates a Provider with a circuit breaker so a flapping
// upstream fails fast instead of stalling every evaluation cycle.
type BreakerProvider struct {
	inner   Provider
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerProvider wraps inner with a breaker that opens after five
// consecutive failures and probes again after 30s.
func NewBreakerProvider(name string, inner Provider) *BreakerProvider {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &BreakerProvider{inner: inner, breaker: cb}
}

// GetCandles delegates through the breaker, mapping any failure to
// domain.ErrDataUnavailable.
func (b *BreakerProvider) GetCandles(ctx context.Context, symbol string, tf domain.Timeframe, tr domain.TimeRange) ([]domain.Candle, error) {
	out, err := b.breaker.Execute(func() (interface{}, error) {
		return b.inner.GetCandles(ctx, symbol, tf, tr)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s %s: %v", domain.ErrDataUnavailable, symbol, tf, tr, err)
	}
	return out.([]domain.Candle), nil
}

// StaticProvider serves pre-loaded candles, keyed by symbol. Used by tests
// and offline CLI runs.
type StaticProvider struct {
	series map[string][]domain.Candle
}

// NewStaticProvider builds a provider over fixed in-memory series.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{series: make(map[string][]domain.Candle)}
}

// Add registers a candle series for a symbol, kept sorted by open time.
func (p *StaticProvider) Add(symbol string, candles []domain.Candle) {
	cs := make([]domain.Candle, len(candles))
	copy(cs, candles)
	sort.Slice(cs, func(i, j int) bool { return cs[i].OpenTime.Before(cs[j].OpenTime) })
	p.series[symbol] = cs
}

// GetCandles returns the registered bars inside the range.
func (p *StaticProvider) GetCandles(_ context.Context, symbol string, _ domain.Timeframe, tr domain.TimeRange) ([]domain.Candle, error) {
	all, ok := p.series[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: no series for %s", domain.ErrDataUnavailable, symbol)
	}
	out := make([]domain.Candle, 0, len(all))
	for _, c := range all {
		if tr.Contains(c.OpenTime) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty range %s for %s", domain.ErrDataUnavailable, tr, symbol)
	}
	return out, nil
}
