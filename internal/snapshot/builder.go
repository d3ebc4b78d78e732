// Package snapshot assembles the immutable per-cycle market view.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"voyant/internal/analysis/indicator"
	"voyant/internal/logger"
	"voyant/internal/market"
	"voyant/internal/pkg/circuit"
	"voyant/internal/pkg/retry"
	"voyant/internal/scheduler"
)

// ErrDataUnavailable means the snapshot could not be built this cycle. The
// scheduler skips the cycle; no decision is produced from partial data.
var ErrDataUnavailable = errors.New("market data unavailable")

// Snapshot is the fused market state one decision cycle operates on. All
// fields derive from the same fetch pass and share one as-of timestamp; it
// is never persisted and never mutated after Build returns.
type Snapshot struct {
	Symbol     string
	Interval   string
	AsOf       time.Time
	Price      float64
	Candles    []market.Candle
	Book       market.OrderBook
	Indicators indicator.Report
}

// Builder produces Snapshots from a market.Source with bounded retries and
// a circuit breaker in front of the collaborator.
type Builder struct {
	source   market.Source
	symbol   string
	interval string
	lookback int
	bookTop  int
	policy   retry.Policy
	breaker  *circuit.Breaker
	nowFn    func() time.Time
}

type BuilderParams struct {
	Source   market.Source
	Symbol   string
	Interval string
	Lookback int
	BookTop  int
	Policy   retry.Policy
	Breaker  *circuit.Breaker
}

func NewBuilder(p BuilderParams) (*Builder, error) {
	if p.Source == nil {
		return nil, fmt.Errorf("snapshot builder requires a market source")
	}
	if p.Lookback < indicator.MinBars {
		return nil, fmt.Errorf("lookback %d below indicator minimum %d", p.Lookback, indicator.MinBars)
	}
	if p.BookTop <= 0 {
		p.BookTop = 5
	}
	return &Builder{
		source:   p.Source,
		symbol:   p.Symbol,
		interval: p.Interval,
		lookback: p.Lookback,
		bookTop:  p.BookTop,
		policy:   p.Policy,
		breaker:  p.Breaker,
		nowFn:    time.Now,
	}, nil
}

// Build fetches candles, order book and price, verifies the series is whole,
// and computes the indicator set. Any failure surfaces as ErrDataUnavailable
// after the retry budget is spent; indicators are never computed on a
// truncated or gapped series.
func (b *Builder) Build(ctx context.Context) (*Snapshot, error) {
	if b.breaker != nil && !b.breaker.Allow() {
		return nil, fmt.Errorf("%w: market source circuit open", ErrDataUnavailable)
	}

	var (
		candles []market.Candle
		book    market.OrderBook
		price   float64
	)
	err := b.policy.Do(ctx, func() error {
		var ferr error
		candles, ferr = b.source.FetchCandles(ctx, b.symbol, b.interval, b.lookback)
		if ferr != nil {
			return ferr
		}
		book, ferr = b.source.FetchOrderBook(ctx, b.symbol, b.bookTop)
		if ferr != nil {
			return ferr
		}
		price, ferr = b.source.LatestPrice(ctx, b.symbol)
		return ferr
	})
	if err != nil {
		if b.breaker != nil {
			b.breaker.RecordFailure()
		}
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	if b.breaker != nil {
		b.breaker.RecordSuccess()
	}

	if err := verifySeries(candles, b.lookback, b.interval); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}

	report, err := indicator.Compute(b.symbol, b.interval, candles)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}

	snap := &Snapshot{
		Symbol:     b.symbol,
		Interval:   b.interval,
		AsOf:       b.nowFn().UTC(),
		Price:      price,
		Candles:    candles,
		Book:       book,
		Indicators: report,
	}
	logger.Debugf("snapshot: %s %s price=%.2f candles=%d as_of=%s",
		snap.Symbol, snap.Interval, snap.Price, len(snap.Candles), snap.AsOf.Format(time.RFC3339))
	return snap, nil
}

// verifySeries rejects short or gapped candle sequences. Upstream sometimes
// returns fewer bars after symbol delistings or maintenance windows; acting
// on such a series would mix stale indicators with fresh prices.
func verifySeries(candles []market.Candle, want int, interval string) error {
	if len(candles) < want {
		return fmt.Errorf("got %d of %d requested candles", len(candles), want)
	}
	step, ok := scheduler.ParseIntervalDuration(interval)
	if !ok {
		return fmt.Errorf("unparseable interval %q", interval)
	}
	stepMs := step.Milliseconds()
	for i := 1; i < len(candles); i++ {
		if candles[i].OpenTime-candles[i-1].OpenTime != stepMs {
			return fmt.Errorf("gap in candle series at index %d", i)
		}
	}
	return nil
}
