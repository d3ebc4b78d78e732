package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voyant/internal/market"
	"voyant/internal/pkg/retry"
)

type fakeSource struct {
	candles    []market.Candle
	candleErr  error
	failsLeft  int
	fetchCalls int
}

func (f *fakeSource) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	f.fetchCalls++
	if f.failsLeft > 0 {
		f.failsLeft--
		return nil, errors.New("transient")
	}
	if f.candleErr != nil {
		return nil, f.candleErr
	}
	return f.candles, nil
}

func (f *fakeSource) FetchOrderBook(ctx context.Context, symbol string, depth int) (market.OrderBook, error) {
	return market.OrderBook{TotalBidSize: 10, TotalAskSize: 8}, nil
}

func (f *fakeSource) FetchBalances(ctx context.Context, symbol string) (market.Balances, error) {
	return market.Balances{}, nil
}

func (f *fakeSource) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	return 50000, nil
}

func hourlyCandles(n int) []market.Candle {
	out := make([]market.Candle, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, market.Candle{
			OpenTime:  int64(i) * 3600_000,
			CloseTime: int64(i+1)*3600_000 - 1,
			Open:      100, High: 110, Low: 90, Close: 100 + float64(i%7),
			Volume: 10,
		})
	}
	return out
}

func newTestBuilder(t *testing.T, src market.Source, lookback int) *Builder {
	t.Helper()
	b, err := NewBuilder(BuilderParams{
		Source:   src,
		Symbol:   "BTCUSDT",
		Interval: "1h",
		Lookback: lookback,
		Policy:   retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond},
	})
	require.NoError(t, err)
	return b
}

func TestBuildProducesConsistentSnapshot(t *testing.T) {
	src := &fakeSource{candles: hourlyCandles(40)}
	b := newTestBuilder(t, src, 40)

	snap, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", snap.Symbol)
	assert.Equal(t, 50000.0, snap.Price)
	assert.Len(t, snap.Candles, 40)
	assert.False(t, snap.AsOf.IsZero())
	assert.NotEmpty(t, snap.Indicators.Values)
}

func TestBuildFailsOnShortSeries(t *testing.T) {
	// 5 of the requested 40 candles missing: no decision this cycle.
	src := &fakeSource{candles: hourlyCandles(35)}
	b := newTestBuilder(t, src, 40)

	_, err := b.Build(context.Background())
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestBuildFailsOnGappedSeries(t *testing.T) {
	candles := hourlyCandles(40)
	candles[20].OpenTime += 3600_000 // one missing hour
	src := &fakeSource{candles: candles}
	b := newTestBuilder(t, src, 40)

	_, err := b.Build(context.Background())
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestBuildRetriesTransientErrors(t *testing.T) {
	src := &fakeSource{candles: hourlyCandles(40), failsLeft: 2}
	b := newTestBuilder(t, src, 40)

	_, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, src.fetchCalls)
}

func TestBuildSurfacesDataUnavailableAfterRetryBudget(t *testing.T) {
	src := &fakeSource{candleErr: errors.New("api down")}
	b := newTestBuilder(t, src, 40)

	_, err := b.Build(context.Background())
	assert.ErrorIs(t, err, ErrDataUnavailable)
}
