package decision

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voyant/internal/analysis/indicator"
	"voyant/internal/gateway/sentiment"
	"voyant/internal/market"
	"voyant/internal/snapshot"
)

type fakeOracle struct {
	response string
	err      error
	lastReq  Request
}

func (f *fakeOracle) Infer(ctx context.Context, req Request) (string, error) {
	f.lastReq = req
	return f.response, f.err
}

func testSnapshot() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		Symbol:   "BTCUSDT",
		Interval: "1h",
		AsOf:     time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC),
		Price:    50000,
		Candles: []market.Candle{
			{OpenTime: 0, Close: 49500, Open: 49000, High: 49800, Low: 48900, Volume: 10},
			{OpenTime: 3600_000, Close: 50000, Open: 49500, High: 50100, Low: 49400, Volume: 12},
		},
		Indicators: indicator.Report{
			Symbol: "BTCUSDT", Interval: "1h", Count: 120,
			Values: map[string]indicator.Value{
				"rsi":      {Latest: 25, State: "oversold"},
				"macd":     {Latest: -12, State: "bullish"},
				"bb_pband": {Latest: 0.1, State: "inside"},
				"sma5":     {Latest: 50100},
				"sma20":    {Latest: 49000},
			},
		},
	}
}

func newTestEngine(t *testing.T, o Inferencer) *Engine {
	t.Helper()
	e, err := NewEngine(EngineParams{Oracle: o, MinNotionalUSD: 10, ConfidenceFloor: 70})
	require.NoError(t, err)
	return e
}

func TestFuseProducesValidatedDecision(t *testing.T) {
	o := &fakeOracle{response: `{"action":"buy","ratio":0.4,"confidence":85,"reason":"oversold with uptrend"}`}
	e := newTestEngine(t, o)

	d := e.Fuse(context.Background(), testSnapshot(), market.Balances{Base: 0.5, Quote: 1000}, nil, nil)
	assert.Equal(t, ActionBuy, d.Action)
	assert.InDelta(t, 0.4, d.Ratio, 1e-9)
	assert.False(t, d.Degraded)
	assert.True(t, o.lastReq.ExpectJSON)
}

func TestFuseInvalidActionTokenDegradesToHold(t *testing.T) {
	// "purchase" is not a recognized action; the cycle must hold and be
	// flagged degraded rather than guessing.
	o := &fakeOracle{response: `{"action":"purchase","ratio":0.5,"reason":"x"}`}
	e := newTestEngine(t, o)

	d := e.Fuse(context.Background(), testSnapshot(), market.Balances{Quote: 1000}, nil, nil)
	assert.Equal(t, ActionHold, d.Action)
	assert.Zero(t, d.Ratio)
	assert.True(t, d.Degraded)
}

func TestFuseOracleErrorDegradesToHold(t *testing.T) {
	o := &fakeOracle{err: errors.New("timeout")}
	e := newTestEngine(t, o)

	d := e.Fuse(context.Background(), testSnapshot(), market.Balances{Quote: 1000}, nil, nil)
	assert.Equal(t, ActionHold, d.Action)
	assert.True(t, d.Degraded)
}

func TestFuseConfidenceFloorDowngrades(t *testing.T) {
	o := &fakeOracle{response: `{"action":"sell","ratio":0.3,"confidence":40,"reason":"weak signal"}`}
	e := newTestEngine(t, o)

	d := e.Fuse(context.Background(), testSnapshot(), market.Balances{Base: 1, Quote: 1000}, nil, nil)
	assert.Equal(t, ActionHold, d.Action)
	assert.Zero(t, d.Ratio)
	assert.False(t, d.Degraded, "a downgrade is not a degraded oracle response")
	assert.Contains(t, d.Note, "confidence")
}

func TestFuseSellWithZeroBaseDowngrades(t *testing.T) {
	o := &fakeOracle{response: `{"action":"sell","ratio":0.5,"confidence":90,"reason":"take profit"}`}
	e := newTestEngine(t, o)

	d := e.Fuse(context.Background(), testSnapshot(), market.Balances{Base: 0, Quote: 1000}, nil, nil)
	assert.Equal(t, ActionHold, d.Action)
	assert.Zero(t, d.Ratio)
}

func TestFuseBuyBelowMinNotionalDowngrades(t *testing.T) {
	o := &fakeOracle{response: `{"action":"buy","ratio":0.9,"confidence":90,"reason":"dip"}`}
	e := newTestEngine(t, o)

	d := e.Fuse(context.Background(), testSnapshot(), market.Balances{Base: 0.5, Quote: 5}, nil, nil)
	assert.Equal(t, ActionHold, d.Action)
	assert.Zero(t, d.Ratio)
}

func TestFuseRatioInvariantHoldsForAllResponses(t *testing.T) {
	cases := []string{
		`{"action":"hold","ratio":0,"confidence":50,"reason":"chop"}`,
		`{"action":"buy","ratio":1,"confidence":99,"reason":"max conviction"}`,
		`{"action":"sell","ratio":0,"confidence":80,"reason":"ratio zero"}`,
	}
	for _, raw := range cases {
		o := &fakeOracle{response: raw}
		e := newTestEngine(t, o)
		d := e.Fuse(context.Background(), testSnapshot(), market.Balances{Base: 1, Quote: 1000}, nil, nil)
		assert.GreaterOrEqual(t, d.Ratio, 0.0)
		assert.LessOrEqual(t, d.Ratio, 1.0)
		if d.Action == ActionHold {
			assert.Zero(t, d.Ratio)
		} else {
			assert.Greater(t, d.Ratio, 0.0)
		}
	}
}

func TestFuseSentimentTiltsRatio(t *testing.T) {
	cases := []struct {
		name     string
		response string
		fgValue  int
		want     float64
	}{
		{"buy into fear gets more weight", `{"action":"buy","ratio":0.5,"confidence":85,"reason":"dip"}`, 20, 0.6},
		{"buy into greed gets less", `{"action":"buy","ratio":0.5,"confidence":85,"reason":"momo"}`, 80, 0.4},
		{"sell into greed gets more weight", `{"action":"sell","ratio":0.5,"confidence":85,"reason":"top"}`, 80, 0.6},
		{"sell into fear gets less", `{"action":"sell","ratio":0.5,"confidence":85,"reason":"cut"}`, 20, 0.4},
		{"neutral index leaves ratio alone", `{"action":"buy","ratio":0.5,"confidence":85,"reason":"dip"}`, 50, 0.5},
		{"tilt is capped at 1", `{"action":"buy","ratio":0.9,"confidence":85,"reason":"dip"}`, 10, 1.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := &fakeOracle{response: tc.response}
			e := newTestEngine(t, o)
			fg := &sentiment.Index{Value: tc.fgValue, Classification: "test"}
			d := e.Fuse(context.Background(), testSnapshot(), market.Balances{Base: 1, Quote: 1000}, nil, fg)
			assert.InDelta(t, tc.want, d.Ratio, 1e-9)
		})
	}
}

func TestFuseSentimentNeverTiltsHold(t *testing.T) {
	o := &fakeOracle{response: `{"action":"hold","ratio":0,"confidence":60,"reason":"chop"}`}
	e := newTestEngine(t, o)
	fg := &sentiment.Index{Value: 10, Classification: "Extreme Fear"}
	d := e.Fuse(context.Background(), testSnapshot(), market.Balances{Base: 1, Quote: 1000}, nil, fg)
	assert.Equal(t, ActionHold, d.Action)
	assert.Zero(t, d.Ratio)
}

func TestFuseSentimentFeedsPrompt(t *testing.T) {
	o := &fakeOracle{response: `{"action":"hold","ratio":0,"confidence":60,"reason":"chop"}`}
	e := newTestEngine(t, o)
	fg := &sentiment.Index{Value: 20, Classification: "Extreme Fear", Average: 34, Trend: "deteriorating"}
	e.Fuse(context.Background(), testSnapshot(), market.Balances{Quote: 1000}, nil, fg)
	assert.Contains(t, o.lastReq.User, `"fear_greed"`)
	assert.Contains(t, o.lastReq.User, `"Extreme Fear"`)
}

func TestComputeBiasDeterministic(t *testing.T) {
	snap := testSnapshot()
	first := ComputeBias(snap.Indicators)
	second := ComputeBias(snap.Indicators)
	assert.Equal(t, first, second)
	assert.Equal(t, "oversold", first.Momentum)
	assert.Equal(t, "up", first.Trend)
}
