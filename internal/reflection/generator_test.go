package reflection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voyant/internal/oracle"
	"voyant/internal/store"
)

type fakeOracle struct {
	response string
	err      error
	calls    int
}

func (f *fakeOracle) Infer(ctx context.Context, req oracle.Request) (string, error) {
	f.calls++
	return f.response, f.err
}

type fakeArchive struct {
	trades      []store.TradeRecordModel
	reflections []*store.ReflectionModel
}

func (f *fakeArchive) TradesInRange(ctx context.Context, start, end time.Time) ([]store.TradeRecordModel, error) {
	return f.trades, nil
}

func (f *fakeArchive) AppendReflection(ctx context.Context, ref *store.ReflectionModel) error {
	f.reflections = append(f.reflections, ref)
	return nil
}

func filled(action string, price float64) store.TradeRecordModel {
	return store.TradeRecordModel{Action: action, Status: "filled", FilledPrice: price, Price: price}
}

func TestSuccessMetricTwoFavorableOfThree(t *testing.T) {
	trades := []store.TradeRecordModel{
		filled("buy", 100),  // next fill at 110: favorable
		filled("sell", 110), // next fill at 105: favorable
		filled("buy", 105),  // final price 101: not favorable
	}
	metric := SuccessMetric(trades, 101)
	assert.InDelta(t, 2.0/3.0, metric, 1e-9)
}

func TestSuccessMetricIgnoresUnfilledCycles(t *testing.T) {
	trades := []store.TradeRecordModel{
		{Action: "hold", Status: "held"},
		filled("buy", 100),
		{Action: "buy", Status: "skipped"},
		{Action: "sell", Status: "rejected"},
	}
	metric := SuccessMetric(trades, 120)
	assert.InDelta(t, 1.0, metric, 1e-9)
}

func TestSuccessMetricEmptyWindow(t *testing.T) {
	assert.Zero(t, SuccessMetric(nil, 100))
}

func TestGenerateMetricIsReproducible(t *testing.T) {
	// The metric must come from the ledger alone. Two runs over the same
	// window, any time apart, score identically; the last fill is judged
	// against the snapshot price of the window's last recorded cycle.
	o := &fakeOracle{response: `{"narrative":"one late buy","improvements":[]}`}
	a := &fakeArchive{trades: []store.TradeRecordModel{
		filled("buy", 100),
		{Action: "hold", Status: "held", Price: 90},
	}}
	g, err := NewGenerator(GeneratorParams{Oracle: o, Store: a})
	require.NoError(t, err)

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	first, err := g.Generate(context.Background(), start, start.Add(24*time.Hour))
	require.NoError(t, err)
	second, err := g.Generate(context.Background(), start, start.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, first.SuccessMetric, "buy at 100 closed the window at 90")
	assert.Equal(t, first.SuccessMetric, second.SuccessMetric)
}

func TestGenerateEmptyWindowSkipsOracle(t *testing.T) {
	o := &fakeOracle{}
	a := &fakeArchive{}
	g, err := NewGenerator(GeneratorParams{Oracle: o, Store: a})
	require.NoError(t, err)

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ref, err := g.Generate(context.Background(), start, start.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, o.calls, "no oracle call for an empty window")
	assert.Zero(t, ref.TradeCount)
	assert.Contains(t, ref.Narrative, "No decision cycles")
	require.Len(t, a.reflections, 1)
}

func TestGenerateWritesOracleReview(t *testing.T) {
	o := &fakeOracle{response: `{"narrative":"two solid entries, one late exit","improvements":["exit earlier on band touch"]}`}
	a := &fakeArchive{trades: []store.TradeRecordModel{filled("buy", 100), filled("sell", 110)}}
	g, err := NewGenerator(GeneratorParams{Oracle: o, Store: a})
	require.NoError(t, err)

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ref, err := g.Generate(context.Background(), start, start.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, o.calls)
	assert.False(t, ref.Degraded)
	assert.Equal(t, "two solid entries, one late exit", ref.Narrative)
	assert.Contains(t, string(ref.Improvements), "band touch")
}

func TestGenerateDegradesOnOracleFailure(t *testing.T) {
	o := &fakeOracle{err: errors.New("timeout")}
	a := &fakeArchive{trades: []store.TradeRecordModel{filled("buy", 100)}}
	g, err := NewGenerator(GeneratorParams{Oracle: o, Store: a})
	require.NoError(t, err)

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ref, err := g.Generate(context.Background(), start, start.Add(24*time.Hour))
	require.NoError(t, err, "a failed review still writes an entry")
	assert.True(t, ref.Degraded)
	require.Len(t, a.reflections, 1)
}
