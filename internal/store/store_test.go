package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "voyant.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func tradeAt(ts time.Time, action, status string) *TradeRecordModel {
	return &TradeRecordModel{
		ID:        uuid.NewString(),
		Timestamp: ts,
		Symbol:    "BTCUSDT",
		Action:    action,
		Ratio:     0.3,
		Reason:    "test",
		Price:     50000,
		Status:    status,
	}
}

func TestAppendAndQueryTrades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.AppendTrade(ctx, tradeAt(base.Add(1*time.Hour), "buy", "filled")))
	require.NoError(t, s.AppendTrade(ctx, tradeAt(base.Add(2*time.Hour), "hold", "held")))
	require.NoError(t, s.AppendTrade(ctx, tradeAt(base.Add(26*time.Hour), "sell", "filled")))

	inRange, err := s.TradesInRange(ctx, base, base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, inRange, 2)
	assert.Equal(t, "buy", inRange[0].Action, "oldest first")
	assert.Equal(t, "hold", inRange[1].Action)

	recent, err := s.RecentTrades(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "sell", recent[0].Action, "newest first")
}

func TestReflectionRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	last, err := s.LastReflectionEnd(ctx)
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	ref := &ReflectionModel{
		ID:            uuid.NewString(),
		WindowStart:   start,
		WindowEnd:     start.Add(24 * time.Hour),
		TradeCount:    5,
		SuccessMetric: 0.6,
		Narrative:     "held through chop, one good entry",
		Improvements:  datatypes.JSON(`["tighten the confidence floor"]`),
	}
	require.NoError(t, s.AppendReflection(ctx, ref))

	got, err := s.RecentReflections(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.6, got[0].SuccessMetric, 1e-9)

	last, err = s.LastReflectionEnd(ctx)
	require.NoError(t, err)
	assert.True(t, last.Equal(start.Add(24*time.Hour)))
}
