package scheduler

import (
	"context"
	"time"

	"voyant/internal/logger"
)

// IntervalTrigger fires a task once per fixed interval, aligned to the
// interval boundary (UTC) plus an optional offset, so a 1h cycle runs just
// after each candle closes.
type IntervalTrigger struct {
	Name           string
	Interval       time.Duration
	Offset         time.Duration
	RunImmediately bool

	ctx   context.Context
	nowFn func() time.Time
}

func NewIntervalTrigger(ctx context.Context, name string, interval, offset time.Duration) *IntervalTrigger {
	if ctx == nil {
		ctx = context.Background()
	}
	return &IntervalTrigger{
		Name:     name,
		Interval: interval,
		Offset:   offset,
		ctx:      ctx,
		nowFn:    time.Now,
	}
}

// Start blocks, invoking task at each aligned tick until ctx is done. The
// task is called synchronously: a slow cycle delays the next tick rather
// than overlapping it.
func (t *IntervalTrigger) Start(task func()) {
	if t == nil || task == nil {
		return
	}
	if t.Interval <= 0 {
		logger.Warnf("IntervalTrigger[%s]: invalid interval=%s, exit", t.Name, t.Interval)
		return
	}
	if t.Offset < 0 {
		t.Offset = 0
	}
	startAt := t.nowFn().UTC()
	logger.Infof("IntervalTrigger[%s]: started interval=%s offset=%s run_immediately=%v at=%s",
		t.Name, t.Interval, t.Offset, t.RunImmediately, startAt.Format(time.RFC3339))

	if t.RunImmediately {
		task()
	}
	for {
		now := t.nowFn().UTC()
		wakeAt := now.Truncate(t.Interval).Add(t.Interval).Add(t.Offset)
		wait := wakeAt.Sub(now)
		logger.Infof("IntervalTrigger[%s]: next run at %s (in %s) | uptime=%s",
			t.Name, wakeAt.Format(time.RFC3339), wait.Truncate(time.Second), now.Sub(startAt).Truncate(time.Second))
		if !sleepUntil(t.ctx, wait) {
			logger.Infof("IntervalTrigger[%s]: ctx done, exit", t.Name)
			return
		}
		task()
	}
}

// DailyTrigger fires a task once per day at a fixed UTC hour.
type DailyTrigger struct {
	Name    string
	HourUTC int

	ctx   context.Context
	nowFn func() time.Time
}

func NewDailyTrigger(ctx context.Context, name string, hourUTC int) *DailyTrigger {
	if ctx == nil {
		ctx = context.Background()
	}
	return &DailyTrigger{Name: name, HourUTC: hourUTC, ctx: ctx, nowFn: time.Now}
}

func (t *DailyTrigger) Start(task func()) {
	if t == nil || task == nil {
		return
	}
	if t.HourUTC < 0 || t.HourUTC > 23 {
		logger.Warnf("DailyTrigger[%s]: invalid hour=%d, exit", t.Name, t.HourUTC)
		return
	}
	logger.Infof("DailyTrigger[%s]: started boundary=%02d:00 UTC", t.Name, t.HourUTC)
	for {
		now := t.nowFn().UTC()
		next := t.nextBoundary(now)
		logger.Infof("DailyTrigger[%s]: next run at %s (in %s)",
			t.Name, next.Format(time.RFC3339), next.Sub(now).Truncate(time.Second))
		if !sleepUntil(t.ctx, next.Sub(now)) {
			logger.Infof("DailyTrigger[%s]: ctx done, exit", t.Name)
			return
		}
		task()
	}
}

func (t *DailyTrigger) nextBoundary(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), t.HourUTC, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

func sleepUntil(ctx context.Context, wait time.Duration) bool {
	if wait <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
