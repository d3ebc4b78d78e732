// Package app wires the trading loop together and owns its lifecycle.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"voyant/internal/config"
	"voyant/internal/decision"
	"voyant/internal/executor"
	"voyant/internal/gateway/notifier"
	"voyant/internal/gateway/sentiment"
	"voyant/internal/logger"
	"voyant/internal/market"
	"voyant/internal/reflection"
	"voyant/internal/scheduler"
	"voyant/internal/snapshot"
	"voyant/internal/store"
	httpapi "voyant/internal/transport/http"
)

type App struct {
	cfg        *config.Config
	source     market.Source
	snapshots  *snapshot.Builder
	fusion     *decision.Engine
	exec       *executor.Engine
	ledger     *store.Store
	reflector  *reflection.Generator
	fearGreed  *sentiment.Client
	notify     notifier.Notifier
	sched      *scheduler.Context
	httpServer *httpapi.Server
}

// Run starts the HTTP server and both schedule loops, blocking until ctx is
// cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	interval, ok := scheduler.ParseIntervalDuration(a.cfg.Schedule.DecisionInterval)
	if !ok {
		return fmt.Errorf("invalid decision interval %q", a.cfg.Schedule.DecisionInterval)
	}

	logger.Infof("app: starting %s %s loop, reflection at %02d:00 UTC, http %s, dry_run=%v",
		a.cfg.Market.Symbol, a.cfg.Schedule.DecisionInterval,
		a.cfg.Schedule.ReflectionHourUTC, a.httpServer.Addr(), a.cfg.Trading.DryRun)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.httpServer.Start(ctx); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		trig := scheduler.NewIntervalTrigger(ctx, "decision", interval,
			time.Duration(a.cfg.Schedule.DecisionOffsetSeconds)*time.Second)
		trig.RunImmediately = a.cfg.Schedule.RunImmediately
		trig.Start(func() {
			if err := a.sched.RunDecision(func() error { return a.decisionCycle(ctx) }); err != nil {
				logger.Warnf("app: decision cycle failed: %v", err)
			}
		})
		return nil
	})

	group.Go(func() error {
		trig := scheduler.NewDailyTrigger(ctx, "reflection", a.cfg.Schedule.ReflectionHourUTC)
		trig.Start(func() {
			if err := a.sched.RunReflection(func() error { return a.reflectionCycle(ctx) }); err != nil {
				logger.Warnf("app: reflection cycle failed: %v", err)
			}
		})
		return nil
	})

	err := group.Wait()
	if cerr := a.ledger.Close(); cerr != nil {
		logger.Warnf("app: ledger close: %v", cerr)
	}
	return err
}

// decisionCycle is one snapshot -> fuse -> execute pass. A failed snapshot
// skips the cycle entirely: no decision, no ledger row, one failure counted.
// The balances handed to the fusion engine only inform the prompt; the
// executor re-reads them before sizing any order.
func (a *App) decisionCycle(ctx context.Context) error {
	snap, err := a.snapshots.Build(ctx)
	if err != nil {
		return err
	}
	balances, err := a.source.FetchBalances(ctx, a.cfg.Market.Symbol)
	if err != nil {
		return fmt.Errorf("%w: %v", snapshot.ErrDataUnavailable, err)
	}

	d := a.fusion.Fuse(ctx, snap, balances, a.recentReviews(ctx), a.fetchSentiment(ctx))

	out, err := a.exec.Execute(ctx, snap, d)
	if err != nil {
		return err
	}
	if out.Status == executor.StatusFilled && out.Fill != nil {
		msg := fmt.Sprintf("voyant %s: %s %.6f @ %.2f (%.2f %s) | %s",
			snap.Symbol, d.Action, out.Fill.Amount, out.Fill.Price, out.Fill.QuoteVal, "USDT", d.Reason)
		if nerr := a.notify.SendText(msg); nerr != nil {
			logger.Warnf("app: fill notify failed: %v", nerr)
		}
	}
	return nil
}

// fetchSentiment reads the fear & greed index for this cycle. Best effort:
// a disabled feed or a fetch failure yields nil and the cycle runs without
// a sentiment input.
func (a *App) fetchSentiment(ctx context.Context) *sentiment.Index {
	if a.fearGreed == nil {
		return nil
	}
	idx, err := a.fearGreed.Fetch(ctx)
	if err != nil {
		logger.Warnf("app: fear/greed fetch failed, continuing without sentiment: %v", err)
		return nil
	}
	return &idx
}

// reflectionCycle reviews everything since the previous reflection window so
// downtime never leaves unreviewed gaps: the window starts at the last
// reflection's end, falling back to 24h (and capping at 7 days) when there
// is no usable prior end.
func (a *App) reflectionCycle(ctx context.Context) error {
	end := time.Now().UTC()
	start, err := a.ledger.LastReflectionEnd(ctx)
	if err != nil {
		return err
	}
	if start.IsZero() || end.Sub(start) > 7*24*time.Hour {
		start = end.Add(-24 * time.Hour)
	}
	_, err = a.reflector.Generate(ctx, start, end)
	return err
}

// recentReviews feeds the last few reflection narratives back into the
// decision prompt. Best effort: a read failure just yields no reviews.
func (a *App) recentReviews(ctx context.Context) []string {
	refs, err := a.ledger.RecentReflections(ctx, 3)
	if err != nil {
		logger.Warnf("app: reflection lookup failed: %v", err)
		return nil
	}
	var out []string
	for _, ref := range refs {
		review := ref.Narrative
		var improvements []string
		if len(ref.Improvements) > 0 {
			if err := json.Unmarshal(ref.Improvements, &improvements); err == nil {
				for _, imp := range improvements {
					review += " Improvement: " + imp
				}
			}
		}
		if review != "" {
			out = append(out, review)
		}
	}
	return out
}
