// Package decision fuses quantitative indicators with the oracle's judgment
// into one validated, actionable Decision per cycle.
package decision

import (
	"context"
	"fmt"
	"math"

	"voyant/internal/gateway/sentiment"
	"voyant/internal/logger"
	"voyant/internal/market"
	"voyant/internal/oracle"
	"voyant/internal/snapshot"
)

// Inferencer is the oracle collaborator seam.
type Inferencer interface {
	Infer(ctx context.Context, req Request) (string, error)
}

// Request aliases the oracle request so fakes don't import transport code.
type Request = oracle.Request

// ChartRenderer produces an optional chart image for vision-capable models.
// A render failure degrades the prompt to text-only, never the cycle.
type ChartRenderer interface {
	Render(ctx context.Context, snap *snapshot.Snapshot) (oracle.Image, error)
}

// Engine is the Signal Fusion Engine.
type Engine struct {
	oracle          Inferencer
	chart           ChartRenderer // nil when chart capture is disabled
	minNotional     float64
	confidenceFloor int
}

type EngineParams struct {
	Oracle          Inferencer
	Chart           ChartRenderer
	MinNotionalUSD  float64
	ConfidenceFloor int
}

func NewEngine(p EngineParams) (*Engine, error) {
	if p.Oracle == nil {
		return nil, fmt.Errorf("fusion engine requires an oracle")
	}
	return &Engine{
		oracle:          p.Oracle,
		chart:           p.Chart,
		minNotional:     p.MinNotionalUSD,
		confidenceFloor: p.ConfidenceFloor,
	}, nil
}

// Fuse derives the technical bias, consults the oracle and returns one
// validated Decision. Oracle transport failures and schema violations both
// collapse to a degraded hold; no error is returned for them, the cycle
// records the outcome instead. fg is nil when the sentiment feed is
// disabled or unreachable.
func (e *Engine) Fuse(ctx context.Context, snap *snapshot.Snapshot, balances market.Balances, reviews []string, fg *sentiment.Index) Decision {
	bias := ComputeBias(snap.Indicators)

	var images []oracle.Image
	if e.chart != nil {
		img, err := e.chart.Render(ctx, snap)
		if err != nil {
			logger.Warnf("fusion: chart render failed, continuing text-only: %v", err)
		} else if img.DataURI != "" {
			images = append(images, img)
		}
	}

	user, err := buildUserPrompt(snap, bias, balances, reviews, fg, len(images) > 0)
	if err != nil {
		return holdDecision("prompt build failed", err.Error(), true)
	}

	raw, err := e.oracle.Infer(ctx, Request{
		System:     systemPrompt,
		User:       user,
		Images:     images,
		ExpectJSON: true,
	})
	if err != nil {
		logger.Warnf("fusion: oracle call failed, fail-safe hold: %v", err)
		return holdDecision("oracle unavailable", err.Error(), true)
	}

	payload, err := oracle.ParseDecision(raw)
	if err != nil {
		logger.Warnf("fusion: oracle response rejected, fail-safe hold: %v", err)
		return holdDecision("oracle response failed validation", err.Error(), true)
	}

	d := normalize(Decision{
		Action:     payload.Action,
		Ratio:      payload.Ratio,
		Confidence: payload.Confidence,
		Reason:     payload.Reason,
	})
	d = e.applyConfidenceFloor(d)
	d = applySentimentTilt(d, fg)
	d = e.applyBalanceGuard(d, balances)
	logger.Infof("fusion: %s ratio=%.2f confidence=%d degraded=%v bias=[%s]",
		d.Action, d.Ratio, d.Confidence, d.Degraded, bias.Summary)
	return d
}

// applyConfidenceFloor downgrades low-conviction calls to hold, mirroring
// the execution gate the strategy was tuned with.
func (e *Engine) applyConfidenceFloor(d Decision) Decision {
	if d.Action == ActionHold || e.confidenceFloor <= 0 {
		return d
	}
	if d.Confidence < e.confidenceFloor {
		d.Note = appendNote(d.Note, fmt.Sprintf("confidence %d below floor %d", d.Confidence, e.confidenceFloor))
		d.Action = ActionHold
		d.Ratio = 0
	}
	return d
}

// applySentimentTilt scales the committed ratio by crowd sentiment:
// contrarian entries (buying fear, selling greed) get 20% more weight,
// crowd-following ones 20% less. Extremes are value <= 25 and >= 75 on the
// 0-100 index. The ratio stays in (0, 1] so the hold invariant is untouched.
func applySentimentTilt(d Decision, fg *sentiment.Index) Decision {
	if fg == nil || d.Action == ActionHold {
		return d
	}
	adjusted := d.Ratio
	switch d.Action {
	case ActionBuy:
		if fg.Value <= 25 {
			adjusted = math.Min(d.Ratio*1.2, 1)
		} else if fg.Value >= 75 {
			adjusted = d.Ratio * 0.8
		}
	case ActionSell:
		if fg.Value >= 75 {
			adjusted = math.Min(d.Ratio*1.2, 1)
		} else if fg.Value <= 25 {
			adjusted = d.Ratio * 0.8
		}
	}
	if adjusted != d.Ratio {
		d.Note = appendNote(d.Note, fmt.Sprintf("ratio %.2f tilted to %.2f on fear/greed %d (%s)",
			d.Ratio, adjusted, fg.Value, fg.Classification))
		d.Ratio = adjusted
	}
	return d
}

// applyBalanceGuard downgrades decisions the account cannot act on: selling
// with no base asset, or buying with less quote than the exchange minimum.
func (e *Engine) applyBalanceGuard(d Decision, balances market.Balances) Decision {
	switch d.Action {
	case ActionSell:
		if balances.Base <= 0 {
			d.Note = appendNote(d.Note, "sell requested with zero base balance")
			d.Action = ActionHold
			d.Ratio = 0
		}
	case ActionBuy:
		if balances.Quote < e.minNotional {
			d.Note = appendNote(d.Note, fmt.Sprintf("quote balance %.2f below min notional %.2f", balances.Quote, e.minNotional))
			d.Action = ActionHold
			d.Ratio = 0
		}
	}
	return d
}
