// Package reflection writes a daily self-review of the ledger so the next
// day's decisions can learn from the last day's mistakes.
package reflection

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"voyant/internal/logger"
	"voyant/internal/oracle"
	"voyant/internal/store"
)

const systemPrompt = `You are reviewing one day of an automated crypto spot trading agent.
You receive the day's ledger rows and a success metric. Respond with exactly
one JSON object: {"narrative": "...", "improvements": ["...", ...]}
The narrative assesses what went well and what did not; improvements are
short, concrete adjustments for the next day. No text outside the JSON.`

// Inferencer is the oracle seam, same shape the fusion engine uses.
type Inferencer interface {
	Infer(ctx context.Context, req oracle.Request) (string, error)
}

// Archive is the store surface the generator reads and writes.
type Archive interface {
	TradesInRange(ctx context.Context, start, end time.Time) ([]store.TradeRecordModel, error)
	AppendReflection(ctx context.Context, ref *store.ReflectionModel) error
}

type Generator struct {
	oracle Inferencer
	store  Archive
}

type GeneratorParams struct {
	Oracle Inferencer
	Store  Archive
}

func NewGenerator(p GeneratorParams) (*Generator, error) {
	if p.Oracle == nil || p.Store == nil {
		return nil, fmt.Errorf("reflection generator requires oracle and store")
	}
	return &Generator{oracle: p.Oracle, store: p.Store}, nil
}

// Generate reviews the window [start, end) and appends one reflection row.
// An empty window produces an inactivity entry without consulting the oracle;
// an unusable oracle response produces a degraded template narrative. Both
// still append, the archive has one entry per window either way.
func (g *Generator) Generate(ctx context.Context, start, end time.Time) (*store.ReflectionModel, error) {
	trades, err := g.store.TradesInRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("reflection window query: %w", err)
	}

	ref := &store.ReflectionModel{
		ID:          uuid.NewString(),
		WindowStart: start,
		WindowEnd:   end,
		TradeCount:  len(trades),
	}

	if len(trades) == 0 {
		ref.Narrative = fmt.Sprintf("No decision cycles recorded between %s and %s.",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
		ref.Improvements = datatypes.JSON(`[]`)
		if err := g.store.AppendReflection(ctx, ref); err != nil {
			return nil, fmt.Errorf("append reflection: %w", err)
		}
		logger.Infof("reflection: empty window %s, wrote inactivity entry", start.Format("2006-01-02"))
		return ref, nil
	}

	ref.SuccessMetric = SuccessMetric(trades, finalPrice(trades))

	payload, err := g.review(ctx, trades, ref.SuccessMetric)
	if err != nil {
		logger.Warnf("reflection: oracle review unusable, writing template entry: %v", err)
		ref.Degraded = true
		ref.Narrative = fmt.Sprintf(
			"Automated review unavailable (%v). %d cycles recorded, success metric %.2f.",
			err, len(trades), ref.SuccessMetric)
		ref.Improvements = datatypes.JSON(`[]`)
	} else {
		ref.Narrative = payload.Narrative
		imp, merr := json.Marshal(payload.Improvements)
		if merr != nil {
			imp = []byte(`[]`)
		}
		ref.Improvements = datatypes.JSON(imp)
	}

	if err := g.store.AppendReflection(ctx, ref); err != nil {
		return nil, fmt.Errorf("append reflection: %w", err)
	}
	logger.Infof("reflection: window %s reviewed, %d trades, metric %.2f, degraded=%v",
		start.Format("2006-01-02"), len(trades), ref.SuccessMetric, ref.Degraded)
	return ref, nil
}

func (g *Generator) review(ctx context.Context, trades []store.TradeRecordModel, metric float64) (oracle.ReflectionPayload, error) {
	raw, err := g.oracle.Infer(ctx, oracle.Request{
		System:     systemPrompt,
		User:       buildReviewPrompt(trades, metric),
		ExpectJSON: true,
	})
	if err != nil {
		return oracle.ReflectionPayload{}, err
	}
	return oracle.ParseReflection(raw)
}

// finalPrice anchors the last fill's score: the snapshot price of the last
// cycle in the window. Only ledger data goes into the metric, so replaying
// the same window always yields the same number.
func finalPrice(trades []store.TradeRecordModel) float64 {
	return trades[len(trades)-1].Price
}

func buildReviewPrompt(trades []store.TradeRecordModel, metric float64) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Success metric: %.2f over %d cycles.\n", metric, len(trades))
	sb.WriteString("Ledger (time,action,ratio,confidence,status,price,reason):\n")
	for _, tr := range trades {
		fmt.Fprintf(&sb, "%s,%s,%.2f,%d,%s,%.2f,%q\n",
			tr.Timestamp.Format("15:04"), tr.Action, tr.Ratio, tr.Confidence,
			tr.Status, tr.Price, tr.Reason)
	}
	return sb.String()
}
