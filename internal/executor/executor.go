// Package executor turns a validated Decision into at most one market order
// and always appends exactly one ledger row per cycle, trade or not.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"voyant/internal/decision"
	"voyant/internal/gateway/exchange"
	"voyant/internal/logger"
	"voyant/internal/market"
	"voyant/internal/snapshot"
	"voyant/internal/store"
)

// Outcome statuses written to the ledger.
const (
	StatusFilled   = "filled"
	StatusRejected = "rejected"
	StatusSkipped  = "skipped"
	StatusHeld     = "held"
)

// Outcome is the execution result of one cycle.
type Outcome struct {
	Status string
	Reason string
	Fill   *exchange.Fill
}

// Ledger is the store surface the executor writes to.
type Ledger interface {
	AppendTrade(ctx context.Context, rec *store.TradeRecordModel) error
}

// BalanceSource reads the spot balances the order is sized against. The
// executor reads them itself, at execution time: the balances the oracle
// reasoned over are minutes old by the time a decision arrives.
type BalanceSource interface {
	FetchBalances(ctx context.Context, symbol string) (market.Balances, error)
}

type Engine struct {
	trader      exchange.Trader
	balances    BalanceSource
	ledger      Ledger
	minNotional decimal.Decimal
	dryRun      bool
}

type EngineParams struct {
	Trader         exchange.Trader
	Balances       BalanceSource
	Ledger         Ledger
	MinNotionalUSD float64
	DryRun         bool
}

func NewEngine(p EngineParams) (*Engine, error) {
	if p.Trader == nil && !p.DryRun {
		return nil, fmt.Errorf("executor requires a trader unless dry-run")
	}
	if p.Balances == nil {
		return nil, fmt.Errorf("executor requires a balance source")
	}
	if p.Ledger == nil {
		return nil, fmt.Errorf("executor requires a ledger")
	}
	return &Engine{
		trader:      p.Trader,
		balances:    p.Balances,
		ledger:      p.Ledger,
		minNotional: decimal.NewFromFloat(p.MinNotionalUSD),
		dryRun:      p.DryRun,
	}, nil
}

// Execute re-fetches balances, places at most one order for the decision and
// appends the ledger row. Order rejections and skips are outcomes, not
// errors; only a ledger write failure returns an error, because a cycle
// without its row breaks the one-record-per-cycle guarantee.
func (e *Engine) Execute(ctx context.Context, snap *snapshot.Snapshot, d decision.Decision) (Outcome, error) {
	balances, balErr := e.balances.FetchBalances(ctx, snap.Symbol)

	var out Outcome
	switch {
	case balErr != nil && d.Action == decision.ActionHold:
		// Holds need no sizing; record with zero balances and a note.
		out = e.run(ctx, snap, d, market.Balances{})
		out.Reason = fmt.Sprintf("%s (balance refresh failed: %v)", out.Reason, balErr)
	case balErr != nil:
		out = Outcome{
			Status: StatusSkipped,
			Reason: fmt.Sprintf("balance refresh failed, %s not sized: %v", d.Action, balErr),
		}
	default:
		out = e.run(ctx, snap, d, balances)
	}

	rec := &store.TradeRecordModel{
		ID:           uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Symbol:       snap.Symbol,
		Action:       d.Action,
		Ratio:        d.Ratio,
		Confidence:   d.Confidence,
		Reason:       d.Reason,
		Degraded:     d.Degraded,
		Note:         d.Note,
		BaseBalance:  balances.Base,
		QuoteBalance: balances.Quote,
		Price:        snap.Price,
		Status:       out.Status,
		StatusReason: out.Reason,
	}
	if out.Fill != nil {
		rec.FilledPrice = out.Fill.Price
		rec.FilledAmount = out.Fill.Amount
		rec.FilledQuote = out.Fill.QuoteVal
		rec.OrderID = out.Fill.OrderID
	}
	if err := e.ledger.AppendTrade(ctx, rec); err != nil {
		logger.Errorf("executor: LEDGER WRITE FAILED, cycle %s unrecorded: %v", rec.ID, err)
		return out, fmt.Errorf("ledger write: %w", err)
	}
	logger.Infof("executor: %s %s ratio=%.2f -> %s %s",
		snap.Symbol, d.Action, d.Ratio, out.Status, out.Reason)
	return out, nil
}

func (e *Engine) run(ctx context.Context, snap *snapshot.Snapshot, d decision.Decision, balances market.Balances) Outcome {
	switch d.Action {
	case decision.ActionBuy:
		return e.buy(ctx, snap, d, balances)
	case decision.ActionSell:
		return e.sell(ctx, snap, d, balances)
	default:
		reason := "hold"
		if d.Degraded {
			reason = "degraded hold"
		}
		return Outcome{Status: StatusHeld, Reason: reason}
	}
}

func (e *Engine) buy(ctx context.Context, snap *snapshot.Snapshot, d decision.Decision, balances market.Balances) Outcome {
	quote := decimal.NewFromFloat(balances.Quote).
		Mul(decimal.NewFromFloat(d.Ratio)).
		RoundDown(2)
	if quote.LessThan(e.minNotional) {
		return Outcome{
			Status: StatusSkipped,
			Reason: fmt.Sprintf("buy notional %s below exchange minimum %s", quote, e.minNotional),
		}
	}
	if e.dryRun {
		return e.paperFill(snap, quote.InexactFloat64()/snap.Price, quote.InexactFloat64())
	}
	fill, err := e.trader.MarketBuy(ctx, snap.Symbol, quote.InexactFloat64())
	if err != nil {
		return rejection("buy", err)
	}
	return Outcome{Status: StatusFilled, Reason: "market buy filled", Fill: &fill}
}

func (e *Engine) sell(ctx context.Context, snap *snapshot.Snapshot, d decision.Decision, balances market.Balances) Outcome {
	amount := decimal.NewFromFloat(balances.Base).
		Mul(decimal.NewFromFloat(d.Ratio)).
		RoundDown(6)
	notional := amount.Mul(decimal.NewFromFloat(snap.Price))
	if notional.LessThan(e.minNotional) {
		return Outcome{
			Status: StatusSkipped,
			Reason: fmt.Sprintf("sell notional %s below exchange minimum %s", notional.RoundDown(2), e.minNotional),
		}
	}
	if e.dryRun {
		return e.paperFill(snap, amount.InexactFloat64(), notional.InexactFloat64())
	}
	fill, err := e.trader.MarketSell(ctx, snap.Symbol, amount.InexactFloat64())
	if err != nil {
		return rejection("sell", err)
	}
	return Outcome{Status: StatusFilled, Reason: "market sell filled", Fill: &fill}
}

// paperFill simulates an immediate fill at the snapshot price for dry runs.
func (e *Engine) paperFill(snap *snapshot.Snapshot, amount, quote float64) Outcome {
	return Outcome{
		Status: StatusFilled,
		Reason: "dry-run paper fill",
		Fill: &exchange.Fill{
			Price:    snap.Price,
			Amount:   amount,
			QuoteVal: quote,
		},
	}
}

func rejection(side string, err error) Outcome {
	if errors.Is(err, exchange.ErrRejected) {
		return Outcome{Status: StatusRejected, Reason: fmt.Sprintf("%s rejected: %v", side, err)}
	}
	return Outcome{Status: StatusRejected, Reason: fmt.Sprintf("%s failed: %v", side, err)}
}
