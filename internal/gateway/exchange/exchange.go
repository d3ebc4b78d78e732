// Package exchange defines the order-execution collaborator contract.
package exchange

import (
	"context"
	"errors"
)

// ErrRejected marks an order the exchange declined for business reasons
// (insufficient balance, filters, halted symbol). Callers treat it as a
// normal outcome, not a fault.
var ErrRejected = errors.New("exchange rejected order")

// Fill is the realized result of a market order.
type Fill struct {
	Price    float64 // average fill price
	Amount   float64 // executed base quantity
	QuoteVal float64 // executed quote value
	OrderID  int64
}

// Trader places market orders. At most one call is made per decision cycle.
type Trader interface {
	// MarketBuy spends quoteAmount of the quote asset at market.
	MarketBuy(ctx context.Context, symbol string, quoteAmount float64) (Fill, error)

	// MarketSell sells baseAmount of the base asset at market.
	MarketSell(ctx context.Context, symbol string, baseAmount float64) (Fill, error)
}
