package binance

import (
	"context"
	"errors"
	"fmt"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"

	"voyant/internal/gateway/exchange"
)

// Binance error codes that mean the order itself was declined rather than
// the transport failing. See https://binance-docs.github.io/apidocs/spot.
var rejectionCodes = map[int64]bool{
	-1013: true, // filter failure (lot size / notional)
	-2010: true, // new order rejected (insufficient balance, etc.)
	-2011: true, // cancel rejected
}

var permanentCodes = map[int64]bool{
	-1022: true, // bad signature
	-2014: true, // bad api key format
	-2015: true, // invalid key / ip / permissions
}

// MarketBuy spends quoteAmount of the quote asset via a market order.
func (s *Source) MarketBuy(ctx context.Context, symbol string, quoteAmount float64) (exchange.Fill, error) {
	if quoteAmount <= 0 {
		return exchange.Fill{}, fmt.Errorf("quote amount must be positive")
	}
	qty := decimal.NewFromFloat(quoteAmount).RoundDown(2)
	res, err := s.client.NewCreateOrderService().
		Symbol(cleanSymbol(symbol)).
		Side(binance.SideTypeBuy).
		Type(binance.OrderTypeMarket).
		QuoteOrderQty(qty.String()).
		Do(ctx)
	if err != nil {
		return exchange.Fill{}, classifyOrderError(err)
	}
	return fillFromResponse(res), nil
}

// MarketSell sells baseAmount of the base asset via a market order.
func (s *Source) MarketSell(ctx context.Context, symbol string, baseAmount float64) (exchange.Fill, error) {
	if baseAmount <= 0 {
		return exchange.Fill{}, fmt.Errorf("base amount must be positive")
	}
	// Truncate instead of round so we never sell more than the free balance.
	qty := decimal.NewFromFloat(baseAmount).RoundDown(6)
	res, err := s.client.NewCreateOrderService().
		Symbol(cleanSymbol(symbol)).
		Side(binance.SideTypeSell).
		Type(binance.OrderTypeMarket).
		Quantity(qty.String()).
		Do(ctx)
	if err != nil {
		return exchange.Fill{}, classifyOrderError(err)
	}
	return fillFromResponse(res), nil
}

func fillFromResponse(res *binance.CreateOrderResponse) exchange.Fill {
	executed := parseFloat(res.ExecutedQuantity)
	quoteVal := parseFloat(res.CummulativeQuoteQuantity)
	avg := 0.0
	if executed > 0 {
		avg = quoteVal / executed
	}
	return exchange.Fill{
		Price:    avg,
		Amount:   executed,
		QuoteVal: quoteVal,
		OrderID:  res.OrderID,
	}
}

func classifyOrderError(err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) && rejectionCodes[apiErr.Code] {
		return fmt.Errorf("%w: %s (code=%d)", exchange.ErrRejected, apiErr.Message, apiErr.Code)
	}
	return err
}

// IsPermanent reports whether err is a credential/permission failure that no
// amount of retrying will fix.
func IsPermanent(err error) bool {
	var apiErr *common.APIError
	return errors.As(err, &apiErr) && permanentCodes[apiErr.Code]
}
