package market

import "context"

// Source is the market-data collaborator. Implementations talk to one
// exchange; every call is synchronous and carries the caller's deadline.
type Source interface {
	// FetchCandles returns up to limit closed candles ordered oldest to
	// newest for the given interval (e.g. "1h").
	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)

	// FetchOrderBook returns the top depth levels per side.
	FetchOrderBook(ctx context.Context, symbol string, depth int) (OrderBook, error)

	// FetchBalances returns free balances for the pair's base and quote assets.
	FetchBalances(ctx context.Context, symbol string) (Balances, error)

	// LatestPrice returns the current ticker price.
	LatestPrice(ctx context.Context, symbol string) (float64, error)
}
