package market

// BookLevel is one price level of the order book.
type BookLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderBook carries the top-of-book aggregates a decision cycle looks at.
type OrderBook struct {
	AsOf         int64       `json:"as_of"`
	Bids         []BookLevel `json:"bids"`
	Asks         []BookLevel `json:"asks"`
	TotalBidSize float64     `json:"total_bid_size"`
	TotalAskSize float64     `json:"total_ask_size"`
}

// Balances is the spot account state for the traded pair.
type Balances struct {
	Base  float64 `json:"base"`  // e.g. BTC
	Quote float64 `json:"quote"` // e.g. USDT
}
