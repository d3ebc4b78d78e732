package decision

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"voyant/internal/gateway/sentiment"
	"voyant/internal/market"
	"voyant/internal/snapshot"
)

const systemPrompt = `You are a cryptocurrency spot trading analyst. You receive a market snapshot
(price, technical indicators, order book, recent candles), the account state,
the crowd fear & greed index and recent self-review notes. Respond with
exactly one JSON object:
{"action": "buy"|"sell"|"hold", "ratio": 0..1, "confidence": 0..100, "reason": "..."}
ratio is the fraction of the available balance to commit and must be 0 for hold.
Do not add any text outside the JSON object.`

// promptContext is the JSON document handed to the oracle for a decision.
type promptContext struct {
	Symbol        string             `json:"symbol"`
	AsOf          string             `json:"as_of"`
	Price         float64            `json:"price"`
	Bias          Bias               `json:"technical_bias"`
	Indicators    map[string]float64 `json:"indicators"`
	OrderBook     bookSummary        `json:"order_book"`
	RecentClose   string             `json:"recent_closes_csv"`
	Account       accountSummary     `json:"account"`
	FearGreed     *fearGreedSummary  `json:"fear_greed,omitempty"`
	PastReviews   []string           `json:"past_reviews,omitempty"`
	ChartAttached bool               `json:"chart_attached"`
}

type fearGreedSummary struct {
	Value          int     `json:"value"`
	Classification string  `json:"classification"`
	WeekAverage    float64 `json:"week_average"`
	Trend          string  `json:"trend"`
}

type bookSummary struct {
	BestBid      float64 `json:"best_bid"`
	BestAsk      float64 `json:"best_ask"`
	TotalBidSize float64 `json:"total_bid_size"`
	TotalAskSize float64 `json:"total_ask_size"`
}

type accountSummary struct {
	Base  float64 `json:"base_balance"`
	Quote float64 `json:"quote_balance"`
}

// buildUserPrompt renders the decision request. Indicator series are
// flattened to their latest values; the candle tail goes in as a compact
// CSV block, the format models read most reliably.
func buildUserPrompt(snap *snapshot.Snapshot, bias Bias, balances market.Balances, reviews []string, fg *sentiment.Index, chartAttached bool) (string, error) {
	indicators := make(map[string]float64, len(snap.Indicators.Values))
	for name, v := range snap.Indicators.Values {
		indicators[name] = v.Latest
	}
	pc := promptContext{
		Symbol:        snap.Symbol,
		AsOf:          snap.AsOf.Format(time.RFC3339),
		Price:         snap.Price,
		Bias:          bias,
		Indicators:    indicators,
		OrderBook:     summarizeBook(snap.Book),
		RecentClose:   candlesCSV(snap.Candles, 24),
		Account:       accountSummary{Base: balances.Base, Quote: balances.Quote},
		PastReviews:   reviews,
		ChartAttached: chartAttached,
	}
	if fg != nil {
		pc.FearGreed = &fearGreedSummary{
			Value:          fg.Value,
			Classification: fg.Classification,
			WeekAverage:    fg.Average,
			Trend:          fg.Trend,
		}
	}
	body, err := json.MarshalIndent(pc, "", "  ")
	if err != nil {
		return "", err
	}
	return "Market data:\n" + string(body), nil
}

func summarizeBook(book market.OrderBook) bookSummary {
	out := bookSummary{TotalBidSize: book.TotalBidSize, TotalAskSize: book.TotalAskSize}
	if len(book.Bids) > 0 {
		out.BestBid = book.Bids[0].Price
	}
	if len(book.Asks) > 0 {
		out.BestAsk = book.Asks[0].Price
	}
	return out
}

func candlesCSV(candles []market.Candle, tail int) string {
	if len(candles) > tail {
		candles = candles[len(candles)-tail:]
	}
	var sb strings.Builder
	sb.WriteString("open_time,open,high,low,close,volume\n")
	for _, c := range candles {
		ts := time.UnixMilli(c.OpenTime).UTC().Format("2006-01-02T15:04")
		fmt.Fprintf(&sb, "%s,%.4f,%.4f,%.4f,%.4f,%.2f\n", ts, c.Open, c.High, c.Low, c.Close, c.Volume)
	}
	return sb.String()
}
