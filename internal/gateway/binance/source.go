// Package binance implements the market-data and execution collaborators on
// the Binance spot REST API.
package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"

	"voyant/internal/market"
)

const maxKlineLimit = 1000

// Source implements market.Source over a spot REST client.
type Source struct {
	client *binance.Client
}

type Config struct {
	APIKey      string
	APISecret   string
	RESTBaseURL string
	HTTPTimeout time.Duration
}

func New(cfg Config) *Source {
	client := binance.NewClient(cfg.APIKey, cfg.APISecret)
	if base := strings.TrimSpace(cfg.RESTBaseURL); base != "" {
		client.BaseURL = base
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client.HTTPClient = &http.Client{Timeout: timeout}
	return &Source{client: client}
}

func (s *Source) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	symbol = cleanSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > maxKlineLimit {
		limit = maxKlineLimit
	}
	// Fetch one extra bar; the newest kline is still forming and is dropped
	// so indicators never see an unclosed candle.
	kls, err := s.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit + 1).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UnixMilli()
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil || kl.CloseTime > now {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
			Trades:    kl.TradeNum,
		})
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *Source) FetchOrderBook(ctx context.Context, symbol string, depth int) (market.OrderBook, error) {
	if depth <= 0 {
		depth = 5
	}
	res, err := s.client.NewDepthService().Symbol(cleanSymbol(symbol)).Limit(depth).Do(ctx)
	if err != nil {
		return market.OrderBook{}, err
	}
	book := market.OrderBook{AsOf: time.Now().UnixMilli()}
	for _, bid := range res.Bids {
		lvl := market.BookLevel{Price: parseFloat(bid.Price), Size: parseFloat(bid.Quantity)}
		book.Bids = append(book.Bids, lvl)
		book.TotalBidSize += lvl.Size
	}
	for _, ask := range res.Asks {
		lvl := market.BookLevel{Price: parseFloat(ask.Price), Size: parseFloat(ask.Quantity)}
		book.Asks = append(book.Asks, lvl)
		book.TotalAskSize += lvl.Size
	}
	return book, nil
}

func (s *Source) FetchBalances(ctx context.Context, symbol string) (market.Balances, error) {
	base, quote, err := SplitSymbol(symbol)
	if err != nil {
		return market.Balances{}, err
	}
	acct, err := s.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return market.Balances{}, err
	}
	var out market.Balances
	for _, bal := range acct.Balances {
		switch strings.ToUpper(bal.Asset) {
		case base:
			out.Base = parseFloat(bal.Free)
		case quote:
			out.Quote = parseFloat(bal.Free)
		}
	}
	return out, nil
}

func (s *Source) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	prices, err := s.client.NewListPricesService().Symbol(cleanSymbol(symbol)).Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("no price returned for %s", symbol)
	}
	return parseFloat(prices[0].Price), nil
}

var quoteAssets = []string{"USDT", "FDUSD", "USDC", "TUSD", "BUSD", "BTC", "ETH", "BNB"}

// SplitSymbol splits a spot pair like BTCUSDT into base and quote assets.
func SplitSymbol(symbol string) (base, quote string, err error) {
	sym := cleanSymbol(symbol)
	for _, q := range quoteAssets {
		if strings.HasSuffix(sym, q) && len(sym) > len(q) {
			return sym[:len(sym)-len(q)], q, nil
		}
	}
	return "", "", fmt.Errorf("cannot derive base/quote from symbol %q", symbol)
}

func cleanSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(symbol), "/", ""))
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
