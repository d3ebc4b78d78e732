package indicator

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"voyant/internal/market"
)

// MinBars is the minimum candle count required before any indicator is
// computed. MACD(12,26,9) is the slowest consumer: 26 bars to seed the slow
// EMA plus 9 for the signal line.
const MinBars = 35

// Value holds one indicator's latest reading, its sanitized series and a
// coarse state label for prompt rendering.
type Value struct {
	Latest float64   `json:"latest"`
	Series []float64 `json:"series,omitempty"`
	State  string    `json:"state,omitempty"`
	Note   string    `json:"note,omitempty"`
}

// Report aggregates every indicator computed from one candle series. All
// values share the same as-of point; a Report is never assembled from mixed
// fetches.
type Report struct {
	Symbol   string           `json:"symbol"`
	Interval string           `json:"interval"`
	Count    int              `json:"count"`
	Values   map[string]Value `json:"values"`
}

// Compute derives the full indicator set from a single candle series:
// RSI(14), MACD(12,26,9), Bollinger(20,2), SMA 5/20/60/120 and ATR(14).
func Compute(symbol, interval string, candles []market.Candle) (Report, error) {
	rep := Report{
		Symbol:   symbol,
		Interval: interval,
		Count:    len(candles),
		Values:   make(map[string]Value),
	}
	if len(candles) < MinBars {
		return rep, fmt.Errorf("need at least %d candles, have %d", MinBars, len(candles))
	}
	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}
	lastClose := closes[len(closes)-1]

	// RSI
	rsiSeries := sanitizeSeries(talib.Rsi(closes, 14))
	rsiVal := lastValid(rsiSeries)
	rsiState := "neutral"
	switch {
	case rsiVal >= 70:
		rsiState = "overbought"
	case rsiVal <= 30:
		rsiState = "oversold"
	}
	rep.Values["rsi"] = Value{
		Latest: rsiVal,
		Series: rsiSeries,
		State:  rsiState,
		Note:   "period=14 thresholds=30/70",
	}

	// MACD
	macd, signal, hist := talib.Macd(closes, 12, 26, 9)
	macdSeries := sanitizeSeries(macd)
	signalSeries := sanitizeSeries(signal)
	histSeries := sanitizeSeries(hist)
	histVal := lastValid(histSeries)
	macdState := "flat"
	switch {
	case histVal > 0:
		macdState = "bullish"
	case histVal < 0:
		macdState = "bearish"
	}
	rep.Values["macd"] = Value{
		Latest: lastValid(macdSeries),
		Series: histSeries,
		State:  macdState,
		Note:   fmt.Sprintf("signal=%.4f hist=%.4f", lastValid(signalSeries), histVal),
	}
	rep.Values["macd_signal"] = Value{Latest: lastValid(signalSeries), Note: "fast=12 slow=26 signal=9"}
	rep.Values["macd_hist"] = Value{Latest: histVal, State: macdState}

	// Bollinger bands + %B position inside the band
	upper, middle, lower := talib.BBands(closes, 20, 2, 2, talib.SMA)
	upSeries := sanitizeSeries(upper)
	midSeries := sanitizeSeries(middle)
	lowSeries := sanitizeSeries(lower)
	upVal, lowVal := lastValid(upSeries), lastValid(lowSeries)
	pband := 0.5
	if upVal > lowVal {
		pband = (lastClose - lowVal) / (upVal - lowVal)
	}
	bbState := "inside"
	switch {
	case pband >= 1:
		bbState = "above_upper"
	case pband <= 0:
		bbState = "below_lower"
	}
	rep.Values["bb_upper"] = Value{Latest: upVal, Series: upSeries}
	rep.Values["bb_middle"] = Value{Latest: lastValid(midSeries), Series: midSeries}
	rep.Values["bb_lower"] = Value{Latest: lowVal, Series: lowSeries}
	rep.Values["bb_pband"] = Value{Latest: round4(pband), State: bbState, Note: "period=20 dev=2"}

	// Moving averages
	for _, period := range []int{5, 20, 60, 120} {
		key := fmt.Sprintf("sma%d", period)
		if len(closes) < period {
			rep.Values[key] = Value{State: "insufficient", Note: fmt.Sprintf("period=%d", period)}
			continue
		}
		series := sanitizeSeries(talib.Sma(closes, period))
		val := lastValid(series)
		rep.Values[key] = Value{
			Latest: val,
			Series: series,
			State:  relativeState(lastClose, val),
			Note:   fmt.Sprintf("period=%d", period),
		}
	}

	// ATR
	atrSeries := sanitizeSeries(talib.Atr(highs, lows, closes, 14))
	rep.Values["atr"] = Value{
		Latest: lastValid(atrSeries),
		Series: atrSeries,
		State:  "volatility",
		Note:   "period=14",
	}

	return rep, nil
}

// Latest returns the latest value for a named indicator, or (0, false).
func (r Report) Latest(name string) (float64, bool) {
	v, ok := r.Values[name]
	if !ok {
		return 0, false
	}
	return v.Latest, true
}

func sanitizeSeries(src []float64) []float64 {
	out := make([]float64, 0, len(src))
	for _, v := range src {
		if math.IsNaN(v) || math.IsInf(v, 0) || almostZero(v) {
			continue
		}
		out = append(out, round4(v))
	}
	return out
}

func almostZero(v float64) bool {
	return math.Abs(v) <= 1e-9
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) && !math.IsInf(series[i], 0) {
			return series[i]
		}
	}
	return 0
}

func relativeState(price, ref float64) string {
	if ref == 0 {
		return "unknown"
	}
	switch {
	case price > ref*1.002:
		return "above"
	case price < ref*0.998:
		return "below"
	default:
		return "touch"
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
