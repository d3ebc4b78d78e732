package decision

import (
	"fmt"
	"strings"

	"voyant/internal/analysis/indicator"
)

// Bias is the deterministic technical read derived before the oracle is
// consulted. It is a pure function of the indicator report, so the same
// snapshot always yields the same bias text.
type Bias struct {
	Momentum  string `json:"momentum"`   // oversold | overbought | neutral
	Trend     string `json:"trend"`      // up | down | sideways
	BandState string `json:"band_state"` // below_lower | inside | above_upper
	MACDState string `json:"macd_state"` // bullish | bearish | flat
	Summary   string `json:"summary"`
}

// ComputeBias reads momentum from RSI and %B, trend from the SMA5/SMA20
// relationship confirmed by the MACD histogram sign.
func ComputeBias(rep indicator.Report) Bias {
	b := Bias{Momentum: "neutral", Trend: "sideways", BandState: "inside", MACDState: "flat"}

	if rsi, ok := rep.Latest("rsi"); ok {
		switch {
		case rsi <= 30:
			b.Momentum = "oversold"
		case rsi >= 70:
			b.Momentum = "overbought"
		}
	}
	if v, ok := rep.Values["bb_pband"]; ok && v.State != "" {
		b.BandState = v.State
	}
	if v, ok := rep.Values["macd"]; ok && v.State != "" {
		b.MACDState = v.State
	}

	sma5, ok5 := rep.Latest("sma5")
	sma20, ok20 := rep.Latest("sma20")
	if ok5 && ok20 && sma20 > 0 {
		spread := (sma5 - sma20) / sma20
		switch {
		case spread > 0.001 && b.MACDState != "bearish":
			b.Trend = "up"
		case spread < -0.001 && b.MACDState != "bullish":
			b.Trend = "down"
		}
	}

	parts := []string{
		fmt.Sprintf("momentum=%s", b.Momentum),
		fmt.Sprintf("trend=%s", b.Trend),
		fmt.Sprintf("bollinger=%s", b.BandState),
		fmt.Sprintf("macd=%s", b.MACDState),
	}
	b.Summary = strings.Join(parts, " ")
	return b
}
