package reflection

import "voyant/internal/store"

// SuccessMetric scores the filled trades of a window: a buy is favorable when
// the next observed price is above its fill price, a sell when below. Each
// trade is judged against the next filled trade's price; the last one against
// finalPrice. Holds, skips and rejections are not scored. Returns the
// favorable fraction, or 0 when nothing was scorable.
func SuccessMetric(trades []store.TradeRecordModel, finalPrice float64) float64 {
	var fills []store.TradeRecordModel
	for _, tr := range trades {
		if tr.Status == "filled" && tr.FilledPrice > 0 {
			fills = append(fills, tr)
		}
	}
	if len(fills) == 0 {
		return 0
	}

	favorable := 0
	for i, tr := range fills {
		next := finalPrice
		if i+1 < len(fills) {
			next = fills[i+1].FilledPrice
		}
		switch tr.Action {
		case "buy":
			if next > tr.FilledPrice {
				favorable++
			}
		case "sell":
			if next < tr.FilledPrice {
				favorable++
			}
		}
	}
	return float64(favorable) / float64(len(fills))
}
