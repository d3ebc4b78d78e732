package decision

import "strings"

const (
	ActionBuy  = "buy"
	ActionSell = "sell"
	ActionHold = "hold"
)

// Decision is the single structured output of one fusion pass.
// Invariants: Ratio ∈ [0,1]; Ratio is 0 whenever Action is hold; Ratio > 0
// only for buy/sell. normalize enforces them before the value leaves this
// package.
type Decision struct {
	Action     string  `json:"action"`
	Ratio      float64 `json:"ratio"`
	Confidence int     `json:"confidence"`
	Reason     string  `json:"reason"`

	// Degraded marks a fail-safe hold produced because the oracle response
	// was unusable. Note explains any degrade or downgrade applied.
	Degraded bool   `json:"degraded,omitempty"`
	Note     string `json:"note,omitempty"`
}

func normalize(d Decision) Decision {
	d.Action = strings.ToLower(strings.TrimSpace(d.Action))
	if d.Ratio < 0 {
		d.Ratio = 0
	}
	if d.Ratio > 1 {
		d.Ratio = 1
	}
	switch d.Action {
	case ActionBuy, ActionSell:
		if d.Ratio == 0 {
			d.Action = ActionHold
			d.Note = appendNote(d.Note, "zero ratio, treated as hold")
		}
	default:
		d.Action = ActionHold
	}
	if d.Action == ActionHold {
		d.Ratio = 0
	}
	return d
}

// holdDecision builds a fail-safe hold.
func holdDecision(reason, note string, degraded bool) Decision {
	return Decision{
		Action:   ActionHold,
		Ratio:    0,
		Reason:   reason,
		Degraded: degraded,
		Note:     note,
	}
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "; " + note
}
