package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecisionAcceptsFencedOutput(t *testing.T) {
	raw := "Here is my call.\n```json\n{\"action\": \"buy\", \"ratio\": 0.35, \"confidence\": 82, \"reason\": \"oversold bounce\"}\n```"
	p, err := ParseDecision(raw)
	require.NoError(t, err)
	assert.Equal(t, "buy", p.Action)
	assert.InDelta(t, 0.35, p.Ratio, 1e-9)
	assert.Equal(t, 82, p.Confidence)
	assert.Equal(t, "oversold bounce", p.Reason)
}

func TestParseDecisionRejectsUnknownActionToken(t *testing.T) {
	_, err := ParseDecision(`{"action": "purchase", "ratio": 0.5, "reason": "x"}`)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseDecisionRejectsRatioOutOfRange(t *testing.T) {
	_, err := ParseDecision(`{"action": "buy", "ratio": 1.5, "reason": "x"}`)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseDecisionRejectsProseOnly(t *testing.T) {
	_, err := ParseDecision("I think the market looks bullish today.")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseDecisionRejectsMissingReason(t *testing.T) {
	_, err := ParseDecision(`{"action": "hold", "ratio": 0}`)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseReflection(t *testing.T) {
	raw := `{"narrative": "chop all day", "improvements": ["size down", "respect the trend"]}`
	p, err := ParseReflection(raw)
	require.NoError(t, err)
	assert.Equal(t, "chop all day", p.Narrative)
	assert.Equal(t, []string{"size down", "respect the trend"}, p.Improvements)
}

func TestParseReflectionRejectsMissingImprovements(t *testing.T) {
	_, err := ParseReflection(`{"narrative": "fine"}`)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestExtractJSONObjectSkipsBracesInStrings(t *testing.T) {
	raw := `note: {"reason": "pattern {wedge} forming", "action": "hold", "ratio": 0}`
	obj, ok := ExtractJSONObject(raw)
	require.True(t, ok)
	assert.Contains(t, obj, "wedge")
	p, err := ParseDecision(obj)
	require.NoError(t, err)
	assert.Equal(t, "hold", p.Action)
}
