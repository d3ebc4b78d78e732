package oracle

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// ErrMalformed marks a response that failed schema validation. Callers fall
// back to a safe default (hold / template narrative); they never retry the
// oracle on this error.
var ErrMalformed = errors.New("oracle response malformed")

// DecisionPayload is the validated shape of a decision-cycle response.
type DecisionPayload struct {
	Action     string  `json:"action"`
	Ratio      float64 `json:"ratio"`
	Confidence int     `json:"confidence"`
	Reason     string  `json:"reason"`
}

// ReflectionPayload is the validated shape of a reflection-cycle response.
type ReflectionPayload struct {
	Narrative    string   `json:"narrative"`
	Improvements []string `json:"improvements"`
}

const decisionSchemaSrc = `{
	"type": "object",
	"required": ["action", "ratio", "reason"],
	"properties": {
		"action": {"type": "string", "enum": ["buy", "sell", "hold"]},
		"ratio": {"type": "number", "minimum": 0, "maximum": 1},
		"confidence": {"type": "integer", "minimum": 0, "maximum": 100},
		"reason": {"type": "string", "minLength": 1}
	}
}`

const reflectionSchemaSrc = `{
	"type": "object",
	"required": ["narrative", "improvements"],
	"properties": {
		"narrative": {"type": "string", "minLength": 1},
		"improvements": {
			"type": "array",
			"items": {"type": "string"}
		}
	}
}`

var (
	decisionSchema   = jsonschema.MustCompileString("decision.json", decisionSchemaSrc)
	reflectionSchema = jsonschema.MustCompileString("reflection.json", reflectionSchemaSrc)
)

// ParseDecision extracts and validates a decision payload from raw model
// output. Every failure path wraps ErrMalformed; an unvalidated shape never
// leaves this function.
func ParseDecision(raw string) (DecisionPayload, error) {
	obj, err := extractValidated(raw, decisionSchema)
	if err != nil {
		return DecisionPayload{}, err
	}
	parsed := gjson.Parse(obj)
	return DecisionPayload{
		Action:     strings.ToLower(strings.TrimSpace(parsed.Get("action").String())),
		Ratio:      parsed.Get("ratio").Float(),
		Confidence: int(parsed.Get("confidence").Int()),
		Reason:     strings.TrimSpace(parsed.Get("reason").String()),
	}, nil
}

// ParseReflection extracts and validates a reflection payload.
func ParseReflection(raw string) (ReflectionPayload, error) {
	obj, err := extractValidated(raw, reflectionSchema)
	if err != nil {
		return ReflectionPayload{}, err
	}
	parsed := gjson.Parse(obj)
	out := ReflectionPayload{
		Narrative: strings.TrimSpace(parsed.Get("narrative").String()),
	}
	parsed.Get("improvements").ForEach(func(_, v gjson.Result) bool {
		if s := strings.TrimSpace(v.String()); s != "" {
			out.Improvements = append(out.Improvements, s)
		}
		return true
	})
	return out, nil
}

func extractValidated(raw string, schema *jsonschema.Schema) (string, error) {
	obj, ok := ExtractJSONObject(raw)
	if !ok {
		return "", fmt.Errorf("%w: no JSON object in response", ErrMalformed)
	}
	if !gjson.Valid(obj) {
		return "", fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	var doc any
	if err := json.Unmarshal([]byte(obj), &doc); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := schema.Validate(doc); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return obj, nil
}
