package engine

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ParseClassification normalizes raw oracle output into a classification
// record. It is total: on any structural failure it returns a degraded
// record (attack=false, category=unknown, confidence=0) and ok=false, so
// the decision policy always receives well-formed input. ok=false is an
// observability signal, not an error.
func ParseClassification(raw string) (ClassificationRecord, bool) {
	text := stripFence(strings.TrimSpace(raw))

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return degradedRecord("invalid JSON: " + err.Error()), false
	}

	rec := ClassificationRecord{Category: CategoryNone}

	switch v := payload["attack"].(type) {
	case nil:
		// absent defaults to false
	case bool:
		rec.Attack = v
	default:
		return degradedRecord("attack field is not a boolean"), false
	}

	if v, ok := payload["type"].(string); ok {
		rec.Category = ParseCategory(v)
	} else if payload["type"] != nil {
		rec.Category = CategoryUnknown
	}

	conf, ok := parseConfidence(payload["confidence"])
	if !ok {
		return degradedRecord("confidence missing or non-numeric"), false
	}
	rec.Confidence = clamp01(conf)

	if v, ok := payload["reason"].(string); ok {
		rec.Explanation = v
	}

	return rec, true
}

// stripFence removes a surrounding markdown code fence and an optional json
// language tag. Text without a leading fence passes through untouched.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	parts := strings.SplitN(s, "```", 3)
	if len(parts) < 2 {
		return s
	}
	inner := strings.TrimPrefix(parts[1], "json")
	return strings.TrimSpace(inner)
}

// parseConfidence accepts a JSON number or a numeric string.
func parseConfidence(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func degradedRecord(detail string) ClassificationRecord {
	return ClassificationRecord{
		Attack:      false,
		Category:    CategoryUnknown,
		Confidence:  0,
		Explanation: "parse error: " + detail,
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
