package engine

import (
	"encoding/json"
	"fmt"
	"time"
)

// Category classifies the kind of attack the oracle reported.
type Category int

const (
	CategoryNone       Category = iota + 1 // none
	CategoryExtraction                     // prompt_extraction
	CategoryInjection                      // prompt_injection
	CategoryJailbreak                      // jailbreak
	CategoryOverride                       // instruction_override
	CategoryRoleplay                       // roleplay_manipulation
	CategoryUnknown                        // unknown
)

// String returns the wire name (used in API responses and storage).
func (c Category) String() string {
	switch c {
	case CategoryNone:
		return "none"
	case CategoryExtraction:
		return "prompt_extraction"
	case CategoryInjection:
		return "prompt_injection"
	case CategoryJailbreak:
		return "jailbreak"
	case CategoryOverride:
		return "instruction_override"
	case CategoryRoleplay:
		return "roleplay_manipulation"
	default:
		return "unknown"
	}
}

// ParseCategory maps a wire name back to a Category. Strings outside the
// fixed table map to CategoryUnknown, never an error.
func ParseCategory(s string) Category {
	switch s {
	case "none":
		return CategoryNone
	case "prompt_extraction":
		return CategoryExtraction
	case "prompt_injection":
		return CategoryInjection
	case "jailbreak":
		return CategoryJailbreak
	case "instruction_override":
		return CategoryOverride
	case "roleplay_manipulation":
		return CategoryRoleplay
	default:
		return CategoryUnknown
	}
}

// MarshalJSON encodes the category as its wire name.
func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a wire name; unrecognized names become unknown.
func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("Category.UnmarshalJSON: %w", err)
	}
	*c = ParseCategory(s)
	return nil
}

// ClassificationRecord is the oracle's output normalized by the parser.
// Immutable once built; folded into a Verdict by the decision policy.
type ClassificationRecord struct {
	Attack      bool
	Category    Category
	Confidence  float64
	Explanation string
}

// Verdict is the outward-facing decision result. JSON field names are the
// service's wire format.
type Verdict struct {
	Safe           bool     `json:"is_safe"`
	AttackDetected bool     `json:"attack_detected"`
	Category       Category `json:"attack_type"`
	Confidence     float64  `json:"confidence"`
	Explanation    string   `json:"reason,omitempty"`
	Flagged        bool     `json:"flagged"`
	FromCache      bool     `json:"cached"`
}

// ShouldBlock reports a high-confidence attack the caller should reject.
func (v *Verdict) ShouldBlock() bool {
	return v.AttackDetected && v.Confidence >= 0.8
}

// ShouldFlag reports a mid-confidence attack: allow, but surface for review.
func (v *Verdict) ShouldFlag() bool {
	return v.AttackDetected && v.Confidence >= 0.4 && v.Confidence < 0.8
}

// AttackLogRecord is one durable fact row about a detected attack. Preview
// holds a bounded prefix of the offending input, never the full text.
type AttackLogRecord struct {
	Timestamp   time.Time
	Fingerprint string
	Preview     string
	Category    Category
	Confidence  float64
	Explanation string
}
