package engine

// DecisionConfig holds the confidence thresholds separating the three
// verdict bands. The band structure is fixed: at or above BlockThreshold an
// attack blocks, in [FlagThreshold, BlockThreshold) it is allowed but
// flagged for review, below FlagThreshold it passes silently as noise.
type DecisionConfig struct {
	BlockThreshold float64
	FlagThreshold  float64
}

// DefaultDecisionConfig returns the stock thresholds.
func DefaultDecisionConfig() DecisionConfig {
	return DecisionConfig{
		BlockThreshold: 0.8,
		FlagThreshold:  0.4,
	}
}

// Decide maps a classification record onto the final verdict. Pure: no side
// effects, no hidden state, FromCache always false on a fresh verdict.
func (dc DecisionConfig) Decide(rec ClassificationRecord) Verdict {
	v := Verdict{
		Category:    rec.Category,
		Confidence:  rec.Confidence,
		Explanation: rec.Explanation,
	}

	switch {
	case !rec.Attack:
		v.Safe = true
	case rec.Confidence >= dc.BlockThreshold:
		// High confidence: the caller should block.
		v.AttackDetected = true
	case rec.Confidence >= dc.FlagThreshold:
		// Mid confidence: allow, but mark for human review.
		v.AttackDetected = true
		v.Safe = true
		v.Flagged = true
	default:
		// Low confidence detections are treated as noise.
		v.AttackDetected = true
		v.Safe = true
	}

	return v
}
