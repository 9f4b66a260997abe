package engine

import (
	"context"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/promptshield-ai/promptshield/internal/oracle"
)

// previewLen bounds how much of an offending input is persisted with an
// attack record. Never the full text.
const previewLen = 200

// VerdictCache is the slice of the cache contract the pipeline consumes.
// Get must degrade to a miss on backend failure; Set is best-effort.
type VerdictCache interface {
	Get(ctx context.Context, fingerprint string) (*Verdict, bool)
	Set(ctx context.Context, fingerprint string, v *Verdict, ttl time.Duration)
}

// AttackLogger is the slice of the attack store the pipeline consumes.
type AttackLogger interface {
	Append(ctx context.Context, rec AttackLogRecord) error
}

// ShieldEngine orchestrates one classification per request: cache lookup,
// oracle call, parse, decide, cache write, attack logging. Oracle failures
// fail open; cache and store failures never affect the returned verdict.
type ShieldEngine struct {
	oracle   oracle.Oracle
	cache    VerdictCache
	attacks  AttackLogger
	decision DecisionConfig
	cacheTTL time.Duration
	logger   *zap.Logger
	metrics  Metrics
}

// NewShieldEngine wires the pipeline. attacks may be nil when attack
// persistence is disabled.
func NewShieldEngine(o oracle.Oracle, cache VerdictCache, attacks AttackLogger, decision DecisionConfig, cacheTTL time.Duration, logger *zap.Logger) *ShieldEngine {
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &ShieldEngine{
		oracle:   o,
		cache:    cache,
		attacks:  attacks,
		decision: decision,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Check classifies one input and returns the verdict. It never fails on
// infrastructure errors: oracle failures degrade to a safe, flagged verdict
// and cache/store failures are logged and swallowed.
func (e *ShieldEngine) Check(ctx context.Context, text string) *Verdict {
	e.metrics.Checks.Add(1)
	fp := Fingerprint(text)

	if cached, ok := e.cache.Get(ctx, fp); ok {
		e.metrics.CacheHits.Add(1)
		e.logger.Debug("verdict cache hit", zap.String("fingerprint", fp))
		return cached
	}

	raw, err := e.oracle.Classify(ctx, RenderPrompt(text))
	if err != nil {
		e.metrics.OracleFailures.Add(1)
		e.logger.Warn("oracle call failed, failing open",
			zap.String("fingerprint", fp),
			zap.Error(err),
		)
		// Never block a user because infrastructure failed; allow the
		// request but surface it for review. Not cached, not logged as an
		// attack.
		return &Verdict{
			Safe:        true,
			Category:    CategoryUnknown,
			Flagged:     true,
			Explanation: "analysis error: " + err.Error(),
		}
	}

	rec, parsed := ParseClassification(raw)
	if !parsed {
		e.metrics.ParseFailures.Add(1)
		e.logger.Warn("unparseable oracle response",
			zap.String("fingerprint", fp),
			zap.String("provider", e.oracle.Name()),
			zap.String("raw", truncateRunes(raw, previewLen)),
		)
	}

	verdict := e.decision.Decide(rec)
	e.cache.Set(ctx, fp, &verdict, e.cacheTTL)

	if rec.Attack {
		e.logAttack(ctx, text, fp, rec)
	}

	return &verdict
}

// logAttack appends one attack record. Failures are logged, never
// propagated: the verdict has already been decided.
func (e *ShieldEngine) logAttack(ctx context.Context, text, fp string, rec ClassificationRecord) {
	e.metrics.AttacksDetected.Add(1)
	e.logger.Info("attack detected",
		zap.String("fingerprint", fp),
		zap.String("category", rec.Category.String()),
		zap.Float64("confidence", rec.Confidence),
	)
	if e.attacks == nil {
		return
	}
	logRec := AttackLogRecord{
		Timestamp:   time.Now().UTC(),
		Fingerprint: fp,
		Preview:     truncateRunes(text, previewLen),
		Category:    rec.Category,
		Confidence:  rec.Confidence,
		Explanation: rec.Explanation,
	}
	if err := e.attacks.Append(ctx, logRec); err != nil {
		e.logger.Error("failed to append attack record",
			zap.String("fingerprint", fp),
			zap.Error(err),
		)
	}
}

// MetricsSnapshot returns current counter values.
func (e *ShieldEngine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// OracleName reports the active provider.
func (e *ShieldEngine) OracleName() string {
	return e.oracle.Name()
}

// truncateRunes returns the first max runes of s. Safe on multi-byte
// input: never splits a rune.
func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
