// Package cache stores decided verdicts keyed by input fingerprint.
package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/promptshield-ai/promptshield/internal/engine"
)

// VerdictCache is the storage contract both backends satisfy. Get never
// fails: backend errors degrade to a miss so the pipeline re-classifies.
// Set is best-effort. Hits return a copy with FromCache=true; that is the
// only field a cache may change relative to what was stored.
type VerdictCache interface {
	Get(ctx context.Context, fingerprint string) (*engine.Verdict, bool)
	Set(ctx context.Context, fingerprint string, v *engine.Verdict, ttl time.Duration)
	Close() error
}

// New selects the backend: a shared Redis cache when redisURL is set,
// otherwise the process-local bounded cache.
func New(redisURL string, logger *zap.Logger) (VerdictCache, error) {
	if redisURL != "" {
		return NewRedis(redisURL, logger)
	}
	return NewMemory(DefaultMaxEntries), nil
}
