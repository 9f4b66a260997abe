// Package store persists detected-attack records and serves the analytics
// read queries behind the admin endpoints.
package store

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/promptshield-ai/promptshield/internal/engine"
)

// AttackStore is the storage contract: the pipeline appends, the admin API
// reads. Append failures are the caller's to log, never to propagate; read
// failures surface as errors because there is no safe degraded answer.
type AttackStore interface {
	Append(ctx context.Context, rec engine.AttackLogRecord) error
	Stats(ctx context.Context, windowDays int) (*Stats, error)
	Recent(ctx context.Context, limit int) ([]StoredAttack, error)
	RepeatOffenders(ctx context.Context, minCount, windowDays int) ([]RepeatOffender, error)
	Close() error
}

// Stats summarizes attack activity inside a trailing window.
type Stats struct {
	PeriodDays            int             `json:"period_days"`
	TotalAttacks          int64           `json:"total_attacks"`
	HighConfidenceAttacks int64           `json:"high_confidence_attacks"`
	ByCategory            []CategoryCount `json:"by_category"`
}

// CategoryCount is one category bucket, ordered by count descending.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// StoredAttack is a persisted attack row.
type StoredAttack struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Fingerprint string    `json:"fingerprint"`
	Preview     string    `json:"preview"`
	Category    string    `json:"category"`
	Confidence  float64   `json:"confidence"`
	Explanation string    `json:"explanation,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RepeatOffender is one fingerprint group meeting the minimum repeat count
// within the window.
type RepeatOffender struct {
	Fingerprint   string  `json:"fingerprint"`
	Preview       string  `json:"preview"`
	Count         int64   `json:"count"`
	MaxConfidence float64 `json:"max_confidence"`
}

// Open picks a backend from the storage location: a clickhouse:// DSN, a
// postgres:// DSN, or a SQLite file path (the default). An empty location
// falls back to the log-only store.
func Open(location string, logger *zap.Logger) (AttackStore, error) {
	switch {
	case location == "":
		return NewLog(logger), nil
	case strings.HasPrefix(location, "clickhouse://"):
		return NewClickHouse(location, logger)
	case strings.HasPrefix(location, "postgres://"), strings.HasPrefix(location, "postgresql://"):
		return NewPostgres(location, logger)
	default:
		return NewSQLite(location, logger)
	}
}
