package store

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/promptshield-ai/promptshield/internal/engine"
)

// ErrNoDurableStore is returned by read queries on the log-only fallback:
// there is no safe degraded answer for analytics without durable records.
var ErrNoDurableStore = errors.New("attack store is log-only, no durable records")

// LogStore is the fallback backend for local development: attack records
// are emitted as structured log lines and never persisted.
type LogStore struct {
	logger *zap.Logger
}

// NewLog returns a store that writes attack records to the given logger.
func NewLog(logger *zap.Logger) *LogStore {
	return &LogStore{logger: logger}
}

func (s *LogStore) Append(_ context.Context, rec engine.AttackLogRecord) error {
	s.logger.Info("attack_record",
		zap.Time("timestamp", rec.Timestamp),
		zap.String("fingerprint", rec.Fingerprint),
		zap.String("category", rec.Category.String()),
		zap.Float64("confidence", rec.Confidence),
		zap.String("preview", rec.Preview),
	)
	return nil
}

func (s *LogStore) Stats(context.Context, int) (*Stats, error) {
	return nil, ErrNoDurableStore
}

func (s *LogStore) Recent(context.Context, int) ([]StoredAttack, error) {
	return nil, ErrNoDurableStore
}

func (s *LogStore) RepeatOffenders(context.Context, int, int) ([]RepeatOffender, error) {
	return nil, ErrNoDurableStore
}

func (s *LogStore) Close() error { return nil }
