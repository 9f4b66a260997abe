package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/promptshield-ai/promptshield/internal/engine"
)

// keyPrefix namespaces verdict entries in a shared Redis.
const keyPrefix = "shield:"

// Redis is the shared networked cache. Entries expire server-side; every
// backend error degrades to a miss or a dropped write so the pipeline never
// sees a cache failure.
type Redis struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedis connects to the Redis at url (redis://host:port/db form).
func NewRedis(url string, logger *zap.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("NewRedis: %w", err)
	}
	return &Redis{
		client: redis.NewClient(opts),
		logger: logger,
	}, nil
}

func (r *Redis) Get(ctx context.Context, fingerprint string) (*engine.Verdict, bool) {
	data, err := r.client.Get(ctx, keyPrefix+fingerprint).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("redis get failed",
				zap.String("fingerprint", fingerprint),
				zap.Error(err),
			)
		}
		return nil, false
	}

	var v engine.Verdict
	if err := json.Unmarshal(data, &v); err != nil {
		r.logger.Warn("corrupt cached verdict",
			zap.String("fingerprint", fingerprint),
			zap.Error(err),
		)
		return nil, false
	}

	v.FromCache = true
	return &v, true
}

func (r *Redis) Set(ctx context.Context, fingerprint string, v *engine.Verdict, ttl time.Duration) {
	if v == nil || ttl <= 0 {
		return
	}

	stored := *v
	stored.FromCache = false
	data, err := json.Marshal(&stored)
	if err != nil {
		r.logger.Warn("marshal verdict failed", zap.Error(err))
		return
	}

	if err := r.client.Set(ctx, keyPrefix+fingerprint, data, ttl).Err(); err != nil {
		r.logger.Warn("redis set failed",
			zap.String("fingerprint", fingerprint),
			zap.Error(err),
		)
	}
}

func (r *Redis) Close() error { return r.client.Close() }
