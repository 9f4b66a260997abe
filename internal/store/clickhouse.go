package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/promptshield-ai/promptshield/internal/engine"
)

const (
	chBufferSize    = 10_000
	chFlushInterval = 100 * time.Millisecond
	chFlushBatch    = 1000
	chDrainTimeout  = 2 * time.Second
)

// ClickHouseStore is the high-volume attack-store backend. Appends are
// buffered and batch-inserted by a background goroutine, so Append never
// blocks the request path; reads query synchronously.
type ClickHouseStore struct {
	conn    driver.Conn
	buffer  chan engine.AttackLogRecord
	done    chan struct{}
	flushed chan struct{} // closed by flushLoop when it returns
	logger  *zap.Logger
}

// NewClickHouse connects, creates the attacks table if needed, and starts
// the background flush loop.
func NewClickHouse(dsn string, logger *zap.Logger) (*ClickHouseStore, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("NewClickHouse: %w", err)
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("NewClickHouse: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("NewClickHouse: ping: %w", err)
	}

	s := &ClickHouseStore{
		conn:    conn,
		buffer:  make(chan engine.AttackLogRecord, chBufferSize),
		done:    make(chan struct{}),
		flushed: make(chan struct{}),
		logger:  logger,
	}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("NewClickHouse: %w", err)
	}

	go s.flushLoop()

	logger.Info("attack store ready", zap.String("backend", "clickhouse"))
	return s, nil
}

func (s *ClickHouseStore) migrate() error {
	ddl := `
		CREATE TABLE IF NOT EXISTS attacks (
			timestamp DateTime64(3, 'UTC'),
			fingerprint String,
			preview String,
			category LowCardinality(String),
			confidence Float64,
			explanation String,
			created_at DateTime64(3, 'UTC'),
			INDEX idx_fingerprint fingerprint TYPE bloom_filter GRANULARITY 1
		) ENGINE = MergeTree
		ORDER BY timestamp`
	if err := s.conn.Exec(context.Background(), ddl); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Append queues a record for async insertion. Non-blocking: the record is
// dropped with a warning if the buffer is full.
func (s *ClickHouseStore) Append(_ context.Context, rec engine.AttackLogRecord) error {
	select {
	case s.buffer <- rec:
	default:
		s.logger.Warn("clickhouse buffer full, dropping attack record",
			zap.String("fingerprint", rec.Fingerprint),
		)
	}
	return nil
}

func (s *ClickHouseStore) flushLoop() {
	defer close(s.flushed)

	ticker := time.NewTicker(chFlushInterval)
	defer ticker.Stop()

	batch := make([]engine.AttackLogRecord, 0, chFlushBatch)

	for {
		select {
		case rec := <-s.buffer:
			batch = append(batch, rec)
			if len(batch) >= chFlushBatch {
				s.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flush(batch)
				batch = batch[:0]
			}
		case <-s.done:
			// Drain remaining records from buffer
			drainCtx, cancel := context.WithTimeout(context.Background(), chDrainTimeout)
			defer cancel()
		drainLoop:
			for {
				select {
				case rec := <-s.buffer:
					batch = append(batch, rec)
				case <-drainCtx.Done():
					break drainLoop
				default:
					break drainLoop
				}
			}
			if len(batch) > 0 {
				s.flush(batch)
			}
			return
		}
	}
}

func (s *ClickHouseStore) flush(records []engine.AttackLogRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO attacks (timestamp, fingerprint, preview, category, confidence, explanation, created_at)
	`)
	if err != nil {
		s.logger.Error("clickhouse prepare batch failed", zap.Error(err))
		return
	}

	now := time.Now().UTC()
	for _, rec := range records {
		if err := batch.Append(
			rec.Timestamp,
			rec.Fingerprint,
			rec.Preview,
			rec.Category.String(),
			rec.Confidence,
			rec.Explanation,
			now,
		); err != nil {
			s.logger.Error("clickhouse append record failed",
				zap.String("fingerprint", rec.Fingerprint),
				zap.Error(err),
			)
		}
	}

	if err := batch.Send(); err != nil {
		s.logger.Error("clickhouse batch send failed",
			zap.Int("batch_size", len(records)),
			zap.Error(err),
		)
	}
}

// Stats aggregates attack counts inside the trailing window.
func (s *ClickHouseStore) Stats(ctx context.Context, windowDays int) (*Stats, error) {
	since := time.Now().UTC().AddDate(0, 0, -windowDays)
	stats := &Stats{PeriodDays: windowDays, ByCategory: []CategoryCount{}}

	var total, highConfidence uint64
	err := s.conn.QueryRow(ctx,
		"SELECT count() AS total, countIf(confidence >= 0.8) AS high_confidence "+
			"FROM attacks WHERE timestamp >= @since",
		clickhouse.Named("since", since),
	).Scan(&total, &highConfidence)
	if err != nil {
		return nil, fmt.Errorf("Stats: %w", err)
	}
	stats.TotalAttacks = int64(total)
	stats.HighConfidenceAttacks = int64(highConfidence)

	rows, err := s.conn.Query(ctx,
		"SELECT category, count() AS count FROM attacks "+
			"WHERE timestamp >= @since GROUP BY category ORDER BY count DESC",
		clickhouse.Named("since", since),
	)
	if err != nil {
		return nil, fmt.Errorf("Stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var category string
		var count uint64
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("Stats: scan: %w", err)
		}
		stats.ByCategory = append(stats.ByCategory, CategoryCount{Category: category, Count: int64(count)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Stats: %w", err)
	}

	return stats, nil
}

// Recent returns the newest records first.
func (s *ClickHouseStore) Recent(ctx context.Context, limit int) ([]StoredAttack, error) {
	rows, err := s.conn.Query(ctx,
		"SELECT timestamp, fingerprint, preview, category, confidence, explanation, created_at "+
			"FROM attacks ORDER BY timestamp DESC LIMIT @limit",
		clickhouse.Named("limit", uint32(limit)),
	)
	if err != nil {
		return nil, fmt.Errorf("Recent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	attacks := []StoredAttack{}
	for rows.Next() {
		var a StoredAttack
		if err := rows.Scan(&a.Timestamp, &a.Fingerprint, &a.Preview, &a.Category, &a.Confidence, &a.Explanation, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("Recent: scan: %w", err)
		}
		attacks = append(attacks, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Recent: %w", err)
	}

	return attacks, nil
}

// RepeatOffenders groups attacks by fingerprint within the window.
func (s *ClickHouseStore) RepeatOffenders(ctx context.Context, minCount, windowDays int) ([]RepeatOffender, error) {
	since := time.Now().UTC().AddDate(0, 0, -windowDays)

	rows, err := s.conn.Query(ctx,
		"SELECT fingerprint, any(preview) AS preview, count() AS count, max(confidence) AS max_confidence "+
			"FROM attacks WHERE timestamp >= @since "+
			"GROUP BY fingerprint HAVING count >= @min_count "+
			"ORDER BY count DESC",
		clickhouse.Named("since", since),
		clickhouse.Named("min_count", uint64(minCount)),
	)
	if err != nil {
		return nil, fmt.Errorf("RepeatOffenders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	offenders := []RepeatOffender{}
	for rows.Next() {
		var o RepeatOffender
		var count uint64
		if err := rows.Scan(&o.Fingerprint, &o.Preview, &count, &o.MaxConfidence); err != nil {
			return nil, fmt.Errorf("RepeatOffenders: scan: %w", err)
		}
		o.Count = int64(count)
		offenders = append(offenders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("RepeatOffenders: %w", err)
	}

	return offenders, nil
}

// Close drains buffered records and closes the connection.
func (s *ClickHouseStore) Close() error {
	close(s.done)
	<-s.flushed
	return s.conn.Close()
}
