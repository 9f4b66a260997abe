package store

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx as database/sql driver
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Register sqlite as database/sql driver

	"github.com/promptshield-ai/promptshield/internal/engine"
)

// timeLayout stores timestamps as fixed-width UTC strings in both SQL
// dialects, so lexicographic order equals chronological order and window
// comparisons work as plain string comparisons on SQLite.
const timeLayout = "2006-01-02 15:04:05.000"

func init() {
	// modernc's driver name is unknown to sqlx; it binds with ? placeholders.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// SQLStore persists attack records in SQLite (file path) or PostgreSQL
// (DSN). One query contract for both; Rebind adjusts placeholders.
type SQLStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewSQLite opens (and migrates) a SQLite-backed attack store at path.
func NewSQLite(path string, logger *zap.Logger) (*SQLStore, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("NewSQLite: %w", err)
	}
	// modernc sqlite serializes writes itself; one connection avoids
	// SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)

	s := &SQLStore{db: db, logger: logger}
	if err := s.migrate(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewSQLite: %w", err)
	}

	logger.Info("attack store ready", zap.String("backend", "sqlite"), zap.String("path", path))
	return s, nil
}

// NewPostgres opens (and migrates) a PostgreSQL-backed attack store.
func NewPostgres(dsn string, logger *zap.Logger) (*SQLStore, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewPostgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewPostgres: ping: %w", err)
	}

	s := &SQLStore{db: db, logger: logger}
	if err := s.migrate(postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewPostgres: %w", err)
	}

	logger.Info("attack store ready", zap.String("backend", "postgres"))
	return s, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS attacks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	preview TEXT,
	category TEXT NOT NULL,
	confidence REAL NOT NULL,
	explanation TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attacks_timestamp ON attacks(timestamp);
CREATE INDEX IF NOT EXISTS idx_attacks_category ON attacks(category);
CREATE INDEX IF NOT EXISTS idx_attacks_fingerprint ON attacks(fingerprint);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS attacks (
	id BIGSERIAL PRIMARY KEY,
	timestamp TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	preview TEXT,
	category TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	explanation TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attacks_timestamp ON attacks(timestamp);
CREATE INDEX IF NOT EXISTS idx_attacks_category ON attacks(category);
CREATE INDEX IF NOT EXISTS idx_attacks_fingerprint ON attacks(fingerprint);
`

func (s *SQLStore) migrate(schema string) error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Append inserts one attack record.
func (s *SQLStore) Append(ctx context.Context, rec engine.AttackLogRecord) error {
	query := s.db.Rebind(`
		INSERT INTO attacks (timestamp, fingerprint, preview, category, confidence, explanation, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		rec.Timestamp.UTC().Format(timeLayout),
		rec.Fingerprint,
		rec.Preview,
		rec.Category.String(),
		rec.Confidence,
		rec.Explanation,
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("Append: %w", err)
	}
	return nil
}

// Stats aggregates attack counts inside the trailing window.
func (s *SQLStore) Stats(ctx context.Context, windowDays int) (*Stats, error) {
	since := windowStart(windowDays)
	stats := &Stats{PeriodDays: windowDays, ByCategory: []CategoryCount{}}

	query := s.db.Rebind(`
		SELECT COUNT(*) AS total,
		       COALESCE(SUM(CASE WHEN confidence >= 0.8 THEN 1 ELSE 0 END), 0) AS high_confidence
		FROM attacks WHERE timestamp >= ?`)
	row := s.db.QueryRowxContext(ctx, query, since)
	if err := row.Scan(&stats.TotalAttacks, &stats.HighConfidenceAttacks); err != nil {
		return nil, fmt.Errorf("Stats: %w", err)
	}

	query = s.db.Rebind(`
		SELECT category, COUNT(*) AS count
		FROM attacks WHERE timestamp >= ?
		GROUP BY category ORDER BY count DESC`)
	rows, err := s.db.QueryxContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("Stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cc CategoryCount
		if err := rows.Scan(&cc.Category, &cc.Count); err != nil {
			return nil, fmt.Errorf("Stats: scan: %w", err)
		}
		stats.ByCategory = append(stats.ByCategory, cc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Stats: %w", err)
	}

	return stats, nil
}

// Recent returns the newest records first.
func (s *SQLStore) Recent(ctx context.Context, limit int) ([]StoredAttack, error) {
	query := s.db.Rebind(`
		SELECT id, timestamp, fingerprint, preview, category, confidence, explanation, created_at
		FROM attacks ORDER BY timestamp DESC LIMIT ?`)

	rows, err := s.db.QueryxContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("Recent: %w", err)
	}
	defer rows.Close()

	attacks := []StoredAttack{}
	for rows.Next() {
		var a StoredAttack
		var ts, created string
		if err := rows.Scan(&a.ID, &ts, &a.Fingerprint, &a.Preview, &a.Category, &a.Confidence, &a.Explanation, &created); err != nil {
			return nil, fmt.Errorf("Recent: scan: %w", err)
		}
		if a.Timestamp, err = parseStoredTime(ts); err != nil {
			return nil, fmt.Errorf("Recent: %w", err)
		}
		if a.CreatedAt, err = parseStoredTime(created); err != nil {
			return nil, fmt.Errorf("Recent: %w", err)
		}
		attacks = append(attacks, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Recent: %w", err)
	}

	return attacks, nil
}

// RepeatOffenders groups attacks by fingerprint within the window and
// returns groups at or above minCount, largest first.
func (s *SQLStore) RepeatOffenders(ctx context.Context, minCount, windowDays int) ([]RepeatOffender, error) {
	query := s.db.Rebind(`
		SELECT fingerprint, MAX(preview) AS preview, COUNT(*) AS count, MAX(confidence) AS max_confidence
		FROM attacks WHERE timestamp >= ?
		GROUP BY fingerprint
		HAVING COUNT(*) >= ?
		ORDER BY count DESC`)

	rows, err := s.db.QueryxContext(ctx, query, windowStart(windowDays), minCount)
	if err != nil {
		return nil, fmt.Errorf("RepeatOffenders: %w", err)
	}
	defer rows.Close()

	offenders := []RepeatOffender{}
	for rows.Next() {
		var o RepeatOffender
		if err := rows.Scan(&o.Fingerprint, &o.Preview, &o.Count, &o.MaxConfidence); err != nil {
			return nil, fmt.Errorf("RepeatOffenders: scan: %w", err)
		}
		offenders = append(offenders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("RepeatOffenders: %w", err)
	}

	return offenders, nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func windowStart(days int) string {
	return time.Now().UTC().AddDate(0, 0, -days).Format(timeLayout)
}

func parseStoredTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parseStoredTime: %w", err)
	}
	return t, nil
}
