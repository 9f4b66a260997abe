package engine

import "sync/atomic"

// Metrics holds the pipeline's operational counters. All fields are safe
// for concurrent use.
type Metrics struct {
	Checks          atomic.Int64
	CacheHits       atomic.Int64
	OracleFailures  atomic.Int64
	ParseFailures   atomic.Int64
	AttacksDetected atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Checks          int64 `json:"checks"`
	CacheHits       int64 `json:"cache_hits"`
	OracleFailures  int64 `json:"oracle_failures"`
	ParseFailures   int64 `json:"parse_failures"`
	AttacksDetected int64 `json:"attacks_detected"`
}

// Snapshot reads all counters. Counters are read independently, so a
// snapshot taken under concurrent traffic is approximate across fields.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Checks:          m.Checks.Load(),
		CacheHits:       m.CacheHits.Load(),
		OracleFailures:  m.OracleFailures.Load(),
		ParseFailures:   m.ParseFailures.Load(),
		AttacksDetected: m.AttacksDetected.Load(),
	}
}
