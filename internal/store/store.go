// Package store is the SQLite-backed persistence layer for the pool's
// fingerprint cache and lifetime counters, grounded on the teacher's
// internal/store.Store (schema-on-New, plain database/sql, upsert-by-key
// idioms) retargeted to SPEC_FULL.md §4.I's schema.
package store

import (
	"database/sql"
	"fmt"
	"time"
)

const schema = `
CREATE TABLE IF NOT EXISTS fingerprint_cache (
	fingerprint  TEXT PRIMARY KEY,
	options_json TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	last_used_at TEXT NOT NULL,
	hit_count    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS pool_counters (
	id                    INTEGER PRIMARY KEY CHECK (id = 1),
	port_creations        INTEGER NOT NULL DEFAULT 0,
	port_reuses           INTEGER NOT NULL DEFAULT 0,
	pool_exhaustions      INTEGER NOT NULL DEFAULT 0,
	degraded_compilations INTEGER NOT NULL DEFAULT 0,
	total_lifetime_ms     INTEGER NOT NULL DEFAULT 0,
	total_builds          INTEGER NOT NULL DEFAULT 0
);
`

// Store is the tailwindport data access layer.
type Store struct {
	db *sql.DB
}

// New applies the schema to db and returns a Store. The single counters row
// is seeded once so every Incr*/AddLifetime call can be a plain UPDATE.
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	if _, err := db.Exec(`INSERT OR IGNORE INTO pool_counters (id) VALUES (1)`); err != nil {
		return nil, fmt.Errorf("store: seed counters row: %w", err)
	}
	return &Store{db: db}, nil
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB { return s.db }

// CacheEntry mirrors a row in fingerprint_cache.
type CacheEntry struct {
	Fingerprint string
	OptionsJSON string
	CreatedAt   time.Time
	LastUsedAt  time.Time
	HitCount    int64
}

// Remember upserts a fingerprint cache entry, bumping hit_count and
// last_used_at on conflict. Called on every pool acquisition (creation and
// reuse alike) so a warm-up performed by one process generation stays
// visible to KPI reporting across a restart (SPEC_FULL.md §4.I).
func (s *Store) Remember(fingerprint, optionsJSON string) error {
	_, err := s.db.Exec(`
		INSERT INTO fingerprint_cache (fingerprint, options_json, created_at, last_used_at, hit_count)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(fingerprint) DO UPDATE SET
			last_used_at = excluded.last_used_at,
			hit_count = hit_count + 1
	`, fingerprint, optionsJSON, now(), now())
	return err
}

// Lookup returns the cache entry for fingerprint, or sql.ErrNoRows.
func (s *Store) Lookup(fingerprint string) (*CacheEntry, error) {
	row := s.db.QueryRow(`
		SELECT fingerprint, options_json, created_at, last_used_at, hit_count
		FROM fingerprint_cache WHERE fingerprint = ?
	`, fingerprint)
	return scanCacheEntry(row)
}

// Evict removes a fingerprint cache entry, used when a worker is torn down.
func (s *Store) Evict(fingerprint string) error {
	_, err := s.db.Exec(`DELETE FROM fingerprint_cache WHERE fingerprint = ?`, fingerprint)
	return err
}

// EvictOlderThan removes cache entries whose last_used_at predates cutoff,
// the persistence-side half of idle eviction (SPEC_FULL.md §4.F).
func (s *Store) EvictOlderThan(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM fingerprint_cache WHERE last_used_at < ?`, cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Counters is the all-time snapshot of pool_counters, reported by the
// /stats endpoint alongside the in-memory since-boot numbers.
type Counters struct {
	PortCreations        int64
	PortReuses           int64
	PoolExhaustions      int64
	DegradedCompilations int64
	TotalLifetimeMs      int64
	TotalBuilds          int64
}

// IncrCreated records a fresh Worker spawn.
func (s *Store) IncrCreated() error { return s.bump("port_creations", 1) }

// IncrReused records a Worker acquired from the idle pool instead of spawned.
func (s *Store) IncrReused() error { return s.bump("port_reuses", 1) }

// IncrExhausted records a findOrCreate call that returned ErrPoolExhausted.
func (s *Store) IncrExhausted() error { return s.bump("pool_exhaustions", 1) }

// IncrDegraded records a compile result tagged degraded.
func (s *Store) IncrDegraded() error { return s.bump("degraded_compilations", 1) }

// AddLifetime accumulates a dead Worker's total uptime and completed build
// count into the all-time totals (SPEC_FULL.md §3's CacheEntry/
// AggregateCounters, persisted separately from the per-process counters).
func (s *Store) AddLifetime(ms, builds int64) error {
	_, err := s.db.Exec(`
		UPDATE pool_counters SET total_lifetime_ms = total_lifetime_ms + ?, total_builds = total_builds + ? WHERE id = 1
	`, ms, builds)
	return err
}

func (s *Store) bump(column string, delta int64) error {
	_, err := s.db.Exec(fmt.Sprintf(`UPDATE pool_counters SET %s = %s + ? WHERE id = 1`, column, column), delta)
	return err
}

// Snapshot returns the current all-time counters.
func (s *Store) Snapshot() (Counters, error) {
	var c Counters
	err := s.db.QueryRow(`
		SELECT port_creations, port_reuses, pool_exhaustions, degraded_compilations, total_lifetime_ms, total_builds
		FROM pool_counters WHERE id = 1
	`).Scan(&c.PortCreations, &c.PortReuses, &c.PoolExhaustions, &c.DegradedCompilations, &c.TotalLifetimeMs, &c.TotalBuilds)
	return c, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCacheEntry(s scanner) (*CacheEntry, error) {
	var e CacheEntry
	var createdAt, lastUsedAt string
	if err := s.Scan(&e.Fingerprint, &e.OptionsJSON, &createdAt, &lastUsedAt, &e.HitCount); err != nil {
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		e.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, lastUsedAt); err == nil {
		e.LastUsedAt = t
	}
	return &e, nil
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }
