// Package analytics implements the analytics service: a rolling history of
// raw validation events with trend metrics and outcome predictions derived
// from them.
package analytics

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// EventRecord is the condensed form of a validation event kept by the
// analytics service.
type EventRecord struct {
	EventID      string         `json:"event_id"`
	EventType    string         `json:"event_type"`
	Signature    string         `json:"signature"`
	Context      map[string]any `json:"context"`
	SourceSystem string         `json:"source_system"`
	Success      bool           `json:"success"`
	Confidence   float64        `json:"confidence"`
	ProcessingMS float64        `json:"processing_ms"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Store provides SQLite-backed storage for raw events and day-bucketed
// trend aggregates.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// NewStore opens (creating if needed) the analytics database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	return &Store{db: conn, dbPath: dbPath}, nil
}

// Migrate creates the validation_events and trend_data tables.
func (s *Store) Migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS validation_events (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			signature TEXT NOT NULL,
			context TEXT,
			source_system TEXT NOT NULL DEFAULT '',
			success INTEGER NOT NULL,
			confidence REAL NOT NULL,
			processing_ms REAL NOT NULL DEFAULT 0,
			timestamp DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_events_signature ON validation_events(signature);
		CREATE INDEX IF NOT EXISTS idx_events_timestamp ON validation_events(timestamp);
		CREATE INDEX IF NOT EXISTS idx_events_source ON validation_events(source_system);

		CREATE TABLE IF NOT EXISTS trend_data (
			day TEXT PRIMARY KEY,
			total INTEGER NOT NULL DEFAULT 0,
			successes INTEGER NOT NULL DEFAULT 0,
			confidence_sum REAL NOT NULL DEFAULT 0,
			processing_sum REAL NOT NULL DEFAULT 0,
			sources TEXT
		);
	`)
	if err != nil {
		return fmt.Errorf("create analytics schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Insert writes one event row and folds it into its calendar-day trend
// bucket inside a single transaction.
func (s *Store) Insert(rec *EventRecord) error {
	ctxJSON, err := json.Marshal(rec.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	success := 0
	if rec.Success {
		success = 1
	}
	res, err := tx.Exec(`
		INSERT OR IGNORE INTO validation_events
			(id, event_type, signature, context, source_system, success, confidence, processing_ms, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.EventID, rec.EventType, rec.Signature, string(ctxJSON), rec.SourceSystem,
		success, rec.Confidence, rec.ProcessingMS, formatTime(rec.Timestamp))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert event: %w", err)
	}

	// A replayed event ID must not double-count in the trend buckets.
	if inserted, _ := res.RowsAffected(); inserted > 0 {
		if err := bucketEvent(tx, rec); err != nil {
			tx.Rollback()
			return fmt.Errorf("bucket event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// bucketEvent folds one event into its day bucket, including the per-source
// breakdown kept as JSON.
func bucketEvent(tx *sql.Tx, rec *EventRecord) error {
	day := rec.Timestamp.UTC().Format("2006-01-02")

	var sourcesJSON sql.NullString
	err := tx.QueryRow("SELECT sources FROM trend_data WHERE day = ?", day).Scan(&sourcesJSON)
	if err != nil && err != sql.ErrNoRows {
		return err
	}

	sources := make(map[string]map[string]int64)
	if sourcesJSON.Valid && sourcesJSON.String != "" {
		if uerr := json.Unmarshal([]byte(sourcesJSON.String), &sources); uerr != nil {
			sources = make(map[string]map[string]int64)
		}
	}
	bySource, ok := sources[rec.SourceSystem]
	if !ok {
		bySource = map[string]int64{"total": 0, "successes": 0}
		sources[rec.SourceSystem] = bySource
	}
	bySource["total"]++
	if rec.Success {
		bySource["successes"]++
	}
	updated, err := json.Marshal(sources)
	if err != nil {
		return err
	}

	success := 0
	if rec.Success {
		success = 1
	}
	_, err = tx.Exec(`
		INSERT INTO trend_data (day, total, successes, confidence_sum, processing_sum, sources)
		VALUES (?, 1, ?, ?, ?, ?)
		ON CONFLICT(day) DO UPDATE SET
			total = total + 1,
			successes = successes + excluded.successes,
			confidence_sum = confidence_sum + excluded.confidence_sum,
			processing_sum = processing_sum + excluded.processing_sum,
			sources = excluded.sources
	`, day, success, rec.Confidence, rec.ProcessingMS, string(updated))
	return err
}

// windowMetrics holds aggregates for one time window.
type windowMetrics struct {
	Total          int64              `json:"total_events"`
	SuccessRate    float64            `json:"success_rate"`
	AvgConfidence  float64            `json:"average_confidence"`
	AvgProcessing  float64            `json:"average_processing_ms"`
	BySourceSystem map[string]float64 `json:"by_source_system"`
}

// aggregateSince computes window metrics over events at or after cutoff.
// A zero cutoff aggregates the whole table.
func (s *Store) aggregateSince(cutoff time.Time) (*windowMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := ""
	args := []any{}
	if !cutoff.IsZero() {
		where = " WHERE timestamp >= ?"
		args = append(args, formatTime(cutoff))
	}

	var (
		total         int64
		successes     sql.NullFloat64
		confidenceSum sql.NullFloat64
		processingSum sql.NullFloat64
	)
	err := s.db.QueryRow(
		"SELECT COUNT(*), SUM(success), SUM(confidence), SUM(processing_ms) FROM validation_events"+where,
		args...,
	).Scan(&total, &successes, &confidenceSum, &processingSum)
	if err != nil {
		return nil, fmt.Errorf("aggregate events: %w", err)
	}

	m := &windowMetrics{Total: total, BySourceSystem: make(map[string]float64)}
	if total > 0 {
		m.SuccessRate = successes.Float64 / float64(total)
		m.AvgConfidence = confidenceSum.Float64 / float64(total)
		m.AvgProcessing = processingSum.Float64 / float64(total)
	}

	rows, err := s.db.Query(
		"SELECT source_system, COUNT(*), SUM(success) FROM validation_events"+where+" GROUP BY source_system",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate by source: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			source    string
			count     int64
			successes sql.NullFloat64
		)
		if err := rows.Scan(&source, &count, &successes); err != nil {
			return nil, err
		}
		if count > 0 {
			m.BySourceSystem[source] = successes.Float64 / float64(count)
		}
	}
	return m, rows.Err()
}

// TotalEvents returns the number of durably recorded events.
func (s *Store) TotalEvents() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM validation_events").Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
