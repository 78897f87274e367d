package patterns

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ShayCichocki/vigil/pkg/models"
)

// Store provides SQLite-backed durable storage for patterns. Writes to the
// same pattern ID are serialized by the store mutex so concurrent merges
// never interleave into a corrupted average.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// NewStore opens (creating if needed) the patterns database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL mode for concurrent readers
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	return &Store{db: conn, dbPath: dbPath}, nil
}

// Migrate creates the patterns table and indexes if they don't exist.
func (s *Store) Migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS patterns (
			id TEXT PRIMARY KEY,
			pattern_type TEXT NOT NULL,
			context_signature TEXT NOT NULL,
			success_rate REAL NOT NULL,
			usage_count INTEGER NOT NULL,
			first_seen DATETIME NOT NULL,
			last_seen DATETIME NOT NULL,
			data TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_patterns_signature ON patterns(context_signature);
		CREATE INDEX IF NOT EXISTS idx_patterns_type ON patterns(pattern_type);
		CREATE INDEX IF NOT EXISTS idx_patterns_last_seen ON patterns(last_seen);
	`)
	if err != nil {
		return fmt.Errorf("create patterns schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Path returns the path to the database file.
func (s *Store) Path() string {
	return s.dbPath
}

// Upsert folds a single-event pattern contribution into the durable table.
// The merge happens inside SQL, so the running mean stays correct no matter
// which order queued writes land in:
//
//	rate' = (rate*count + contribution) / (count+1)
func (s *Store) Upsert(delta *models.ValidationPattern) error {
	data, err := json.Marshal(delta.PatternData)
	if err != nil {
		return fmt.Errorf("marshal pattern data: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO patterns (id, pattern_type, context_signature, success_rate, usage_count, first_seen, last_seen, data)
		VALUES (?, ?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			success_rate = (success_rate * usage_count + excluded.success_rate) / (usage_count + 1),
			usage_count = usage_count + 1,
			last_seen = excluded.last_seen,
			data = excluded.data
	`,
		delta.PatternID,
		delta.PatternType,
		delta.ContextSignature,
		delta.SuccessRate,
		formatTime(delta.FirstSeen),
		formatTime(delta.LastSeen),
		string(data),
	)
	if err != nil {
		return fmt.Errorf("upsert pattern: %w", err)
	}
	return nil
}

// Get retrieves a pattern by ID. Returns (nil, nil) when absent.
func (s *Store) Get(id string) (*models.ValidationPattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, pattern_type, context_signature, success_rate, usage_count, first_seen, last_seen, data
		FROM patterns WHERE id = ?
	`, id)

	p, err := scanPattern(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query pattern: %w", err)
	}
	return p, nil
}

// BySignature returns all patterns with the given context signature.
func (s *Store) BySignature(signature string) ([]*models.ValidationPattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, pattern_type, context_signature, success_rate, usage_count, first_seen, last_seen, data
		FROM patterns WHERE context_signature = ?
		ORDER BY success_rate DESC, usage_count DESC
	`, signature)
	if err != nil {
		return nil, fmt.Errorf("query by signature: %w", err)
	}
	defer rows.Close()

	return scanPatterns(rows)
}

// Recent returns the most recently seen patterns up to limit.
func (s *Store) Recent(limit int) ([]*models.ValidationPattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, pattern_type, context_signature, success_rate, usage_count, first_seen, last_seen, data
		FROM patterns ORDER BY last_seen DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent patterns: %w", err)
	}
	defer rows.Close()

	return scanPatterns(rows)
}

// Count returns the number of stored patterns.
func (s *Store) Count() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM patterns").Scan(&n); err != nil {
		return 0, fmt.Errorf("count patterns: %w", err)
	}
	return n, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPattern(row scanner) (*models.ValidationPattern, error) {
	var (
		p         models.ValidationPattern
		firstSeen string
		lastSeen  string
		data      sql.NullString
	)
	err := row.Scan(&p.PatternID, &p.PatternType, &p.ContextSignature,
		&p.SuccessRate, &p.UsageCount, &firstSeen, &lastSeen, &data)
	if err != nil {
		return nil, err
	}

	p.FirstSeen, _ = parseTime(firstSeen)
	p.LastSeen, _ = parseTime(lastSeen)
	if data.Valid && data.String != "" {
		if err := json.Unmarshal([]byte(data.String), &p.PatternData); err != nil {
			return nil, fmt.Errorf("unmarshal pattern data: %w", err)
		}
	}
	return &p, nil
}

func scanPatterns(rows *sql.Rows) ([]*models.ValidationPattern, error) {
	var out []*models.ValidationPattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
