// Package knowledge implements the knowledge base: typed facts extracted
// from validation events and merged by subject with confidence-weighted
// averaging.
package knowledge

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

// Store provides SQLite-backed storage for knowledge entries and the
// relationships between them.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// NewStore opens (creating if needed) the knowledge database at dbPath.
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

// Migrate creates the knowledge tables and indexes if they don't exist.
func (s *Store) Migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS knowledge_entries (
			id TEXT PRIMARY KEY,
			knowledge_type TEXT NOT NULL,
			subject TEXT NOT NULL,
			content TEXT,
			confidence REAL NOT NULL,
			evidence_count INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_knowledge_subject ON knowledge_entries(subject);
		CREATE INDEX IF NOT EXISTS idx_knowledge_type ON knowledge_entries(knowledge_type);

		CREATE TABLE IF NOT EXISTS knowledge_relationships (
			from_id TEXT NOT NULL,
			to_id TEXT NOT NULL,
			relation TEXT NOT NULL,
			PRIMARY KEY (from_id, to_id, relation)
		);
	`)
	if err != nil {
		return fmt.Errorf("create knowledge schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Upsert merges a knowledge draft into the durable table. On conflict the
// confidence becomes the evidence-count-weighted average of old and new,
// clamped to [0,1], and the evidence counts accumulate.
func (s *Store) Upsert(entry *models.KnowledgeEntry) error {
	content, err := json.Marshal(entry.Content)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO knowledge_entries
			(id, knowledge_type, subject, content, confidence, evidence_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			confidence = MIN(1.0, MAX(0.0,
				(confidence * evidence_count + excluded.confidence * excluded.evidence_count)
				/ (evidence_count + excluded.evidence_count))),
			evidence_count = evidence_count + excluded.evidence_count,
			content = excluded.content,
			updated_at = excluded.updated_at
	`,
		entry.EntryID,
		entry.KnowledgeType,
		entry.Subject,
		string(content),
		models.ClampConfidence(entry.Confidence),
		entry.EvidenceCount,
		formatTime(entry.CreatedAt),
		formatTime(entry.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert knowledge entry: %w", err)
	}
	return nil
}

// Link records a relationship between two entries. Duplicate links are
// ignored.
func (s *Store) Link(fromID, toID, relation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO knowledge_relationships (from_id, to_id, relation)
		VALUES (?, ?, ?)
	`, fromID, toID, relation)
	if err != nil {
		return fmt.Errorf("link entries: %w", err)
	}
	return nil
}

// Related returns the IDs of entries linked from the given entry.
func (s *Store) Related(fromID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT to_id FROM knowledge_relationships WHERE from_id = ?", fromID)
	if err != nil {
		return nil, fmt.Errorf("query relationships: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// BySubject returns all entries for a subject, optionally filtered by
// knowledge type (empty type matches all).
func (s *Store) BySubject(subject, knowledgeType string) ([]*models.KnowledgeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, knowledge_type, subject, content, confidence, evidence_count, created_at, updated_at
		FROM knowledge_entries WHERE subject = ?`
	args := []any{subject}
	if knowledgeType != "" {
		query += " AND knowledge_type = ?"
		args = append(args, knowledgeType)
	}
	query += " ORDER BY confidence DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query by subject: %w", err)
	}
	defer rows.Close()

	var out []*models.KnowledgeEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// Stats returns the totals used by the knowledge summary.
func (s *Store) Stats() (total int64, avgConfidence float64, byType map[string]int64, lastUpdated time.Time, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byType = make(map[string]int64)

	var (
		avg  sql.NullFloat64
		last sql.NullString
	)
	err = s.db.QueryRow(
		"SELECT COUNT(*), AVG(confidence), MAX(updated_at) FROM knowledge_entries",
	).Scan(&total, &avg, &last)
	if err != nil {
		return 0, 0, nil, time.Time{}, fmt.Errorf("knowledge stats: %w", err)
	}
	avgConfidence = avg.Float64
	if last.Valid {
		lastUpdated, _ = parseTime(last.String)
	}

	rows, err := s.db.Query("SELECT knowledge_type, COUNT(*) FROM knowledge_entries GROUP BY knowledge_type")
	if err != nil {
		return 0, 0, nil, time.Time{}, fmt.Errorf("knowledge type counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kt string
			n  int64
		)
		if err := rows.Scan(&kt, &n); err != nil {
			return 0, 0, nil, time.Time{}, err
		}
		byType[kt] = n
	}
	return total, avgConfidence, byType, lastUpdated, rows.Err()
}

func scanEntry(rows *sql.Rows) (*models.KnowledgeEntry, error) {
	var (
		entry     models.KnowledgeEntry
		content   sql.NullString
		createdAt string
		updatedAt string
	)
	err := rows.Scan(&entry.EntryID, &entry.KnowledgeType, &entry.Subject,
		&content, &entry.Confidence, &entry.EvidenceCount, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	entry.CreatedAt, _ = parseTime(createdAt)
	entry.UpdatedAt, _ = parseTime(updatedAt)
	if content.Valid && content.String != "" {
		if err := json.Unmarshal([]byte(content.String), &entry.Content); err != nil {
			return nil, fmt.Errorf("unmarshal content: %w", err)
		}
	}
	return &entry, nil
}

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
