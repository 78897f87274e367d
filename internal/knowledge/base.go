package knowledge

import (
	"fmt"
	"sync"
	"time"

	"github.com/ShayCichocki/vigil/pkg/models"
)

// qualityThreshold is the minimum event confidence for a success to become
// a successful_pattern fact.
const qualityThreshold = 0.7

// relationObservedIn links a pattern fact to the behavior summary of the
// system that produced its evidence.
const relationObservedIn = "observed_in"

// sourceStats tracks the rolling success rate of one source system.
type sourceStats struct {
	total     int64
	successes int64
}

func (s *sourceStats) rate() float64 {
	if s.total == 0 {
		return 0
	}
	return float64(s.successes) / float64(s.total)
}

// Base is the knowledge base service. It extracts typed facts from events
// and merges them into the durable table by (type, subject).
type Base struct {
	store *Store

	mu      sync.Mutex
	sources map[string]*sourceStats
}

// NewBase creates a knowledge base backed by the given store.
func NewBase(store *Store) *Base {
	return &Base{
		store:   store,
		sources: make(map[string]*sourceStats),
	}
}

// Extract derives zero or more knowledge drafts from an event and updates
// the in-memory rolling rates. Like the other services, the durable write
// is scheduled separately via Persist.
func (b *Base) Extract(event *models.ValidationEvent) []*models.KnowledgeEntry {
	now := event.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	b.mu.Lock()
	stats, ok := b.sources[event.SourceSystem]
	if !ok {
		stats = &sourceStats{}
		b.sources[event.SourceSystem] = stats
	}
	stats.total++
	if event.Success {
		stats.successes++
	}
	rate := stats.rate()
	observed := stats.total
	b.mu.Unlock()

	subject := fmt.Sprintf("%s:%s", event.EventType, event.SourceSystem)
	var drafts []*models.KnowledgeEntry

	if event.Success && event.Confidence > qualityThreshold {
		drafts = append(drafts, &models.KnowledgeEntry{
			EntryID:       models.EntryID(models.KnowledgeSuccessfulPattern, subject),
			KnowledgeType: models.KnowledgeSuccessfulPattern,
			Subject:       subject,
			Content: map[string]any{
				"event_type":    event.EventType,
				"source_system": event.SourceSystem,
				"context":       event.Context,
			},
			Confidence:    event.Confidence,
			EvidenceCount: 1,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	if !event.Success {
		drafts = append(drafts, &models.KnowledgeEntry{
			EntryID:       models.EntryID(models.KnowledgeFailurePattern, subject),
			KnowledgeType: models.KnowledgeFailurePattern,
			Subject:       subject,
			Content: map[string]any{
				"event_type":    event.EventType,
				"source_system": event.SourceSystem,
				"context":       event.Context,
			},
			Confidence:    models.ClampConfidence(1 - event.Confidence),
			EvidenceCount: 1,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	// Every event refreshes the behavior summary of its source system. The
	// fact's confidence reflects how predictable the source is: 1.0 for a
	// source that always succeeds or always fails, 0.5 for a coin flip.
	stability := rate
	if stability < 0.5 {
		stability = 1 - stability
	}
	drafts = append(drafts, &models.KnowledgeEntry{
		EntryID:       models.EntryID(models.KnowledgeSystemBehavior, event.SourceSystem),
		KnowledgeType: models.KnowledgeSystemBehavior,
		Subject:       event.SourceSystem,
		Content: map[string]any{
			"source_system":   event.SourceSystem,
			"success_rate":    rate,
			"events_observed": observed,
		},
		Confidence:    stability,
		EvidenceCount: 1,
		CreatedAt:     now,
		UpdatedAt:     now,
	})

	return drafts
}

// Persist upserts drafts into the durable table and links pattern facts to
// their source's behavior summary.
func (b *Base) Persist(drafts []*models.KnowledgeEntry) error {
	var behaviorID string
	for _, d := range drafts {
		if d.KnowledgeType == models.KnowledgeSystemBehavior {
			behaviorID = d.EntryID
		}
	}

	for _, d := range drafts {
		if err := b.store.Upsert(d); err != nil {
			return err
		}
		if behaviorID != "" && d.KnowledgeType != models.KnowledgeSystemBehavior {
			if err := b.store.Link(d.EntryID, behaviorID, relationObservedIn); err != nil {
				return err
			}
		}
	}
	return nil
}

// QueryResult is the response shape for a knowledge query.
type QueryResult struct {
	Subject      string                   `json:"subject"`
	Entries      []*models.KnowledgeEntry `json:"entries"`
	TotalEntries int                      `json:"total_entries"`
}

// Query returns all entries for a subject, optionally filtered by type.
func (b *Base) Query(subject, knowledgeType string) (*QueryResult, error) {
	entries, err := b.store.BySubject(subject, knowledgeType)
	if err != nil {
		return nil, err
	}
	return &QueryResult{
		Subject:      subject,
		Entries:      entries,
		TotalEntries: len(entries),
	}, nil
}

// Summary describes the knowledge base as a whole.
type Summary struct {
	TotalEntries      int64            `json:"total_entries"`
	AverageConfidence float64          `json:"average_confidence"`
	EntriesByType     map[string]int64 `json:"entries_by_type"`
	LastUpdated       time.Time        `json:"last_updated"`
}

// GetSummary returns aggregate statistics over all stored knowledge.
func (b *Base) GetSummary() (*Summary, error) {
	total, avg, byType, last, err := b.store.Stats()
	if err != nil {
		return nil, err
	}
	return &Summary{
		TotalEntries:      total,
		AverageConfidence: avg,
		EntriesByType:     byType,
		LastUpdated:       last,
	}, nil
}
