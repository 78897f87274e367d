package analytics

import (
	"sync"

	"github.com/ShayCichocki/vigil/pkg/models"
)

// Service keeps a capped rolling window of recent events in memory and a
// durable event table behind it. The window serves similarity queries
// without touching disk; the durable table serves trend aggregation.
type Service struct {
	store         *Store
	minSampleSize int

	mu     sync.RWMutex
	window []*EventRecord // ring, oldest first
	cap    int
}

// NewService creates an analytics service with the given rolling-window
// capacity and minimum sample size for insight generation.
func NewService(store *Store, windowSize, minSampleSize int) *Service {
	if windowSize <= 0 {
		windowSize = 10000
	}
	if minSampleSize <= 0 {
		minSampleSize = 5
	}
	return &Service{
		store:         store,
		minSampleSize: minSampleSize,
		window:        make([]*EventRecord, 0, windowSize),
		cap:           windowSize,
	}
}

// Record appends an event to the rolling window and returns the record to
// persist. Like pattern memory, the durable write is scheduled by the
// caller; Record itself never touches disk.
func (s *Service) Record(event *models.ValidationEvent, processingMS float64) *EventRecord {
	rec := &EventRecord{
		EventID:      event.EventID,
		EventType:    event.EventType,
		Signature:    models.ContextSignature(event.Context),
		Context:      event.Context,
		SourceSystem: event.SourceSystem,
		Success:      event.Success,
		Confidence:   event.Confidence,
		ProcessingMS: processingMS,
		Timestamp:    event.Timestamp,
	}

	s.mu.Lock()
	if len(s.window) >= s.cap {
		// Drop the oldest entry to stay within the cap.
		copy(s.window, s.window[1:])
		s.window = s.window[:len(s.window)-1]
	}
	s.window = append(s.window, rec)
	s.mu.Unlock()

	return rec
}

// Persist writes an event record to the durable table and its trend bucket.
func (s *Service) Persist(rec *EventRecord) error {
	return s.store.Insert(rec)
}

// WindowLen returns the number of events currently in the rolling window.
func (s *Service) WindowLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.window)
}

// similarEvents returns window events whose context matches the query, by
// exact signature or token overlap above the similarity floor.
func (s *Service) similarEvents(ctx map[string]any) []*EventRecord {
	sig := models.ContextSignature(ctx)
	queryTokens := models.ContextTokens(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var similar []*EventRecord
	for _, rec := range s.window {
		if rec.Signature == sig {
			similar = append(similar, rec)
			continue
		}
		if models.Jaccard(queryTokens, models.ContextTokens(rec.Context)) >= similarityFloor {
			similar = append(similar, rec)
		}
	}
	return similar
}

// similarityFloor mirrors the pattern-memory fallback threshold.
const similarityFloor = 0.3
