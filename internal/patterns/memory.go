package patterns

import (
	"sort"
	"sync"

	"github.com/ShayCichocki/vigil/pkg/models"
)

// similarityFloor is the minimum token-overlap score for a pattern to count
// as similar when no exact signature match exists.
const similarityFloor = 0.3

// candidatePool is how many recently seen patterns the fallback similarity
// scan considers.
const candidatePool = 200

// Memory is the pattern memory service: a bounded LRU cache in front of the
// durable patterns table, with similarity search over both.
type Memory struct {
	cache *Cache
	store *Store

	mergeMu sync.Mutex // serializes read-merge-write on the cache aggregate
}

// NewMemory creates pattern memory backed by the given store.
func NewMemory(store *Store, cacheCapacity int) *Memory {
	return &Memory{
		cache: NewCache(cacheCapacity),
		store: store,
	}
}

// Record folds an event into the in-memory aggregate and returns the
// single-event contribution to persist. The durable write is the caller's
// responsibility (typically scheduled on a background worker); Record itself
// only touches memory and, on a cache miss, a point read of the durable row.
func (m *Memory) Record(event *models.ValidationEvent) *models.ValidationPattern {
	delta := models.PatternFromEvent(event)

	m.mergeMu.Lock()
	defer m.mergeMu.Unlock()

	current, ok := m.cache.Get(delta.PatternID)
	if !ok {
		// Evicted or never cached: re-seed from the durable store. The cache
		// is a pure optimization, the durable row is authoritative.
		if stored, err := m.store.Get(delta.PatternID); err == nil && stored != nil {
			current = stored
			ok = true
		}
	}

	if ok {
		merged := *current
		merged.Merge(event.Success, event.Timestamp, event.Context)
		m.cache.Put(delta.PatternID, &merged)
	} else {
		m.cache.Put(delta.PatternID, delta)
	}

	return delta
}

// Persist applies a single-event contribution to the durable table.
func (m *Memory) Persist(delta *models.ValidationPattern) error {
	return m.store.Upsert(delta)
}

// scored pairs a pattern with its similarity to the query context.
type scored struct {
	pattern *models.ValidationPattern
	score   float64
}

// FindSimilar returns up to limit patterns matching the context, best first.
// Exact signature matches are preferred; when they don't fill the limit, the
// search falls back to token-overlap scoring against recently seen patterns.
// Results are ordered by success rate, then usage count.
func (m *Memory) FindSimilar(ctx map[string]any, limit int) ([]*models.ValidationPattern, error) {
	if limit <= 0 {
		return nil, nil
	}

	sig := models.ContextSignature(ctx)
	exact, err := m.store.BySignature(sig)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(exact))
	matches := make([]*models.ValidationPattern, 0, limit)
	for _, p := range exact {
		seen[p.PatternID] = true
		matches = append(matches, p)
	}

	if len(matches) < limit {
		queryTokens := models.ContextTokens(ctx)

		candidates, err := m.store.Recent(candidatePool)
		if err != nil {
			return nil, err
		}
		// Cached patterns may carry merges not yet persisted.
		candidates = append(candidates, m.cache.Recent(candidatePool)...)

		var fuzzy []scored
		for _, p := range candidates {
			if seen[p.PatternID] {
				continue
			}
			score := models.Jaccard(queryTokens, models.ContextTokens(p.PatternData))
			if score >= similarityFloor {
				seen[p.PatternID] = true
				fuzzy = append(fuzzy, scored{pattern: p, score: score})
			}
		}
		sort.Slice(fuzzy, func(i, j int) bool { return fuzzy[i].score > fuzzy[j].score })
		for _, sc := range fuzzy {
			matches = append(matches, sc.pattern)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].SuccessRate != matches[j].SuccessRate {
			return matches[i].SuccessRate > matches[j].SuccessRate
		}
		return matches[i].UsageCount > matches[j].UsageCount
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// SuccessRate returns the success rate for a pattern ID: O(1) from cache,
// falling back to a durable lookup, 0.0 if absent.
func (m *Memory) SuccessRate(id string) float64 {
	if p, ok := m.cache.Get(id); ok {
		return p.SuccessRate
	}
	if p, err := m.store.Get(id); err == nil && p != nil {
		return p.SuccessRate
	}
	return 0.0
}

// CacheLen returns the number of patterns currently cached.
func (m *Memory) CacheLen() int {
	return m.cache.Len()
}

// CacheStats returns cache hit, miss, and eviction counts.
func (m *Memory) CacheStats() (hits, misses, evictions int64) {
	return m.cache.Stats()
}

// StoredCount returns the number of durable patterns.
func (m *Memory) StoredCount() (int64, error) {
	return m.store.Count()
}
