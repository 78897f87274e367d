package knowledge

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/vigil/pkg/models"
)

func newTestBase(t *testing.T) *Base {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "knowledge.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewBase(store)
}

func knowledgeEvent(success bool, confidence float64) *models.ValidationEvent {
	return &models.ValidationEvent{
		EventID:      "evt",
		EventType:    "evidence_validation",
		Context:      map[string]any{"target": "deployment"},
		Timestamp:    time.Now(),
		SourceSystem: "validator",
		Success:      success,
		Confidence:   confidence,
	}
}

func draftsByType(drafts []*models.KnowledgeEntry) map[string]*models.KnowledgeEntry {
	out := make(map[string]*models.KnowledgeEntry, len(drafts))
	for _, d := range drafts {
		out[d.KnowledgeType] = d
	}
	return out
}

func TestExtract_HighConfidenceSuccess(t *testing.T) {
	b := newTestBase(t)
	drafts := draftsByType(b.Extract(knowledgeEvent(true, 0.9)))

	sp, ok := drafts[models.KnowledgeSuccessfulPattern]
	if !ok {
		t.Fatalf("no successful_pattern draft for high-confidence success")
	}
	if sp.Subject != "evidence_validation:validator" {
		t.Errorf("Subject = %v, want evidence_validation:validator", sp.Subject)
	}
	if sp.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", sp.Confidence)
	}
	if _, ok := drafts[models.KnowledgeSystemBehavior]; !ok {
		t.Errorf("no system_behavior draft; every event should produce one")
	}
}

func TestExtract_LowConfidenceSuccessSkipsPattern(t *testing.T) {
	b := newTestBase(t)
	drafts := draftsByType(b.Extract(knowledgeEvent(true, 0.5)))

	if _, ok := drafts[models.KnowledgeSuccessfulPattern]; ok {
		t.Errorf("successful_pattern extracted below quality threshold")
	}
	if _, ok := drafts[models.KnowledgeSystemBehavior]; !ok {
		t.Errorf("system_behavior draft missing")
	}
}

func TestExtract_Failure(t *testing.T) {
	b := newTestBase(t)
	drafts := draftsByType(b.Extract(knowledgeEvent(false, 0.3)))

	fp, ok := drafts[models.KnowledgeFailurePattern]
	if !ok {
		t.Fatalf("no failure_pattern draft for a failed event")
	}
	if got, want := fp.Confidence, 0.7; got < want-1e-9 || got > want+1e-9 {
		t.Errorf("failure_pattern Confidence = %v, want 1 - event confidence = %v", got, want)
	}
}

func TestExtract_RollingSourceRate(t *testing.T) {
	b := newTestBase(t)
	b.Extract(knowledgeEvent(true, 0.9))
	b.Extract(knowledgeEvent(true, 0.9))
	drafts := draftsByType(b.Extract(knowledgeEvent(false, 0.2)))

	sb := drafts[models.KnowledgeSystemBehavior]
	rate, ok := sb.Content["success_rate"].(float64)
	if !ok {
		t.Fatalf("success_rate missing from system_behavior content: %v", sb.Content)
	}
	if want := 2.0 / 3.0; rate < want-1e-9 || rate > want+1e-9 {
		t.Errorf("success_rate = %v, want %v", rate, want)
	}
}

func TestPersist_AndSummary(t *testing.T) {
	b := newTestBase(t)
	if err := b.Persist(b.Extract(knowledgeEvent(true, 0.9))); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	summary, err := b.GetSummary()
	if err != nil {
		t.Fatalf("GetSummary() error = %v", err)
	}
	if summary.TotalEntries < 1 {
		t.Errorf("TotalEntries = %d, want >= 1", summary.TotalEntries)
	}
	if summary.EntriesByType[models.KnowledgeSystemBehavior] != 1 {
		t.Errorf("EntriesByType[system_behavior] = %d, want 1",
			summary.EntriesByType[models.KnowledgeSystemBehavior])
	}
	if summary.AverageConfidence <= 0 || summary.AverageConfidence > 1 {
		t.Errorf("AverageConfidence = %v, want in (0,1]", summary.AverageConfidence)
	}
	if summary.LastUpdated.IsZero() {
		t.Errorf("LastUpdated is zero, want set")
	}
}

func TestPersist_MergesByWeightedAverage(t *testing.T) {
	b := newTestBase(t)

	// Two successes with different confidences merge into one entry whose
	// confidence is the evidence-weighted average.
	if err := b.Persist(b.Extract(knowledgeEvent(true, 0.9))); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if err := b.Persist(b.Extract(knowledgeEvent(true, 0.75))); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	res, err := b.Query("evidence_validation:validator", models.KnowledgeSuccessfulPattern)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if res.TotalEntries != 1 {
		t.Fatalf("TotalEntries = %d, want 1 merged entry", res.TotalEntries)
	}

	entry := res.Entries[0]
	if entry.EvidenceCount != 2 {
		t.Errorf("EvidenceCount = %d, want 2", entry.EvidenceCount)
	}
	if got, want := entry.Confidence, (0.9+0.75)/2; got < want-1e-9 || got > want+1e-9 {
		t.Errorf("Confidence = %v, want %v", got, want)
	}
}

func TestUpsert_MergeClampsConfidence(t *testing.T) {
	b := newTestBase(t)

	entry := &models.KnowledgeEntry{
		EntryID:       models.EntryID(models.KnowledgeSuccessfulPattern, "evidence_validation:validator"),
		KnowledgeType: models.KnowledgeSuccessfulPattern,
		Subject:       "evidence_validation:validator",
		Confidence:    1.0,
		EvidenceCount: 1,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := b.store.Upsert(entry); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := b.store.Upsert(entry); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	res, err := b.Query("evidence_validation:validator", models.KnowledgeSuccessfulPattern)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if got := res.Entries[0].Confidence; got > 1.0 {
		t.Errorf("Confidence = %v, want <= 1.0", got)
	}
	if got := res.Entries[0].EvidenceCount; got != 2 {
		t.Errorf("EvidenceCount = %v, want 2", got)
	}
}

func TestQuery_FilterByType(t *testing.T) {
	b := newTestBase(t)
	b.Persist(b.Extract(knowledgeEvent(true, 0.9)))
	b.Persist(b.Extract(knowledgeEvent(false, 0.3)))

	all, err := b.Query("evidence_validation:validator", "")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if all.TotalEntries != 2 {
		t.Errorf("unfiltered TotalEntries = %d, want 2 (success + failure patterns)", all.TotalEntries)
	}

	failures, err := b.Query("evidence_validation:validator", models.KnowledgeFailurePattern)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if failures.TotalEntries != 1 {
		t.Errorf("filtered TotalEntries = %d, want 1", failures.TotalEntries)
	}
	if failures.Entries[0].KnowledgeType != models.KnowledgeFailurePattern {
		t.Errorf("entry type = %v, want failure_pattern", failures.Entries[0].KnowledgeType)
	}
}

func TestPersist_LinksPatternsToBehavior(t *testing.T) {
	b := newTestBase(t)
	drafts := b.Extract(knowledgeEvent(true, 0.9))
	if err := b.Persist(drafts); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	byType := draftsByType(drafts)
	related, err := b.store.Related(byType[models.KnowledgeSuccessfulPattern].EntryID)
	if err != nil {
		t.Fatalf("Related() error = %v", err)
	}
	if len(related) != 1 {
		t.Fatalf("Related() returned %d links, want 1", len(related))
	}
	if related[0] != byType[models.KnowledgeSystemBehavior].EntryID {
		t.Errorf("pattern linked to %v, want the system_behavior entry", related[0])
	}
}
