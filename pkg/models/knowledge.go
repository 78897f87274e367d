package models

import "time"

// Knowledge entry types extracted from validation events.
const (
	KnowledgeSuccessfulPattern = "successful_pattern"
	KnowledgeFailurePattern    = "failure_pattern"
	KnowledgeSystemBehavior    = "system_behavior"
)

// KnowledgeEntry is a durable fact derived from one or more validation
// events, keyed by (knowledge_type, subject). Conflicting updates merge at
// the store via evidence-count-weighted confidence averaging; entries here
// are single-event drafts or rows read back from the store.
type KnowledgeEntry struct {
	EntryID       string         `json:"entry_id"`
	KnowledgeType string         `json:"knowledge_type"`
	Subject       string         `json:"subject"`
	Content       map[string]any `json:"content"`
	Confidence    float64        `json:"confidence"`
	EvidenceCount int64          `json:"evidence_count"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
