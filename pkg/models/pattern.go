package models

import "time"

// ValidationPattern is a mutable aggregate of validation outcomes sharing a
// context signature. Patterns are created on first sight of a signature and
// re-averaged on every subsequent matching event. They are never deleted
// automatically; under cache pressure they are evicted from memory only, the
// durable store keeps them.
type ValidationPattern struct {
	PatternID        string         `json:"pattern_id"`
	PatternType      string         `json:"pattern_type"`
	ContextSignature string         `json:"context_signature"`
	SuccessRate      float64        `json:"success_rate"`
	UsageCount       int64          `json:"usage_count"`
	FirstSeen        time.Time      `json:"first_seen"`
	LastSeen         time.Time      `json:"last_seen"`
	PatternData      map[string]any `json:"pattern_data,omitempty"`
}

// Merge folds one more outcome into the pattern using a count-weighted
// running mean, so processing the same outcome twice yields the arithmetic
// mean of the two contributions.
func (p *ValidationPattern) Merge(success bool, seen time.Time, data map[string]any) {
	outcome := 0.0
	if success {
		outcome = 1.0
	}
	p.SuccessRate = (p.SuccessRate*float64(p.UsageCount) + outcome) / float64(p.UsageCount+1)
	p.SuccessRate = ClampConfidence(p.SuccessRate)
	p.UsageCount++
	p.LastSeen = seen
	if data != nil {
		p.PatternData = data
	}
}

// PatternFromEvent builds the initial pattern aggregate for an event.
func PatternFromEvent(e *ValidationEvent) *ValidationPattern {
	outcome := 0.0
	if e.Success {
		outcome = 1.0
	}
	sig := ContextSignature(e.Context)
	return &ValidationPattern{
		PatternID:        PatternID(e.EventType, sig),
		PatternType:      e.EventType,
		ContextSignature: sig,
		SuccessRate:      outcome,
		UsageCount:       1,
		FirstSeen:        e.Timestamp,
		LastSeen:         e.Timestamp,
		PatternData:      e.Context,
	}
}
