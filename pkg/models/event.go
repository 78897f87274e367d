// Package models defines the shared data types exchanged between the
// validation engine and the learning core.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ValidationEvent is an immutable record of one validation outcome observed
// by the host system. Events are exchanged by value; the learning core never
// hands out references into its own state.
type ValidationEvent struct {
	EventID      string         `json:"event_id"`
	EventType    string         `json:"event_type"`
	Context      map[string]any `json:"context"`
	Result       map[string]any `json:"result,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	SourceSystem string         `json:"source_system"`
	Success      bool           `json:"success"`
	Confidence   float64        `json:"confidence"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// NewValidationEvent creates an event with a generated ID and the current
// timestamp. Context, result, and outcome fields are filled in by the caller.
func NewValidationEvent(eventType, sourceSystem string) *ValidationEvent {
	return &ValidationEvent{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		SourceSystem: sourceSystem,
		Timestamp:    time.Now(),
		Context:      map[string]any{},
	}
}

// Validate checks the event shape invariants. An event must carry a non-empty
// EventID and EventType, a non-nil Context, confidence within [0,1], and only
// JSON-compatible values in its free-form maps. Accepted values are rewritten
// in their normalized form (ints become float64) so every downstream consumer
// sees one representation per quantity. Events failing any check are rejected
// before any service sees them.
func (e *ValidationEvent) Validate() error {
	if e == nil {
		return fmt.Errorf("event is nil")
	}
	if e.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if e.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if e.Context == nil {
		return fmt.Errorf("context is required")
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", e.Confidence)
	}
	for _, m := range []map[string]any{e.Context, e.Result, e.Metadata} {
		for k, v := range m {
			norm, err := NormalizeValue(v)
			if err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			m[k] = norm
		}
	}
	return nil
}

// NormalizeValue restricts free-form map values to the closed set of
// JSON-compatible kinds: string, bool, nil, numeric types (normalized to
// float64), nested map[string]any, and []any. Anything else is rejected.
func NormalizeValue(v any) (any, error) {
	switch val := v.(type) {
	case nil, string, bool, float64:
		return val, nil
	case int:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case uint:
		return float64(val), nil
	case float32:
		return float64(val), nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			norm, err := NormalizeValue(inner)
			if err != nil {
				return nil, err
			}
			out[k] = norm
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			norm, err := NormalizeValue(inner)
			if err != nil {
				return nil, err
			}
			out[i] = norm
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// ClampConfidence bounds a confidence value to [0,1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
