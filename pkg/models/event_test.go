package models

import (
	"testing"
	"time"
)

func validEvent() *ValidationEvent {
	return &ValidationEvent{
		EventID:      "evt-1",
		EventType:    "evidence_validation",
		Context:      map[string]any{"target": "deployment", "namespace": "prod"},
		Timestamp:    time.Now(),
		SourceSystem: "evidence_validator",
		Success:      true,
		Confidence:   0.9,
	}
}

func TestValidationEvent_Validate(t *testing.T) {
	if err := validEvent().Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func TestValidationEvent_Validate_MissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ValidationEvent)
	}{
		{"missing event_id", func(e *ValidationEvent) { e.EventID = "" }},
		{"missing event_type", func(e *ValidationEvent) { e.EventType = "" }},
		{"nil context", func(e *ValidationEvent) { e.Context = nil }},
		{"confidence below range", func(e *ValidationEvent) { e.Confidence = -0.1 }},
		{"confidence above range", func(e *ValidationEvent) { e.Confidence = 1.5 }},
		{"non-json value", func(e *ValidationEvent) { e.Context["ch"] = make(chan int) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEvent()
			tt.mutate(e)
			if err := e.Validate(); err == nil {
				t.Errorf("Validate() = nil, want error")
			}
		})
	}
}

func TestValidationEvent_Validate_NormalizesInPlace(t *testing.T) {
	e := validEvent()
	e.Context["retries"] = int32(3)
	e.Metadata = map[string]any{"shard": uint(7)}

	if err := e.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}

	if v, ok := e.Context["retries"].(float64); !ok || v != 3 {
		t.Errorf("Context[retries] = %v (%T), want float64(3)", e.Context["retries"], e.Context["retries"])
	}
	if v, ok := e.Metadata["shard"].(float64); !ok || v != 7 {
		t.Errorf("Metadata[shard] = %v (%T), want float64(7)", e.Metadata["shard"], e.Metadata["shard"])
	}
}

func TestNewValidationEvent(t *testing.T) {
	e := NewValidationEvent("test_validation", "unit-test")
	if e.EventID == "" {
		t.Errorf("EventID is empty, want generated id")
	}
	if e.EventType != "test_validation" {
		t.Errorf("EventType = %v, want test_validation", e.EventType)
	}
	if e.Context == nil {
		t.Errorf("Context is nil, want empty map")
	}
}

func TestNormalizeValue_IntBecomesFloat(t *testing.T) {
	v, err := NormalizeValue(42)
	if err != nil {
		t.Fatalf("NormalizeValue(42) error = %v", err)
	}
	if f, ok := v.(float64); !ok || f != 42 {
		t.Errorf("NormalizeValue(42) = %v (%T), want float64(42)", v, v)
	}
}

func TestNormalizeValue_Nested(t *testing.T) {
	_, err := NormalizeValue(map[string]any{
		"list": []any{"a", 1, true, nil},
		"map":  map[string]any{"inner": 2.5},
	})
	if err != nil {
		t.Errorf("NormalizeValue(nested) error = %v, want nil", err)
	}
}

func TestClampConfidence(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-0.5, 0}, {0, 0}, {0.5, 0.5}, {1, 1}, {1.5, 1},
	}
	for _, tt := range tests {
		if got := ClampConfidence(tt.in); got != tt.want {
			t.Errorf("ClampConfidence(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
