package models

import "time"

// Recommendation is a structured suggestion derived from historical outcomes.
type Recommendation struct {
	Kind    string  `json:"kind"`
	Message string  `json:"message"`
	Risk    string  `json:"risk"`
	Score   float64 `json:"score"`
}

// Prediction is a structured forecast about a pending validation.
type Prediction struct {
	Metric     string  `json:"metric"`
	Value      float64 `json:"value"`
	SampleSize int     `json:"sample_size"`
}

// ValidationInsights is the ephemeral response to an insight query. It is
// constructed fresh per query and never persisted.
type ValidationInsights struct {
	InsightType     string           `json:"insight_type"`
	Confidence      float64          `json:"confidence"`
	Recommendations []Recommendation `json:"recommendations"`
	Predictions     []Prediction     `json:"predictions"`
	PatternsMatched []string         `json:"patterns_matched"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

// OutcomePrediction is the result of a direct outcome prediction query.
type OutcomePrediction struct {
	SuccessProbability   float64 `json:"success_probability"`
	ExpectedConfidence   float64 `json:"expected_confidence"`
	SampleSize           int     `json:"sample_size"`
	PredictionConfidence float64 `json:"prediction_confidence"`
}
