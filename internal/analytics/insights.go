package analytics

import (
	"fmt"
	"math"
	"time"

	"github.com/ShayCichocki/vigil/pkg/models"
)

// insightConfidenceCap keeps insight confidence strictly below 1.0 no
// matter how large the sample grows.
const insightConfidenceCap = 0.95

// GenerateInsights derives recommendations and predictions for a context
// from similar historical events. Returns nil when fewer than the minimum
// sample size of similar events exist.
func (s *Service) GenerateInsights(ctx map[string]any) (*models.ValidationInsights, error) {
	similar := s.similarEvents(ctx)
	if len(similar) < s.minSampleSize {
		return nil, nil
	}

	successRate, avgConfidence := sampleStats(similar)

	insights := &models.ValidationInsights{
		InsightType: "historical_analysis",
		Confidence:  sampleConfidence(len(similar)),
		Recommendations: []models.Recommendation{
			recommendFor(successRate, len(similar)),
		},
		Predictions: []models.Prediction{
			{Metric: "success_probability", Value: successRate, SampleSize: len(similar)},
			{Metric: "expected_confidence", Value: avgConfidence, SampleSize: len(similar)},
		},
		GeneratedAt: time.Now(),
	}
	return insights, nil
}

// PredictOutcome is a thin wrapper over the same similarity search,
// returning the raw probability numbers. Returns nil below the minimum
// sample size.
func (s *Service) PredictOutcome(ctx map[string]any) (*models.OutcomePrediction, error) {
	similar := s.similarEvents(ctx)
	if len(similar) < s.minSampleSize {
		return nil, nil
	}

	successRate, avgConfidence := sampleStats(similar)
	return &models.OutcomePrediction{
		SuccessProbability:   successRate,
		ExpectedConfidence:   avgConfidence,
		SampleSize:           len(similar),
		PredictionConfidence: sampleConfidence(len(similar)),
	}, nil
}

// AnalyzeTrends computes aggregate metrics for the last 24 hours, the last
// 7 days, and overall, each with a per-source-system breakdown. Returns nil
// when fewer than the minimum sample size of events have been recorded.
func (s *Service) AnalyzeTrends() (map[string]any, error) {
	total, err := s.store.TotalEvents()
	if err != nil {
		return nil, err
	}
	if total < int64(s.minSampleSize) {
		return nil, nil
	}

	now := time.Now()
	windows := []struct {
		name   string
		cutoff time.Time
	}{
		{"last_24h", now.Add(-24 * time.Hour)},
		{"last_7d", now.Add(-7 * 24 * time.Hour)},
		{"overall", time.Time{}},
	}

	out := make(map[string]any, len(windows)+1)
	for _, w := range windows {
		m, err := s.store.aggregateSince(w.cutoff)
		if err != nil {
			return nil, fmt.Errorf("aggregate %s: %w", w.name, err)
		}
		out[w.name] = m
	}
	out["generated_at"] = now
	return out, nil
}

// sampleStats returns the success fraction and mean confidence of a sample.
func sampleStats(sample []*EventRecord) (successRate, avgConfidence float64) {
	if len(sample) == 0 {
		return 0, 0
	}
	successes := 0
	confidenceSum := 0.0
	for _, rec := range sample {
		if rec.Success {
			successes++
		}
		confidenceSum += rec.Confidence
	}
	return float64(successes) / float64(len(sample)), confidenceSum / float64(len(sample))
}

// sampleConfidence scales insight confidence with sample size, capped
// strictly below 1.0.
func sampleConfidence(n int) float64 {
	return math.Min(insightConfidenceCap, float64(n)/20.0)
}

// recommendFor maps a historical success rate onto a recommendation.
func recommendFor(successRate float64, sampleSize int) models.Recommendation {
	switch {
	case successRate >= 0.8:
		return models.Recommendation{
			Kind:    "proceed",
			Message: fmt.Sprintf("historical performance is good (%.0f%% success over %d similar validations), low risk", successRate*100, sampleSize),
			Risk:    "low",
			Score:   successRate,
		}
	case successRate <= 0.4:
		return models.Recommendation{
			Kind:    "caution",
			Message: fmt.Sprintf("high historical failure rate (%.0f%% success over %d similar validations), proceed with caution", successRate*100, sampleSize),
			Risk:    "high",
			Score:   successRate,
		}
	default:
		return models.Recommendation{
			Kind:    "review",
			Message: fmt.Sprintf("mixed historical outcomes (%.0f%% success over %d similar validations)", successRate*100, sampleSize),
			Risk:    "medium",
			Score:   successRate,
		}
	}
}
