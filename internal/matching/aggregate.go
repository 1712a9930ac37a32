package matching

import (
	"fmt"
	"math"

	"investlink-workers/internal/models"
)

// Confidence weights. They sum to 1.0 so the confidence stays in [0,1].
const (
	CompatibilityWeight = 0.6
	TractionWeight      = 0.3
	SectorWeight        = 0.1
)

const (
	highStrengthThreshold   = 0.8
	mediumStrengthThreshold = 0.6

	directCompatibilityThreshold = 0.8
	emergingSectorThreshold      = 0.7
)

// Scores are the three upstream inputs of one match.
type Scores struct {
	Compatibility    float64
	Traction         float64
	SectorSimilarity float64
}

func (s Scores) validate() error {
	for name, v := range map[string]float64{
		"compatibility":     s.Compatibility,
		"traction":          s.Traction,
		"sector_similarity": s.SectorSimilarity,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s score is %v", ErrIncompleteScoreInput, name, v)
		}
	}
	return nil
}

// Confidence returns the weighted confidence score.
func Confidence(s Scores) float64 {
	return CompatibilityWeight*s.Compatibility +
		TractionWeight*s.Traction +
		SectorWeight*s.SectorSimilarity
}

// Strength maps a confidence score onto a recommendation band. Each band
// includes its lower edge.
func Strength(confidence float64) models.RecommendationStrength {
	switch {
	case confidence >= highStrengthThreshold:
		return models.StrengthHigh
	case confidence >= mediumStrengthThreshold:
		return models.StrengthMedium
	default:
		return models.StrengthLow
	}
}

// Suggestion classifies the match. Compatibility is checked before sector
// similarity.
func Suggestion(s Scores) models.SuggestionType {
	switch {
	case s.Compatibility >= directCompatibilityThreshold:
		return models.SuggestionDirect
	case s.SectorSimilarity >= emergingSectorThreshold:
		return models.SuggestionEmerging
	default:
		return models.SuggestionDiversification
	}
}

// Aggregate combines the scores into a MatchResult. It fails with
// ErrIncompleteScoreInput when any score is NaN or infinite.
func Aggregate(s Scores) (*models.MatchResult, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	confidence := Confidence(s)
	suggestion := Suggestion(s)

	return &models.MatchResult{
		CompatibilityScore:     s.Compatibility,
		TractionScore:          s.Traction,
		SectorSimilarity:       s.SectorSimilarity,
		ConfidenceScore:        confidence,
		RecommendationStrength: Strength(confidence),
		SuggestionType:         suggestion,
		AIAnalysis:             analysisText(s),
		MatchExplanation:       explanationText(s, suggestion),
	}, nil
}
