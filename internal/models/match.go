package models

type RecommendationStrength string

const (
	StrengthHigh   RecommendationStrength = "high"
	StrengthMedium RecommendationStrength = "medium"
	StrengthLow    RecommendationStrength = "low"
)

type SuggestionType string

const (
	SuggestionDirect          SuggestionType = "direct"
	SuggestionEmerging        SuggestionType = "emerging"
	SuggestionDiversification SuggestionType = "diversification"
)

// MatchResult is the scored recommendation for one investor/startup pair.
// It is computed once and never mutated afterwards.
type MatchResult struct {
	CompatibilityScore     float64                `json:"compatibility_score"`
	TractionScore          float64                `json:"traction_score"`
	SectorSimilarity       float64                `json:"sector_similarity"`
	ConfidenceScore        float64                `json:"confidence_score"`
	RecommendationStrength RecommendationStrength `json:"recommendation_strength"`
	SuggestionType         SuggestionType         `json:"suggestion_type"`
	AIAnalysis             string                 `json:"ai_analysis"`
	MatchExplanation       string                 `json:"match_explanation"`
}

// RankedMatch pairs a startup identifier with its match result.
type RankedMatch struct {
	StartupID string         `json:"startupId"`
	Name      string         `json:"name,omitempty"`
	Rank      int            `json:"rank"`
	Match     *MatchResult   `json:"match"`
	Startup   StartupProfile `json:"startup"`
}
