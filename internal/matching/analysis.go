package matching

import (
	"fmt"
	"math"
	"strings"

	"investlink-workers/internal/models"
)

const (
	compatibilityExcellent = "Excellent compatibility match with strong alignment across investment criteria."
	compatibilityGood      = "Good compatibility with some areas for alignment."
	compatibilityModerate  = "Moderate compatibility - consider if this aligns with your investment thesis."

	tractionStrong   = "Strong traction indicators suggest promising growth potential."
	tractionModerate = "Moderate traction with room for growth."
	tractionEarly    = "Early stage with potential for development."

	sectorHigh      = "High sector alignment with your investment focus."
	sectorModerate  = "Moderate sector similarity offering diversification opportunities."
	sectorDifferent = "Different sector focus providing portfolio diversification."

	explainDirect          = "This is a direct match based on your investment criteria and the startup's profile."
	explainEmerging        = "While not a perfect sector match, this startup shows strong potential in an emerging area."
	explainDiversification = "This represents a diversification opportunity that could strengthen your portfolio."
)

func compatibilityTier(score float64) string {
	switch {
	case score >= 0.8:
		return compatibilityExcellent
	case score >= 0.6:
		return compatibilityGood
	default:
		return compatibilityModerate
	}
}

func tractionTier(score float64) string {
	switch {
	case score >= 0.7:
		return tractionStrong
	case score >= 0.5:
		return tractionModerate
	default:
		return tractionEarly
	}
}

func sectorTier(score float64) string {
	switch {
	case score >= 0.8:
		return sectorHigh
	case score >= 0.6:
		return sectorModerate
	default:
		return sectorDifferent
	}
}

func analysisText(s Scores) string {
	return strings.Join([]string{
		compatibilityTier(s.Compatibility),
		tractionTier(s.Traction),
		sectorTier(s.SectorSimilarity),
	}, " ")
}

func explanationText(s Scores, suggestion models.SuggestionType) string {
	var lead string
	switch suggestion {
	case models.SuggestionDirect:
		lead = explainDirect
	case models.SuggestionEmerging:
		lead = explainEmerging
	default:
		lead = explainDiversification
	}

	return strings.Join([]string{
		lead,
		fmt.Sprintf("Compatibility Score: %d%%", Percent(s.Compatibility)),
		fmt.Sprintf("Traction Score: %d%%", Percent(s.Traction)),
		fmt.Sprintf("Sector Similarity: %d%%", Percent(s.SectorSimilarity)),
	}, " ")
}

// Percent converts a [0,1] score to a whole percentage, rounding half up.
func Percent(score float64) int {
	return int(math.Floor(score*100 + 0.5))
}
