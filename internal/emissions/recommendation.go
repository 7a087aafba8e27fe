package emissions

// Recommendation tiers.
const (
	TierHigh     = "high"
	TierModerate = "moderate"
	TierLow      = "low"
)

// Advisory messages, one per tier.
const (
	RecommendationHigh     = "Consider using public transport, reducing flights, and conserving electricity."
	RecommendationModerate = "Good, but you can still reduce energy consumption and travel emissions."
	RecommendationLow      = "Excellent! Keep up your eco-friendly habits."
)

// Tier classifies a total: above 100 is high, above 50 is moderate, anything else is low.
func Tier(total float64) string {
	switch {
	case total > 100:
		return TierHigh
	case total > 50:
		return TierModerate
	default:
		return TierLow
	}
}

// Recommend returns the advisory message for a total emission value.
func Recommend(total float64) string {
	switch Tier(total) {
	case TierHigh:
		return RecommendationHigh
	case TierModerate:
		return RecommendationModerate
	default:
		return RecommendationLow
	}
}
