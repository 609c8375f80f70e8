package selector

// Suitability weights. The function is a deliberately linear, explainable
// heuristic so operators can reason about why a lead landed where it did.
const (
	baseScore         = 100.0
	distanceWeight    = 2.0
	utilizationWeight = 30.0

	// Premium leads routed to clearly under-loaded locations get a bonus.
	premiumBonus          = 20.0
	premiumLeadScoreMin   = 80
	premiumUtilizationMax = 0.6

	// Facebook leads prefer locations that historically convert them well.
	facebookBonus          = 10.0
	facebookChannel        = "facebook"
	facebookPerformanceMin = 0.8
)

// Suitability computes the ranking score for one candidate.
func Suitability(distanceMiles, utilizationRate float64, leadScore int, source string, channelScore float64) float64 {
	score := baseScore - distanceWeight*distanceMiles - utilizationWeight*utilizationRate

	if leadScore >= premiumLeadScoreMin && utilizationRate < premiumUtilizationMax {
		score += premiumBonus
	}

	if source == facebookChannel && channelScore > facebookPerformanceMin {
		score += facebookBonus
	}

	if score < 0 {
		return 0
	}
	return score
}
