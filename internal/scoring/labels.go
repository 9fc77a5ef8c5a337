package scoring

// ThresholdStars maps a percentile to stars through the fixed researcher
// threshold table: every 10 points above the 20th percentile buys half a
// star, capped at 5.0.
func ThresholdStars(percentile float64) float64 {
	switch {
	case percentile >= 90:
		return 5.0
	case percentile >= 80:
		return 4.5
	case percentile >= 70:
		return 4.0
	case percentile >= 60:
		return 3.5
	case percentile >= 50:
		return 3.0
	case percentile >= 40:
		return 2.5
	case percentile >= 30:
		return 2.0
	case percentile >= 20:
		return 1.5
	default:
		return 1.0
	}
}

// ContinuousStars maps a percentile linearly onto [1.0, 5.0] and rounds
// to the nearest half step. Used for the professor surface; both
// strategies are kept because different pages render them.
func ContinuousStars(percentile float64) float64 {
	return roundToHalf(1 + 4*(percentile/100))
}

// ResearcherStarLabel returns the UI label for a researcher star rating.
func ResearcherStarLabel(stars float64) string {
	switch {
	case stars >= 4.5:
		return "Excellent match"
	case stars >= 3.5:
		return "Very good match"
	case stars >= 2.5:
		return "Good match"
	case stars >= 1.5:
		return "Fair match"
	default:
		return "Poor match"
	}
}

// ProfessorStarLabel returns the UI label for a professor star rating.
// The table is finer-grained than the researcher one.
func ProfessorStarLabel(stars float64) string {
	switch {
	case stars >= 4.5:
		return "Excellent fit"
	case stars >= 4.0:
		return "Very good fit"
	case stars >= 3.5:
		return "Good fit"
	case stars >= 3.0:
		return "Decent fit"
	case stars >= 2.5:
		return "Moderate fit"
	case stars >= 2.0:
		return "Lower likelihood"
	default:
		return "Limited info"
	}
}
