package scoring

import "github.com/researchbridge/backend/internal/types"

// Researcher weight table. Relevance dominates because it measures how
// well the entity matches the active search; accessibility is a weak
// signal by comparison.
var researcherConfig = Config{
	Weights: Weights{
		Linear: map[string]float64{
			"relevance":     1.5,
			"accessibility": 0.4,
		},
		Scaled: map[string]float64{
			"productivity": 0.7,
			"impact":       0.9,
		},
	},
	BoostStep: 0.3,
	BoostCap:  1.5,
	Stars:     ThresholdStars,
}

// citationAnomalyRatio marks records whose citations-per-work ratio
// suggests they are written about rather than active researchers.
const citationAnomalyRatio = 20

// ResearcherBreakdown exposes the sub-scores behind a researcher rating.
// Productivity and impact are batch z-scores; the others are 0-1.
type ResearcherBreakdown struct {
	Relevance     float64 `json:"relevance"`
	Productivity  float64 `json:"productivity"`
	Impact        float64 `json:"impact"`
	Accessibility float64 `json:"accessibility"`
}

// ResearcherScore is the full scoring output for one researcher.
type ResearcherScore struct {
	Overall    float64             `json:"overall"`
	Stars      float64             `json:"stars"`
	Percentile float64             `json:"percentile"`
	Breakdown  ResearcherBreakdown `json:"breakdown"`
	Reasons    []string            `json:"reasons"`
	Confidence Confidence          `json:"confidence"`
}

type researcherMetrics struct {
	relevance     float64
	productivity  float64
	impact        float64
	accessibility float64
}

// relevanceScore is matched works over total works. A zero denominator
// yields the neutral 0.5 so entities with no reported total are neither
// rewarded nor penalized.
func relevanceScore(r types.Researcher) float64 {
	total := r.TotalWorks()
	if total == 0 {
		return 0.5
	}
	return clamp01(float64(r.MatchedWorksCount) / float64(total))
}

// accessibilityScore rewards maintained profiles: ORCID indicates an
// actively curated professional presence, an institution an active post.
func accessibilityScore(r types.Researcher) float64 {
	score := 0.5
	if r.ORCID != "" {
		score += 0.3
	}
	if r.HasInstitution() {
		score += 0.2
	}
	return clamp01(score)
}

func extractResearcherMetrics(r types.Researcher) researcherMetrics {
	return researcherMetrics{
		relevance:     relevanceScore(r),
		productivity:  log1p(float64(r.TotalWorks())),
		impact:        log1p(float64(r.Citations())),
		accessibility: accessibilityScore(r),
	}
}

// hasCitationAnomaly reports the written-about pattern: more than twenty
// citations per work with at least one work on record.
func hasCitationAnomaly(r types.Researcher) bool {
	total := r.TotalWorks()
	return total > 0 && r.Citations() > total*citationAnomalyRatio
}

// ScoreResearchers scores a batch of researchers relative to each other.
// Resume keywords, when supplied, add a bounded boost to every entity in
// the batch: researchers were already matched against the search query,
// so the keywords sharpen the whole result set rather than individual
// entries. The returned map is keyed by researcher ID; ids are assumed
// unique within the batch.
func ScoreResearchers(researchers []types.Researcher, resumeKeywords []string) map[string]ResearcherScore {
	if len(researchers) == 0 {
		return map[string]ResearcherScore{}
	}

	metrics := make([]researcherMetrics, len(researchers))
	entities := make([]batchEntity, len(researchers))
	for i, r := range researchers {
		m := extractResearcherMetrics(r)
		metrics[i] = m

		r := r
		entities[i] = batchEntity{
			id: r.ID,
			linear: map[string]float64{
				"relevance":     m.relevance,
				"accessibility": m.accessibility,
			},
			scaled: map[string]float64{
				"productivity": m.productivity,
				"impact":       m.impact,
			},
			boostMatches: len(resumeKeywords),
			override: func(raw float64) float64 {
				// Blocklist first: guaranteed last place. Otherwise a
				// missing institution suppresses the score near-totally
				// but not absolutely.
				if IsFamousFigure(r.Name) {
					raw = -100
				} else if !r.HasInstitution() {
					raw *= 0.05
				}
				// Applied separately: an extreme citations-per-work
				// ratio marks a record as written about, not writing.
				if hasCitationAnomaly(r) {
					raw *= 0.2
				}
				return raw
			},
		}
	}

	ranked := researcherConfig.run(entities)

	result := make(map[string]ResearcherScore, len(researchers))
	for i, r := range researchers {
		m := metrics[i]
		rk := ranked[i]
		result[r.ID] = ResearcherScore{
			Overall:    rk.raw,
			Stars:      rk.stars,
			Percentile: rk.percentile,
			Breakdown: ResearcherBreakdown{
				Relevance:     m.relevance,
				Productivity:  rk.z["productivity"],
				Impact:        rk.z["impact"],
				Accessibility: m.accessibility,
			},
			Reasons:    researcherReasons(r, m, rk),
			Confidence: researcherConfidence(r),
		}
	}
	return result
}

// researcherReasons explains a score from the same intermediate values
// the pipeline used. Purely explanatory: nothing here feeds back into
// the raw score.
func researcherReasons(r types.Researcher, m researcherMetrics, rk rankedEntity) []string {
	if IsFamousFigure(r.Name) {
		return []string{"⛔ Known historical/political figure (not an active researcher)"}
	}

	var reasons []string
	switch {
	case m.relevance > 0.8:
		reasons = append(reasons, "Very high match ratio for your search")
	case m.relevance > 0.6:
		reasons = append(reasons, "Good match ratio for your search")
	case m.relevance < 0.3:
		reasons = append(reasons, "Lower match ratio (fewer relevant works)")
	}

	prodZ := rk.z["productivity"]
	if prodZ > 1.0 {
		reasons = append(reasons, "High research productivity")
	} else if prodZ < -1.0 {
		reasons = append(reasons, "Limited publication history")
	}

	impactZ := rk.z["impact"]
	switch {
	case impactZ > 1.5:
		reasons = append(reasons, "Very high citation impact")
	case impactZ > 0.5:
		reasons = append(reasons, "Good citation impact")
	case impactZ < -0.5:
		reasons = append(reasons, "Lower citation count (may be early career)")
	}

	if r.ORCID != "" {
		reasons = append(reasons, "Has ORCID (professional profile maintained)")
	}
	if !r.HasInstitution() {
		reasons = append(reasons, "⚠️ No current institution listed (may not be active researcher)")
	}
	if hasCitationAnomaly(r) {
		reasons = append(reasons, "⚠️ Very high citations-to-works ratio (may be historical/public figure)")
	}
	return reasons
}

// researcherConfidence counts how much of the optional record was
// populated. Note the works threshold reads the reported total only; a
// record carrying just a matched count stays below it.
func researcherConfidence(r types.Researcher) Confidence {
	hasBasicInfo := r.HasInstitution() && r.ORCID != ""
	hasCitations := r.Citations() > 0
	hasWorks := r.WorksCount != nil && *r.WorksCount > 5

	if hasBasicInfo && hasCitations && hasWorks {
		return ConfidenceHigh
	}
	if !hasBasicInfo || !hasWorks {
		return ConfidenceLow
	}
	return ConfidenceMedium
}
