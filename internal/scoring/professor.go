package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/researchbridge/backend/internal/types"
)

// Professor weight table. Openness to undergraduates matters most; the
// busy metric is subtracted because highly visible faculty are less
// likely to take on new students.
var professorConfig = Config{
	Weights: Weights{
		Linear: map[string]float64{
			"openness": 1.4,
			"fit":      1.1,
		},
		Scaled: map[string]float64{
			"activity": 0.8,
			"busy":     0.6,
		},
		Subtract: map[string]bool{"busy": true},
	},
	BoostStep: 0.4,
	BoostCap:  1.5,
	Stars:     ContinuousStars,
}

// ProfessorBreakdown exposes the sub-scores behind a professor rating.
// Activity and busy are batch z-scores; the others are 0-1.
type ProfessorBreakdown struct {
	Openness float64 `json:"openness"`
	Fit      float64 `json:"fit"`
	Activity float64 `json:"activity"`
	Busy     float64 `json:"busy"`
}

// ProfessorScore is the full scoring output for one professor.
type ProfessorScore struct {
	Overall    float64            `json:"overall"`
	Stars      float64            `json:"stars"`
	Percentile float64            `json:"percentile"`
	Breakdown  ProfessorBreakdown `json:"breakdown"`
	Reasons    []string           `json:"reasons"`
	Confidence Confidence         `json:"confidence"`
}

// opennessScore estimates how receptive a professor is to undergraduate
// researchers from recruitment metadata. Hand-tuned additive constants,
// clamped to [0, 1].
func opennessScore(p types.Professor) float64 {
	score := 0.3

	if p.Recruitment != nil && len(p.Recruitment.LookingToRecruit) > 0 {
		score += 0.4
	}

	if len(p.ResearchOptions) > 0 {
		undergradMention := false
		for _, opt := range p.ResearchOptions {
			lower := strings.ToLower(opt)
			if strings.Contains(lower, "undergrad") ||
				strings.Contains(lower, "honours") ||
				strings.Contains(lower, "work learn") {
				undergradMention = true
				break
			}
		}
		if undergradMention {
			score += 0.25
		} else {
			score += 0.1
		}
	}

	if p.Recruitment != nil {
		if n := len(p.Recruitment.PotentialProjectAreas); n > 0 {
			score += math.Min(0.2, float64(n)*0.05)
		}
		if len(p.Recruitment.DesiredStartDates) > 0 {
			score += 0.1
		}
	}

	return clamp01(score)
}

// fitScore estimates how broad a research program is from profile depth:
// interest count thresholds, methodology depth, classification presence,
// cross-department appointments.
func fitScore(p types.Professor) float64 {
	score := 0.3

	switch n := len(p.Interests); {
	case n > 8:
		score += 0.35
	case n > 5:
		score += 0.25
	case n > 2:
		score += 0.15
	case n > 0:
		score += 0.05
	}

	if len(p.Methodology) > 3 {
		score += 0.2
	} else if len(p.Methodology) > 0 {
		score += 0.1
	}

	if len(p.ResearchClassification) > 0 {
		score += 0.1
	}
	if len(p.Departments) > 1 {
		score += 0.1
	}

	return clamp01(score)
}

// keywordMatches counts resume keywords that overlap a professor's
// interests via case-insensitive containment in either direction.
func keywordMatches(interests, keywords []string) int {
	if len(interests) == 0 || len(keywords) == 0 {
		return 0
	}
	lowered := make([]string, len(interests))
	for i, s := range interests {
		lowered[i] = strings.ToLower(s)
	}
	count := 0
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		for _, interest := range lowered {
			if strings.Contains(interest, kw) || strings.Contains(kw, interest) {
				count++
				break
			}
		}
	}
	return count
}

// ScoreProfessors scores a roster batch relative to each other. Interest
// count proxies for research activity; affiliation count proxies for
// being busy, since faculty profiles carry no citation data. The returned
// map is keyed by professor ID.
func ScoreProfessors(profs []types.Professor, resumeKeywords []string) map[string]ProfessorScore {
	if len(profs) == 0 {
		return map[string]ProfessorScore{}
	}

	openness := make([]float64, len(profs))
	fit := make([]float64, len(profs))
	entities := make([]batchEntity, len(profs))
	for i, p := range profs {
		openness[i] = opennessScore(p)
		fit[i] = fitScore(p)

		adjust := 0.0
		if p.NoStudentInquiries {
			adjust -= 2.0
		}
		if p.Email != "" {
			adjust += 0.25
		} else {
			adjust -= 0.15
		}

		entities[i] = batchEntity{
			id: p.ID,
			linear: map[string]float64{
				"openness": openness[i],
				"fit":      fit[i],
			},
			scaled: map[string]float64{
				"activity": log1p(float64(len(p.Interests))),
				"busy":     log1p(float64(len(p.Affiliations))),
			},
			adjust:       adjust,
			boostMatches: keywordMatches(p.Interests, resumeKeywords),
		}
	}

	ranked := professorConfig.run(entities)

	result := make(map[string]ProfessorScore, len(profs))
	for i, p := range profs {
		rk := ranked[i]
		reasons := professorReasons(p, openness[i], fit[i])
		if len(reasons) == 0 {
			reasons = []string{"Profile available"}
		}
		result[p.ID] = ProfessorScore{
			Overall:    rk.raw,
			Stars:      rk.stars,
			Percentile: rk.percentile,
			Breakdown: ProfessorBreakdown{
				Openness: openness[i],
				Fit:      fit[i],
				Activity: rk.z["activity"],
				Busy:     rk.z["busy"],
			},
			Reasons:    reasons,
			Confidence: professorConfidence(p),
		}
	}
	return result
}

// ScoreProfessor scores a single profile without population context.
// Less accurate than a batch score; used on detail pages where no batch
// exists. Percentile is pinned to the neutral midpoint.
func ScoreProfessor(p types.Professor) ProfessorScore {
	openness := opennessScore(p)
	fit := fitScore(p)

	raw := openness*40 + fit*35 + 25
	stars := roundToHalf(clampRange(raw/20, 1, 5))

	var reasons []string
	if openness >= 0.7 {
		reasons = append(reasons, "Undergrad-friendly signals")
	}
	if fit >= 0.7 {
		reasons = append(reasons, "Strong research diversity")
	}
	if p.Recruitment != nil && len(p.Recruitment.LookingToRecruit) > 0 {
		reasons = append(reasons, "Currently recruiting")
	}
	if p.Email != "" {
		reasons = append(reasons, "Direct email available")
	}
	if len(reasons) == 0 {
		reasons = []string{"Profile available"}
	}

	dataPoints := 0
	if len(p.Interests) > 0 {
		dataPoints++
	}
	if p.Recruitment != nil && len(p.Recruitment.LookingToRecruit) > 0 {
		dataPoints++
	}
	if len(p.Methodology) > 0 {
		dataPoints++
	}

	confidence := ConfidenceLow
	if dataPoints >= 3 {
		confidence = ConfidenceHigh
	} else if dataPoints >= 2 {
		confidence = ConfidenceMedium
	}

	return ProfessorScore{
		Overall:    raw,
		Stars:      stars,
		Percentile: 50,
		Breakdown:  ProfessorBreakdown{Openness: openness, Fit: fit},
		Reasons:    reasons,
		Confidence: confidence,
	}
}

func clampRange(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func professorReasons(p types.Professor, openness, fit float64) []string {
	var why []string
	if p.NoStudentInquiries {
		why = append(why, "Lab says no student inquiries")
	}
	if p.Email != "" {
		why = append(why, "Direct email available")
	}
	if openness >= 0.7 {
		why = append(why, "Undergrad-friendly signals")
	}
	if openness >= 0.5 {
		why = append(why, "On undergrad research list")
	}
	if fit >= 0.7 {
		why = append(why, "Strong research diversity")
	}
	if len(p.Interests) >= 8 {
		why = append(why, "Large research program")
	}
	if p.Recruitment != nil {
		if len(p.Recruitment.LookingToRecruit) > 0 {
			why = append(why, "Currently recruiting")
		}
		if n := len(p.Recruitment.PotentialProjectAreas); n > 0 {
			why = append(why, fmt.Sprintf("%d project areas", n))
		}
	}
	if len(p.Affiliations) > 3 {
		why = append(why, "Highly visible (may be busy)")
	}
	return why
}

// professorConfidence counts populated optional field categories.
func professorConfidence(p types.Professor) Confidence {
	dataPoints := 0
	if len(p.Interests) > 0 {
		dataPoints++
	}
	if p.Recruitment != nil && p.Recruitment.LookingToRecruit != nil {
		dataPoints++
	}
	if p.Recruitment != nil && p.Recruitment.PotentialProjectAreas != nil {
		dataPoints++
	}
	if len(p.Methodology) > 0 {
		dataPoints++
	}
	if len(p.ResearchOptions) > 0 {
		dataPoints++
	}

	switch {
	case dataPoints >= 4:
		return ConfidenceHigh
	case dataPoints >= 2:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
