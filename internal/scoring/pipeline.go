// Package scoring ranks researchers and professors relative to the batch
// they were fetched in. Scores are never absolute: percentiles and
// z-scores are scoped to the current result set, so the same entity can
// rate differently in different batches. The pipeline is pure and
// synchronous: it does no I/O and never mutates its inputs, so callers
// may score concurrently.
package scoring

import "math"

// Confidence reflects how many optional data fields were present for an
// entity. It is independent of the score itself.
type Confidence string

const (
	ConfidenceLow    Confidence = "Low"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceHigh   Confidence = "High"
)

// StarMapper converts a 0-100 percentile into a half-step star rating.
type StarMapper func(percentile float64) float64

// Weights is a per-metric weight table. Linear sub-scores (0-1) enter the
// weighted sum recentered to [-1, 1]; scaled metrics enter as batch
// z-scores, negated when listed in Subtract.
type Weights struct {
	Linear   map[string]float64
	Scaled   map[string]float64
	Subtract map[string]bool
}

// Config parameterizes one scoring domain. Researcher and professor
// scoring are instances of the same pipeline with different weight
// tables, override rules, and star mappings.
type Config struct {
	Weights   Weights
	BoostStep float64 // raw-score boost per keyword match
	BoostCap  float64 // upper bound on the total boost
	Stars     StarMapper
}

// batchEntity is one entity's pipeline input: its extracted sub-scores
// plus the deterministic adjustments that apply after the weighted sum.
// Override runs last and may replace or scale the raw score; it must be
// a pure function of the entity's own fields.
type batchEntity struct {
	id           string
	linear       map[string]float64
	scaled       map[string]float64
	adjust       float64
	boostMatches int
	override     func(raw float64) float64
}

// rankedEntity is the pipeline output before domain-specific packaging.
type rankedEntity struct {
	id         string
	raw        float64
	percentile float64
	stars      float64
	z          map[string]float64
}

// run executes the shared pipeline: per-batch population statistics,
// weighted raw scores with boosts and overrides, then percentile ranking
// and star mapping. An empty batch yields an empty slice. No input can
// produce NaN or Inf: every denominator is guarded.
func (c Config) run(entities []batchEntity) []rankedEntity {
	if len(entities) == 0 {
		return nil
	}

	// Population statistics per scaled metric.
	stats := make(map[string]populationStats, len(c.Weights.Scaled))
	for name := range c.Weights.Scaled {
		values := make([]float64, len(entities))
		for i, e := range entities {
			values[i] = e.scaled[name]
		}
		stats[name] = newPopulationStats(values)
	}

	ranked := make([]rankedEntity, len(entities))
	raws := make([]float64, len(entities))
	for i, e := range entities {
		raw := 0.0
		for name, w := range c.Weights.Linear {
			raw += w * (clamp01(e.linear[name])*2 - 1)
		}
		z := make(map[string]float64, len(c.Weights.Scaled))
		for name, w := range c.Weights.Scaled {
			zv := stats[name].z(e.scaled[name])
			z[name] = zv
			if c.Weights.Subtract[name] {
				raw -= w * zv
			} else {
				raw += w * zv
			}
		}

		if e.boostMatches > 0 && c.BoostStep > 0 {
			raw += math.Min(c.BoostCap, float64(e.boostMatches)*c.BoostStep)
		}
		raw += e.adjust
		if e.override != nil {
			raw = e.override(raw)
		}

		raws[i] = raw
		ranked[i] = rankedEntity{id: e.id, raw: raw, z: z}
	}

	for i := range ranked {
		pct := percentileRank(ranked[i].raw, raws)
		ranked[i].percentile = pct
		ranked[i].stars = c.Stars(pct)
	}
	return ranked
}
