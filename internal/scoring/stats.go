package scoring

import "math"

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

func log1p(x float64) float64 {
	return math.Log(1 + math.Max(0, x))
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

// stdev is the population standard deviation, clamped to 1 for empty or
// zero-variance samples so the z-score step never divides by zero.
func stdev(xs []float64, avg float64) float64 {
	if len(xs) == 0 {
		return 1
	}
	v := 0.0
	for _, x := range xs {
		d := x - avg
		v += d * d
	}
	sd := math.Sqrt(v / float64(len(xs)))
	if sd == 0 {
		return 1
	}
	return sd
}

func zscore(x, avg, sd float64) float64 {
	if sd == 0 {
		sd = 1
	}
	return (x - avg) / sd
}

// populationStats holds per-metric batch statistics for z-normalization.
type populationStats struct {
	mean, stdev float64
}

func newPopulationStats(xs []float64) populationStats {
	m := mean(xs)
	return populationStats{mean: m, stdev: stdev(xs, m)}
}

func (p populationStats) z(x float64) float64 {
	return zscore(x, p.mean, p.stdev)
}

// percentileRank returns the percentage of the batch strictly below value.
// Ties share a percentile because the comparison is strict. A singleton
// batch yields the neutral midpoint 50 rather than a degenerate 0 or 100.
func percentileRank(value float64, batch []float64) float64 {
	n := len(batch)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return 50
	}
	count := 0
	for _, v := range batch {
		if v < value {
			count++
		}
	}
	return float64(count) / float64(n) * 100
}

func roundToHalf(x float64) float64 {
	return math.Round(x*2) / 2
}
