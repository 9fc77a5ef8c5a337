package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp01(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected float64
	}{
		{"below range", -0.5, 0},
		{"lower bound", 0, 0},
		{"inside range", 0.42, 0.42},
		{"upper bound", 1, 1},
		{"above range", 3.7, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, clamp01(tt.input))
		})
	}
}

func TestLog1p(t *testing.T) {
	assert.Equal(t, 0.0, log1p(0))
	// Negative inputs are clamped to zero before the log
	assert.Equal(t, 0.0, log1p(-10))
	assert.InDelta(t, 4.615, log1p(100), 0.001)
	assert.Greater(t, log1p(1000), log1p(100))
}

func TestStdev(t *testing.T) {
	tests := []struct {
		name     string
		xs       []float64
		expected float64
	}{
		{"empty sample", nil, 1},
		{"zero variance", []float64{3, 3, 3}, 1},
		{"population stdev", []float64{2, 4, 4, 4, 5, 5, 7, 9}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, stdev(tt.xs, mean(tt.xs)), 0.0001)
		})
	}
}

func TestZScoreZeroStdev(t *testing.T) {
	// Guarded against division by zero even when called directly
	assert.Equal(t, 2.0, zscore(5, 3, 0))
}

func TestPercentileRank(t *testing.T) {
	batch := []float64{10, 20, 20, 30, 40}

	tests := []struct {
		name     string
		value    float64
		expected float64
	}{
		{"lowest", 10, 0},
		{"tied values share a rank", 20, 20},
		{"middle", 30, 60},
		{"highest", 40, 80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, percentileRank(tt.value, batch))
		})
	}
}

func TestPercentileRankDegenerateBatches(t *testing.T) {
	assert.Equal(t, 0.0, percentileRank(5, nil))
	// A singleton has no peers, so it lands on the neutral midpoint
	assert.Equal(t, 50.0, percentileRank(5, []float64{5}))
}

func TestRoundToHalf(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{1.0, 1.0},
		{1.24, 1.0},
		{1.25, 1.5},
		{3.7, 3.5},
		{3.76, 4.0},
		{4.99, 5.0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, roundToHalf(tt.input), "roundToHalf(%v)", tt.input)
	}
}
