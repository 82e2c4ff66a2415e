package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	tests := []struct {
		name string
		data []float64
		want float64
	}{
		{"simple values", []float64{1, 2, 3, 4, 5}, 3.0},
		{"negative values", []float64{-0.05, 0.01, 0.02, -0.10, 0.03}, -0.018},
		{"empty", []float64{}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Mean(tt.data), 1e-12)
		})
	}
}

func TestStdDev(t *testing.T) {
	data := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	// Sample standard deviation with N-1 denominator
	assert.InDelta(t, 2.13809, StdDev(data), 1e-4)
	assert.Equal(t, 0.0, StdDev(nil))
}

func TestCentralMoment(t *testing.T) {
	data := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	// Second central moment is the population variance
	assert.InDelta(t, 4.0, CentralMoment(data, 2), 1e-12)

	// First central moment is always zero
	assert.InDelta(t, 0.0, CentralMoment(data, 1), 1e-12)
}

func TestSkewness(t *testing.T) {
	t.Run("symmetric data has zero skewness", func(t *testing.T) {
		data := []float64{-2, -1, 0, 1, 2}
		assert.InDelta(t, 0.0, Skewness(data), 1e-12)
	})

	t.Run("right tail gives positive skewness", func(t *testing.T) {
		data := []float64{1, 1, 1, 1, 10}
		assert.Greater(t, Skewness(data), 0.0)
	})

	t.Run("constant series", func(t *testing.T) {
		data := []float64{3, 3, 3}
		assert.Equal(t, 0.0, Skewness(data))
	})
}

func TestExcessKurtosis(t *testing.T) {
	t.Run("two-point symmetric distribution", func(t *testing.T) {
		// For {-1, 1, -1, 1, ...}: m2 = 1, m4 = 1, excess kurtosis = -2
		data := []float64{-1, 1, -1, 1, -1, 1}
		assert.InDelta(t, -2.0, ExcessKurtosis(data), 1e-12)
	})

	t.Run("heavy tails give positive excess kurtosis", func(t *testing.T) {
		data := []float64{0, 0, 0, 0, 0, 0, 0, 0, -5, 5}
		assert.Greater(t, ExcessKurtosis(data), 0.0)
	})

	t.Run("constant series", func(t *testing.T) {
		assert.Equal(t, 0.0, ExcessKurtosis([]float64{1, 1, 1}))
	})
}

func TestReturnsFromPrices(t *testing.T) {
	t.Run("simple returns", func(t *testing.T) {
		prices := []float64{100, 110, 99}
		returns := ReturnsFromPrices(prices)
		assert.Len(t, returns, 2)
		assert.InDelta(t, 0.10, returns[0], 1e-12)
		assert.InDelta(t, -0.10, returns[1], 1e-12)
	})

	t.Run("too few prices", func(t *testing.T) {
		assert.Empty(t, ReturnsFromPrices([]float64{100}))
		assert.Empty(t, ReturnsFromPrices(nil))
	})

	t.Run("zero price yields zero return", func(t *testing.T) {
		returns := ReturnsFromPrices([]float64{0, 5})
		assert.Equal(t, []float64{0}, returns)
	})
}
