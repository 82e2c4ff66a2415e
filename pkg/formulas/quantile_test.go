package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuantile(t *testing.T) {
	tests := []struct {
		name string
		data []float64
		q    float64
		want float64
	}{
		{
			name: "median of odd-length data",
			data: []float64{3, 1, 2},
			q:    0.5,
			want: 2.0,
		},
		{
			name: "median interpolates for even-length data",
			data: []float64{1, 2, 3, 4},
			q:    0.5,
			want: 2.5,
		},
		{
			name: "5th percentile of five returns",
			data: []float64{-0.05, 0.01, 0.02, -0.10, 0.03},
			q:    0.05,
			// h = 4*0.05 = 0.2 between -0.10 and -0.05
			want: -0.09,
		},
		{
			name: "zero quantile is minimum",
			data: []float64{5, 1, 3},
			q:    0,
			want: 1.0,
		},
		{
			name: "unit quantile is maximum",
			data: []float64{5, 1, 3},
			q:    1,
			want: 5.0,
		},
		{
			name: "single observation",
			data: []float64{42},
			q:    0.25,
			want: 42.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Quantile(tt.data, tt.q), 1e-12)
		})
	}

	t.Run("empty data returns NaN", func(t *testing.T) {
		assert.True(t, math.IsNaN(Quantile(nil, 0.5)))
	})

	t.Run("out of range quantile returns NaN", func(t *testing.T) {
		assert.True(t, math.IsNaN(Quantile([]float64{1, 2}, 1.5)))
	})
}

func TestWinsorize(t *testing.T) {
	t.Run("caps both tails", func(t *testing.T) {
		data := []float64{-100, 1, 2, 3, 4, 5, 6, 7, 8, 100}
		out := Winsorize(data, 0.10)

		// h = 9*0.1 = 0.9, lower = -100 + 0.9*101 = -9.1
		assert.InDelta(t, -9.1, out[0], 1e-9)
		// h = 9*0.9 = 8.1, upper = 8 + 0.1*92 = 17.2
		assert.InDelta(t, 17.2, out[9], 1e-9)

		// Interior points untouched
		assert.Equal(t, data[1:9], out[1:9])
	})

	t.Run("does not mutate input", func(t *testing.T) {
		data := []float64{-100, 0, 100}
		_ = Winsorize(data, 0.2)
		assert.Equal(t, []float64{-100, 0, 100}, data)
	})

	t.Run("invalid level passes through", func(t *testing.T) {
		data := []float64{1, 2, 3}
		assert.Equal(t, data, Winsorize(data, 0.7))
	})
}
