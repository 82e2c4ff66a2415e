package formulas

import (
	"math"
	"sort"
)

// Quantile calculates the q-th quantile of the data using linear
// interpolation between order statistics (the R "type 7" convention:
// index h = (n-1)*q, interpolated between floor(h) and floor(h)+1).
//
// Args:
//   - data: observations (not required to be sorted)
//   - q: quantile level in [0, 1]
//
// Returns:
//   - the interpolated quantile, or NaN for empty data or q outside [0, 1]
func Quantile(data []float64, q float64) float64 {
	if len(data) == 0 || q < 0 || q > 1 {
		return math.NaN()
	}
	if len(data) == 1 {
		return data[0]
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	h := float64(len(sorted)-1) * q
	lo := int(math.Floor(h))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// Winsorize caps observations outside the [q, 1-q] quantile range at the
// corresponding quantile values, returning a new slice. Used to reduce the
// influence of outliers on moment estimates.
func Winsorize(data []float64, q float64) []float64 {
	out := make([]float64, len(data))
	copy(out, data)
	if len(data) < 2 || q <= 0 || q >= 0.5 {
		return out
	}

	lower := Quantile(data, q)
	upper := Quantile(data, 1-q)
	for i, v := range out {
		if v < lower {
			out[i] = lower
		} else if v > upper {
			out[i] = upper
		}
	}
	return out
}
