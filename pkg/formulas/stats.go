package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the sample variance of a slice of float64 values
func Variance(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Variance(data, nil)
}

// Covariance calculates the sample covariance between two datasets
func Covariance(x, y []float64) float64 {
	if len(x) == 0 || len(y) == 0 || len(x) != len(y) {
		return 0
	}
	return stat.Covariance(x, y, nil)
}

// CentralMoment calculates the k-th central moment of the data using the
// population denominator (divide by N). Higher-moment risk formulas need
// population moments so that univariate and tensor estimates agree.
func CentralMoment(data []float64, k int) float64 {
	if len(data) == 0 {
		return 0
	}
	mu := stat.Mean(data, nil)
	sum := 0.0
	for _, v := range data {
		sum += math.Pow(v-mu, float64(k))
	}
	return sum / float64(len(data))
}

// Skewness calculates the population skewness: m3 / m2^(3/2).
// Returns 0 for a constant series (zero variance).
func Skewness(data []float64) float64 {
	m2 := CentralMoment(data, 2)
	if m2 <= 0 {
		return 0
	}
	return CentralMoment(data, 3) / math.Pow(m2, 1.5)
}

// ExcessKurtosis calculates the population excess kurtosis: m4 / m2^2 - 3.
// Returns 0 for a constant series (zero variance).
func ExcessKurtosis(data []float64) float64 {
	m2 := CentralMoment(data, 2)
	if m2 <= 0 {
		return 0
	}
	return CentralMoment(data, 4)/(m2*m2) - 3.0
}

// ReturnsFromPrices converts a price series to simple percentage returns.
// Returns[i] = (Price[i+1] - Price[i]) / Price[i]
func ReturnsFromPrices(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
		}
	}

	return returns
}
