package risk

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// MomentEstimator supplies multivariate sample moments for a return matrix.
// The dispatcher invokes it only when the caller did not supply a MomentSet.
type MomentEstimator interface {
	Mean(m *ReturnMatrix) []float64
	Covariance(m *ReturnMatrix) *mat.SymDense
	Coskewness(m *ReturnMatrix, mu []float64) *mat.Dense
	Cokurtosis(m *ReturnMatrix, mu []float64) *mat.Dense
}

// SampleMomentEstimator computes standard sample moments. The covariance uses
// the unbiased N-1 denominator via gonum; the coskewness and cokurtosis
// tensors use the population 1/T denominator, the usual convention for
// higher-moment estimators.
type SampleMomentEstimator struct{}

// NewSampleMomentEstimator creates a sample moment estimator.
func NewSampleMomentEstimator() *SampleMomentEstimator {
	return &SampleMomentEstimator{}
}

// Mean returns the per-asset mean vector.
func (e *SampleMomentEstimator) Mean(m *ReturnMatrix) []float64 {
	mu := make([]float64, m.NumAssets())
	for i := range mu {
		mu[i] = stat.Mean(m.ColumnAt(i), nil)
	}
	return mu
}

// Covariance returns the N x N sample covariance matrix.
func (e *SampleMomentEstimator) Covariance(m *ReturnMatrix) *mat.SymDense {
	n := m.NumAssets()
	obs := m.NumObs()

	data := mat.NewDense(obs, n, nil)
	for j := 0; j < n; j++ {
		series := m.ColumnAt(j)
		for t := 0; t < obs; t++ {
			data.Set(t, j, series[t])
		}
	}

	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, data, nil)
	return cov
}

// Coskewness returns the N x N^2 flattened third central moment tensor:
// column j*N+k holds E[(r_i - mu_i)(r_j - mu_j)(r_k - mu_k)].
func (e *SampleMomentEstimator) Coskewness(m *ReturnMatrix, mu []float64) *mat.Dense {
	n := m.NumAssets()
	obs := m.NumObs()
	centered := centeredColumns(m, mu)

	m3 := mat.NewDense(n, n*n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := j; k < n; k++ {
				sum := 0.0
				for t := 0; t < obs; t++ {
					sum += centered[i][t] * centered[j][t] * centered[k][t]
				}
				v := sum / float64(obs)
				m3.Set(i, j*n+k, v)
				m3.Set(i, k*n+j, v)
			}
		}
	}
	return m3
}

// Cokurtosis returns the N x N^3 flattened fourth central moment tensor:
// column j*N^2+k*N+l holds E[(r_i-mu_i)(r_j-mu_j)(r_k-mu_k)(r_l-mu_l)].
func (e *SampleMomentEstimator) Cokurtosis(m *ReturnMatrix, mu []float64) *mat.Dense {
	n := m.NumAssets()
	obs := m.NumObs()
	centered := centeredColumns(m, mu)

	m4 := mat.NewDense(n, n*n*n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				for l := 0; l < n; l++ {
					sum := 0.0
					for t := 0; t < obs; t++ {
						sum += centered[i][t] * centered[j][t] * centered[k][t] * centered[l][t]
					}
					m4.Set(i, j*n*n+k*n+l, sum/float64(obs))
				}
			}
		}
	}
	return m4
}

// EstimateMoments computes the full moment set for a matrix, including the
// higher-moment tensors only when requested.
func EstimateMoments(est MomentEstimator, m *ReturnMatrix, higher bool) (*MomentSet, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil return matrix", ErrMissingInput)
	}
	if m.NumObs() < 2 {
		return nil, fmt.Errorf("%w: need at least 2 observations, got %d", ErrMissingInput, m.NumObs())
	}

	mu := est.Mean(m)
	ms := &MomentSet{
		Mu:    mu,
		Sigma: est.Covariance(m),
	}
	if higher {
		ms.M3 = est.Coskewness(m, mu)
		ms.M4 = est.Cokurtosis(m, mu)
	}
	return ms, nil
}

func centeredColumns(m *ReturnMatrix, mu []float64) [][]float64 {
	n := m.NumAssets()
	obs := m.NumObs()
	centered := make([][]float64, n)
	for i := 0; i < n; i++ {
		series := m.ColumnAt(i)
		c := make([]float64, obs)
		for t := 0; t < obs; t++ {
			c[t] = series[t] - mu[i]
		}
		centered[i] = c
	}
	return centered
}
