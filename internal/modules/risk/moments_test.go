package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleMomentEstimatorMeanAndCovariance(t *testing.T) {
	m, err := NewReturnMatrix([]string{"x", "y"}, map[string][]float64{
		"x": {1, 2, 3},
		"y": {2, 4, 6},
	})
	require.NoError(t, err)

	est := NewSampleMomentEstimator()

	mu := est.Mean(m)
	assert.InDelta(t, 2.0, mu[0], 1e-12)
	assert.InDelta(t, 4.0, mu[1], 1e-12)

	// y = 2x, unbiased sample covariance.
	cov := est.Covariance(m)
	assert.InDelta(t, 1.0, cov.At(0, 0), 1e-12)
	assert.InDelta(t, 2.0, cov.At(0, 1), 1e-12)
	assert.InDelta(t, 2.0, cov.At(1, 0), 1e-12)
	assert.InDelta(t, 4.0, cov.At(1, 1), 1e-12)
}

func TestSampleMomentEstimatorCoskewness(t *testing.T) {
	// For x = [-1, 0, 3] with mean 2/3 the population third central moment
	// is 210/81.
	m, err := NewReturnMatrix([]string{"x"}, map[string][]float64{
		"x": {-1, 0, 3},
	})
	require.NoError(t, err)

	est := NewSampleMomentEstimator()
	mu := est.Mean(m)
	m3 := est.Coskewness(m, mu)

	assert.InDelta(t, 210.0/81.0, m3.At(0, 0), 1e-12)
}

func TestSampleMomentEstimatorCokurtosis(t *testing.T) {
	// Fourth population central moment of the same series: 3042/243.
	m, err := NewReturnMatrix([]string{"x"}, map[string][]float64{
		"x": {-1, 0, 3},
	})
	require.NoError(t, err)

	est := NewSampleMomentEstimator()
	mu := est.Mean(m)
	m4 := est.Cokurtosis(m, mu)

	assert.InDelta(t, 3042.0/243.0, m4.At(0, 0), 1e-12)
}

func TestCoskewnessTensorSymmetry(t *testing.T) {
	m, err := NewReturnMatrix([]string{"x", "y"}, map[string][]float64{
		"x": {-0.02, 0.01, 0.03, -0.05, 0.02},
		"y": {0.01, -0.03, 0.02, 0.04, -0.01},
	})
	require.NoError(t, err)

	est := NewSampleMomentEstimator()
	mu := est.Mean(m)
	m3 := est.Coskewness(m, mu)

	// E[x x y] under each index permutation: (i=0,j=0,k=1), (i=0,j=1,k=0)
	// and (i=1,j=0,k=0).
	assert.InDelta(t, m3.At(0, 1), m3.At(0, 2), 1e-14)
	assert.InDelta(t, m3.At(0, 1), m3.At(1, 0), 1e-14)
}

func TestEstimateMoments(t *testing.T) {
	m, err := NewReturnMatrix([]string{"x", "y"}, map[string][]float64{
		"x": {-0.02, 0.01, 0.03, -0.05, 0.02},
		"y": {0.01, -0.03, 0.02, 0.04, -0.01},
	})
	require.NoError(t, err)

	est := NewSampleMomentEstimator()

	lower, err := EstimateMoments(est, m, false)
	require.NoError(t, err)
	assert.False(t, lower.HasHigherMoments())
	assert.Nil(t, lower.M3)
	assert.Nil(t, lower.M4)
	require.NoError(t, lower.Validate(2))

	full, err := EstimateMoments(est, m, true)
	require.NoError(t, err)
	assert.True(t, full.HasHigherMoments())
	require.NoError(t, full.Validate(2))

	r, c := full.M3.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 4, c)
	r, c = full.M4.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 8, c)
}

func TestEstimateMomentsTooFewObservations(t *testing.T) {
	m, err := NewReturnMatrix([]string{"x"}, map[string][]float64{"x": {0.01}})
	require.NoError(t, err)

	_, err = EstimateMoments(NewSampleMomentEstimator(), m, false)
	assert.ErrorIs(t, err, ErrMissingInput)
}

func TestMomentSetValidateShapes(t *testing.T) {
	m, err := NewReturnMatrix([]string{"x", "y"}, map[string][]float64{
		"x": {-0.02, 0.01, 0.03},
		"y": {0.01, -0.03, 0.02},
	})
	require.NoError(t, err)

	ms, err := EstimateMoments(NewSampleMomentEstimator(), m, true)
	require.NoError(t, err)

	assert.ErrorIs(t, ms.Validate(3), ErrDimensionMismatch)

	var nilSet *MomentSet
	assert.ErrorIs(t, nilSet.Validate(2), ErrMissingInput)
}
