package risk

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMethod(t *testing.T) {
	cases := []struct {
		in      string
		want    Method
		wantErr bool
	}{
		{"historical", MethodHistorical, false},
		{"gaussian", MethodGaussian, false},
		{"modified", MethodModified, false},
		{"montecarlo", "", true},
		{"", "", true},
	}

	for _, tc := range cases {
		got, err := ParseMethod(tc.in)
		if tc.wantErr {
			assert.Error(t, err, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got)
	}
}

func TestParseMode(t *testing.T) {
	got, err := ParseMode("single")
	require.NoError(t, err)
	assert.Equal(t, ModeSingle, got)

	got, err = ParseMode("component")
	require.NoError(t, err)
	assert.Equal(t, ModeComponent, got)

	_, err = ParseMode("marginal")
	assert.Error(t, err)
}

func TestNewReturnMatrixValidation(t *testing.T) {
	_, err := NewReturnMatrix(nil, nil)
	assert.ErrorIs(t, err, ErrMissingInput)

	_, err = NewReturnMatrix([]string{"x"}, map[string][]float64{})
	assert.ErrorIs(t, err, ErrMissingInput)

	_, err = NewReturnMatrix([]string{"x", "y"}, map[string][]float64{
		"x": {1, 2, 3},
		"y": {1, 2},
	})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = NewReturnMatrix([]string{"x"}, map[string][]float64{"x": {}})
	assert.ErrorIs(t, err, ErrMissingInput)
}

func TestReturnMatrixDefensiveCopy(t *testing.T) {
	source := map[string][]float64{"x": {1, 2, 3}}
	m, err := NewReturnMatrix([]string{"x"}, source)
	require.NoError(t, err)

	source["x"][0] = 99
	assert.Equal(t, 1.0, m.Column("x")[0])
}

func TestPortfolioSeries(t *testing.T) {
	m, err := NewReturnMatrix([]string{"x", "y"}, map[string][]float64{
		"x": {0.01, -0.02},
		"y": {0.03, 0.04},
	})
	require.NoError(t, err)

	series, err := m.PortfolioSeries([]float64{0.5, 0.5})
	require.NoError(t, err)
	assert.InDelta(t, 0.02, series[0], 1e-12)
	assert.InDelta(t, 0.01, series[1], 1e-12)

	_, err = m.PortfolioSeries([]float64{1})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestReturnMatrixTransform(t *testing.T) {
	m, err := NewReturnMatrix([]string{"x"}, map[string][]float64{"x": {1, -2, 3}})
	require.NoError(t, err)

	doubled, err := m.Transform(func(series []float64) []float64 {
		out := make([]float64, len(series))
		for i, v := range series {
			out[i] = 2 * v
		}
		return out
	})
	require.NoError(t, err)

	assert.Equal(t, []float64{2, -4, 6}, doubled.Column("x"))
	assert.Equal(t, []float64{1, -2, 3}, m.Column("x"))
}

func TestRiskEstimateMarshalNonFinite(t *testing.T) {
	est := RiskEstimate{
		Mode:    ModeSingle,
		Method:  MethodHistorical,
		P:       0.95,
		Columns: []string{"asset"},
		Values:  []float64{math.NaN()},
		Issues: []QualityIssue{
			{Column: "asset", Flag: FlagNonFinite, Raw: math.Inf(1)},
		},
	}

	buf, err := json.Marshal(est)
	require.NoError(t, err)

	out := string(buf)
	assert.Contains(t, out, `"values":[null]`)
	assert.Contains(t, out, `"raw":null`)
	// Single mode carries no portfolio total.
	assert.NotContains(t, out, `"total"`)
}

func TestRiskEstimateMarshalZeroTotal(t *testing.T) {
	est := RiskEstimate{
		Mode:            ModeComponent,
		Method:          MethodGaussian,
		P:               0.95,
		Columns:         []string{"long", "short"},
		Total:           0,
		Contribution:    []float64{0.02, -0.02},
		PctContribution: []float64{0, 0},
	}

	buf, err := json.Marshal(est)
	require.NoError(t, err)

	assert.Contains(t, string(buf), `"total":0`)
}

func TestQualityIssueMarshalFiniteRaw(t *testing.T) {
	buf, err := json.Marshal(QualityIssue{Column: "asset", Flag: FlagInverseRisk, Raw: -0.05})
	require.NoError(t, err)
	assert.JSONEq(t, `{"column":"asset","flag":"inverse_risk","raw":-0.05}`, string(buf))
}
