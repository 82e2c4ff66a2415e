package risk

import (
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Method selects the distributional model used for ES estimation.
type Method string

const (
	// MethodHistorical estimates ES from the empirical tail of the sample.
	MethodHistorical Method = "historical"
	// MethodGaussian uses the closed-form normal-distribution ES.
	MethodGaussian Method = "gaussian"
	// MethodModified uses the Cornish-Fisher quantile and a second-order
	// Edgeworth expansion of the tail expectation.
	MethodModified Method = "modified"
)

// ParseMethod parses a method name.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodHistorical, MethodGaussian, MethodModified:
		return Method(s), nil
	}
	return "", fmt.Errorf("unknown estimation method %q", s)
}

// Mode selects between per-series estimation and portfolio decomposition.
type Mode string

const (
	// ModeSingle computes a scalar ES per return series.
	ModeSingle Mode = "single"
	// ModeComponent computes total portfolio ES and per-asset contributions.
	ModeComponent Mode = "component"
)

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSingle, ModeComponent:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown estimation mode %q", s)
}

// ReturnMatrix holds aligned periodic return series for a set of assets.
// All columns have the same number of observations. The matrix is immutable
// once constructed; cleaning produces a new matrix.
type ReturnMatrix struct {
	columns []string
	data    map[string][]float64
	rows    int
}

// NewReturnMatrix builds a return matrix from named columns. Column order is
// preserved as given. All series must have equal, non-zero length.
func NewReturnMatrix(columns []string, data map[string][]float64) (*ReturnMatrix, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: no columns", ErrMissingInput)
	}

	rows := -1
	for _, col := range columns {
		series, ok := data[col]
		if !ok {
			return nil, fmt.Errorf("%w: no data for column %s", ErrMissingInput, col)
		}
		if rows == -1 {
			rows = len(series)
		}
		if len(series) != rows {
			return nil, fmt.Errorf("%w: column %s has %d observations, expected %d",
				ErrDimensionMismatch, col, len(series), rows)
		}
	}
	if rows == 0 {
		return nil, fmt.Errorf("%w: columns are empty", ErrMissingInput)
	}

	// Defensive copy so callers cannot mutate the matrix afterwards.
	copied := make(map[string][]float64, len(columns))
	for _, col := range columns {
		series := make([]float64, rows)
		copy(series, data[col])
		copied[col] = series
	}
	cols := make([]string, len(columns))
	copy(cols, columns)

	return &ReturnMatrix{columns: cols, data: copied, rows: rows}, nil
}

// NewSingleSeries builds a one-column return matrix.
func NewSingleSeries(name string, series []float64) (*ReturnMatrix, error) {
	return NewReturnMatrix([]string{name}, map[string][]float64{name: series})
}

// Columns returns the ordered column names.
func (m *ReturnMatrix) Columns() []string { return m.columns }

// NumAssets returns the number of columns.
func (m *ReturnMatrix) NumAssets() int { return len(m.columns) }

// NumObs returns the number of observations per column.
func (m *ReturnMatrix) NumObs() int { return m.rows }

// Column returns the series for a named column, or nil if absent.
func (m *ReturnMatrix) Column(name string) []float64 { return m.data[name] }

// ColumnAt returns the series at the given column index.
func (m *ReturnMatrix) ColumnAt(i int) []float64 { return m.data[m.columns[i]] }

// PortfolioSeries computes the realized weighted portfolio return series
// w · r_t for each observation.
func (m *ReturnMatrix) PortfolioSeries(weights []float64) ([]float64, error) {
	if len(weights) != m.NumAssets() {
		return nil, fmt.Errorf("%w: %d weights for %d assets",
			ErrDimensionMismatch, len(weights), m.NumAssets())
	}
	out := make([]float64, m.rows)
	for i, col := range m.columns {
		series := m.data[col]
		for t := 0; t < m.rows; t++ {
			out[t] += weights[i] * series[t]
		}
	}
	return out, nil
}

// Transform applies fn to every column, producing a new matrix. Used by
// cleaning.
func (m *ReturnMatrix) Transform(fn func(series []float64) []float64) (*ReturnMatrix, error) {
	data := make(map[string][]float64, len(m.columns))
	for _, col := range m.columns {
		data[col] = fn(m.data[col])
	}
	return NewReturnMatrix(m.columns, data)
}

// MomentSet holds the multivariate moments of a return matrix: mean vector,
// covariance matrix, and optionally the coskewness (N x N^2) and cokurtosis
// (N x N^3) tensors in flattened form. All moments are about the mean.
type MomentSet struct {
	Mu    []float64
	Sigma *mat.SymDense
	M3    *mat.Dense // may be nil when higher moments are not needed
	M4    *mat.Dense // may be nil when higher moments are not needed
}

// HasHigherMoments reports whether coskewness and cokurtosis are present.
func (ms *MomentSet) HasHigherMoments() bool {
	return ms != nil && ms.M3 != nil && ms.M4 != nil
}

// Validate checks moment shapes against the asset count.
func (ms *MomentSet) Validate(n int) error {
	if ms == nil {
		return fmt.Errorf("%w: nil moment set", ErrMissingInput)
	}
	if len(ms.Mu) != n {
		return fmt.Errorf("%w: mean vector has length %d, expected %d",
			ErrDimensionMismatch, len(ms.Mu), n)
	}
	if ms.Sigma == nil {
		return fmt.Errorf("%w: covariance matrix missing", ErrMissingInput)
	}
	if r, c := ms.Sigma.Dims(); r != n || c != n {
		return fmt.Errorf("%w: covariance is %dx%d, expected %dx%d",
			ErrDimensionMismatch, r, c, n, n)
	}
	if ms.M3 != nil {
		if r, c := ms.M3.Dims(); r != n || c != n*n {
			return fmt.Errorf("%w: coskewness is %dx%d, expected %dx%d",
				ErrDimensionMismatch, r, c, n, n*n)
		}
	}
	if ms.M4 != nil {
		if r, c := ms.M4.Dims(); r != n || c != n*n*n {
			return fmt.Errorf("%w: cokurtosis is %dx%d, expected %dx%d",
				ErrDimensionMismatch, r, c, n, n*n*n)
		}
	}
	return nil
}

// QualityFlag marks a non-fatal result-quality issue detected by the
// dispatcher's post-processing pass.
type QualityFlag string

const (
	// FlagNonFinite marks a NaN/Inf estimate, replaced with NaN.
	FlagNonFinite QualityFlag = "non_finite"
	// FlagInverseRisk marks a negative loss estimate, replaced with NaN.
	FlagInverseRisk QualityFlag = "inverse_risk"
	// FlagExceedsCapital marks an estimate above 100% of capital, clamped to 1.
	FlagExceedsCapital QualityFlag = "exceeds_capital"
	// FlagOperationalOverride marks a modified ES that was substituted with
	// the modified VaR because the raw expansion was internally inconsistent.
	FlagOperationalOverride QualityFlag = "operational_override"
)

// QualityIssue annotates one result entry. Raw carries the value before the
// replacement policy was applied.
type QualityIssue struct {
	Column string      `json:"column,omitempty"`
	Flag   QualityFlag `json:"flag"`
	Raw    float64     `json:"raw"`
}

// MarshalJSON encodes a non-finite Raw as null.
func (q QualityIssue) MarshalJSON() ([]byte, error) {
	out := struct {
		Column string      `json:"column,omitempty"`
		Flag   QualityFlag `json:"flag"`
		Raw    naValue     `json:"raw"`
	}{q.Column, q.Flag, naValue(q.Raw)}
	return json.Marshal(out)
}

// RiskEstimate is the result of an estimation call. Single mode fills Values
// (one entry per column); component mode fills Total, Contribution and
// PctContribution. Quality issues are annotations, never fatal.
type RiskEstimate struct {
	Mode    Mode     `json:"mode"`
	Method  Method   `json:"method"`
	P       float64  `json:"p"`
	Columns []string `json:"columns"`

	Values []float64 `json:"values,omitempty"`

	Total           float64   `json:"total"`
	Contribution    []float64 `json:"contribution,omitempty"`
	PctContribution []float64 `json:"pct_contribution,omitempty"`

	Issues []QualityIssue `json:"issues,omitempty"`

	StdErr []float64 `json:"std_err,omitempty"`
}

// naValue encodes as JSON null when the value is not finite, so the NA
// replacement policy survives encoding (encoding/json rejects NaN and Inf).
type naValue float64

func (v naValue) MarshalJSON() ([]byte, error) {
	if f := float64(v); math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(v))
}

func naValues(vs []float64) []naValue {
	if vs == nil {
		return nil
	}
	out := make([]naValue, len(vs))
	for i, v := range vs {
		out[i] = naValue(v)
	}
	return out
}

// MarshalJSON keeps flagged estimates encodable: non-finite entries become
// null. Total is emitted only for decompositions, and then always, even when
// the portfolio total is exactly zero.
func (e RiskEstimate) MarshalJSON() ([]byte, error) {
	out := struct {
		Mode    Mode     `json:"mode"`
		Method  Method   `json:"method"`
		P       float64  `json:"p"`
		Columns []string `json:"columns"`

		Values []naValue `json:"values,omitempty"`

		Total           *naValue  `json:"total,omitempty"`
		Contribution    []naValue `json:"contribution,omitempty"`
		PctContribution []naValue `json:"pct_contribution,omitempty"`

		Issues []QualityIssue `json:"issues,omitempty"`

		StdErr []naValue `json:"std_err,omitempty"`
	}{
		Mode:            e.Mode,
		Method:          e.Method,
		P:               e.P,
		Columns:         e.Columns,
		Values:          naValues(e.Values),
		Contribution:    naValues(e.Contribution),
		PctContribution: naValues(e.PctContribution),
		Issues:          e.Issues,
		StdErr:          naValues(e.StdErr),
	}
	if e.Mode == ModeComponent {
		total := naValue(e.Total)
		out.Total = &total
	}
	return json.Marshal(out)
}
