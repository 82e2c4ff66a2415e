package risk

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/aristath/shortfall/pkg/formulas"
)

// PortfolioInput carries the inputs of a portfolio decomposition. Weights is
// always required; the historical method additionally needs Returns, the
// Gaussian method needs Mu/Sigma, and the modified method needs the full
// moment set including the coskewness and cokurtosis tensors.
type PortfolioInput struct {
	Weights     []float64
	Returns     *ReturnMatrix
	Moments     *MomentSet
	P           float64
	Operational bool
}

// Decomposition is the Euler decomposition of portfolio ES: per-asset
// contributions sum to the total exactly, percentage contributions sum to 1.
// Total follows the "loss is positive" convention; Raw keeps the total before
// any operational override.
type Decomposition struct {
	Total           float64
	Raw             float64
	Overridden      bool
	Contribution    []float64
	PctContribution []float64
}

// PortfolioESDecomposer computes total portfolio ES and per-asset
// contributions under one distributional model.
type PortfolioESDecomposer interface {
	Method() Method
	Decompose(in PortfolioInput) (*Decomposition, error)
}

// NewPortfolioESDecomposer returns the decomposer for a method.
func NewPortfolioESDecomposer(method Method) (PortfolioESDecomposer, error) {
	switch method {
	case MethodHistorical:
		return historicalDecomposer{}, nil
	case MethodGaussian:
		return gaussianDecomposer{}, nil
	case MethodModified:
		return modifiedDecomposer{}, nil
	}
	return nil, fmt.Errorf("unknown estimation method %q", method)
}

// historicalDecomposer works on the realized weighted portfolio series:
// the total is the tail average of w·r_t, and each asset contributes the
// negated conditional average of its weighted return on the dates the
// portfolio return falls in its own tail.
type historicalDecomposer struct{}

func (historicalDecomposer) Method() Method { return MethodHistorical }

func (historicalDecomposer) Decompose(in PortfolioInput) (*Decomposition, error) {
	if in.Returns == nil {
		return nil, fmt.Errorf("%w: historical decomposition requires observed returns", ErrMissingInput)
	}
	n := in.Returns.NumAssets()
	if len(in.Weights) != n {
		return nil, fmt.Errorf("%w: %d weights for %d assets", ErrDimensionMismatch, len(in.Weights), n)
	}

	portfolio, err := in.Returns.PortfolioSeries(in.Weights)
	if err != nil {
		return nil, err
	}

	alpha := 1 - in.P
	if alpha <= 0 || alpha < 1/(4*float64(len(portfolio))) {
		return nil, fmt.Errorf("%w: tail probability %.6g with %d observations",
			ErrInsufficientTailData, alpha, len(portfolio))
	}

	q := formulas.Quantile(portfolio, alpha)
	tailDates := make([]int, 0, len(portfolio))
	for t, v := range portfolio {
		if v <= q {
			tailDates = append(tailDates, t)
		}
	}
	if len(tailDates) == 0 {
		return nil, fmt.Errorf("%w: no observations at or below quantile %.6g",
			ErrInsufficientTailData, q)
	}

	contribution := make([]float64, n)
	total := 0.0
	for i := 0; i < n; i++ {
		series := in.Returns.ColumnAt(i)
		sum := 0.0
		for _, t := range tailDates {
			sum += in.Weights[i] * series[t]
		}
		contribution[i] = -sum / float64(len(tailDates))
		total += contribution[i]
	}

	return &Decomposition{
		Total:           total,
		Raw:             total,
		Contribution:    contribution,
		PctContribution: pctContributions(contribution, total),
	}, nil
}

// gaussianDecomposer uses the closed-form normal ES of the portfolio
// m1 = w'mu, m2 = w'Sigma w:
//
//	ES      = -m1 + sqrt(m2) * phi(z)/alpha
//	dES/dwi = -mu_i + (Sigma w)_i / sqrt(m2) * phi(z)/alpha
type gaussianDecomposer struct{}

func (gaussianDecomposer) Method() Method { return MethodGaussian }

func (gaussianDecomposer) Decompose(in PortfolioInput) (*Decomposition, error) {
	ms := in.Moments
	n := len(in.Weights)
	if err := ms.Validate(n); err != nil {
		return nil, err
	}

	w := mat.NewVecDense(n, in.Weights)
	sw := mat.NewVecDense(n, nil)
	sw.MulVec(ms.Sigma, w)

	m1 := mat.Dot(w, mat.NewVecDense(n, ms.Mu))
	m2 := mat.Dot(w, sw)
	if m2 <= 0 {
		return nil, fmt.Errorf("%w: portfolio variance %v", ErrInvalidMoments, m2)
	}
	sp := math.Sqrt(m2)

	alpha := 1 - in.P
	z := distuv.UnitNormal.Quantile(alpha)
	tailDensity := distuv.UnitNormal.Prob(z) / alpha

	total := -m1 + sp*tailDensity
	contribution := make([]float64, n)
	for i := 0; i < n; i++ {
		marginal := -ms.Mu[i] + sw.AtVec(i)/sp*tailDensity
		contribution[i] = in.Weights[i] * marginal
	}

	return &Decomposition{
		Total:           total,
		Raw:             total,
		Contribution:    contribution,
		PctContribution: pctContributions(contribution, total),
	}, nil
}

// modifiedDecomposer evaluates the Edgeworth tail expectation of the
// portfolio whose skewness and kurtosis are closed-form functions of the
// weight vector and the coskewness/cokurtosis tensors:
//
//	m2  = w'Sigma w        dm2/dw = 2 Sigma w
//	m3p = w'M3 (w⊗w)       dm3/dw = 3 M3 (w⊗w)
//	m4p = w'M4 (w⊗w⊗w)     dm4/dw = 4 M4 (w⊗w⊗w)
//
// Per-asset marginals chain through dS/dw, dK/dw and dh/dw. The formula is
// homogeneous of degree 1 in w, so the weighted marginals sum to the total
// exactly (Euler's theorem).
type modifiedDecomposer struct{}

func (modifiedDecomposer) Method() Method { return MethodModified }

func (modifiedDecomposer) Decompose(in PortfolioInput) (*Decomposition, error) {
	ms := in.Moments
	n := len(in.Weights)
	if err := ms.Validate(n); err != nil {
		return nil, err
	}
	if !ms.HasHigherMoments() {
		return nil, fmt.Errorf("%w: modified decomposition needs coskewness and cokurtosis tensors", ErrInvalidMoments)
	}

	w := mat.NewVecDense(n, in.Weights)

	sw := mat.NewVecDense(n, nil)
	sw.MulVec(ms.Sigma, w)

	w2 := kroneckerVec(in.Weights, in.Weights)
	m3w := mat.NewVecDense(n, nil)
	m3w.MulVec(ms.M3, mat.NewVecDense(len(w2), w2))

	w3 := kroneckerVec(w2, in.Weights)
	m4w := mat.NewVecDense(n, nil)
	m4w.MulVec(ms.M4, mat.NewVecDense(len(w3), w3))

	m1 := mat.Dot(w, mat.NewVecDense(n, ms.Mu))
	m2 := mat.Dot(w, sw)
	if m2 <= 0 {
		return nil, fmt.Errorf("%w: portfolio variance %v", ErrInvalidMoments, m2)
	}
	m3p := mat.Dot(w, m3w)
	m4p := mat.Dot(w, m4w)

	sp := math.Sqrt(m2)
	skew := m3p / (m2 * sp)
	exkurt := m4p/(m2*m2) - 3

	alpha := 1 - in.P
	z := distuv.UnitNormal.Quantile(alpha)
	z2 := z * z
	z3 := z2 * z
	h := cornishFisherZ(z, skew, exkurt)

	e := edgeworthTailE(h, skew, exkurt)
	dEdh, dEdS, dEdK := edgeworthTailEGrad(h, skew, exkurt)

	total := -m1 + sp*e/alpha
	contribution := make([]float64, n)
	for i := 0; i < n; i++ {
		dm2 := 2 * sw.AtVec(i)
		dm3 := 3 * m3w.AtVec(i)
		dm4 := 4 * m4w.AtVec(i)

		dS := (dm3*m2 - 1.5*m3p*dm2) / (m2 * m2 * sp)
		dK := (dm4*m2 - 2*m4p*dm2) / (m2 * m2 * m2)

		dh := ((z2-1)/6-(2*z3-5*z)*skew/18)*dS + (z3-3*z)/24*dK
		dE := dEdh*dh + dEdS*dS + dEdK*dK

		marginal := -ms.Mu[i] + dm2/(2*sp)*e/alpha + sp*dE/alpha
		contribution[i] = in.Weights[i] * marginal
	}

	dec := &Decomposition{
		Total:           total,
		Raw:             total,
		Contribution:    contribution,
		PctContribution: pctContributions(contribution, total),
	}

	// Operational override at the portfolio-total level: fall back to the
	// modified VaR decomposition when the expansion puts ES inside VaR.
	if in.Operational {
		mvarTotal := -(m1 + sp*h)
		if total < mvarTotal {
			varContribution := make([]float64, n)
			for i := 0; i < n; i++ {
				dm2 := 2 * sw.AtVec(i)
				dm3 := 3 * m3w.AtVec(i)
				dm4 := 4 * m4w.AtVec(i)

				dS := (dm3*m2 - 1.5*m3p*dm2) / (m2 * m2 * sp)
				dK := (dm4*m2 - 2*m4p*dm2) / (m2 * m2 * m2)
				dh := ((z2-1)/6-(2*z3-5*z)*skew/18)*dS + (z3-3*z)/24*dK

				marginal := -(ms.Mu[i] + dm2/(2*sp)*h + sp*dh)
				varContribution[i] = in.Weights[i] * marginal
			}
			dec.Total = mvarTotal
			dec.Overridden = true
			dec.Contribution = varContribution
			dec.PctContribution = pctContributions(varContribution, mvarTotal)
		}
	}

	return dec, nil
}

// kroneckerVec flattens the outer product a ⊗ b.
func kroneckerVec(a, b []float64) []float64 {
	out := make([]float64, len(a)*len(b))
	for i, av := range a {
		for j, bv := range b {
			out[i*len(b)+j] = av * bv
		}
	}
	return out
}

// pctContributions normalizes contributions by the total. A zero total yields
// zero percentages rather than NaNs.
func pctContributions(contribution []float64, total float64) []float64 {
	pct := make([]float64, len(contribution))
	if total == 0 {
		return pct
	}
	for i, c := range contribution {
		pct[i] = c / total
	}
	return pct
}
