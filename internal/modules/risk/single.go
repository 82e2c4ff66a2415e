package risk

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/aristath/shortfall/pkg/formulas"
)

// SeriesMoments carries the univariate moments of one return series for
// estimators working without raw observations.
type SeriesMoments struct {
	Mu        float64
	Sigma     float64
	Skew      float64
	ExKurt    float64
	HasHigher bool
}

// SingleResult is the outcome of a single-series estimation. ES follows the
// "loss is positive" convention; Raw keeps the value before any operational
// override so callers can inspect both.
type SingleResult struct {
	ES         float64
	Raw        float64
	Overridden bool
}

// SingleSeriesES computes scalar ES for one return series. One implementation
// exists per estimation method; the dispatcher selects it once per call.
type SingleSeriesES interface {
	Method() Method
	FromSeries(series []float64, p float64) (SingleResult, error)
	FromMoments(m SeriesMoments, p float64) (SingleResult, error)
}

// NewSingleSeriesES returns the strategy for a method. The operational flag
// only affects the modified method (VaR substitution on inconsistent tails).
func NewSingleSeriesES(method Method, operational bool) (SingleSeriesES, error) {
	switch method {
	case MethodHistorical:
		return historicalSingle{}, nil
	case MethodGaussian:
		return gaussianSingle{}, nil
	case MethodModified:
		return modifiedSingle{operational: operational}, nil
	}
	return nil, fmt.Errorf("unknown estimation method %q", method)
}

// historicalSingle averages the empirical tail: the negated mean of all
// observations at or below the interpolated (1-p)-quantile.
type historicalSingle struct{}

func (historicalSingle) Method() Method { return MethodHistorical }

func (historicalSingle) FromSeries(series []float64, p float64) (SingleResult, error) {
	tail, err := empiricalTail(series, p)
	if err != nil {
		return SingleResult{}, err
	}
	es := -formulas.Mean(tail)
	return SingleResult{ES: es, Raw: es}, nil
}

func (historicalSingle) FromMoments(SeriesMoments, float64) (SingleResult, error) {
	return SingleResult{}, fmt.Errorf("%w: historical method requires observed returns", ErrMissingInput)
}

// empiricalTail selects the observations at or below the interpolated
// (1-p)-quantile. The tail is unresolvable when the requested tail mass is
// smaller than a quarter of one observation's probability mass.
func empiricalTail(series []float64, p float64) ([]float64, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: empty series", ErrMissingInput)
	}
	alpha := 1 - p
	if alpha <= 0 || alpha < 1/(4*float64(len(series))) {
		return nil, fmt.Errorf("%w: tail probability %.6g with %d observations",
			ErrInsufficientTailData, alpha, len(series))
	}

	q := formulas.Quantile(series, alpha)
	tail := make([]float64, 0, len(series))
	for _, v := range series {
		if v <= q {
			tail = append(tail, v)
		}
	}
	if len(tail) == 0 {
		return nil, fmt.Errorf("%w: no observations at or below quantile %.6g",
			ErrInsufficientTailData, q)
	}
	return tail, nil
}

// gaussianSingle uses the closed form ES = -mu + sigma*phi(z)/(1-p).
type gaussianSingle struct{}

func (gaussianSingle) Method() Method { return MethodGaussian }

func (gaussianSingle) FromSeries(series []float64, p float64) (SingleResult, error) {
	if len(series) == 0 {
		return SingleResult{}, fmt.Errorf("%w: empty series", ErrMissingInput)
	}
	return gaussianES(formulas.Mean(series), formulas.StdDev(series), p)
}

func (gaussianSingle) FromMoments(m SeriesMoments, p float64) (SingleResult, error) {
	return gaussianES(m.Mu, m.Sigma, p)
}

func gaussianES(mu, sigma, p float64) (SingleResult, error) {
	if math.IsNaN(sigma) || math.IsInf(sigma, 0) || sigma < 0 {
		return SingleResult{}, fmt.Errorf("%w: standard deviation %v", ErrInvalidMoments, sigma)
	}
	alpha := 1 - p
	z := distuv.UnitNormal.Quantile(alpha)
	es := -mu + sigma*distuv.UnitNormal.Prob(z)/alpha
	return SingleResult{ES: es, Raw: es}, nil
}

// modifiedSingle computes the Edgeworth tail expectation below the
// Cornish-Fisher quantile. With the operational flag set, a modified ES that
// falls below the modified VaR is replaced by that VaR; the raw value stays
// available on the result.
type modifiedSingle struct {
	operational bool
}

func (modifiedSingle) Method() Method { return MethodModified }

func (s modifiedSingle) FromSeries(series []float64, p float64) (SingleResult, error) {
	if len(series) == 0 {
		return SingleResult{}, fmt.Errorf("%w: empty series", ErrMissingInput)
	}
	m := SeriesMoments{
		Mu:        formulas.Mean(series),
		Sigma:     formulas.StdDev(series),
		Skew:      formulas.Skewness(series),
		ExKurt:    formulas.ExcessKurtosis(series),
		HasHigher: true,
	}
	return s.FromMoments(m, p)
}

func (s modifiedSingle) FromMoments(m SeriesMoments, p float64) (SingleResult, error) {
	if !m.HasHigher {
		return SingleResult{}, fmt.Errorf("%w: modified method needs skewness and excess kurtosis", ErrInvalidMoments)
	}
	if math.IsNaN(m.Sigma) || math.IsInf(m.Sigma, 0) || m.Sigma < 0 {
		return SingleResult{}, fmt.Errorf("%w: standard deviation %v", ErrInvalidMoments, m.Sigma)
	}

	alpha := 1 - p
	z := distuv.UnitNormal.Quantile(alpha)
	h := cornishFisherZ(z, m.Skew, m.ExKurt)

	es := -m.Mu + m.Sigma*edgeworthTailE(h, m.Skew, m.ExKurt)/alpha
	res := SingleResult{ES: es, Raw: es}

	// The expansion can put the tail expectation inside the VaR threshold at
	// extreme skew/kurtosis. The operational policy substitutes the modified
	// VaR rather than returning an internally inconsistent number.
	if s.operational {
		mvar := -(m.Mu + m.Sigma*h)
		if es < mvar {
			res.ES = mvar
			res.Overridden = true
		}
	}
	return res, nil
}
