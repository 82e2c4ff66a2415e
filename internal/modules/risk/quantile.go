package risk

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/aristath/shortfall/pkg/formulas"
)

// QuantileInput carries either an observed series or the moments of the
// distribution whose risk quantile is requested. HasHigher must be set when
// Skew/ExKurt carry usable values.
type QuantileInput struct {
	Series    []float64
	Mu        float64
	Sigma     float64
	Skew      float64
	ExKurt    float64
	HasHigher bool
}

// RiskQuantile computes the (1-p) return quantile under the chosen
// distributional model. The empirical policy is linear interpolation between
// order statistics (R type 7); the Gaussian policy uses the inverse standard
// normal CDF; the modified policy applies the second-order Cornish-Fisher
// expansion, which reduces to the Gaussian quantile at zero skewness and
// zero excess kurtosis.
func RiskQuantile(method Method, p float64, in QuantileInput) (float64, error) {
	if err := validateConfidence(p); err != nil {
		return 0, err
	}
	alpha := 1 - p

	switch method {
	case MethodHistorical:
		if len(in.Series) == 0 {
			return 0, fmt.Errorf("%w: historical quantile requires an observed series", ErrMissingInput)
		}
		return formulas.Quantile(in.Series, alpha), nil

	case MethodGaussian:
		mu, sigma := in.Mu, in.Sigma
		if len(in.Series) > 0 {
			mu = formulas.Mean(in.Series)
			sigma = formulas.StdDev(in.Series)
		}
		return mu + sigma*distuv.UnitNormal.Quantile(alpha), nil

	case MethodModified:
		mu, sigma, skew, exkurt := in.Mu, in.Sigma, in.Skew, in.ExKurt
		switch {
		case len(in.Series) > 0:
			mu = formulas.Mean(in.Series)
			sigma = formulas.StdDev(in.Series)
			skew = formulas.Skewness(in.Series)
			exkurt = formulas.ExcessKurtosis(in.Series)
		case !in.HasHigher:
			return 0, fmt.Errorf("%w: modified quantile needs skewness and excess kurtosis", ErrInvalidMoments)
		}
		z := distuv.UnitNormal.Quantile(alpha)
		return mu + sigma*cornishFisherZ(z, skew, exkurt), nil
	}

	return 0, fmt.Errorf("unknown estimation method %q", method)
}

// cornishFisherZ adjusts a standard normal quantile z for skewness S and
// excess kurtosis K:
//
//	z_cf = z + (z^2-1)S/6 + (z^3-3z)K/24 - (2z^3-5z)S^2/36
func cornishFisherZ(z, skew, exkurt float64) float64 {
	z2 := z * z
	z3 := z2 * z
	return z +
		(z2-1)*skew/6 +
		(z3-3*z)*exkurt/24 -
		(2*z3-5*z)*skew*skew/36
}

func validateConfidence(p float64) error {
	if p <= 0 || p >= 1 {
		return fmt.Errorf("confidence level must be strictly between 0 and 1, got %v", p)
	}
	return nil
}
