package risk

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// The modified ES is the expected value of the standardized return below the
// Cornish-Fisher quantile h, taken under the second-order Edgeworth expansion
// of the density:
//
//	g(x) = phi(x) * [1 + S/6 H3(x) + K/24 H4(x) + S^2/72 H6(x)]
//
// with probabilists' Hermite polynomials H. Writing
// I_q(h) = integral of x^q phi(x) over (-inf, h], the (negated) partial
// expectation is
//
//	E(h) = phi(h) - S/6 (I4 - 3 I2) - K/24 (I5 - 6 I3 + 3 I1)
//	       - S^2/72 (I7 - 15 I5 + 45 I3 - 15 I1)
//
// and the modified ES of a series with mean mu and standard deviation sigma
// is -mu + sigma * E(h)/(1-p). At S=K=0 the expression collapses to the
// Gaussian closed form -mu + sigma * phi(z)/(1-p).
//
// (Boudt, Peterson & Croux, 2008: estimation and decomposition of downside
// risk for portfolios with non-normal returns.)

// tailPowers returns I_q(h) for q = 0..7 via the recursion
// I_0 = Phi(h), I_1 = -phi(h), I_q = -h^(q-1) phi(h) + (q-1) I_(q-2).
func tailPowers(h float64) [8]float64 {
	var ip [8]float64
	phi := distuv.UnitNormal.Prob(h)
	ip[0] = distuv.UnitNormal.CDF(h)
	ip[1] = -phi
	for q := 2; q < 8; q++ {
		ip[q] = -math.Pow(h, float64(q-1))*phi + float64(q-1)*ip[q-2]
	}
	return ip
}

// edgeworthTailE evaluates E(h) for the given skewness and excess kurtosis.
func edgeworthTailE(h, skew, exkurt float64) float64 {
	ip := tailPowers(h)
	phi := distuv.UnitNormal.Prob(h)
	return phi -
		skew/6*(ip[4]-3*ip[2]) -
		exkurt/24*(ip[5]-6*ip[3]+3*ip[1]) -
		skew*skew/72*(ip[7]-15*ip[5]+45*ip[3]-15*ip[1])
}

// edgeworthTailEGrad returns the partial derivatives of E with respect to h,
// skewness and excess kurtosis. dI_q/dh = h^q phi(h) exactly, so dE/dh has a
// closed form as well; the decomposer chains these through dh/dS and dh/dK.
func edgeworthTailEGrad(h, skew, exkurt float64) (dEdh, dEdS, dEdK float64) {
	ip := tailPowers(h)
	phi := distuv.UnitNormal.Prob(h)

	h2 := h * h
	h3 := h2 * h
	h4 := h3 * h
	h5 := h4 * h
	h7 := h5 * h2

	dEdh = phi * (-h -
		skew/6*(h4-3*h2) -
		exkurt/24*(h5-6*h3+3*h) -
		skew*skew/72*(h7-15*h5+45*h3-15*h))

	dEdS = -(ip[4]-3*ip[2])/6 -
		skew/36*(ip[7]-15*ip[5]+45*ip[3]-15*ip[1])

	dEdK = -(ip[5] - 6*ip[3] + 3*ip[1]) / 24

	return dEdh, dEdS, dEdK
}
