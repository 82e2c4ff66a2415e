package risk

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
)

// Request describes one estimation call. Construct it with NewRequest to get
// the documented defaults (p=0.95, modified method, single mode, no cleaning,
// inverted sign, operational override on), then override fields as needed.
type Request struct {
	// Returns is the observed return matrix. Optional when Moments is given
	// and the method does not need raw observations.
	Returns *ReturnMatrix

	// P is the confidence level in (0,1); the tail probability is 1-P.
	P float64

	// Method selects the distributional model.
	Method Method

	// Clean selects outlier cleaning for raw returns. Ignored when Moments
	// is supplied by the caller.
	Clean CleanMethod

	// CleanAlpha is the per-tail winsorization mass for CleanWinsorized.
	CleanAlpha float64

	// Mode selects single-series or component estimation.
	Mode Mode

	// Weights is the portfolio allocation for component mode. Entries need
	// not sum to one; a nil vector means equal weighting.
	Weights []float64

	// Moments, when set, wins over derivation from Returns and bypasses
	// cleaning.
	Moments *MomentSet

	// Invert reports risk as a positive loss number. When false the raw,
	// quantile-consistent negative value is returned.
	Invert bool

	// Operational enables the modified-method VaR substitution when the
	// expansion is internally inconsistent.
	Operational bool

	// ComputeSE requests a bootstrap standard error per column. This forces
	// single/historical/uninverted estimation for consistency.
	ComputeSE bool

	// SE configures the standard-error estimator when ComputeSE is set.
	SE SEConfig
}

// NewRequest returns a request with the documented defaults.
func NewRequest() Request {
	return Request{
		P:           0.95,
		Method:      MethodModified,
		Clean:       CleanNone,
		CleanAlpha:  0.01,
		Mode:        ModeSingle,
		Invert:      true,
		Operational: true,
	}
}

// Dispatcher is the public entry point of the engine. It validates inputs,
// resolves defaults and moments, routes to the selected strategy, and applies
// the result-quality pass. Each call is a pure function of its inputs; a
// single Dispatcher is safe for concurrent use.
type Dispatcher struct {
	moments MomentEstimator
	se      StandardErrorEstimator
	log     zerolog.Logger
}

// NewDispatcher creates a dispatcher. The standard-error estimator may be nil
// when standard errors will never be requested.
func NewDispatcher(moments MomentEstimator, se StandardErrorEstimator, log zerolog.Logger) *Dispatcher {
	if moments == nil {
		moments = NewSampleMomentEstimator()
	}
	return &Dispatcher{
		moments: moments,
		se:      se,
		log:     log.With().Str("component", "es_dispatcher").Logger(),
	}
}

// Estimate runs one estimation call.
func (d *Dispatcher) Estimate(req Request) (*RiskEstimate, error) {
	req = normalize(req)
	if err := validateConfidence(req.P); err != nil {
		return nil, err
	}
	if req.Returns == nil && req.Moments == nil {
		return nil, fmt.Errorf("%w: supply a return matrix or a moment set", ErrMissingInput)
	}

	// Standard errors are only defined for the plain historical estimator on
	// raw series; force that configuration rather than silently mixing
	// conventions.
	if req.ComputeSE {
		if d.se == nil {
			return nil, fmt.Errorf("%w: standard errors requested", ErrUnavailableCollaborator)
		}
		if req.Returns == nil {
			return nil, fmt.Errorf("%w: standard errors need observed returns", ErrMissingInput)
		}
		if req.Mode != ModeSingle || req.Method != MethodHistorical || req.Invert {
			d.log.Info().Msg("Standard errors requested; forcing single/historical/uninverted estimation")
			req.Mode = ModeSingle
			req.Method = MethodHistorical
			req.Invert = false
		}
	}

	returns, err := d.cleanedReturns(req)
	if err != nil {
		return nil, err
	}

	switch req.Mode {
	case ModeSingle:
		return d.estimateSingle(req, returns)
	case ModeComponent:
		return d.estimateComponent(req, returns)
	}
	return nil, fmt.Errorf("unknown estimation mode %q", req.Mode)
}

func normalize(req Request) Request {
	if req.P == 0 {
		req.P = 0.95
	}
	if req.Method == "" {
		req.Method = MethodModified
	}
	if req.Clean == "" {
		req.Clean = CleanNone
	}
	if req.CleanAlpha == 0 {
		req.CleanAlpha = 0.01
	}
	if req.Mode == "" {
		req.Mode = ModeSingle
	}
	return req
}

// cleanedReturns applies the requested cleaning to raw returns. Cleaning is
// skipped when the caller supplied moments: those bypass both recomputation
// and cleaning.
func (d *Dispatcher) cleanedReturns(req Request) (*ReturnMatrix, error) {
	if req.Returns == nil || req.Clean == CleanNone || req.Moments != nil {
		return req.Returns, nil
	}
	cleaner, err := NewCleaner(req.Clean, req.CleanAlpha)
	if err != nil {
		return nil, err
	}
	d.log.Debug().
		Str("clean", string(req.Clean)).
		Float64("alpha", req.CleanAlpha).
		Msg("Cleaning return series")
	return req.Returns.Transform(cleaner.Clean)
}

func (d *Dispatcher) estimateSingle(req Request, returns *ReturnMatrix) (*RiskEstimate, error) {
	strategy, err := NewSingleSeriesES(req.Method, req.Operational)
	if err != nil {
		return nil, err
	}

	var columns []string
	switch {
	case returns != nil:
		columns = returns.Columns()
	default:
		if err := req.Moments.Validate(len(req.Moments.Mu)); err != nil {
			return nil, err
		}
		columns = make([]string, len(req.Moments.Mu))
		for i := range columns {
			columns[i] = fmt.Sprintf("asset_%d", i+1)
		}
	}

	est := &RiskEstimate{
		Mode:    ModeSingle,
		Method:  req.Method,
		P:       req.P,
		Columns: columns,
		Values:  make([]float64, len(columns)),
	}

	for i, col := range columns {
		var res SingleResult
		if returns != nil {
			res, err = strategy.FromSeries(returns.Column(col), req.P)
		} else {
			res, err = strategy.FromMoments(momentsForColumn(req.Moments, i), req.P)
		}
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		if res.Overridden {
			est.Issues = append(est.Issues, QualityIssue{
				Column: col, Flag: FlagOperationalOverride, Raw: res.Raw,
			})
		}
		est.Values[i] = res.ES
	}

	d.applyQualityPass(est)
	d.applySign(est, req.Invert)

	if req.ComputeSE {
		est.StdErr = make([]float64, len(columns))
		for i, col := range columns {
			se, err := d.se.StandardError(returns.Column(col), req.P, req.SE)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", col, err)
			}
			est.StdErr[i] = se
		}
	}

	return est, nil
}

func (d *Dispatcher) estimateComponent(req Request, returns *ReturnMatrix) (*RiskEstimate, error) {
	decomposer, err := NewPortfolioESDecomposer(req.Method)
	if err != nil {
		return nil, err
	}

	n, columns, err := assetUniverse(req.Moments, returns)
	if err != nil {
		return nil, err
	}

	weights := req.Weights
	if weights == nil {
		// Documented default: equal weighting, informational only.
		d.log.Info().Int("assets", n).Msg("No weights supplied; defaulting to equal weighting")
		weights = make([]float64, n)
		for i := range weights {
			weights[i] = 1.0 / float64(n)
		}
	}
	if len(weights) != n {
		return nil, fmt.Errorf("%w: %d weights for %d assets", ErrDimensionMismatch, len(weights), n)
	}

	moments, err := d.resolveMoments(req, returns, n)
	if err != nil {
		return nil, err
	}

	dec, err := decomposer.Decompose(PortfolioInput{
		Weights:     weights,
		Returns:     returns,
		Moments:     moments,
		P:           req.P,
		Operational: req.Operational,
	})
	if err != nil {
		return nil, err
	}

	est := &RiskEstimate{
		Mode:            ModeComponent,
		Method:          req.Method,
		P:               req.P,
		Columns:         columns,
		Total:           dec.Total,
		Contribution:    dec.Contribution,
		PctContribution: dec.PctContribution,
	}
	if dec.Overridden {
		est.Issues = append(est.Issues, QualityIssue{
			Flag: FlagOperationalOverride, Raw: dec.Raw,
		})
	}

	d.applyQualityPass(est)
	d.applySign(est, req.Invert)
	return est, nil
}

// resolveMoments applies the precedence rule once: caller-supplied moments
// win; otherwise moments derive from the (cleaned) returns; otherwise the
// call fails.
func (d *Dispatcher) resolveMoments(req Request, returns *ReturnMatrix, n int) (*MomentSet, error) {
	if req.Method == MethodHistorical {
		// Historical decomposition works on realized series, not moments.
		return nil, nil
	}

	needHigher := req.Method == MethodModified
	if req.Moments != nil {
		if err := req.Moments.Validate(n); err != nil {
			return nil, err
		}
		if needHigher && !req.Moments.HasHigherMoments() {
			if returns == nil {
				return nil, fmt.Errorf("%w: supplied moments lack coskewness/cokurtosis and no returns are available", ErrInvalidMoments)
			}
			// Derive only the missing tensors; the supplied mean/covariance win.
			mu := d.moments.Mean(returns)
			return &MomentSet{
				Mu:    req.Moments.Mu,
				Sigma: req.Moments.Sigma,
				M3:    d.moments.Coskewness(returns, mu),
				M4:    d.moments.Cokurtosis(returns, mu),
			}, nil
		}
		return req.Moments, nil
	}

	if returns == nil {
		return nil, fmt.Errorf("%w: %s decomposition needs returns or moments", ErrMissingInput, req.Method)
	}
	return EstimateMoments(d.moments, returns, needHigher)
}

// applyQualityPass implements the reasonableness checks as a pure transform
// on the computed (loss-positive) values: non-finite and inverted estimates
// become NaN, estimates above 100% of capital clamp to 1. Each replacement
// is annotated, never fatal.
func (d *Dispatcher) applyQualityPass(est *RiskEstimate) {
	check := func(v float64, column string) float64 {
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			d.log.Warn().Str("column", column).Msg("ES estimate is not finite; reporting NA")
			est.Issues = append(est.Issues, QualityIssue{Column: column, Flag: FlagNonFinite, Raw: v})
			return math.NaN()
		case v < 0:
			d.log.Warn().Str("column", column).Float64("value", v).
				Msg("ES estimate is negative (inverse risk); reporting NA")
			est.Issues = append(est.Issues, QualityIssue{Column: column, Flag: FlagInverseRisk, Raw: v})
			return math.NaN()
		case v > 1:
			d.log.Warn().Str("column", column).Float64("value", v).
				Msg("ES estimate exceeds 100% of capital; clamping")
			est.Issues = append(est.Issues, QualityIssue{Column: column, Flag: FlagExceedsCapital, Raw: v})
			return 1
		}
		return v
	}

	switch est.Mode {
	case ModeSingle:
		for i, col := range est.Columns {
			est.Values[i] = check(est.Values[i], col)
		}
	case ModeComponent:
		est.Total = check(est.Total, "")
	}
}

// applySign converts from the internal loss-positive convention to the raw
// quantile-consistent sign when inversion is disabled.
func (d *Dispatcher) applySign(est *RiskEstimate, invert bool) {
	if invert {
		return
	}
	for i := range est.Values {
		est.Values[i] = -est.Values[i]
	}
	est.Total = -est.Total
	for i := range est.Contribution {
		est.Contribution[i] = -est.Contribution[i]
	}
}

// momentsForColumn extracts the univariate moments of asset i from a moment
// set, including standardized skewness and excess kurtosis when the tensors
// are present.
func momentsForColumn(ms *MomentSet, i int) SeriesMoments {
	n := len(ms.Mu)
	variance := ms.Sigma.At(i, i)
	m := SeriesMoments{
		Mu:    ms.Mu[i],
		Sigma: math.Sqrt(variance),
	}
	if ms.HasHigherMoments() && variance > 0 {
		m3 := ms.M3.At(i, i*n+i)
		m4 := ms.M4.At(i, i*n*n+i*n+i)
		m.Skew = m3 / math.Pow(variance, 1.5)
		m.ExKurt = m4/(variance*variance) - 3
		m.HasHigher = true
	}
	return m
}

func assetUniverse(ms *MomentSet, returns *ReturnMatrix) (int, []string, error) {
	if returns != nil {
		return returns.NumAssets(), returns.Columns(), nil
	}
	if ms == nil || len(ms.Mu) == 0 {
		return 0, nil, fmt.Errorf("%w: cannot determine asset universe", ErrMissingInput)
	}
	columns := make([]string, len(ms.Mu))
	for i := range columns {
		columns[i] = fmt.Sprintf("asset_%d", i+1)
	}
	return len(ms.Mu), columns, nil
}
