package risk

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/shortfall/pkg/formulas"
)

// SEConfig configures standard-error estimation.
type SEConfig struct {
	// Replications is the number of bootstrap resamples. Zero means 500.
	Replications int
	// Seed fixes the resampling RNG for reproducibility. Zero seeds from the
	// clock.
	Seed int64
}

func (c SEConfig) withDefaults() SEConfig {
	if c.Replications <= 0 {
		c.Replications = 500
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	return c
}

// StandardErrorEstimator estimates the sampling error of a historical ES
// estimate. It is a pluggable collaborator: heavier bootstrap/HAC-style
// estimators can be swapped in behind this interface.
type StandardErrorEstimator interface {
	StandardError(series []float64, p float64, cfg SEConfig) (float64, error)
}

// BootstrapEstimator estimates the standard error of historical ES by IID
// resampling with replacement.
type BootstrapEstimator struct {
	log zerolog.Logger
}

// NewBootstrapEstimator creates a bootstrap standard-error estimator.
func NewBootstrapEstimator(log zerolog.Logger) *BootstrapEstimator {
	return &BootstrapEstimator{
		log: log.With().Str("component", "bootstrap_se").Logger(),
	}
}

// StandardError resamples the series with replacement, re-estimates the
// historical ES on each replicate, and reports the standard deviation across
// replicates.
func (b *BootstrapEstimator) StandardError(series []float64, p float64, cfg SEConfig) (float64, error) {
	// Reject up front what every replicate would reject.
	if _, err := empiricalTail(series, p); err != nil {
		return 0, fmt.Errorf("series cannot support bootstrap at p=%v: %w", p, err)
	}

	cfg = cfg.withDefaults()
	rng := rand.New(rand.NewSource(cfg.Seed))
	estimator := historicalSingle{}

	replicates := make([]float64, 0, cfg.Replications)
	sample := make([]float64, len(series))
	for r := 0; r < cfg.Replications; r++ {
		for i := range sample {
			sample[i] = series[rng.Intn(len(series))]
		}
		res, err := estimator.FromSeries(sample, p)
		if err != nil {
			// A degenerate resample (e.g. all identical values) is skipped,
			// not fatal.
			continue
		}
		replicates = append(replicates, res.ES)
	}

	if len(replicates) < 2 {
		return 0, fmt.Errorf("bootstrap produced %d usable replicates", len(replicates))
	}

	se := formulas.StdDev(replicates)
	b.log.Debug().
		Int("replications", len(replicates)).
		Float64("standard_error", se).
		Msg("Bootstrap standard error computed")

	return se, nil
}
