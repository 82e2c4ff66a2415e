package risk

import (
	"fmt"

	"github.com/aristath/shortfall/pkg/formulas"
)

// CleanMethod names an outlier-cleaning policy for raw return series.
type CleanMethod string

const (
	// CleanNone passes series through unchanged.
	CleanNone CleanMethod = "none"
	// CleanWinsorized caps observations outside a two-sided quantile range.
	CleanWinsorized CleanMethod = "winsorized"
)

// ParseCleanMethod parses a cleaning method name. An empty string means none.
func ParseCleanMethod(s string) (CleanMethod, error) {
	switch CleanMethod(s) {
	case "", CleanNone:
		return CleanNone, nil
	case CleanWinsorized:
		return CleanWinsorized, nil
	}
	return "", fmt.Errorf("unknown clean method %q", s)
}

// DataCleaner transforms one raw return series prior to estimation. Cleaning
// is invoked only when raw returns are supplied; caller-provided moments
// bypass it entirely.
type DataCleaner interface {
	Name() CleanMethod
	Clean(series []float64) []float64
}

// NewCleaner builds the cleaner for a method. Alpha is the per-tail
// winsorization mass; values outside (0, 0.5) fall back to 0.01.
func NewCleaner(method CleanMethod, alpha float64) (DataCleaner, error) {
	switch method {
	case "", CleanNone:
		return noopCleaner{}, nil
	case CleanWinsorized:
		if alpha <= 0 || alpha >= 0.5 {
			alpha = 0.01
		}
		return winsorizingCleaner{alpha: alpha}, nil
	}
	return nil, fmt.Errorf("unknown clean method %q", method)
}

type noopCleaner struct{}

func (noopCleaner) Name() CleanMethod { return CleanNone }

func (noopCleaner) Clean(series []float64) []float64 {
	out := make([]float64, len(series))
	copy(out, series)
	return out
}

type winsorizingCleaner struct {
	alpha float64
}

func (winsorizingCleaner) Name() CleanMethod { return CleanWinsorized }

func (c winsorizingCleaner) Clean(series []float64) []float64 {
	return formulas.Winsorize(series, c.alpha)
}
