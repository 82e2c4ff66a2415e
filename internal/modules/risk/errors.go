package risk

import "errors"

// Structural input errors abort an estimation call immediately. They are
// matchable with errors.Is; call sites wrap them with context via fmt.Errorf
// and %w.
var (
	// ErrMissingInput indicates neither returns nor moments were supplied,
	// or the selected method needs observed returns that are absent.
	ErrMissingInput = errors.New("missing input: returns or moments required")

	// ErrDimensionMismatch indicates a weight vector or moment tensor whose
	// shape does not agree with the number of assets.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrInvalidMoments indicates the modified method was requested without
	// usable skewness/kurtosis information.
	ErrInvalidMoments = errors.New("invalid moments: skewness and kurtosis unavailable")

	// ErrInsufficientTailData indicates the empirical tail is not resolvable
	// for the requested confidence level and sample size.
	ErrInsufficientTailData = errors.New("insufficient tail data")

	// ErrUnavailableCollaborator indicates standard-error estimation was
	// requested but no estimator is configured.
	ErrUnavailableCollaborator = errors.New("standard-error estimator unavailable")
)
