package traj

import (
	"errors"
	"fmt"
)

// Error classes. Callers match them with errors.Is; every returned error
// wraps exactly one of these with context.
var (
	// ErrValidation reports a length or shape mismatch, a unit
	// redefinition, or an out-of-range selection.
	ErrValidation = errors.New("validation error")

	// ErrChronology reports frames or times that are not strictly
	// increasing. It is a kind of ErrValidation.
	ErrChronology = fmt.Errorf("%w: chronological order", ErrValidation)

	// ErrDomain reports a degenerate computation, such as an alignment
	// with no usable intensity weights.
	ErrDomain = errors.New("domain error")

	// ErrConfiguration reports missing or inconsistent settings: no
	// delta_t, an empty input list, mismatched partners, or an attempt
	// to average already averaged data.
	ErrConfiguration = errors.New("configuration error")

	// ErrIO reports a malformed trajectory file.
	ErrIO = errors.New("io error")
)
