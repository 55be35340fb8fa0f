package traj

import "math"

const (
	closeRelTol = 1e-9
	closeAbsTol = 1e-9
)

// IsClose reports whether a and b are equal within a relative tolerance
// of 1e-9 or an absolute tolerance of 1e-9. The test is symmetric.
func IsClose(a, b float64) bool {
	if a == b {
		return true
	}
	if math.IsNaN(a) || math.IsNaN(b) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return false
	}
	tol := closeRelTol * math.Max(math.Abs(a), math.Abs(b))
	if tol < closeAbsTol {
		tol = closeAbsTol
	}
	return math.Abs(a-b) <= tol
}
