// Package align solves the rigid rotation, translation and frame lag that
// best superimpose one trajectory on another.
//
// The fit is Horn's closed form restricted to 2D, with every sample
// weighted by the product of the two intensities. The lag is found by
// sliding the shorter trajectory over a triplicated copy of the longer
// one, then refining around the best candidate on the true overlap.
package align

import (
	"fmt"
	"math"

	"github.com/banshee-data/trajalign/internal/stats"
	"github.com/banshee-data/trajalign/internal/traj"
)

// Transform is the result of aligning a moving trajectory onto a
// reference. Rotating the moving trajectory by Angle about LC, moving LC
// onto RC and adding Lag to its frames superimposes it on the reference.
type Transform struct {
	Angle float64
	// RC is the weighted centroid of the reference.
	RC [2]float64
	// LC is the weighted centroid of the moving trajectory.
	LC [2]float64
	// Lag is in frames.
	Lag int
	// Score is the weighted squared residual; +Inf when undefined.
	Score float64
	// Overlap is the number of samples the score was computed on.
	Overlap int
}

// Fit returns the rotation and centroids that best superimpose b on a.
// Both trajectories must hold coordinates and intensities of equal length.
// Samples where either intensity is NaN carry no weight. When the angle is
// undefined the score is +Inf.
func Fit(a, b *traj.Trajectory) (Transform, error) {
	if !a.Has(traj.F) || !b.Has(traj.F) {
		return Transform{}, fmt.Errorf("%w: fitting requires intensities on both trajectories", traj.ErrValidation)
	}
	if !a.Has(traj.Coord) || !b.Has(traj.Coord) {
		return Transform{}, fmt.Errorf("%w: fitting requires coordinates on both trajectories", traj.ErrValidation)
	}
	if a.Len() != b.Len() {
		return Transform{}, fmt.Errorf("%w: fitting %d samples against %d", traj.ErrValidation, a.Len(), b.Len())
	}
	return fit(a.Coord(), a.Values(traj.F), b.Coord(), b.Values(traj.F)), nil
}

// fit is Fit on raw series. rc/rf belong to the reference, lc/lf to the
// moving trajectory.
func fit(rc [2][]float64, rf []float64, lc [2][]float64, lf []float64) Transform {
	n := len(rf)
	w := make([]float64, n)
	for i := range w {
		w[i] = rf[i] * lf[i]
	}
	total := stats.Sum(w)
	for i := range w {
		w[i] /= total
	}

	// terms with a NaN factor drop out of every sum
	prod := make([]float64, n)
	weighted := func(term func(i int) float64) float64 {
		for i := range prod {
			prod[i] = w[i] * term(i)
		}
		return stats.Sum(prod)
	}

	out := Transform{Overlap: n, Score: math.Inf(1)}
	for d := 0; d < 2; d++ {
		out.RC[d] = weighted(func(i int) float64 { return rc[d][i] })
		out.LC[d] = weighted(func(i int) float64 { return lc[d][i] })
	}
	r := func(d, i int) float64 { return rc[d][i] - out.RC[d] }
	l := func(d, i int) float64 { return lc[d][i] - out.LC[d] }

	sxx := weighted(func(i int) float64 { return l(0, i) * r(0, i) })
	sxy := weighted(func(i int) float64 { return l(0, i) * r(1, i) })
	syx := weighted(func(i int) float64 { return l(1, i) * r(0, i) })
	syy := weighted(func(i int) float64 { return l(1, i) * r(1, i) })

	a := syx - sxy
	b := sxx + syy
	if (a == 0 && b == 0) || math.IsNaN(a) || math.IsNaN(b) {
		out.Angle = math.NaN()
		return out
	}
	out.Angle = math.Atan2(-a, b)

	c, s := math.Cos(out.Angle), math.Sin(out.Angle)
	out.Score = weighted(func(i int) float64 {
		dx := r(0, i) - (c*l(0, i) - s*l(1, i))
		return dx * dx
	}) + weighted(func(i int) float64 {
		dy := r(1, i) - (s*l(0, i) + c*l(1, i))
		return dy * dy
	})
	return out
}
