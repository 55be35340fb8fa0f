// Package orient puts a trajectory into a canonical pose: centred on its
// median position, with its main axis along x and most of its intensity
// weighted mass on the positive side.
package orient

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/trajalign/internal/robust"
	"github.com/banshee-data/trajalign/internal/stats"
	"github.com/banshee-data/trajalign/internal/traj"
)

// Transform is a translation followed by a rotation about the origin.
type Transform struct {
	Translation [2]float64
	Angle       float64
}

// Apply translates tr then rotates it. Uncertainties are carried through
// the rotation.
func (t Transform) Apply(tr *traj.Trajectory) {
	tr.Translate(t.Translation, [2]float64{})
	tr.Rotate(t.Angle, 0)
}

// Options tunes LieDown.
type Options struct {
	RANSAC robust.Options
}

// LieDown computes the canonical pose of tr without modifying it. The
// trajectory needs coordinates and intensities.
func LieDown(tr *traj.Trajectory, opts Options) (Transform, error) {
	if !tr.Has(traj.Coord) || !tr.Has(traj.F) {
		return Transform{}, fmt.Errorf("%w: lying down needs coordinates and intensities", traj.ErrValidation)
	}
	c := tr.Copy()
	coord := c.Coord()
	out := Transform{Translation: [2]float64{-stats.Median(coord[0]), -stats.Median(coord[1])}}
	if math.IsNaN(out.Translation[0]) || math.IsNaN(out.Translation[1]) {
		return Transform{}, fmt.Errorf("%w: no defined coordinate", traj.ErrDomain)
	}
	c.Translate(out.Translation, [2]float64{})

	theta := principalAngle(c.Coord(), c.Values(traj.F))
	c.Rotate(theta, 0)

	coord = c.Coord()
	var pos, neg []float64
	for _, x := range coord[0] {
		switch {
		case x > 0:
			pos = append(pos, x*x)
		case x < 0:
			neg = append(neg, x*x)
		}
	}
	if stats.Median(neg) > stats.Median(pos) {
		c.Rotate(math.Pi, 0)
		theta += math.Pi
	}

	coord = c.Coord()
	line, err := robust.FitLine(coord[0], coord[1], opts.RANSAC)
	if err != nil {
		if errors.Is(err, robust.ErrTooFewPoints) {
			return Transform{}, fmt.Errorf("%w: %v", traj.ErrDomain, err)
		}
		return Transform{}, err
	}
	out.Angle = theta - math.Atan(line.Slope)
	return out, nil
}

// principalAngle returns the rotation that brings the intensity weighted
// axis of least inertia onto x.
func principalAngle(coord [2][]float64, f []float64) float64 {
	var ixx, iyy, ixy float64
	for i := range f {
		x, y, w := coord[0][i], coord[1][i], f[i]
		if math.IsNaN(x) || math.IsNaN(y) || math.IsNaN(w) {
			continue
		}
		ixx += w * y * y
		iyy += w * x * x
		ixy += w * x * y
	}
	theta := math.Atan2(2*ixy, ixx-iyy) / 2
	// the stationary angle may put the long axis on y instead of x
	c, s := math.Cos(theta), math.Sin(theta)
	spreadY := c*c*ixx + s*s*iyy + 2*s*c*ixy
	spreadX := s*s*ixx + c*c*iyy - 2*s*c*ixy
	if spreadY > spreadX {
		theta -= math.Pi / 2
	}
	return theta
}
