package align

import (
	"fmt"
	"math"
	"slices"

	"github.com/banshee-data/trajalign/internal/traj"
)

// DefaultRefineFraction is the half width of the refinement search as a
// fraction of the shorter trajectory.
const DefaultRefineFraction = 0.1

// Options tunes Align.
type Options struct {
	// RefineFraction sets the refinement half width; zero means
	// DefaultRefineFraction.
	RefineFraction float64
	// Fimax truncates both trajectories at their intensity peak before
	// aligning them.
	Fimax bool
	// FimaxFilter smooths the intensity before locating the peak.
	FimaxFilter []float64
}

func (o Options) refineFraction() float64 {
	if o.RefineFraction <= 0 {
		return DefaultRefineFraction
	}
	return o.RefineFraction
}

// series is the part of a trajectory the search works on. Frames are
// contiguous after filling.
type series struct {
	frame0 int
	coord  [2][]float64
	f      []float64
}

func (s series) len() int { return len(s.f) }

func (s series) window(from, to int) ([2][]float64, []float64) {
	return [2][]float64{s.coord[0][from:to], s.coord[1][from:to]}, s.f[from:to]
}

// triplicate returns s preceded and followed by a copy of itself on one
// contiguous frame axis.
func (s series) triplicate() series {
	n := s.len()
	out := series{frame0: s.frame0 - n, f: make([]float64, 0, 3*n)}
	for d := 0; d < 2; d++ {
		out.coord[d] = make([]float64, 0, 3*n)
	}
	for k := 0; k < 3; k++ {
		out.f = append(out.f, s.f...)
		for d := 0; d < 2; d++ {
			out.coord[d] = append(out.coord[d], s.coord[d]...)
		}
	}
	return out
}

func prepare(tr *traj.Trajectory, opts Options) (series, error) {
	for _, a := range []traj.Attr{traj.Frames, traj.Coord, traj.F} {
		if !tr.Has(a) {
			return series{}, fmt.Errorf("%w: alignment requires %s", traj.ErrValidation, a)
		}
	}
	c := tr.Copy()
	if err := c.Fill(); err != nil {
		return series{}, err
	}
	if opts.Fimax {
		var err error
		if c, err = c.Fimax(opts.FimaxFilter); err != nil {
			return series{}, err
		}
	}
	if c.Len() == 0 {
		return series{}, fmt.Errorf("%w: nothing left to align", traj.ErrValidation)
	}
	return series{frame0: c.Frames()[0], coord: c.Coord(), f: c.Values(traj.F)}, nil
}

func checkDeltaT(a, b *traj.Trajectory) error {
	va, okA := a.Annotation("delta_t")
	vb, okB := b.Annotation("delta_t")
	if !okA || !okB {
		return nil
	}
	da, okA := va.Float()
	db, okB := vb.Float()
	if !okA || !okB {
		return fmt.Errorf("%w: delta_t %q and %q must both be numbers", traj.ErrConfiguration, va, vb)
	}
	if !traj.IsClose(da, db) {
		return fmt.Errorf("%w: delta_t %v does not match %v", traj.ErrConfiguration, da, db)
	}
	return nil
}

// Align finds the transform that superimposes b on a. The returned Lag is
// added to the frames of b to match those of a.
func Align(a, b *traj.Trajectory, opts Options) (Transform, error) {
	if err := checkDeltaT(a, b); err != nil {
		return Transform{}, err
	}
	ref, err := prepare(a, opts)
	if err != nil {
		return Transform{}, fmt.Errorf("reference: %w", err)
	}
	mov, err := prepare(b, opts)
	if err != nil {
		return Transform{}, fmt.Errorf("moving: %w", err)
	}

	first := weightedFits(ref, mov, coarseLags(ref, mov))
	if len(first) == 0 {
		// every coarse minimum sat on a wrapped copy
		first = weightedFits(ref, mov, overlappingLags(ref, mov))
	}
	best, ok := argmin(first)
	if !ok {
		return Transform{}, fmt.Errorf("%w: no lag gives a defined alignment", traj.ErrDomain)
	}

	span := int(float64(min(ref.len(), mov.len())) * opts.refineFraction())
	var refined []Transform
	for lag := best.Lag - span; lag <= best.Lag+span; lag++ {
		if tr, ok := overlapFit(ref, mov, lag); ok {
			refined = append(refined, tr)
		}
	}
	out, ok := argmin(refined)
	if !ok || math.IsInf(out.Score, 1) {
		return Transform{}, fmt.Errorf("%w: no lag gives a defined alignment", traj.ErrDomain)
	}
	return out, nil
}

// coarseLags slides the shorter trajectory over the triplicated longer one
// and returns every lag that reaches the minimum score, lowest first.
func coarseLags(ref, mov series) []int {
	refLonger := ref.len() >= mov.len()
	long, short := ref, mov
	if !refLonger {
		long, short = mov, ref
	}
	x := long.triplicate()
	steps := x.len() - short.len()

	bestScore := math.Inf(1)
	var lags []int
	var defined bool
	for i := 0; i < steps; i++ {
		lag := x.frame0 - short.frame0 + i
		wc, wf := x.window(i, i+short.len())
		var tr Transform
		if refLonger {
			tr = fit(wc, wf, short.coord, short.f)
		} else {
			tr = fit(short.coord, short.f, wc, wf)
			lag = -lag
		}
		s := score(tr)
		switch {
		case !defined || s < bestScore:
			defined = true
			bestScore = s
			lags = []int{lag}
		case s == bestScore:
			lags = append(lags, lag)
		}
	}
	slices.Sort(lags)
	return lags
}

// weightedFits scores each lag on the true overlap, dividing by the
// square root of the overlap so short overlaps are not favoured.
func weightedFits(ref, mov series, lags []int) []Transform {
	var out []Transform
	for _, lag := range lags {
		if tr, ok := overlapFit(ref, mov, lag); ok {
			tr.Score /= math.Sqrt(float64(tr.Overlap))
			out = append(out, tr)
		}
	}
	return out
}

// minOverlap keeps the fallback search off lags where a couple of
// samples fit exactly.
const minOverlap = 3

// overlappingLags lists every lag that leaves at least minOverlap shared
// frames, or as many as the shorter series has.
func overlappingLags(ref, mov series) []int {
	k := min(minOverlap, ref.len(), mov.len())
	lo := ref.frame0 - mov.frame0 - mov.len() + k
	hi := ref.frame0 + ref.len() - k - mov.frame0
	lags := make([]int, 0, hi-lo+1)
	for lag := lo; lag <= hi; lag++ {
		lags = append(lags, lag)
	}
	return lags
}

// overlapFit fits the samples of mov that share a frame with ref once mov
// is shifted by lag.
func overlapFit(ref, mov series, lag int) (Transform, bool) {
	lo := max(ref.frame0, mov.frame0+lag)
	hi := min(ref.frame0+ref.len(), mov.frame0+lag+mov.len())
	if hi <= lo {
		return Transform{}, false
	}
	rc, rf := ref.window(lo-ref.frame0, hi-ref.frame0)
	mc, mf := mov.window(lo-lag-mov.frame0, hi-lag-mov.frame0)
	tr := fit(rc, rf, mc, mf)
	tr.Lag = lag
	return tr, true
}

func score(tr Transform) float64 {
	if math.IsNaN(tr.Score) {
		return math.Inf(1)
	}
	return tr.Score
}

// argmin returns the first transform with the lowest score.
func argmin(ts []Transform) (Transform, bool) {
	if len(ts) == 0 {
		return Transform{}, false
	}
	best := 0
	for i := 1; i < len(ts); i++ {
		if score(ts[i]) < score(ts[best]) {
			best = i
		}
	}
	return ts[best], true
}
