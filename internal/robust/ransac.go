// Package robust fits lines that ignore outlying samples.
package robust

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/trajalign/internal/stats"
)

// ErrTooFewPoints is returned when there are not enough finite samples to
// define a line.
var ErrTooFewPoints = errors.New("too few points for a line fit")

const (
	// DefaultTrials is the number of random minimal samples drawn.
	DefaultTrials = 100
	// DefaultSeed makes repeated fits of the same data agree.
	DefaultSeed = 42
	minSamples  = 2
)

// Options tunes FitLine.
type Options struct {
	// Trials is the number of random pairs tried; zero means
	// DefaultTrials.
	Trials int
	// Seed seeds the pair selection; nil means DefaultSeed.
	Seed *uint64
	// Threshold is the largest absolute residual of an inlier; zero means
	// the unscaled median absolute deviation of y.
	Threshold float64
}

func (o Options) trials() int {
	if o.Trials <= 0 {
		return DefaultTrials
	}
	return o.Trials
}

func (o Options) seed() uint64 {
	if o.Seed == nil {
		return DefaultSeed
	}
	return *o.Seed
}

// Line is y = Intercept + Slope·x.
type Line struct {
	Intercept float64
	Slope     float64
	// Inliers flags the samples of the final consensus set, aligned with
	// the input slices.
	Inliers []bool
}

// At evaluates the line.
func (l Line) At(x float64) float64 { return l.Intercept + l.Slope*x }

// FitLine fits y on x by random sample consensus: lines through random
// pairs of samples are scored by how many samples fall within the
// threshold, and the least squares line of the largest consensus set is
// returned. Pairs where either value is NaN are ignored.
func FitLine(x, y []float64, opts Options) (Line, error) {
	if len(x) != len(y) {
		return Line{}, fmt.Errorf("robust: %d x values against %d y values", len(x), len(y))
	}
	var xs, ys []float64
	var idx []int
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
		idx = append(idx, i)
	}
	if len(xs) < minSamples {
		return Line{}, fmt.Errorf("%w: %d finite samples", ErrTooFewPoints, len(xs))
	}

	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = stats.MAD(ys) / stats.MADScale
	}

	rng := rand.New(rand.NewPCG(opts.seed(), opts.seed()))
	var (
		best      []bool
		bestCount int
		bestCost  = math.Inf(1)
	)
	for trial := 0; trial < opts.trials(); trial++ {
		i := rng.IntN(len(xs))
		j := rng.IntN(len(xs) - 1)
		if j >= i {
			j++
		}
		if xs[i] == xs[j] {
			continue
		}
		slope := (ys[j] - ys[i]) / (xs[j] - xs[i])
		line := Line{Intercept: ys[i] - slope*xs[i], Slope: slope}

		in, count, cost := consensus(line, xs, ys, threshold)
		if count > bestCount || (count == bestCount && cost < bestCost) {
			best, bestCount, bestCost = in, count, cost
		}
	}
	if bestCount < minSamples {
		return Line{}, fmt.Errorf("%w: no pair of samples defines a consensus line", ErrTooFewPoints)
	}

	var ix, iy []float64
	for k, ok := range best {
		if ok {
			ix = append(ix, xs[k])
			iy = append(iy, ys[k])
		}
	}
	alpha, beta := stat.LinearRegression(ix, iy, nil, false)
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return Line{}, fmt.Errorf("%w: inliers share a single x", ErrTooFewPoints)
	}

	out := Line{Intercept: alpha, Slope: beta, Inliers: make([]bool, len(x))}
	for k, ok := range best {
		out.Inliers[idx[k]] = ok
	}
	return out, nil
}

func consensus(l Line, xs, ys []float64, threshold float64) ([]bool, int, float64) {
	in := make([]bool, len(xs))
	var count int
	var cost float64
	for k := range xs {
		r := math.Abs(ys[k] - l.At(xs[k]))
		if r <= threshold || r <= 1e-9*math.Max(1, math.Abs(ys[k])) {
			in[k] = true
			count++
			cost += r * r
		}
	}
	return in, count, cost
}
