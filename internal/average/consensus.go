// Package average combines many trajectories of the same process into one
// average without privileging any of them.
//
// Every trajectory is tried as the reference. The pairwise transforms are
// combined into a consensus transform onto that reference, the aligned set
// is cut to a common window and averaged sample by sample, and the
// reference whose average has the smallest positional uncertainty wins.
package average

import (
	"context"
	"fmt"
	"math"

	"github.com/banshee-data/trajalign/internal/align"
	"github.com/banshee-data/trajalign/internal/monitoring"
	"github.com/banshee-data/trajalign/internal/stats"
	"github.com/banshee-data/trajalign/internal/traj"
)

// Config controls Consensus.
type Config struct {
	// Median averages with the median instead of the mean.
	Median bool
	// UnifyStartEnd cuts every aligned trajectory to the confidence
	// window of the mean start and end.
	UnifyStartEnd bool
	// MaxFrame is the number of frames in the recordings, used to spot
	// trajectories cut by the end of the recording. Zero disables the
	// check.
	MaxFrame int
	// Workers bounds the concurrent pairwise alignments; zero means one
	// per CPU.
	Workers int
	Align   align.Options
}

// Result holds the averages computed with every trajectory as reference.
type Result struct {
	Matrix *Matrix
	// Averages[r] is the average of the set aligned onto trajectory r.
	Averages []*traj.Trajectory
	// Aligned[r] is the set aligned onto trajectory r, cut to its window.
	Aligned [][]*traj.Trajectory
	// Precision[r] is the root mean square positional uncertainty of
	// Averages[r] over the unified window.
	Precision []float64
	// Best and Worst index the smallest and largest precision.
	Best, Worst int

	windows []window
}

// Average returns the selected average.
func (r *Result) Average() *traj.Trajectory { return r.Averages[r.Best] }

// Unified returns a copy of Averages[i] cut to the confidence window of
// the mean start and end of its aligned set.
func (r *Result) Unified(i int) (*traj.Trajectory, error) {
	c, ok, err := unifiedCopy(r.Averages[i], r.windows[i])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: the unified window of %s is empty", traj.ErrDomain, name(r.Averages[i], i))
	}
	return c, nil
}

// Consensus aligns and averages trajs. The inputs are left untouched.
func Consensus(ctx context.Context, trajs []*traj.Trajectory, cfg Config) (*Result, error) {
	if len(trajs) == 0 {
		return nil, fmt.Errorf("%w: there are no trajectories to average", traj.ErrConfiguration)
	}
	dt, err := checkInputs(trajs)
	if err != nil {
		return nil, err
	}

	m, err := BuildMatrix(ctx, trajs, cfg)
	if err != nil {
		return nil, err
	}

	n := len(trajs)
	res := &Result{
		Matrix:    m,
		Averages:  make([]*traj.Trajectory, n),
		Aligned:   make([][]*traj.Trajectory, n),
		Precision: make([]float64, n),
		windows:   make([]window, n),
	}
	for r := 0; r < n; r++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		aligned, w, err := alignOnto(trajs, m, r, cfg, dt)
		if err != nil {
			return nil, fmt.Errorf("reference %s: %w", name(trajs[r], r), err)
		}
		avg, err := combine(aligned, r, cfg)
		if err != nil {
			return nil, fmt.Errorf("reference %s: %w", name(trajs[r], r), err)
		}
		p, err := precision(avg, w)
		if err != nil {
			return nil, fmt.Errorf("reference %s: %w", name(trajs[r], r), err)
		}
		res.Aligned[r], res.Averages[r], res.Precision[r], res.windows[r] = aligned, avg, p, w
	}
	res.Best, res.Worst = rank(res.Precision)
	logPrecision(res)
	return res, nil
}

// checkInputs returns the common sampling interval.
func checkInputs(trajs []*traj.Trajectory) (float64, error) {
	var dt float64
	for i, tr := range trajs {
		if !tr.Has(traj.T) {
			return 0, fmt.Errorf("%w: %s has no time axis", traj.ErrConfiguration, name(tr, i))
		}
		for _, a := range tr.Attributes() {
			if a.IsErr() {
				return 0, fmt.Errorf("%w: %s already carries %s; it looks like an average and its uncertainties would be lost",
					traj.ErrConfiguration, name(tr, i), a)
			}
		}
		d, err := tr.DeltaT()
		if err != nil {
			return 0, fmt.Errorf("%s: %w", name(tr, i), err)
		}
		if i == 0 {
			dt = d
		} else if !traj.IsClose(d, dt) {
			return 0, fmt.Errorf("%w: %s has delta_t %v, %s has %v", traj.ErrConfiguration, name(tr, i), d, name(trajs[0], 0), dt)
		}
	}
	return dt, nil
}

// alignOnto applies the consensus transforms onto reference r to copies
// of every trajectory and cuts them to the reconciled window.
func alignOnto(trajs []*traj.Trajectory, m *Matrix, r int, cfg Config, dt float64) ([]*traj.Trajectory, window, error) {
	n := len(trajs)
	rcm := meanCentroid(m, r)
	out := make([]*traj.Trajectory, n)
	spans := make([]span, n)
	for j, tr := range trajs {
		c := tr.Copy()
		if err := c.Fill(); err != nil {
			return nil, window{}, err
		}
		spans[j].oldStart, spans[j].oldEnd = c.Start(), c.End()

		angle := consensusAngle(m, r, j)
		lag := consensusLag(m, r, j)
		lcm := meanCentroid(m, j)
		c.Translate([2]float64{-lcm[0], -lcm[1]}, [2]float64{})
		c.Rotate(angle, 0)
		c.Translate(rcm, [2]float64{})
		if err := c.Lag(lag); err != nil {
			return nil, window{}, err
		}
		_ = c.Annotate("l_cm", traj.Tuple(lcm[0], lcm[1]))
		_ = c.Annotate("r_cm", traj.Tuple(rcm[0], rcm[1]))
		_ = c.Annotate("m_angle", traj.Number(angle))
		_ = c.Annotate("m_lag", traj.Number(float64(lag)))

		spans[j].newStart, spans[j].newEnd = c.Start(), c.End()
		out[j] = c
	}

	w := reconcile(spans, cfg.MaxFrame, dt, cfg.UnifyStartEnd)
	start, end := w.bounds()
	if math.IsNaN(start) || math.IsNaN(end) || start > end {
		return nil, window{}, fmt.Errorf("%w: empty window [%v, %v]", traj.ErrDomain, start, end)
	}
	for j, c := range out {
		w.annotate(c)
		if err := clip(c, start, end); err != nil {
			return nil, window{}, fmt.Errorf("cutting %s: %w", name(trajs[j], j), err)
		}
	}
	for j, c := range out {
		if c.Len() != out[r].Len() {
			return nil, window{}, fmt.Errorf("%w: %s does not share the time grid of the reference", traj.ErrDomain, name(trajs[j], j))
		}
	}
	return out, w, nil
}

// consensusAngle rotates j onto r through every other trajectory.
func consensusAngle(m *Matrix, r, j int) float64 {
	d := make([]float64, m.N)
	for k := 0; k < m.N; k++ {
		d[k] = m.Angle[r][k] - m.Angle[j][k]
	}
	return stats.CircularMean(d)
}

// consensusLag shifts j onto r through every other trajectory, rounding
// halves to even.
func consensusLag(m *Matrix, r, j int) int {
	var sum float64
	for k := 0; k < m.N; k++ {
		sum += float64(m.Lag[r][k] - m.Lag[j][k])
	}
	return int(math.RoundToEven(sum / float64(m.N)))
}

// meanCentroid averages the centroids of i over its alignments with every
// other trajectory. A lone trajectory stays where it is.
func meanCentroid(m *Matrix, i int) [2]float64 {
	var out [2]float64
	if m.N < 2 {
		return out
	}
	for k := 0; k < m.N; k++ {
		if k == i {
			continue
		}
		out[0] += m.Centroid[i][k][0]
		out[1] += m.Centroid[i][k][1]
	}
	out[0] /= float64(m.N - 1)
	out[1] /= float64(m.N - 1)
	return out
}

// rank returns the indices of the smallest and largest precision; NaN
// ranks after every number for both.
func rank(p []float64) (best, worst int) {
	best, worst = -1, -1
	for i, v := range p {
		if math.IsNaN(v) {
			continue
		}
		if best < 0 || v < p[best] {
			best = i
		}
		if worst < 0 || v > p[worst] {
			worst = i
		}
	}
	if best < 0 {
		return 0, 0
	}
	return best, worst
}

func logPrecision(res *Result) {
	monitoring.Logf("[average] alignment precisions, MIN is the reference selected for the average")
	for i, p := range res.Precision {
		switch i {
		case res.Best:
			monitoring.Logf("[average] MIN>> %v", p)
		case res.Worst:
			monitoring.Logf("[average] MAX>> %v", p)
		default:
			monitoring.Logf("[average]       %v", p)
		}
	}
	monitoring.Logf("[average] MEAN: %v", stats.Mean(res.Precision))
}
