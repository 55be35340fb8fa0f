package average

import (
	"math"

	"github.com/banshee-data/trajalign/internal/stats"
	"github.com/banshee-data/trajalign/internal/traj"
)

// combine averages the aligned set sample by sample. Every value
// attribute of the reference is averaged and given the standard error of
// its mean (or median) as uncertainty; n counts the contributors.
func combine(aligned []*traj.Trajectory, r int, cfg Config) (*traj.Trajectory, error) {
	ref := aligned[r]
	ann := ref.Annotations()
	if f, ok := ann["file"]; ok {
		delete(ann, "file")
		ann["reference_file"] = f
	}
	if cfg.Align.Fimax {
		ann["fimax"] = traj.Bool(true)
	}
	out := traj.New(ann)
	if err := out.InputTimes(ref.T(), ""); err != nil {
		return nil, err
	}

	length := ref.Len()
	var count []float64
	for _, a := range ref.Attributes() {
		if a == traj.Frames || a == traj.T || a == traj.N {
			continue
		}
		rows := make([][][]float64, len(aligned))
		for k, tr := range aligned {
			rows[k] = tr.Series(a)
		}

		centre := make([][]float64, a.Rows())
		spread := make([][]float64, a.Rows())
		for d := 0; d < a.Rows(); d++ {
			centre[d] = make([]float64, length)
			spread[d] = make([]float64, length)
			if count == nil {
				count = make([]float64, length)
				for i := range count {
					count[i] = float64(stats.Count(column(rows, d, i)))
				}
			}
			for i := 0; i < length; i++ {
				col := column(rows, d, i)
				sqrtN := math.Sqrt(count[i])
				if cfg.Median {
					centre[d][i] = stats.Median(col)
					spread[d][i] = stats.MAD(col) / sqrtN
				} else {
					centre[d][i] = stats.Mean(col)
					spread[d][i] = stats.Std(col) / sqrtN
				}
			}
		}
		if err := out.InputSeries(a, centre, ""); err != nil {
			return nil, err
		}
		if err := out.InputSeries(a.Err(), spread, ""); err != nil {
			return nil, err
		}
	}
	if count != nil {
		if err := out.InputValues(traj.N, count, ""); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// column gathers sample i of row d across the set; trajectories without
// the attribute contribute NaN.
func column(rows [][][]float64, d, i int) []float64 {
	out := make([]float64, len(rows))
	for k, r := range rows {
		if r == nil {
			out[k] = math.NaN()
			continue
		}
		out[k] = r[d][i]
	}
	return out
}

// precision is the root mean square of the positional uncertainty of avg
// over the unified window.
func precision(avg *traj.Trajectory, w window) (float64, error) {
	if !avg.Has(traj.CoordErr) {
		return math.NaN(), nil
	}
	c, ok, err := unifiedCopy(avg, w)
	if err != nil || !ok {
		return math.NaN(), err
	}
	e := c.CoordErr()
	sq := make([]float64, len(e[0]))
	for i := range sq {
		sq[i] = e[0][i]*e[0][i] + e[1][i]*e[1][i]
	}
	return math.Sqrt(stats.Mean(sq)), nil
}

// unifiedCopy cuts a copy of avg to the unified window of w. ok is false
// when the window is empty.
func unifiedCopy(avg *traj.Trajectory, w window) (c *traj.Trajectory, ok bool, err error) {
	start, end := w.unified()
	if start > end {
		return nil, false, nil
	}
	c = avg.Copy()
	if err := clip(c, start, end); err != nil {
		return nil, false, err
	}
	return c, true, nil
}
