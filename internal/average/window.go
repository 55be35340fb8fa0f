package average

import (
	"math"
	"slices"

	"github.com/banshee-data/trajalign/internal/monitoring"
	"github.com/banshee-data/trajalign/internal/stats"
	"github.com/banshee-data/trajalign/internal/traj"
)

// ciFactor widens the unified window to the 95% confidence interval of the
// mean start and end.
const ciFactor = 1.96

// span records where a trajectory sat in time before and after alignment.
type span struct {
	oldStart, oldEnd float64
	newStart, newEnd float64
}

// window summarises the aligned starts and ends of one reference's set.
// Only trajectories that were not cut by the start or end of the recording
// contribute to the means.
type window struct {
	meanStart, stdStart, nStart float64
	meanEnd, stdEnd, nEnd       float64
	minStart, maxEnd            float64
	unify                       bool
}

// reconcile computes the window from the spans. maxFrame is the number of
// frames in the recordings; zero disables the end truncation check.
func reconcile(spans []span, maxFrame int, dt float64, unify bool) window {
	w := window{unify: unify, minStart: math.Inf(1), maxEnd: math.Inf(-1)}
	var starts, ends, allStarts, allEnds []float64
	for _, s := range spans {
		allStarts = append(allStarts, s.newStart)
		allEnds = append(allEnds, s.newEnd)
		if s.oldStart > 0 {
			starts = append(starts, s.newStart)
		}
		if maxFrame <= 0 || s.oldEnd < float64(maxFrame-3)*dt {
			ends = append(ends, s.newEnd)
		}
	}
	w.minStart = slices.Min(allStarts)
	w.maxEnd = slices.Max(allEnds)

	if len(starts) > 0 {
		w.meanStart, w.stdStart, w.nStart = stats.Mean(starts), stats.Std(starts), float64(len(starts))
	} else {
		monitoring.Logf("[average] warning: all trajectory starts were truncated")
		w.meanStart, w.stdStart, w.nStart = slices.Max(allStarts), math.NaN(), math.NaN()
	}
	if len(ends) > 0 {
		w.meanEnd, w.stdEnd, w.nEnd = stats.Mean(ends), stats.Std(ends), float64(len(ends))
	} else {
		monitoring.Logf("[average] warning: all trajectory ends were truncated")
		w.meanEnd, w.stdEnd, w.nEnd = slices.Min(allEnds), math.NaN(), math.NaN()
	}
	return w
}

// unified returns the mean start and end widened by their confidence
// intervals. When every start (or end) was truncated the bound is the
// fallback stored in the mean.
func (w window) unified() (start, end float64) {
	start, end = w.meanStart, w.meanEnd
	if w.nStart > 0 {
		start -= ciFactor * w.stdStart / math.Sqrt(w.nStart)
	}
	if w.nEnd > 0 {
		end += ciFactor * w.stdEnd / math.Sqrt(w.nEnd)
	}
	return start, end
}

// bounds is the window the aligned set is cut to.
func (w window) bounds() (start, end float64) {
	if w.unify {
		return w.unified()
	}
	return w.minStart, w.maxEnd
}

func (w window) annotate(tr *traj.Trajectory) {
	for k, v := range map[string]traj.Value{
		"mean_starts":     traj.Number(w.meanStart),
		"std_starts":      traj.Number(w.stdStart),
		"n_starts":        traj.Number(w.nStart),
		"mean_ends":       traj.Number(w.meanEnd),
		"std_ends":        traj.Number(w.stdEnd),
		"n_ends":          traj.Number(w.nEnd),
		"unify_start_end": traj.Bool(w.unify),
	} {
		// keys are not units, so Annotate cannot fail
		_ = tr.Annotate(k, v)
	}
}

// clip cuts or pads tr so that it spans [start, end] on its own time
// grid. A trajectory lying wholly outside the window becomes NaN rows.
func clip(tr *traj.Trajectory, start, end float64) error {
	if tr.End() < start && !traj.IsClose(tr.End(), start) {
		if err := tr.EndAt(end); err != nil {
			return err
		}
	}
	if tr.Start() > end && !traj.IsClose(tr.Start(), end) {
		if err := tr.StartAt(start); err != nil {
			return err
		}
	}
	if err := tr.StartAt(start); err != nil {
		return err
	}
	return tr.EndAt(end)
}
