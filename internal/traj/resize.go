package traj

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Fill inserts all-NaN rows wherever a frame is missing. Without frames,
// gaps in the time axis wider than the sampling interval are filled
// instead. Filling an already contiguous trajectory changes nothing.
func (tr *Trajectory) Fill() error {
	switch {
	case len(tr.frames) > 1:
		tr.fillFrames()
		return nil
	case len(tr.t) > 1:
		return tr.fillTimes()
	}
	return nil
}

func (tr *Trajectory) fillFrames() {
	first, last := tr.frames[0], tr.frames[len(tr.frames)-1]
	n := last - first + 1
	if n == len(tr.frames) {
		return
	}
	pos := make([]int, len(tr.frames))
	for i, f := range tr.frames {
		pos[i] = f - first
	}

	var newT []float64
	if len(tr.t) > 0 {
		dt := tr.spacing()
		newT = make([]float64, n)
		next := len(tr.frames) - 1
		for p := n - 1; p >= 0; p-- {
			for next > 0 && pos[next] > p {
				next--
			}
			if pos[next] == p {
				newT[p] = tr.t[next]
				continue
			}
			// back off from the next known sample
			k := next + 1
			newT[p] = tr.t[k] - float64(pos[k]-p)*dt
		}
	}

	tr.eachFloat(func(s []float64) []float64 {
		out := nans(n)
		for i, p := range pos {
			out[p] = s[i]
		}
		return out
	})
	if newT != nil {
		tr.t = newT
	}
	frames := make([]int, n)
	for i := range frames {
		frames[i] = first + i
	}
	tr.frames = frames
}

func (tr *Trajectory) fillTimes() error {
	dt := tr.spacing()
	if math.IsInf(dt, 1) {
		return fmt.Errorf("%w: cannot infer a sampling interval", ErrConfiguration)
	}
	pos := make([]int, len(tr.t))
	for i := 1; i < len(tr.t); i++ {
		steps := int(math.Round((tr.t[i] - tr.t[i-1]) / dt))
		if steps < 1 {
			steps = 1
		}
		pos[i] = pos[i-1] + steps
	}
	n := pos[len(pos)-1] + 1
	if n == len(tr.t) {
		return nil
	}
	newT := make([]float64, n)
	k := len(tr.t) - 1
	for p := n - 1; p >= 0; p-- {
		for k > 0 && pos[k-1] >= p {
			k--
		}
		if pos[k] == p {
			newT[p] = tr.t[k]
		} else {
			newT[p] = tr.t[k] - float64(pos[k]-p)*dt
		}
	}
	tr.eachFloat(func(s []float64) []float64 {
		out := nans(n)
		for i, p := range pos {
			out[p] = s[i]
		}
		return out
	})
	tr.t = newT
	return nil
}

// spacing is the annotated delta_t, or the smallest time step when it is
// missing.
func (tr *Trajectory) spacing() float64 {
	if v, ok := tr.annotations["delta_t"]; ok {
		if dt, ok := v.Float(); ok && dt > 0 {
			return dt
		}
	}
	return minSpacing(tr.t)
}

func minSpacing(v []float64) float64 {
	dt := math.Inf(1)
	for i := 1; i < len(v); i++ {
		if d := v[i] - v[i-1]; d > 0 && d < dt {
			dt = d
		}
	}
	return dt
}

// Extract returns a new trajectory holding the given rows, in the given
// order. The range annotation records the selection history.
func (tr *Trajectory) Extract(indices []int) (*Trajectory, error) {
	n := tr.Len()
	for _, i := range indices {
		if i < 0 || i >= n {
			return nil, fmt.Errorf("%w: index %d out of range [0, %d)", ErrValidation, i, n)
		}
	}
	out := New(tr.annotations)
	sel := formatIndices(indices)
	if prev, ok := tr.annotations["range"]; ok {
		out.annotations["range"] = Text(prev.String() + " then " + sel)
	} else {
		out.annotations["range"] = Text(sel)
	}

	pick := func(s []float64) []float64 {
		o := make([]float64, len(indices))
		for k, i := range indices {
			o[k] = s[i]
		}
		return o
	}
	if len(tr.frames) > 0 {
		out.frames = make([]int, len(indices))
		for k, i := range indices {
			out.frames[k] = tr.frames[i]
		}
	}
	if len(tr.t) > 0 {
		out.t = pick(tr.t)
	}
	for r := 0; r < 2; r++ {
		if len(tr.coord[r]) > 0 {
			out.coord[r] = pick(tr.coord[r])
		}
		if len(tr.coordErr[r]) > 0 {
			out.coordErr[r] = pick(tr.coordErr[r])
		}
	}
	for a, v := range tr.values {
		out.values[a] = pick(v)
	}
	return out, nil
}

func formatIndices(indices []int) string {
	parts := make([]string, len(indices))
	for i, v := range indices {
		parts[i] = strconv.Itoa(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// StartAt moves the start of the trajectory to t. A time inside the
// trajectory drops the earlier rows; a time before it prepends NaN rows at
// whole sampling intervals.
func (tr *Trajectory) StartAt(t float64) error {
	if len(tr.t) == 0 {
		return fmt.Errorf("%w: the time axis is empty", ErrConfiguration)
	}
	first, last := tr.t[0], tr.t[len(tr.t)-1]
	switch {
	case math.IsNaN(t):
		return fmt.Errorf("%w: start time is NaN", ErrValidation)
	case (t > first || IsClose(t, first)) && (t < last || IsClose(t, last)):
		k := 0
		for k < len(tr.t) && !(tr.t[k] > t || IsClose(tr.t[k], t)) {
			k++
		}
		tr.slice(k, len(tr.t))
		return nil
	case t > last:
		return fmt.Errorf("%w: start %v is after the last time point %v", ErrValidation, t, last)
	}

	dt, err := tr.DeltaT()
	if err != nil {
		return err
	}
	// 0.01 absorbs representation error such as 4.999999 intervals
	steps := int(math.Floor((first-t)/dt + 0.01))
	if steps <= 0 {
		return nil
	}
	tr.pad(steps, 0, dt)
	return nil
}

// EndAt moves the end of the trajectory to t. A time inside the trajectory
// drops the later rows; a time after it appends NaN rows at whole sampling
// intervals up to t.
func (tr *Trajectory) EndAt(t float64) error {
	if len(tr.t) == 0 {
		return fmt.Errorf("%w: the time axis is empty", ErrConfiguration)
	}
	first, last := tr.t[0], tr.t[len(tr.t)-1]
	switch {
	case math.IsNaN(t):
		return fmt.Errorf("%w: end time is NaN", ErrValidation)
	case (t > first || IsClose(t, first)) && (t < last || IsClose(t, last)):
		k := len(tr.t)
		for k > 0 && !(tr.t[k-1] < t || IsClose(tr.t[k-1], t)) {
			k--
		}
		tr.slice(0, k)
		return nil
	case t < first:
		return fmt.Errorf("%w: end %v is before the first time point %v", ErrValidation, t, first)
	}

	dt, err := tr.DeltaT()
	if err != nil {
		return err
	}
	steps := 0
	for {
		next := last + float64(steps+1)*dt
		if next < t || IsClose(next, t) {
			steps++
			continue
		}
		break
	}
	if steps > 0 {
		tr.pad(0, steps, dt)
	}
	return nil
}

func (tr *Trajectory) slice(from, to int) {
	tr.eachFloat(func(s []float64) []float64 {
		return append([]float64(nil), s[from:to]...)
	})
	if len(tr.frames) > 0 {
		tr.frames = append([]int(nil), tr.frames[from:to]...)
	}
}

// pad adds before rows at the start and after rows at the end, extending
// the time axis by dt and frames by one per row.
func (tr *Trajectory) pad(before, after int, dt float64) {
	n := len(tr.t)
	first, last := tr.t[0], tr.t[n-1]
	tr.eachFloat(func(s []float64) []float64 {
		out := nans(before + len(s) + after)
		copy(out[before:], s)
		return out
	})
	for i := 0; i < before; i++ {
		tr.t[i] = first - float64(before-i)*dt
	}
	for i := 0; i < after; i++ {
		tr.t[before+n+i] = last + float64(i+1)*dt
	}
	if len(tr.frames) > 0 {
		frames := make([]int, before+len(tr.frames)+after)
		f0, fl := tr.frames[0], tr.frames[len(tr.frames)-1]
		for i := 0; i < before; i++ {
			frames[i] = f0 - (before - i)
		}
		copy(frames[before:], tr.frames)
		for i := 0; i < after; i++ {
			frames[before+len(tr.frames)+i] = fl + i + 1
		}
		tr.frames = frames
	}
}

// Time derives the time axis from the frame numbers and the sampling
// interval deltaT, and annotates delta_t.
func (tr *Trajectory) Time(deltaT float64, unit string) error {
	if len(tr.frames) == 0 {
		return fmt.Errorf("%w: frames are needed to compute the time axis", ErrConfiguration)
	}
	if len(tr.t) > 0 {
		return fmt.Errorf("%w: the time axis is already defined", ErrValidation)
	}
	if !(deltaT > 0) {
		return fmt.Errorf("%w: delta_t must be positive, got %v", ErrConfiguration, deltaT)
	}
	if err := tr.setUnit(T.UnitKey(), unit); err != nil {
		return err
	}
	tr.t = make([]float64, len(tr.frames))
	for i, f := range tr.frames {
		tr.t[i] = float64(f) * deltaT
	}
	tr.annotations["delta_t"] = Number(deltaT)
	return nil
}

// Fimax returns a copy that ends at the peak of the intensity, after
// smoothing it with filter. The time of the sample following the peak is
// used as the new end, as the smoothed peak lags the raw one.
func (tr *Trajectory) Fimax(filter []float64) (*Trajectory, error) {
	if !tr.Has(F) {
		return nil, fmt.Errorf("%w: fimax needs an intensity", ErrConfiguration)
	}
	if !tr.Has(T) {
		return nil, fmt.Errorf("%w: fimax needs a time axis", ErrConfiguration)
	}
	if len(filter) == 0 {
		filter = []float64{1}
	}
	f := tr.values[F]
	var fi, times []float64
	for i, v := range f {
		if !math.IsNaN(v) {
			fi = append(fi, v)
			times = append(times, tr.t[i])
		}
	}
	sf := convolveValid(fi, filter)
	st := convolveValid(times, filter)
	if len(sf) == 0 {
		return nil, fmt.Errorf("%w: %d intensity samples are fewer than the filter length %d", ErrValidation, len(fi), len(filter))
	}
	peak := 0
	for i, v := range sf {
		if v > sf[peak] {
			peak = i
		}
	}
	idx := peak + 1
	if idx > len(sf)-1 {
		idx = len(sf) - 1
	}

	out := tr.Copy()
	if err := out.EndAt(st[idx]); err != nil {
		return nil, err
	}
	out.annotations["fimax"] = Bool(true)
	return out, nil
}

// convolveValid returns the discrete convolution of x with h restricted
// to positions where h fully overlaps x.
func convolveValid(x, h []float64) []float64 {
	m := len(h)
	n := len(x) - m + 1
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var s float64
		for k := 0; k < m; k++ {
			s += x[i+m-1-k] * h[k]
		}
		out[i] = s
	}
	return out
}
