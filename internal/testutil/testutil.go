// Package testutil provides shared test utilities and trajectory fixtures.
//
// The fixtures describe one curved path with a bell shaped intensity
// profile. Copies differ only by frame offset, rotation and translation, so
// aligning them must recover exactly those parameters.
package testutil

import (
	"fmt"
	"math"

	"github.com/banshee-data/trajalign/internal/traj"
)

// Track describes a synthetic trajectory.
type Track struct {
	// FirstFrame is the frame of the first sample.
	FirstFrame int
	// N is the number of samples; zero means 60.
	N int
	// DeltaT is the frame interval; zero means 1.
	DeltaT float64
	// Skip drops the first Skip samples of the canonical path, so the
	// copy starts later along it.
	Skip int
	// Angle rotates the canonical path about the origin.
	Angle float64
	// Shift is added after rotating.
	Shift [2]float64
	// Noise perturbs every coordinate by a deterministic amount.
	Noise float64
	// File is stored as the file annotation when set.
	File string
}

// Path returns the canonical coordinates and intensity of sample i.
func Path(i int) (x, y, f float64) {
	s := float64(i)
	x = 4*math.Cos(0.11*s) + 0.15*s
	y = 3*math.Sin(0.17*s) + 0.02*s*s/10
	f = 10 + 100*math.Exp(-math.Pow((s-30)/14, 2))
	return x, y, f
}

// Trajectory builds the trajectory described by tr. It panics on error,
// which only happens for nonsensical fixtures.
func (tr Track) Trajectory() *traj.Trajectory {
	n := tr.N
	if n == 0 {
		n = 60
	}
	dt := tr.DeltaT
	if dt == 0 {
		dt = 1
	}
	ann := traj.Annotations{"delta_t": traj.Number(dt)}
	if tr.File != "" {
		ann["file"] = traj.Text(tr.File)
	}
	out := traj.New(ann)

	c, s := math.Cos(tr.Angle), math.Sin(tr.Angle)
	frames := make([]int, n)
	times := make([]float64, n)
	xs := make([]float64, n)
	ys := make([]float64, n)
	fs := make([]float64, n)
	for i := 0; i < n; i++ {
		frames[i] = tr.FirstFrame + i
		times[i] = float64(frames[i]) * dt
		x, y, f := Path(i + tr.Skip)
		if tr.Noise != 0 {
			x += tr.Noise * math.Sin(float64(7*i+tr.FirstFrame))
			y += tr.Noise * math.Cos(float64(5*i+tr.FirstFrame))
		}
		xs[i] = c*x - s*y + tr.Shift[0]
		ys[i] = s*x + c*y + tr.Shift[1]
		fs[i] = f
	}
	must(out.InputFrames(frames))
	must(out.InputTimes(times, "s"))
	must(out.InputCoord(xs, ys, "um"))
	must(out.InputValues(traj.F, fs, "a.u."))
	return out
}

func must(err error) {
	if err != nil {
		panic(fmt.Sprintf("testutil: bad fixture: %v", err))
	}
}
