package traj

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newLinear builds a contiguous trajectory with frames first..first+n-1,
// t = frame*dt, coordinates on a line and a rising intensity.
func newLinear(t *testing.T, first, n int, dt float64) *Trajectory {
	t.Helper()
	tr := New(Annotations{"delta_t": Number(dt)})
	frames := make([]int, n)
	times := make([]float64, n)
	x := make([]float64, n)
	y := make([]float64, n)
	f := make([]float64, n)
	for i := 0; i < n; i++ {
		frames[i] = first + i
		times[i] = float64(first+i) * dt
		x[i] = float64(i)
		y[i] = 0.5 * float64(i)
		f[i] = float64(i + 1)
	}
	require.NoError(t, tr.InputFrames(frames))
	require.NoError(t, tr.InputTimes(times, "s"))
	require.NoError(t, tr.InputCoord(x, y, "um"))
	require.NoError(t, tr.InputValues(F, f, ""))
	return tr
}

func TestInputFrames(t *testing.T) {
	t.Parallel()

	t.Run("accepts increasing frames", func(t *testing.T) {
		t.Parallel()
		tr := New(nil)
		require.NoError(t, tr.InputFrames([]int{1, 2, 5}))
		assert.Equal(t, []int{1, 2, 5}, tr.Frames())
		assert.Equal(t, 3, tr.Len())
	})

	t.Run("accepts a single frame", func(t *testing.T) {
		t.Parallel()
		tr := New(nil)
		require.NoError(t, tr.InputFrames([]int{7}))
		assert.Equal(t, 1, tr.Len())
	})

	t.Run("rejects disorder", func(t *testing.T) {
		t.Parallel()
		tr := New(nil)
		err := tr.InputFrames([]int{1, 3, 2})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrChronology))
		assert.True(t, errors.Is(err, ErrValidation))
	})

	t.Run("rejects repeated frames", func(t *testing.T) {
		t.Parallel()
		tr := New(nil)
		assert.ErrorIs(t, tr.InputFrames([]int{1, 1}), ErrChronology)
	})

	t.Run("rejects length mismatch", func(t *testing.T) {
		t.Parallel()
		tr := New(nil)
		require.NoError(t, tr.InputTimes([]float64{0, 1, 2}, "s"))
		assert.ErrorIs(t, tr.InputFrames([]int{0, 1}), ErrValidation)
	})
}

func TestInputValues(t *testing.T) {
	t.Parallel()

	t.Run("length must match", func(t *testing.T) {
		t.Parallel()
		tr := newLinear(t, 0, 5, 1)
		assert.ErrorIs(t, tr.InputValues(Mol, []float64{1, 2}, ""), ErrValidation)
		assert.ErrorIs(t, tr.InputCoordErr([]float64{1, 2, 3, 4, 5}, []float64{1}, ""), ErrValidation)
	})

	t.Run("coordinates are not one dimensional", func(t *testing.T) {
		t.Parallel()
		tr := New(nil)
		assert.ErrorIs(t, tr.InputValues(Coord, []float64{1}, ""), ErrValidation)
	})

	t.Run("times must increase", func(t *testing.T) {
		t.Parallel()
		tr := New(nil)
		assert.ErrorIs(t, tr.InputTimes([]float64{0, 0}, "s"), ErrChronology)
	})

	t.Run("series round trip", func(t *testing.T) {
		t.Parallel()
		tr := newLinear(t, 0, 3, 1)
		require.NoError(t, tr.InputSeries(CoordErr, [][]float64{{1, 1, 1}, {2, 2, 2}}, ""))
		assert.Equal(t, [][]float64{{1, 1, 1}, {2, 2, 2}}, tr.Series(CoordErr))
		assert.Equal(t, []Attr{Frames, T, Coord, F, CoordErr}, tr.Attributes())
	})
}

func TestUnits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		first   string
		second  string
		wantErr bool
	}{
		{"same unit twice", "s", "s", false},
		{"empty second unit keeps first", "s", "", false},
		{"empty first unit accepts second", "", "ms", false},
		{"different unit fails", "s", "ms", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tr := New(nil)
			require.NoError(t, tr.InputTimes([]float64{0, 1}, tt.first))
			err := tr.InputTimes([]float64{0, 2}, tt.second)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			assert.NoError(t, err)
		})
	}

	t.Run("annotate cannot overwrite a unit", func(t *testing.T) {
		t.Parallel()
		tr := newLinear(t, 0, 2, 1)
		assert.ErrorIs(t, tr.Annotate("coord_unit", Text("nm")), ErrValidation)
		assert.NoError(t, tr.Annotate("coord_unit", Text("um")))
		assert.NoError(t, tr.Annotate("f_unit", Text("a.u.")))
	})
}

func TestExtract(t *testing.T) {
	t.Parallel()

	t.Run("all rows reproduce the trajectory", func(t *testing.T) {
		t.Parallel()
		tr := newLinear(t, 3, 6, 0.5)
		out, err := tr.Extract([]int{0, 1, 2, 3, 4, 5})
		require.NoError(t, err)

		assert.Equal(t, tr.Frames(), out.Frames())
		assert.Equal(t, tr.T(), out.T())
		assert.Equal(t, tr.Coord(), out.Coord())
		assert.Equal(t, tr.Values(F), out.Values(F))
		rng, ok := out.Annotation("range")
		require.True(t, ok)
		assert.Equal(t, "[0, 1, 2, 3, 4, 5]", rng.String())
	})

	t.Run("keeps order and chains range", func(t *testing.T) {
		t.Parallel()
		tr := newLinear(t, 0, 5, 1)
		first, err := tr.Extract([]int{4, 0, 2})
		require.NoError(t, err)
		assert.Equal(t, []int{4, 0, 2}, first.Frames())

		second, err := first.Extract([]int{1})
		require.NoError(t, err)
		assert.Equal(t, []int{0}, second.Frames())
		rng, _ := second.Annotation("range")
		assert.Equal(t, "[4, 0, 2] then [1]", rng.String())
	})

	t.Run("out of range", func(t *testing.T) {
		t.Parallel()
		tr := newLinear(t, 0, 3, 1)
		_, err := tr.Extract([]int{0, 3})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("does not alias", func(t *testing.T) {
		t.Parallel()
		tr := newLinear(t, 0, 3, 1)
		out, err := tr.Extract([]int{0, 1, 2})
		require.NoError(t, err)
		out.Translate([2]float64{10, 10}, [2]float64{})
		assert.Equal(t, 0.0, tr.Coord()[0][0])
	})
}

func TestFill(t *testing.T) {
	t.Parallel()

	t.Run("inserts missing frames", func(t *testing.T) {
		t.Parallel()
		tr := New(nil)
		require.NoError(t, tr.InputFrames([]int{1, 2, 5}))
		require.NoError(t, tr.InputTimes([]float64{0.1, 0.2, 0.5}, "s"))
		require.NoError(t, tr.InputValues(F, []float64{1, 2, 5}, ""))
		require.NoError(t, tr.Fill())

		assert.Equal(t, []int{1, 2, 3, 4, 5}, tr.Frames())
		times := tr.T()
		require.Len(t, times, 5)
		assert.InDelta(t, 0.3, times[2], 1e-12)
		assert.InDelta(t, 0.4, times[3], 1e-12)
		f := tr.Values(F)
		assert.True(t, math.IsNaN(f[2]))
		assert.True(t, math.IsNaN(f[3]))
		assert.Equal(t, 5.0, f[4])
	})

	t.Run("is idempotent", func(t *testing.T) {
		t.Parallel()
		tr := New(nil)
		require.NoError(t, tr.InputFrames([]int{0, 3, 4, 9}))
		require.NoError(t, tr.InputCoord([]float64{0, 3, 4, 9}, []float64{0, 0, 0, 0}, ""))
		require.NoError(t, tr.Fill())
		once := tr.Copy()
		require.NoError(t, tr.Fill())
		assert.True(t, Equal(once, tr))
		assert.Equal(t, 10, tr.Len())
	})

	t.Run("fills time gaps without frames", func(t *testing.T) {
		t.Parallel()
		tr := New(nil)
		require.NoError(t, tr.InputTimes([]float64{0, 1, 3, 4}, "s"))
		require.NoError(t, tr.InputValues(F, []float64{1, 1, 1, 1}, ""))
		require.NoError(t, tr.Fill())
		assert.Equal(t, []float64{0, 1, 2, 3, 4}, tr.T())
		assert.True(t, math.IsNaN(tr.Values(F)[2]))
	})
}

func TestStartAt(t *testing.T) {
	t.Parallel()

	t.Run("drops earlier rows", func(t *testing.T) {
		t.Parallel()
		tr := newLinear(t, 0, 5, 1)
		require.NoError(t, tr.StartAt(2))
		assert.Equal(t, []float64{2, 3, 4}, tr.T())
		assert.Equal(t, []int{2, 3, 4}, tr.Frames())
		assert.Equal(t, 2.0, tr.Start())
	})

	t.Run("tolerates representation error", func(t *testing.T) {
		t.Parallel()
		tr := newLinear(t, 0, 5, 1)
		require.NoError(t, tr.StartAt(2+1e-12))
		assert.Equal(t, 3, tr.Len())
	})

	t.Run("last sample leaves one row", func(t *testing.T) {
		t.Parallel()
		tr := newLinear(t, 0, 5, 1)
		require.NoError(t, tr.StartAt(4))
		assert.Equal(t, []float64{4}, tr.T())
	})

	t.Run("prepends whole intervals", func(t *testing.T) {
		t.Parallel()
		tr := newLinear(t, 0, 3, 1)
		require.NoError(t, tr.StartAt(-2.5))
		assert.Equal(t, []float64{-2, -1, 0, 1, 2}, tr.T())
		assert.Equal(t, []int{-2, -1, 0, 1, 2}, tr.Frames())
		assert.True(t, math.IsNaN(tr.Coord()[0][0]))
		assert.True(t, math.IsNaN(tr.Values(F)[1]))
	})

	t.Run("snaps to the nearest interval", func(t *testing.T) {
		t.Parallel()
		tr := newLinear(t, 3, 3, 0.1)
		require.NoError(t, tr.StartAt(0))
		assert.Equal(t, 6, tr.Len())
		assert.InDelta(t, 0.0, tr.Start(), 1e-12)
	})

	t.Run("after the end fails", func(t *testing.T) {
		t.Parallel()
		tr := newLinear(t, 0, 3, 1)
		assert.ErrorIs(t, tr.StartAt(5), ErrValidation)
	})

	t.Run("empty time axis fails", func(t *testing.T) {
		t.Parallel()
		tr := New(nil)
		require.NoError(t, tr.InputFrames([]int{1, 2}))
		assert.ErrorIs(t, tr.StartAt(0), ErrConfiguration)
	})
}

func TestEndAt(t *testing.T) {
	t.Parallel()

	t.Run("drops later rows", func(t *testing.T) {
		t.Parallel()
		tr := newLinear(t, 0, 5, 1)
		require.NoError(t, tr.EndAt(2))
		assert.Equal(t, []float64{0, 1, 2}, tr.T())
	})

	t.Run("appends intervals up to the end", func(t *testing.T) {
		t.Parallel()
		tr := newLinear(t, 0, 3, 1)
		require.NoError(t, tr.EndAt(4.5))
		assert.Equal(t, []float64{0, 1, 2, 3, 4}, tr.T())
		assert.Equal(t, []int{0, 1, 2, 3, 4}, tr.Frames())
		assert.True(t, math.IsNaN(tr.Coord()[1][4]))
	})

	t.Run("before the start fails", func(t *testing.T) {
		t.Parallel()
		tr := newLinear(t, 0, 3, 1)
		assert.ErrorIs(t, tr.EndAt(-1), ErrValidation)
	})
}

func TestTime(t *testing.T) {
	t.Parallel()

	tr := New(nil)
	require.NoError(t, tr.InputFrames([]int{0, 1, 2}))
	require.NoError(t, tr.Time(0.5, "s"))
	assert.Equal(t, []float64{0, 0.5, 1}, tr.T())
	dt, err := tr.DeltaT()
	require.NoError(t, err)
	assert.Equal(t, 0.5, dt)
	unit, _ := tr.Annotation("t_unit")
	assert.Equal(t, "s", unit.String())

	assert.ErrorIs(t, tr.Time(0.5, "s"), ErrValidation)
	assert.ErrorIs(t, New(nil).Time(1, "s"), ErrConfiguration)
}

func TestDeltaT(t *testing.T) {
	t.Parallel()

	tr := New(nil)
	require.NoError(t, tr.InputTimes([]float64{0, 0.2, 0.3, 0.5}, "s"))
	dt, err := tr.DeltaT()
	require.NoError(t, err)
	assert.InDelta(t, 0.1, dt, 1e-12)

	single := New(nil)
	require.NoError(t, single.InputTimes([]float64{1}, "s"))
	_, err = single.DeltaT()
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestFimax(t *testing.T) {
	t.Parallel()

	tr := New(Annotations{"delta_t": Number(1)})
	require.NoError(t, tr.InputFrames([]int{0, 1, 2, 3, 4, 5}))
	require.NoError(t, tr.InputTimes([]float64{0, 1, 2, 3, 4, 5}, "s"))
	require.NoError(t, tr.InputValues(F, []float64{1, 3, 5, 4, 2, 1}, ""))

	out, err := tr.Fimax([]float64{1})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3}, out.T())
	v, ok := out.Annotation("fimax")
	require.True(t, ok)
	assert.Equal(t, "TRUE", v.String())
	assert.Equal(t, 6, tr.Len(), "source is untouched")

	_, err = New(nil).Fimax(nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestCenterMass(t *testing.T) {
	t.Parallel()

	tr := New(nil)
	require.NoError(t, tr.InputCoord([]float64{1, math.NaN(), 3}, []float64{2, 4, math.NaN()}, ""))
	assert.Equal(t, [2]float64{2, 3}, tr.CenterMass())

	empty := New(nil)
	require.NoError(t, empty.InputCoord([]float64{math.NaN()}, []float64{math.NaN()}, ""))
	cm := empty.CenterMass()
	assert.True(t, math.IsNaN(cm[0]) && math.IsNaN(cm[1]))
}

func TestCopyIsDeep(t *testing.T) {
	t.Parallel()

	tr := newLinear(t, 0, 4, 1)
	cp := tr.Copy()
	require.True(t, Equal(tr, cp))
	cp.Rotate(1, 0)
	require.NoError(t, cp.Lag(3))
	require.NoError(t, cp.Annotate("file", Text("copy")))
	assert.False(t, Equal(tr, cp))
	assert.Equal(t, 0.0, tr.T()[0])
	_, ok := tr.Annotation("file")
	assert.False(t, ok)
}
