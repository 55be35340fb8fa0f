// Package traj provides the Trajectory container: per-sample position,
// intensity and shape series with paired uncertainties and open
// annotations.
//
// Methods named Input*, Fill, StartAt, EndAt, Rotate, Translate, Lag and
// Time mutate the receiver. Extract, Copy and Fimax return new instances.
// Getters return copies, so callers never alias internal storage.
package traj

import (
	"fmt"
	"math"

	"github.com/banshee-data/trajalign/internal/monitoring"
	"github.com/banshee-data/trajalign/internal/stats"
)

// Trajectory is an ordered time series of 2D positions and associated
// per-sample measurements.
type Trajectory struct {
	annotations Annotations
	frames      []int
	t           []float64
	coord       [2][]float64
	coordErr    [2][]float64
	values      map[Attr][]float64
}

// New returns an empty trajectory carrying a copy of the given
// annotations.
func New(annotations Annotations) *Trajectory {
	tr := &Trajectory{
		annotations: Annotations{},
		values:      map[Attr][]float64{},
	}
	for k, v := range annotations {
		tr.annotations[k] = v
	}
	return tr
}

// Len returns the number of samples. The time axis defines it when
// present, then frames, then any other populated attribute.
func (tr *Trajectory) Len() int {
	if len(tr.t) > 0 {
		return len(tr.t)
	}
	if len(tr.frames) > 0 {
		return len(tr.frames)
	}
	if len(tr.coord[0]) > 0 {
		return len(tr.coord[0])
	}
	if len(tr.coordErr[0]) > 0 {
		return len(tr.coordErr[0])
	}
	for _, a := range attrOrder {
		if v := tr.values[a]; len(v) > 0 {
			return len(v)
		}
	}
	return 0
}

// Has reports whether attribute a is populated.
func (tr *Trajectory) Has(a Attr) bool {
	switch a {
	case Frames:
		return len(tr.frames) > 0
	case T:
		return len(tr.t) > 0
	case Coord:
		return len(tr.coord[0]) > 0
	case CoordErr:
		return len(tr.coordErr[0]) > 0
	}
	return len(tr.values[a]) > 0
}

// Attributes lists the populated attributes in canonical order.
func (tr *Trajectory) Attributes() []Attr {
	var out []Attr
	for _, a := range attrOrder {
		if tr.Has(a) {
			out = append(out, a)
		}
	}
	return out
}

func (tr *Trajectory) checkLength(a Attr, n int) error {
	if n == 0 {
		return nil
	}
	for _, other := range tr.Attributes() {
		if other == a {
			continue
		}
		if l := tr.seriesLen(other); l != n {
			return fmt.Errorf("%w: %s has %d samples, %s has %d", ErrValidation, a, n, other, l)
		}
	}
	return nil
}

func (tr *Trajectory) seriesLen(a Attr) int {
	switch a {
	case Frames:
		return len(tr.frames)
	case T:
		return len(tr.t)
	case Coord:
		return len(tr.coord[0])
	case CoordErr:
		return len(tr.coordErr[0])
	}
	return len(tr.values[a])
}

// setUnit records a unit annotation. The first non-empty unit wins;
// assigning a different one fails.
func (tr *Trajectory) setUnit(key, unit string) error {
	if key == "" || unit == "" {
		return nil
	}
	if cur, ok := tr.annotations[key]; ok && cur.String() != "" {
		if cur.String() != unit {
			return fmt.Errorf("%w: %s is %q, cannot change it to %q", ErrValidation, key, cur.String(), unit)
		}
		return nil
	}
	tr.annotations[key] = Text(unit)
	return nil
}

// InputFrames sets the frame numbers, which must be strictly increasing.
func (tr *Trajectory) InputFrames(v []int) error {
	for i := 1; i < len(v); i++ {
		if v[i] <= v[i-1] {
			return fmt.Errorf("%w: frame %d follows frame %d", ErrChronology, v[i], v[i-1])
		}
	}
	if err := tr.checkLength(Frames, len(v)); err != nil {
		return err
	}
	tr.frames = append([]int(nil), v...)
	return nil
}

// InputTimes sets the sample times, which must be strictly increasing.
func (tr *Trajectory) InputTimes(v []float64, unit string) error {
	for i := 1; i < len(v); i++ {
		if !(v[i] > v[i-1]) {
			return fmt.Errorf("%w: time %v follows time %v", ErrChronology, v[i], v[i-1])
		}
	}
	if err := tr.checkLength(T, len(v)); err != nil {
		return err
	}
	if err := tr.setUnit(T.UnitKey(), unit); err != nil {
		return err
	}
	tr.t = append([]float64(nil), v...)
	return nil
}

// InputCoord sets the x and y coordinates.
func (tr *Trajectory) InputCoord(x, y []float64, unit string) error {
	return tr.inputPair(Coord, x, y, unit)
}

// InputCoordErr sets the x and y coordinate uncertainties.
func (tr *Trajectory) InputCoordErr(x, y []float64, unit string) error {
	return tr.inputPair(CoordErr, x, y, unit)
}

func (tr *Trajectory) inputPair(a Attr, x, y []float64, unit string) error {
	if len(x) != len(y) {
		return fmt.Errorf("%w: %s rows have %d and %d samples", ErrValidation, a, len(x), len(y))
	}
	if err := tr.checkLength(a, len(x)); err != nil {
		return err
	}
	if err := tr.setUnit(a.UnitKey(), unit); err != nil {
		return err
	}
	pair := [2][]float64{append([]float64(nil), x...), append([]float64(nil), y...)}
	if len(x) == 0 {
		pair = [2][]float64{}
	}
	if a == Coord {
		tr.coord = pair
	} else {
		tr.coordErr = pair
	}
	return nil
}

// InputValues sets a one-dimensional value or uncertainty attribute.
func (tr *Trajectory) InputValues(a Attr, v []float64, unit string) error {
	switch a {
	case Frames, T, Coord, CoordErr:
		return fmt.Errorf("%w: %s is not a one-dimensional value attribute", ErrValidation, a)
	}
	if _, ok := ParseAttr(string(a)); !ok {
		return fmt.Errorf("%w: unknown attribute %q", ErrValidation, a)
	}
	if err := tr.checkLength(a, len(v)); err != nil {
		return err
	}
	if err := tr.setUnit(a.UnitKey(), unit); err != nil {
		return err
	}
	if len(v) == 0 {
		delete(tr.values, a)
		return nil
	}
	tr.values[a] = append([]float64(nil), v...)
	return nil
}

// InputSeries sets any floating point attribute from its rows: two for
// coordinates, one otherwise.
func (tr *Trajectory) InputSeries(a Attr, rows [][]float64, unit string) error {
	if len(rows) != a.Rows() {
		return fmt.Errorf("%w: %s needs %d rows, got %d", ErrValidation, a, a.Rows(), len(rows))
	}
	switch a {
	case Frames:
		return fmt.Errorf("%w: frames are integers", ErrValidation)
	case T:
		return tr.InputTimes(rows[0], unit)
	case Coord:
		return tr.InputCoord(rows[0], rows[1], unit)
	case CoordErr:
		return tr.InputCoordErr(rows[0], rows[1], unit)
	}
	return tr.InputValues(a, rows[0], unit)
}

// Series returns a copy of the rows of a floating point attribute, or nil
// when it is empty.
func (tr *Trajectory) Series(a Attr) [][]float64 {
	if !tr.Has(a) || a == Frames {
		return nil
	}
	switch a {
	case T:
		return [][]float64{tr.T()}
	case Coord:
		c := tr.Coord()
		return [][]float64{c[0], c[1]}
	case CoordErr:
		c := tr.CoordErr()
		return [][]float64{c[0], c[1]}
	}
	return [][]float64{tr.Values(a)}
}

// Annotate sets an annotation. Unit annotations follow the same rule as
// units passed to the Input methods.
func (tr *Trajectory) Annotate(key string, v Value) error {
	if isUnitKey(key) {
		if v.Kind() != KindText {
			return fmt.Errorf("%w: unit %s must be text", ErrValidation, key)
		}
		return tr.setUnit(key, v.String())
	}
	tr.annotations[key] = v
	return nil
}

func isUnitKey(key string) bool {
	return len(key) > len("_unit") && key[len(key)-len("_unit"):] == "_unit"
}

// Annotation returns the annotation stored under key.
func (tr *Trajectory) Annotation(key string) (Value, bool) {
	v, ok := tr.annotations[key]
	return v, ok
}

// Annotations returns a copy of all annotations.
func (tr *Trajectory) Annotations() Annotations {
	return tr.annotations.Clone()
}

// Frames returns a copy of the frame numbers.
func (tr *Trajectory) Frames() []int { return append([]int(nil), tr.frames...) }

// T returns a copy of the sample times.
func (tr *Trajectory) T() []float64 { return append([]float64(nil), tr.t...) }

// Coord returns a copy of the coordinates.
func (tr *Trajectory) Coord() [2][]float64 {
	return [2][]float64{append([]float64(nil), tr.coord[0]...), append([]float64(nil), tr.coord[1]...)}
}

// CoordErr returns a copy of the coordinate uncertainties.
func (tr *Trajectory) CoordErr() [2][]float64 {
	return [2][]float64{append([]float64(nil), tr.coordErr[0]...), append([]float64(nil), tr.coordErr[1]...)}
}

// Values returns a copy of a one-dimensional attribute.
func (tr *Trajectory) Values(a Attr) []float64 {
	return append([]float64(nil), tr.values[a]...)
}

// Start returns the first sample time, or NaN when there is no time axis.
func (tr *Trajectory) Start() float64 {
	if len(tr.t) == 0 {
		return math.NaN()
	}
	return tr.t[0]
}

// End returns the last sample time, or NaN when there is no time axis.
func (tr *Trajectory) End() float64 {
	if len(tr.t) == 0 {
		return math.NaN()
	}
	return tr.t[len(tr.t)-1]
}

// DeltaT returns the sampling interval: the delta_t annotation when
// present, otherwise the smallest spacing of the time axis.
func (tr *Trajectory) DeltaT() (float64, error) {
	if v, ok := tr.annotations["delta_t"]; ok {
		if dt, ok := v.Float(); ok && dt > 0 {
			return dt, nil
		}
		return 0, fmt.Errorf("%w: delta_t annotation %q is not a positive number", ErrConfiguration, v.String())
	}
	return tr.inferDeltaT()
}

func (tr *Trajectory) inferDeltaT() (float64, error) {
	dt := math.Inf(1)
	for i := 1; i < len(tr.t); i++ {
		if d := tr.t[i] - tr.t[i-1]; d > 0 && d < dt {
			dt = d
		}
	}
	if math.IsInf(dt, 1) {
		return 0, fmt.Errorf("%w: delta_t is not annotated and cannot be inferred from %d time points", ErrConfiguration, len(tr.t))
	}
	monitoring.Logf("[traj] delta_t not annotated, inferred %v from the time axis", dt)
	return dt, nil
}

// Copy returns a deep copy.
func (tr *Trajectory) Copy() *Trajectory {
	out := New(tr.annotations)
	out.frames = tr.Frames()
	out.t = tr.T()
	if tr.Has(Coord) {
		out.coord = tr.Coord()
	}
	if tr.Has(CoordErr) {
		out.coordErr = tr.CoordErr()
	}
	for a, v := range tr.values {
		out.values[a] = append([]float64(nil), v...)
	}
	return out
}

// CenterMass returns the NaN-ignoring mean position.
func (tr *Trajectory) CenterMass() [2]float64 {
	return [2]float64{stats.Mean(tr.coord[0]), stats.Mean(tr.coord[1])}
}

// eachFloat applies fn to every populated floating point series and
// stores the result.
func (tr *Trajectory) eachFloat(fn func([]float64) []float64) {
	if len(tr.t) > 0 {
		tr.t = fn(tr.t)
	}
	for r := 0; r < 2; r++ {
		if len(tr.coord[r]) > 0 {
			tr.coord[r] = fn(tr.coord[r])
		}
		if len(tr.coordErr[r]) > 0 {
			tr.coordErr[r] = fn(tr.coordErr[r])
		}
	}
	for a, v := range tr.values {
		tr.values[a] = fn(v)
	}
}

func nans(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
