package traj

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Rotation returns the 2x2 counter-clockwise rotation matrix for angle.
func Rotation(angle float64) *mat.Dense {
	c, s := math.Cos(angle), math.Sin(angle)
	return mat.NewDense(2, 2, []float64{c, -s, s, c})
}

// Rotate rotates the coordinates about the origin by angle radians.
// Coordinate uncertainties are propagated through the squared rotation
// matrix; a non-zero angleErr adds the contribution of the angle
// uncertainty, seeding coordinate uncertainties when none exist. Since the
// propagation is in quadrature, rotating back by -angle restores the
// uncertainties only where they are equal on both axes.
func (tr *Trajectory) Rotate(angle, angleErr float64) {
	n := len(tr.coord[0])
	if n == 0 {
		return
	}
	pos := coordMatrix(tr.coord)
	var rotated mat.Dense
	rotated.Mul(Rotation(angle), pos)

	var jac [2][]float64
	if angleErr != 0 {
		// d(R·p)/dθ
		c, s := math.Cos(angle), math.Sin(angle)
		jac = [2][]float64{make([]float64, n), make([]float64, n)}
		for i := 0; i < n; i++ {
			x, y := tr.coord[0][i], tr.coord[1][i]
			jac[0][i] = angleErr * (-s*x - c*y)
			jac[1][i] = angleErr * (c*x - s*y)
		}
	}

	switch {
	case len(tr.coordErr[0]) > 0:
		c, s := math.Cos(angle), math.Sin(angle)
		sq := mat.NewDense(2, 2, []float64{c * c, s * s, s * s, c * c})
		var errSq mat.Dense
		errSq.Apply(func(_, _ int, v float64) float64 { return v * v }, coordMatrix(tr.coordErr))
		var prop mat.Dense
		prop.Mul(sq, &errSq)
		for r := 0; r < 2; r++ {
			for i := 0; i < n; i++ {
				v := prop.At(r, i)
				if jac[r] != nil {
					v += jac[r][i] * jac[r][i]
				}
				tr.coordErr[r][i] = math.Sqrt(v)
			}
		}
	case angleErr != 0:
		for r := 0; r < 2; r++ {
			tr.coordErr[r] = make([]float64, n)
			for i := 0; i < n; i++ {
				tr.coordErr[r][i] = math.Abs(jac[r][i])
			}
		}
	}

	tr.coord[0] = mat.Row(nil, 0, &rotated)
	tr.coord[1] = mat.Row(nil, 1, &rotated)
}

func coordMatrix(c [2][]float64) *mat.Dense {
	n := len(c[0])
	data := make([]float64, 0, 2*n)
	data = append(data, c[0]...)
	data = append(data, c[1]...)
	return mat.NewDense(2, n, data)
}

// Translate shifts the coordinates by v. A non-zero vErr is added in
// quadrature to the coordinate uncertainties, or seeds them when none
// exist.
func (tr *Trajectory) Translate(v, vErr [2]float64) {
	n := len(tr.coord[0])
	if n == 0 {
		return
	}
	for r := 0; r < 2; r++ {
		for i := range tr.coord[r] {
			tr.coord[r][i] += v[r]
		}
	}
	if vErr[0] == 0 && vErr[1] == 0 {
		return
	}
	if len(tr.coordErr[0]) > 0 {
		for r := 0; r < 2; r++ {
			for i, e := range tr.coordErr[r] {
				tr.coordErr[r][i] = math.Hypot(e, vErr[r])
			}
		}
		return
	}
	for r := 0; r < 2; r++ {
		tr.coordErr[r] = make([]float64, n)
		for i := range tr.coordErr[r] {
			tr.coordErr[r][i] = math.Abs(vErr[r])
		}
	}
}

// Lag shifts the time axis by shift sampling intervals.
func (tr *Trajectory) Lag(shift int) error {
	if len(tr.t) == 0 {
		return fmt.Errorf("%w: there is no time axis to shift", ErrConfiguration)
	}
	dt, err := tr.DeltaT()
	if err != nil {
		return err
	}
	for i := range tr.t {
		tr.t[i] += float64(shift) * dt
	}
	return nil
}
