// Package stats provides NaN-ignoring summary statistics over samples that
// may contain missing values.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MADScale converts a median absolute deviation into a consistent
// estimate of the standard deviation for normal data.
const MADScale = 1.4826

// Finite returns the non-NaN values of x.
func Finite(x []float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Count returns the number of non-NaN values.
func Count(x []float64) int {
	n := 0
	for _, v := range x {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// Sum returns the sum of the non-NaN values; zero when there are none.
func Sum(x []float64) float64 {
	return floats.Sum(Finite(x))
}

// Mean returns the mean of the non-NaN values, or NaN when there are none.
func Mean(x []float64) float64 {
	v := Finite(x)
	if len(v) == 0 {
		return math.NaN()
	}
	return stat.Mean(v, nil)
}

// Std returns the population standard deviation of the non-NaN values.
func Std(x []float64) float64 {
	v := Finite(x)
	if len(v) == 0 {
		return math.NaN()
	}
	_, std := stat.PopMeanStdDev(v, nil)
	return std
}

// Median returns the median of the non-NaN values, averaging the two
// central values for even counts.
func Median(x []float64) float64 {
	v := Finite(x)
	n := len(v)
	if n == 0 {
		return math.NaN()
	}
	sort.Float64s(v)
	if n%2 == 1 {
		return v[n/2]
	}
	return (v[n/2-1] + v[n/2]) / 2
}

// MAD returns the scaled median absolute deviation of the non-NaN values.
func MAD(x []float64) float64 {
	m := Median(x)
	if math.IsNaN(m) {
		return math.NaN()
	}
	dev := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) {
			dev = append(dev, math.Abs(v-m))
		}
	}
	return MADScale * Median(dev)
}

// CircularMean returns the direction of the mean unit vector of the
// angles, in (-π, π].
func CircularMean(angles []float64) float64 {
	var s, c float64
	for _, a := range angles {
		s += math.Sin(a)
		c += math.Cos(a)
	}
	n := float64(len(angles))
	return math.Atan2(s/n, c/n)
}
