package robust

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitLineExact(t *testing.T) {
	t.Parallel()

	x := []float64{0, 1, 2, 3, 4, 5}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = 2 - 0.5*v
	}
	got, err := FitLine(x, y, Options{})
	require.NoError(t, err)
	assert.InDelta(t, 2, got.Intercept, 1e-12)
	assert.InDelta(t, -0.5, got.Slope, 1e-12)
	for i := range x {
		assert.True(t, got.Inliers[i])
	}
}

func TestFitLineRejectsOutliers(t *testing.T) {
	t.Parallel()

	var x, y []float64
	for i := 0; i < 40; i++ {
		v := float64(i)
		x = append(x, v)
		// small deterministic wiggle
		y = append(y, 1+0.25*v+0.01*math.Sin(v))
	}
	outliers := map[int]float64{5: 40, 17: -30, 31: 55}
	for i, v := range outliers {
		y[i] = v
	}

	got, err := FitLine(x, y, Options{})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, got.Slope, 1e-2)
	assert.InDelta(t, 1, got.Intercept, 5e-2)
	for i := range outliers {
		assert.False(t, got.Inliers[i], "sample %d", i)
	}
}

func TestFitLineSkipsNaN(t *testing.T) {
	t.Parallel()

	x := []float64{0, math.NaN(), 2, 3, 4}
	y := []float64{1, 7, math.NaN(), 4, 5}
	got, err := FitLine(x, y, Options{Threshold: 0.1})
	require.NoError(t, err)
	assert.InDelta(t, 1, got.Slope, 1e-12)
	assert.False(t, got.Inliers[1])
	assert.False(t, got.Inliers[2])
}

func TestFitLineDeterministic(t *testing.T) {
	t.Parallel()

	x := []float64{0, 1, 2, 3, 4, 5, 6, 7}
	y := []float64{0, 1.1, 1.9, 3.2, 10, 5.1, 5.8, 7.05}
	seed := uint64(7)
	a, err := FitLine(x, y, Options{Seed: &seed})
	require.NoError(t, err)
	b, err := FitLine(x, y, Options{Seed: &seed})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFitLineErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		x, y []float64
	}{
		{"single point", []float64{1}, []float64{1}},
		{"all NaN", []float64{math.NaN(), math.NaN()}, []float64{1, 2}},
		{"vertical", []float64{1, 1, 1}, []float64{0, 1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := FitLine(tt.x, tt.y, Options{})
			assert.ErrorIs(t, err, ErrTooFewPoints)
		})
	}

	_, err := FitLine([]float64{1, 2}, []float64{1}, Options{})
	assert.Error(t, err)
}
