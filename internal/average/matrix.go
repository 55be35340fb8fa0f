package average

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/trajalign/internal/align"
	"github.com/banshee-data/trajalign/internal/monitoring"
	"github.com/banshee-data/trajalign/internal/traj"
)

// Matrix holds the pairwise transforms of a set of trajectories. Cell
// [i][j] describes trajectory j aligned onto trajectory i.
type Matrix struct {
	N int
	// Angle rotates j onto i; antisymmetric.
	Angle [][]float64
	// Lag is added to the frames of j to match those of i; antisymmetric.
	Lag [][]int
	// Centroid[i][j] is the weighted centroid of i in its alignment with j.
	Centroid [][][2]float64
	// Score is the residual of the alignment; symmetric, zero on the
	// diagonal.
	Score [][]float64
}

func newMatrix(n int) *Matrix {
	m := &Matrix{
		N:        n,
		Angle:    make([][]float64, n),
		Lag:      make([][]int, n),
		Centroid: make([][][2]float64, n),
		Score:    make([][]float64, n),
	}
	for i := 0; i < n; i++ {
		m.Angle[i] = make([]float64, n)
		m.Lag[i] = make([]int, n)
		m.Centroid[i] = make([][2]float64, n)
		m.Score[i] = make([]float64, n)
	}
	return m
}

func (m *Matrix) set(i, j int, tr align.Transform) {
	m.Angle[i][j], m.Angle[j][i] = tr.Angle, -tr.Angle
	m.Lag[i][j], m.Lag[j][i] = tr.Lag, -tr.Lag
	m.Centroid[i][j], m.Centroid[j][i] = tr.RC, tr.LC
	m.Score[i][j], m.Score[j][i] = tr.Score, tr.Score
}

func (c Config) workers() int {
	if c.Workers <= 0 {
		return runtime.NumCPU()
	}
	return c.Workers
}

// BuildMatrix aligns every pair of trajectories, using at most
// cfg.Workers goroutines. The first failing pair cancels the others.
func BuildMatrix(ctx context.Context, trajs []*traj.Trajectory, cfg Config) (*Matrix, error) {
	n := len(trajs)
	type pair struct{ i, j int }
	var pairs []pair
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, pair{i, j})
		}
	}

	results := make([]align.Transform, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers())
	for k, p := range pairs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tr, err := align.Align(trajs[p.i], trajs[p.j], cfg.Align)
			if err != nil {
				return fmt.Errorf("aligning %s onto %s: %w", name(trajs[p.j], p.j), name(trajs[p.i], p.i), err)
			}
			monitoring.Logf("[average] %s onto %s: angle=%.4f lag=%d score=%.4g overlap=%d",
				name(trajs[p.j], p.j), name(trajs[p.i], p.i), tr.Angle, tr.Lag, tr.Score, tr.Overlap)
			results[k] = tr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m := newMatrix(n)
	for k, p := range pairs {
		m.set(p.i, p.j, results[k])
	}
	monitoring.Logf("[average] aligned %d pairs of %d trajectories", len(pairs), n)
	return m, nil
}

// name labels a trajectory in messages by its file annotation.
func name(tr *traj.Trajectory, i int) string {
	if v, ok := tr.Annotation("file"); ok {
		return v.String()
	}
	return fmt.Sprintf("#%d", i)
}
