// Package pipeline runs a full consensus averaging: align and average,
// lay the best average down in its canonical pose, write the outputs and
// record the run.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/trajalign/internal/align"
	"github.com/banshee-data/trajalign/internal/average"
	"github.com/banshee-data/trajalign/internal/config"
	"github.com/banshee-data/trajalign/internal/fsutil"
	"github.com/banshee-data/trajalign/internal/loader"
	"github.com/banshee-data/trajalign/internal/monitoring"
	"github.com/banshee-data/trajalign/internal/orient"
	"github.com/banshee-data/trajalign/internal/robust"
	"github.com/banshee-data/trajalign/internal/runstore"
	"github.com/banshee-data/trajalign/internal/security"
	"github.com/banshee-data/trajalign/internal/timeutil"
	"github.com/banshee-data/trajalign/internal/traj"
	"github.com/banshee-data/trajalign/internal/version"
)

// PrecisionFile lists the precision reached with every reference, one
// per line, inside the output directory.
const PrecisionFile = loader.PrecisionFile

// Options controls where Run writes its outputs.
type Options struct {
	// Out is the output name: the average is saved as Out.txt and the
	// aligned trajectories under the directory Out. Empty writes nothing.
	Out string
	// FS receives the outputs; nil uses the OS filesystem.
	FS fsutil.FileSystem
	// Store, when set, records the run.
	Store *runstore.Store
	// Clock times the run; nil uses the wall clock.
	Clock timeutil.Clock
	// Experiment labels the run in the store.
	Experiment string
}

// Output is the outcome of Run.
type Output struct {
	RunID  string
	Result *average.Result
	// Average is the best average, laid down.
	Average *traj.Trajectory
	// Aligned is the set aligned onto the best reference, laid down like
	// Average.
	Aligned  []*traj.Trajectory
	LieDown  orient.Transform
	Files    []string
	Duration time.Duration
}

// AverageConfig maps cfg onto the averaging settings.
func AverageConfig(cfg *config.Config) average.Config {
	return average.Config{
		Median:        cfg.GetMedian(),
		UnifyStartEnd: cfg.GetUnifyStartEnd(),
		MaxFrame:      cfg.GetMaxFrame(),
		Workers:       cfg.GetWorkers(),
		Align: align.Options{
			RefineFraction: cfg.GetRefineFraction(),
			Fimax:          cfg.GetFimax(),
			FimaxFilter:    cfg.GetFimaxFilter(),
		},
	}
}

// OrientOptions maps cfg onto the lie-down settings.
func OrientOptions(cfg *config.Config) orient.Options {
	seed := cfg.GetRANSACSeed()
	return orient.Options{RANSAC: robust.Options{Trials: cfg.GetRANSACTrials(), Seed: &seed}}
}

// Run averages trajs with cfg. The inputs are left untouched.
func Run(ctx context.Context, trajs []*traj.Trajectory, cfg *config.Config, opts Options) (*Output, error) {
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	started := clock.Now()

	res, err := average.Consensus(ctx, trajs, AverageConfig(cfg))
	if err != nil {
		return nil, err
	}

	// without unification the tails of the average rest on few
	// trajectories, so the pose is taken from the well supported part
	basis := res.Average()
	if !cfg.GetUnifyStartEnd() {
		if basis, err = res.Unified(res.Best); err != nil {
			return nil, err
		}
	}
	ld, err := orient.LieDown(basis, OrientOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("lie down: %w", err)
	}
	monitoring.Logf("[pipeline] lie down: translation (%g, %g), angle %g", ld.Translation[0], ld.Translation[1], ld.Angle)

	out := &Output{
		RunID:   uuid.New().String(),
		Result:  res,
		LieDown: ld,
		Average: res.Average().Copy(),
	}
	for _, tr := range res.Aligned[res.Best] {
		out.Aligned = append(out.Aligned, tr.Copy())
	}
	for _, tr := range append([]*traj.Trajectory{out.Average}, out.Aligned...) {
		ld.Apply(tr)
		stamp(tr, out.RunID, ld)
	}

	if opts.Out != "" {
		fsys := opts.FS
		if fsys == nil {
			fsys = fsutil.OSFileSystem{}
		}
		if out.Files, err = save(fsys, opts.Out, out); err != nil {
			return nil, err
		}
	}
	out.Duration = clock.Since(started)

	if opts.Store != nil {
		if err := record(ctx, opts, cfg, trajs, out); err != nil {
			return nil, err
		}
	}
	monitoring.Logf("[pipeline] run %s averaged %d trajectories in %v", out.RunID, len(trajs), out.Duration)
	return out, nil
}

func stamp(tr *traj.Trajectory, runID string, ld orient.Transform) {
	for k, v := range map[string]traj.Value{
		"trajalign_version":    traj.Text(version.Get().String()),
		"run_id":               traj.Text(runID),
		"lie_down_angle":       traj.Number(ld.Angle),
		"lie_down_translation": traj.Tuple(ld.Translation[0], ld.Translation[1]),
	} {
		_ = tr.Annotate(k, v)
	}
}

func save(fsys fsutil.FileSystem, base string, out *Output) ([]string, error) {
	var files []string
	name, err := out.Average.Save(fsys, base)
	if err != nil {
		return nil, err
	}
	files = append(files, name)

	dir := strings.TrimSuffix(base, ".txt")
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", traj.ErrIO, dir, err)
	}
	for i, tr := range out.Aligned {
		file := fmt.Sprintf("trajectory_%03d.txt", i)
		if v, ok := tr.Annotation("file"); ok && v.String() != "" {
			file = security.SanitizeFilename(filepath.Base(v.String()))
		}
		if file == PrecisionFile {
			file = fmt.Sprintf("trajectory_%03d.txt", i)
		}
		name, err := tr.Save(fsys, filepath.Join(dir, file))
		if err != nil {
			return nil, err
		}
		files = append(files, name)
	}

	var b strings.Builder
	for _, p := range out.Result.Precision {
		b.WriteString(strconv.FormatFloat(p, 'g', -1, 64))
		b.WriteByte('\n')
	}
	name = filepath.Join(dir, PrecisionFile)
	if err := fsys.WriteFile(name, []byte(b.String()), 0644); err != nil {
		return nil, fmt.Errorf("%w: write %s: %v", traj.ErrIO, name, err)
	}
	files = append(files, name)
	monitoring.Logf("[pipeline] wrote %d files under %s", len(files), dir)
	return files, nil
}

func record(ctx context.Context, opts Options, cfg *config.Config, trajs []*traj.Trajectory, out *Output) error {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode configuration: %w", err)
	}
	res := out.Result
	run := &runstore.Run{
		ID:            out.RunID,
		Experiment:    opts.Experiment,
		Version:       version.Get().String(),
		Trajectories:  len(trajs),
		Median:        cfg.GetMedian(),
		UnifyStartEnd: cfg.GetUnifyStartEnd(),
		Best:          res.Best,
		Worst:         res.Worst,
		LieDownAngle:  out.LieDown.Angle,
		Duration:      out.Duration,
		ConfigJSON:    string(cfgJSON),
	}
	for i, p := range res.Precision {
		file := ""
		if v, ok := trajs[i].Annotation("file"); ok {
			file = v.String()
		}
		run.References = append(run.References, runstore.Reference{Index: i, File: file, Precision: p})
	}
	m := res.Matrix
	for i := 0; i < m.N; i++ {
		for j := 0; j < m.N; j++ {
			if i == j {
				continue
			}
			run.Pairs = append(run.Pairs, runstore.Pair{I: i, J: j, Angle: m.Angle[i][j], Lag: m.Lag[i][j], Score: m.Score[i][j]})
		}
	}
	if err := opts.Store.RecordRun(ctx, run); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}
