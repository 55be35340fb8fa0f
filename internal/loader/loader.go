// Package loader reads every trajectory table of a directory.
package loader

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/trajalign/internal/config"
	"github.com/banshee-data/trajalign/internal/fsutil"
	"github.com/banshee-data/trajalign/internal/monitoring"
	"github.com/banshee-data/trajalign/internal/traj"
)

// DefaultPattern selects text tables.
const DefaultPattern = ".txt"

// PrecisionFile lists the precision reached with every reference, one
// value per line. It is written next to the aligned trajectories and is
// never loaded as one.
const PrecisionFile = "alignment_precision.txt"

// Options controls LoadDirectory.
type Options struct {
	// Pattern selects files whose name contains it, or ends with it when
	// the pattern ends in $. Empty means DefaultPattern.
	Pattern     string
	Sep         string
	CommentChar string
	// Columns fixes the column layout; nil reads it from each header.
	Columns map[traj.Attr][]int
	// DeltaT, when positive, derives the time axis from the frames.
	DeltaT    float64
	TUnit     string
	CoordUnit string
	// Fill inserts NaN rows for missing frames.
	Fill bool
	// Annotations are added to every trajectory.
	Annotations traj.Annotations
}

// OptionsFromConfig maps the loading section of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Pattern:     cfg.GetPattern(),
		Sep:         cfg.GetSeparator(),
		CommentChar: cfg.GetCommentChar(),
		Columns:     cfg.GetColumns(),
		DeltaT:      cfg.GetDeltaT(),
		TUnit:       cfg.GetTUnit(),
		CoordUnit:   cfg.GetCoordUnit(),
		Fill:        cfg.GetFill(),
	}
}

func (o Options) validate() error {
	if _, ok := o.Columns[traj.Coord]; ok && o.CoordUnit == "" {
		return fmt.Errorf("%w: coordinate columns need a coordinate unit", traj.ErrConfiguration)
	}
	if _, ok := o.Columns[traj.T]; ok && o.TUnit == "" {
		return fmt.Errorf("%w: a time column needs a time unit", traj.ErrConfiguration)
	}
	if o.DeltaT < 0 {
		return fmt.Errorf("%w: delta_t must be positive, got %v", traj.ErrConfiguration, o.DeltaT)
	}
	if o.DeltaT > 0 {
		if o.TUnit == "" {
			return fmt.Errorf("%w: delta_t needs a time unit", traj.ErrConfiguration)
		}
		if _, ok := o.Columns[traj.T]; ok {
			return fmt.Errorf("%w: time is read from a column and cannot also be derived from delta_t", traj.ErrConfiguration)
		}
	}
	return nil
}

// Match reports whether a file name is selected by pattern.
func Match(name, pattern string) bool {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if suffix, ok := strings.CutSuffix(pattern, "$"); ok {
		return strings.HasSuffix(name, suffix)
	}
	return strings.Contains(name, pattern)
}

// LoadDirectory loads the files of dir selected by opts.Pattern, in name
// order. Each trajectory is annotated with its file name and with the
// directory as experiment, unless the file already records them.
func LoadDirectory(fsys fsutil.FileSystem, dir string, opts Options) ([]*traj.Trajectory, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", traj.ErrIO, dir, err)
	}

	var out []*traj.Trajectory
	for _, e := range entries {
		if e.IsDir() || e.Name() == PrecisionFile || !Match(e.Name(), opts.Pattern) {
			continue
		}
		tr, err := loadFile(fsys, dir, e.Name(), opts)
		if err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	if len(out) == 0 {
		monitoring.Logf("[loader] warning: no file in %s matches %q", dir, opts.Pattern)
	} else {
		monitoring.Logf("[loader] loaded %d trajectories from %s", len(out), dir)
	}
	return out, nil
}

func loadFile(fsys fsutil.FileSystem, dir, name string, opts Options) (*traj.Trajectory, error) {
	tr, err := traj.Load(fsys, filepath.Join(dir, name), traj.LoadOptions{
		Sep:         opts.Sep,
		CommentChar: opts.CommentChar,
		Columns:     opts.Columns,
		Annotations: opts.Annotations,
		Defaults: traj.Annotations{
			"experiment": traj.Text(filepath.Base(filepath.Clean(dir))),
			"file":       traj.Text(name),
		},
	})
	if err != nil {
		return nil, err
	}
	if opts.DeltaT > 0 {
		if err := tr.Time(opts.DeltaT, opts.TUnit); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	} else if opts.TUnit != "" && tr.Has(traj.T) {
		if err := tr.Annotate("t_unit", traj.Text(opts.TUnit)); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	if opts.CoordUnit != "" && tr.Has(traj.Coord) {
		if err := tr.Annotate("coord_unit", traj.Text(opts.CoordUnit)); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	if opts.Fill {
		if err := tr.Fill(); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	return tr, nil
}
