// Package cli builds the trajalign command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/trajalign/internal/config"
	"github.com/banshee-data/trajalign/internal/fsutil"
	"github.com/banshee-data/trajalign/internal/loader"
	"github.com/banshee-data/trajalign/internal/monitoring"
	"github.com/banshee-data/trajalign/internal/pipeline"
	"github.com/banshee-data/trajalign/internal/runstore"
	"github.com/banshee-data/trajalign/internal/timeutil"
	"github.com/banshee-data/trajalign/internal/version"
)

// Root carries what the subcommands share.
type Root struct {
	fs       fsutil.FileSystem
	clock    timeutil.Clock
	logLevel string
}

// NewRootCmd creates the root command. Trajectory tables are read from
// and outputs written to fsys; the run ledger always lives on disk.
func NewRootCmd(fsys fsutil.FileSystem, clock timeutil.Clock) *cobra.Command {
	root := &Root{fs: fsys, clock: clock}

	rootCmd := &cobra.Command{
		Use:   "trajalign",
		Short: "Align and average trajectories of a repeated process",
		Long: `trajalign aligns trajectories of the same process recorded many times in
space and time, averages them without privileging any single one, and lays
the average down in a canonical pose.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if root.logLevel == "off" {
				monitoring.SetLogger(nil)
				return nil
			}
			l, err := monitoring.NewZap(root.logLevel)
			if err != nil {
				return err
			}
			monitoring.UseZap(l)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&root.logLevel, "log-level", "info", "log level (debug|info|warn|error|prod|off)")

	rootCmd.AddCommand(newAverageCmd(root))
	rootCmd.AddCommand(newRunsCmd(root))
	rootCmd.AddCommand(newConfigCmd(root))
	rootCmd.AddCommand(newVersionCmd(root))
	return rootCmd
}

// loadConfig reads path, or starts from the defaults when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func newAverageCmd(root *Root) *cobra.Command {
	var (
		configPath string
		out        string
		dbPath     string
		median     bool
		unify      bool
		fimax      bool
		maxFrame   int
		workers    int
		pattern    string
		deltaT     float64
		tUnit      string
		coordUnit  string
	)

	cmd := &cobra.Command{
		Use:   "average <directory>",
		Short: "Average every trajectory table of a directory",
		Long: `Load the trajectory tables of a directory, align every pair, average the
set onto each trajectory in turn and keep the most precise average. The
average is written to <out>.txt, the aligned trajectories and the
precision of every reference under the directory <out>.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("median") {
				cfg.Median = &median
			}
			if flags.Changed("unify") {
				cfg.UnifyStartEnd = &unify
			}
			if flags.Changed("fimax") {
				cfg.Fimax = &fimax
			}
			if flags.Changed("max-frame") {
				cfg.MaxFrame = &maxFrame
			}
			if flags.Changed("workers") {
				cfg.Workers = &workers
			}
			if flags.Changed("pattern") {
				cfg.Pattern = &pattern
			}
			if flags.Changed("dt") {
				cfg.DeltaT = &deltaT
			}
			if flags.Changed("t-unit") {
				cfg.TUnit = &tUnit
			}
			if flags.Changed("coord-unit") {
				cfg.CoordUnit = &coordUnit
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			trajs, err := loader.LoadDirectory(root.fs, dir, loader.OptionsFromConfig(cfg))
			if err != nil {
				return err
			}
			if out == "" {
				out = strings.TrimSuffix(filepath.Clean(dir), string(filepath.Separator)) + "_average"
			}
			opts := pipeline.Options{
				Out:        out,
				FS:         root.fs,
				Clock:      root.clock,
				Experiment: filepath.Base(filepath.Clean(dir)),
			}
			if dbPath != "" {
				store, err := runstore.Open(dbPath, root.clock)
				if err != nil {
					return err
				}
				defer store.Close()
				opts.Store = store
			}

			res, err := pipeline.Run(cmd.Context(), trajs, cfg, opts)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), res)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "configuration file (.json, .yaml or .yml)")
	f.StringVarP(&out, "out", "o", "", "output name (default <directory>_average)")
	f.StringVar(&dbPath, "db", "", "record the run in this SQLite ledger")
	f.BoolVar(&median, "median", false, "average with the median instead of the mean")
	f.BoolVar(&unify, "unify", false, "cut every aligned trajectory to the mean start and end")
	f.BoolVar(&fimax, "fimax", false, "align only up to the intensity peak")
	f.IntVar(&maxFrame, "max-frame", 0, "frames per recording, to spot trajectories cut by its end")
	f.IntVar(&workers, "workers", 0, "concurrent pairwise alignments (0 = one per CPU)")
	f.StringVar(&pattern, "pattern", loader.DefaultPattern, "select files containing this text, or ending with it when it ends in $")
	f.Float64Var(&deltaT, "dt", 0, "sampling interval used to derive time from frames")
	f.StringVar(&tUnit, "t-unit", "", "time unit")
	f.StringVar(&coordUnit, "coord-unit", "", "coordinate unit")
	return cmd
}

func printSummary(w io.Writer, res *pipeline.Output) {
	r := res.Result
	fmt.Fprintf(w, "run %s\n", res.RunID)
	for i, p := range r.Precision {
		marker := "  "
		switch i {
		case r.Best:
			marker = "* "
		case r.Worst:
			marker = "- "
		}
		ref, _ := r.Averages[i].Annotation("reference_file")
		fmt.Fprintf(w, "%s%-24s precision %s\n", marker, ref.String(), formatFloat(p))
	}
	fmt.Fprintf(w, "lie down: angle %s, translation (%s, %s)\n",
		formatFloat(res.LieDown.Angle), formatFloat(res.LieDown.Translation[0]), formatFloat(res.LieDown.Translation[1]))
	for _, f := range res.Files {
		fmt.Fprintf(w, "wrote %s\n", f)
	}
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return fmt.Sprintf("%.6g", v)
}

func newRunsCmd(root *Root) *cobra.Command {
	var (
		dbPath string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List recorded runs, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := runstore.Open(dbPath, root.clock)
			if err != nil {
				return err
			}
			defer store.Close()

			w := cmd.OutOrStdout()
			if len(args) == 1 {
				run, err := store.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printRun(w, run)
				return nil
			}
			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, r := range runs {
				fmt.Fprintf(w, "%s  %s  %-20s n=%-4d best=%-3d %v\n",
					r.ID, r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), r.Experiment, r.Trajectories, r.Best, r.Duration)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "trajalign.db", "SQLite ledger")
	cmd.Flags().IntVar(&limit, "limit", 20, "most recent runs to list (0 = all)")
	return cmd
}

func printRun(w io.Writer, run *runstore.Run) {
	fmt.Fprintf(w, "run %s (%s)\n", run.ID, run.Version)
	fmt.Fprintf(w, "experiment %s, %d trajectories, median=%t, unify_start_end=%t\n",
		run.Experiment, run.Trajectories, run.Median, run.UnifyStartEnd)
	fmt.Fprintf(w, "best %d, worst %d, lie down angle %s\n", run.Best, run.Worst, formatFloat(run.LieDownAngle))
	for _, r := range run.References {
		fmt.Fprintf(w, "  ref %-3d %-24s %s\n", r.Index, r.File, formatFloat(r.Precision))
	}
	for _, p := range run.Pairs {
		fmt.Fprintf(w, "  pair %d<-%d angle %s lag %d score %s\n", p.I, p.J, formatFloat(p.Angle), p.Lag, formatFloat(p.Score))
	}
}

func newConfigCmd(root *Root) *cobra.Command {
	var (
		configPath string
		format     string
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			var data []byte
			switch format {
			case "json":
				data, err = json.MarshalIndent(cfg, "", "  ")
				data = append(data, '\n')
			case "yaml", "yml":
				data, err = yaml.Marshal(cfg)
			default:
				return fmt.Errorf("unknown format %q, want json or yaml", format)
			}
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "configuration file (.json, .yaml or .yml)")
	cmd.Flags().StringVar(&format, "format", "yaml", "output format (json|yaml)")
	return cmd
}

func newVersionCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Get()
			cmd.Printf("trajalign %s\n", info)
			cmd.Printf("built %s\n", info.BuildTime)
			cmd.Printf("Copyright %d the trajalign authors\n", version.Year)
		},
	}
}
