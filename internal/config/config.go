package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/trajalign/internal/traj"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/trajalign.defaults.json"

// DefaultFimaxFilter is a five point Savitzky-Golay smoother.
var DefaultFimaxFilter = []float64{-3.0 / 35, 12.0 / 35, 17.0 / 35, 12.0 / 35, -3.0 / 35}

// Config holds the settings of an averaging run. Every field is optional;
// the Get* methods supply the defaults, so partial files are safe.
type Config struct {
	// Averaging
	Median        *bool `json:"median,omitempty" yaml:"median,omitempty"`
	UnifyStartEnd *bool `json:"unify_start_end,omitempty" yaml:"unify_start_end,omitempty"`
	MaxFrame      *int  `json:"max_frame,omitempty" yaml:"max_frame,omitempty"`
	Workers       *int  `json:"workers,omitempty" yaml:"workers,omitempty"`

	// Alignment
	Fimax          *bool     `json:"fimax,omitempty" yaml:"fimax,omitempty"`
	FimaxFilter    []float64 `json:"fimax_filter,omitempty" yaml:"fimax_filter,omitempty"`
	RefineFraction *float64  `json:"refine_fraction,omitempty" yaml:"refine_fraction,omitempty"`

	// Orientation
	RANSACTrials *int    `json:"ransac_trials,omitempty" yaml:"ransac_trials,omitempty"`
	RANSACSeed   *uint64 `json:"ransac_seed,omitempty" yaml:"ransac_seed,omitempty"`

	// Loading
	Pattern     *string          `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	CommentChar *string          `json:"comment_char,omitempty" yaml:"comment_char,omitempty"`
	Separator   *string          `json:"separator,omitempty" yaml:"separator,omitempty"`
	DeltaT      *float64         `json:"delta_t,omitempty" yaml:"delta_t,omitempty"`
	TUnit       *string          `json:"t_unit,omitempty" yaml:"t_unit,omitempty"`
	CoordUnit   *string          `json:"coord_unit,omitempty" yaml:"coord_unit,omitempty"`
	Fill        *bool            `json:"fill,omitempty" yaml:"fill,omitempty"`
	Columns     map[string][]int `json:"columns,omitempty" yaml:"columns,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrUint64(v uint64) *uint64    { return &v }

// Empty returns a Config with every field unset.
func Empty() *Config {
	return &Config{}
}

// Default returns a Config with every field set to its default.
func Default() *Config {
	c := Empty()
	return &Config{
		Median:         ptrBool(c.GetMedian()),
		UnifyStartEnd:  ptrBool(c.GetUnifyStartEnd()),
		MaxFrame:       ptrInt(c.GetMaxFrame()),
		Workers:        ptrInt(c.GetWorkers()),
		Fimax:          ptrBool(c.GetFimax()),
		FimaxFilter:    c.GetFimaxFilter(),
		RefineFraction: ptrFloat64(c.GetRefineFraction()),
		RANSACTrials:   ptrInt(c.GetRANSACTrials()),
		RANSACSeed:     ptrUint64(c.GetRANSACSeed()),
		Pattern:        ptrString(c.GetPattern()),
		CommentChar:    ptrString(c.GetCommentChar()),
		Separator:      ptrString(c.GetSeparator()),
		TUnit:          ptrString(c.GetTUnit()),
		CoordUnit:      ptrString(c.GetCoordUnit()),
		Fill:           ptrBool(c.GetFill()),
	}
}

// Load reads a Config from a JSON or YAML file, chosen by extension, and
// validates it. The file must be under 1MB.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data, ext)
}

// Parse decodes a Config in the format named by ext and validates it.
func Parse(data []byte, ext string) (*Config, error) {
	cfg := Empty()
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config format %q", ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded, intended
// for test setup.
func MustLoadDefaultConfig() *Config {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/trajalign/
	}
	for _, path := range candidates {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if c.MaxFrame != nil && *c.MaxFrame < 0 {
		return fmt.Errorf("%w: max_frame must be non-negative, got %d", traj.ErrConfiguration, *c.MaxFrame)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("%w: workers must be non-negative, got %d", traj.ErrConfiguration, *c.Workers)
	}
	if c.RefineFraction != nil && (*c.RefineFraction <= 0 || *c.RefineFraction > 1) {
		return fmt.Errorf("%w: refine_fraction must be in (0, 1], got %f", traj.ErrConfiguration, *c.RefineFraction)
	}
	if c.FimaxFilter != nil && len(c.FimaxFilter) == 0 {
		return fmt.Errorf("%w: fimax_filter must not be empty", traj.ErrConfiguration)
	}
	if c.RANSACTrials != nil && *c.RANSACTrials < 1 {
		return fmt.Errorf("%w: ransac_trials must be positive, got %d", traj.ErrConfiguration, *c.RANSACTrials)
	}
	if c.Pattern != nil && *c.Pattern == "" {
		return fmt.Errorf("%w: pattern must not be empty", traj.ErrConfiguration)
	}
	if c.CommentChar != nil && strings.TrimSpace(*c.CommentChar) == "" {
		return fmt.Errorf("%w: comment_char must not be blank", traj.ErrConfiguration)
	}

	if c.DeltaT != nil {
		if *c.DeltaT <= 0 {
			return fmt.Errorf("%w: delta_t must be positive, got %f", traj.ErrConfiguration, *c.DeltaT)
		}
		if c.GetTUnit() == "" {
			return fmt.Errorf("%w: delta_t needs t_unit", traj.ErrConfiguration)
		}
		if _, ok := c.Columns[string(traj.T)]; ok {
			return fmt.Errorf("%w: delta_t derives t, which is also read from column %v", traj.ErrConfiguration, c.Columns[string(traj.T)])
		}
	}

	for name, cols := range c.Columns {
		a, ok := traj.ParseAttr(name)
		if !ok {
			return fmt.Errorf("%w: unknown column attribute %q", traj.ErrConfiguration, name)
		}
		if len(cols) != a.Rows() {
			return fmt.Errorf("%w: %s needs %d column(s), got %d", traj.ErrConfiguration, name, a.Rows(), len(cols))
		}
		for _, col := range cols {
			if col < 0 {
				return fmt.Errorf("%w: column index for %s must be non-negative, got %d", traj.ErrConfiguration, name, col)
			}
		}
	}
	if _, ok := c.Columns[string(traj.Coord)]; ok && c.GetCoordUnit() == "" {
		return fmt.Errorf("%w: coordinate columns need coord_unit", traj.ErrConfiguration)
	}
	return nil
}

// GetMedian returns the median value or the default.
func (c *Config) GetMedian() bool {
	if c.Median == nil {
		return false
	}
	return *c.Median
}

// GetUnifyStartEnd returns the unify_start_end value or the default.
func (c *Config) GetUnifyStartEnd() bool {
	if c.UnifyStartEnd == nil {
		return false
	}
	return *c.UnifyStartEnd
}

// GetMaxFrame returns the max_frame value or the default. Zero turns off
// the end truncation check.
func (c *Config) GetMaxFrame() int {
	if c.MaxFrame == nil {
		return 0
	}
	return *c.MaxFrame
}

// GetWorkers returns the workers value or the default. Zero means one
// worker per CPU.
func (c *Config) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetFimax returns the fimax value or the default.
func (c *Config) GetFimax() bool {
	if c.Fimax == nil {
		return false
	}
	return *c.Fimax
}

// GetFimaxFilter returns a copy of the fimax_filter value or the default.
func (c *Config) GetFimaxFilter() []float64 {
	if len(c.FimaxFilter) == 0 {
		return append([]float64(nil), DefaultFimaxFilter...)
	}
	return append([]float64(nil), c.FimaxFilter...)
}

// GetRefineFraction returns the refine_fraction value or the default.
func (c *Config) GetRefineFraction() float64 {
	if c.RefineFraction == nil {
		return 0.1
	}
	return *c.RefineFraction
}

// GetRANSACTrials returns the ransac_trials value or the default.
func (c *Config) GetRANSACTrials() int {
	if c.RANSACTrials == nil {
		return 100
	}
	return *c.RANSACTrials
}

// GetRANSACSeed returns the ransac_seed value or the default.
func (c *Config) GetRANSACSeed() uint64 {
	if c.RANSACSeed == nil {
		return 42
	}
	return *c.RANSACSeed
}

// GetPattern returns the pattern value or the default.
func (c *Config) GetPattern() string {
	if c.Pattern == nil {
		return ".txt"
	}
	return *c.Pattern
}

// GetCommentChar returns the comment_char value or the default.
func (c *Config) GetCommentChar() string {
	if c.CommentChar == nil {
		return traj.DefaultCommentChar
	}
	return *c.CommentChar
}

// GetSeparator returns the separator value or the default. Empty splits
// on whitespace.
func (c *Config) GetSeparator() string {
	if c.Separator == nil {
		return ""
	}
	return *c.Separator
}

// GetDeltaT returns the delta_t value, or zero to keep the time column.
func (c *Config) GetDeltaT() float64 {
	if c.DeltaT == nil {
		return 0
	}
	return *c.DeltaT
}

// GetTUnit returns the t_unit value or the default.
func (c *Config) GetTUnit() string {
	if c.TUnit == nil {
		return ""
	}
	return *c.TUnit
}

// GetCoordUnit returns the coord_unit value or the default.
func (c *Config) GetCoordUnit() string {
	if c.CoordUnit == nil {
		return ""
	}
	return *c.CoordUnit
}

// GetFill returns the fill value or the default.
func (c *Config) GetFill() bool {
	if c.Fill == nil {
		return true
	}
	return *c.Fill
}

// GetColumns returns the explicit column layout keyed by attribute, or nil
// to read the layout from each file's header.
func (c *Config) GetColumns() map[traj.Attr][]int {
	if len(c.Columns) == 0 {
		return nil
	}
	out := make(map[traj.Attr][]int, len(c.Columns))
	for name, cols := range c.Columns {
		a, _ := traj.ParseAttr(name)
		out[a] = append([]int(nil), cols...)
	}
	return out
}
