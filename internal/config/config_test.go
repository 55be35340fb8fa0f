package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trajalign/internal/traj"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())

	if cfg.Median == nil || *cfg.Median {
		t.Errorf("Expected Median false, got %v", cfg.Median)
	}
	if cfg.Fill == nil || !*cfg.Fill {
		t.Errorf("Expected Fill true, got %v", cfg.Fill)
	}
	assert.Equal(t, 0.1, cfg.GetRefineFraction())
	assert.Equal(t, 100, cfg.GetRANSACTrials())
	assert.Equal(t, uint64(42), cfg.GetRANSACSeed())
	assert.Equal(t, ".txt", cfg.GetPattern())
	assert.Equal(t, "#", cfg.GetCommentChar())
	assert.Equal(t, DefaultFimaxFilter, cfg.GetFimaxFilter())
	assert.Nil(t, cfg.GetColumns())
}

func TestDefaultsFileMatchesDefault(t *testing.T) {
	t.Parallel()

	cfg := MustLoadDefaultConfig()
	def := Default()
	assert.Equal(t, def.GetMedian(), cfg.GetMedian())
	assert.Equal(t, def.GetUnifyStartEnd(), cfg.GetUnifyStartEnd())
	assert.Equal(t, def.GetMaxFrame(), cfg.GetMaxFrame())
	assert.Equal(t, def.GetRefineFraction(), cfg.GetRefineFraction())
	assert.Equal(t, def.GetRANSACSeed(), cfg.GetRANSACSeed())
	assert.Equal(t, def.GetPattern(), cfg.GetPattern())
	assert.Equal(t, def.GetFill(), cfg.GetFill())
	assert.InDeltaSlice(t, def.GetFimaxFilter(), cfg.GetFimaxFilter(), 1e-15)
}

func TestGettersDoNotAlias(t *testing.T) {
	t.Parallel()

	cfg := Empty()
	f := cfg.GetFimaxFilter()
	f[0] = 99
	assert.NotEqual(t, 99.0, DefaultFimaxFilter[0])
}

func TestLoad(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "json",
			file: "run.json",
			content: `{
  "median": true,
  "max_frame": 500,
  "delta_t": 0.2,
  "t_unit": "s",
  "coord_unit": "pxl",
  "columns": {"frames": [0], "coord": [1, 2], "f": [3]}
}`,
		},
		{
			name: "yaml",
			file: "run.yaml",
			content: `median: true
max_frame: 500
delta_t: 0.2
t_unit: s
coord_unit: pxl
columns:
  frames: [0]
  coord: [1, 2]
  f: [3]
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			cfg, err := Load(path)
			require.NoError(t, err)
			assert.True(t, cfg.GetMedian())
			assert.Equal(t, 500, cfg.GetMaxFrame())
			assert.Equal(t, 0.2, cfg.GetDeltaT())
			assert.Equal(t, "s", cfg.GetTUnit())
			// omitted fields keep their defaults
			assert.True(t, cfg.GetFill())
			assert.Equal(t, ".txt", cfg.GetPattern())
			assert.Equal(t, map[traj.Attr][]int{
				traj.Frames: {0},
				traj.Coord:  {1, 2},
				traj.F:      {3},
			}, cfg.GetColumns())
		})
	}
}

func TestLoadRejects(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return path
	}

	_, err := Load(write("run.toml", "median = true"))
	assert.ErrorContains(t, err, "extension")

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	_, err = Load(write("big.json", `{"pattern": "`+strings.Repeat("a", 1024*1024)+`"}`))
	assert.ErrorContains(t, err, "too large")

	_, err = Load(write("bad.json", `{"median": "yes"}`))
	assert.ErrorContains(t, err, "parse")

	_, err = Load(write("bad.yaml", "median: [1, 2"))
	assert.ErrorContains(t, err, "parse")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  *Config
	}{
		{"negative max_frame", &Config{MaxFrame: ptrInt(-1)}},
		{"negative workers", &Config{Workers: ptrInt(-2)}},
		{"zero refine_fraction", &Config{RefineFraction: ptrFloat64(0)}},
		{"refine_fraction above one", &Config{RefineFraction: ptrFloat64(1.5)}},
		{"empty fimax_filter", &Config{FimaxFilter: []float64{}}},
		{"no ransac trials", &Config{RANSACTrials: ptrInt(0)}},
		{"empty pattern", &Config{Pattern: ptrString("")}},
		{"blank comment_char", &Config{CommentChar: ptrString(" ")}},
		{"delta_t without unit", &Config{DeltaT: ptrFloat64(0.1)}},
		{"negative delta_t", &Config{DeltaT: ptrFloat64(-1), TUnit: ptrString("s")}},
		{
			"delta_t with a time column",
			&Config{DeltaT: ptrFloat64(0.1), TUnit: ptrString("s"), Columns: map[string][]int{"t": {0}}},
		},
		{"unknown column", &Config{Columns: map[string][]int{"speed": {0}}}},
		{"coord needs two columns", &Config{Columns: map[string][]int{"coord": {1}}, CoordUnit: ptrString("um")}},
		{"negative column", &Config{Columns: map[string][]int{"f": {-1}}}},
		{"coord without unit", &Config{Columns: map[string][]int{"coord": {1, 2}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, tt.cfg.Validate(), traj.ErrConfiguration)
		})
	}

	ok := &Config{
		DeltaT:    ptrFloat64(0.1),
		TUnit:     ptrString("s"),
		CoordUnit: ptrString("um"),
		Columns:   map[string][]int{"frames": {0}, "coord": {1, 2}},
	}
	assert.NoError(t, ok.Validate())
}
