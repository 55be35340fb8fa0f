package runstore

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trajalign/internal/timeutil"
)

func openTestStore(t *testing.T, clock timeutil.Clock) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"), clock)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun() *Run {
	return &Run{
		Experiment:    "exp1",
		Version:       "v0.1.0",
		Trajectories:  3,
		Median:        true,
		UnifyStartEnd: false,
		Best:          2,
		Worst:         0,
		LieDownAngle:  0.25,
		Duration:      1500 * time.Millisecond,
		ConfigJSON:    `{"median":true}`,
		References: []Reference{
			{Index: 0, File: "a.txt", Precision: 0.3},
			{Index: 1, File: "b.txt", Precision: math.NaN()},
			{Index: 2, File: "c.txt", Precision: 0.1},
		},
		Pairs: []Pair{
			{I: 0, J: 1, Angle: 0.5, Lag: -3, Score: 0.01},
			{I: 1, J: 0, Angle: -0.5, Lag: 3, Score: 0.01},
			{I: 0, J: 2, Angle: math.NaN(), Lag: 0, Score: math.Inf(1)},
		},
	}
}

func TestOpenMigrates(t *testing.T) {
	s := openTestStore(t, nil)

	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// reopening an up to date ledger is a no-op
	require.NoError(t, s.MigrateUp())
}

func TestMigrateDown(t *testing.T) {
	s := openTestStore(t, nil)
	require.NoError(t, s.MigrateDown())

	version, _, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	_, err = s.ListRuns(context.Background(), 0)
	assert.Error(t, err, "tables are gone")
}

func TestRecordAndGetRun(t *testing.T) {
	created := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)
	s := openTestStore(t, timeutil.NewMockClock(created))
	ctx := context.Background()

	run := sampleRun()
	require.NoError(t, s.RecordRun(ctx, run))
	require.NotEmpty(t, run.ID)
	assert.Equal(t, created, run.CreatedAt)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.Equal(t, "exp1", got.Experiment)
	assert.Equal(t, 3, got.Trajectories)
	assert.True(t, got.Median)
	assert.False(t, got.UnifyStartEnd)
	assert.Equal(t, 2, got.Best)
	assert.Equal(t, 0, got.Worst)
	assert.Equal(t, 0.25, got.LieDownAngle)
	assert.Equal(t, 1500*time.Millisecond, got.Duration)
	assert.JSONEq(t, `{"median":true}`, got.ConfigJSON)

	require.Len(t, got.References, 3)
	assert.Equal(t, "b.txt", got.References[1].File)
	assert.Equal(t, 0.3, got.References[0].Precision)
	assert.True(t, math.IsNaN(got.References[1].Precision))

	require.Len(t, got.Pairs, 3)
	assert.Equal(t, Pair{I: 0, J: 1, Angle: 0.5, Lag: -3, Score: 0.01}, got.Pairs[0])
	assert.True(t, math.IsNaN(got.Pairs[1].Angle), "undefined angle is stored as NULL")
	assert.True(t, math.IsNaN(got.Pairs[1].Score), "infinite score is stored as NULL")
	assert.Equal(t, 3, got.Pairs[2].Lag)
}

func TestRecordRunKeepsGivenID(t *testing.T) {
	s := openTestStore(t, nil)
	ctx := context.Background()

	run := sampleRun()
	run.ID = "fixed-id"
	run.ConfigJSON = ""
	require.NoError(t, s.RecordRun(ctx, run))

	got, err := s.GetRun(ctx, "fixed-id")
	require.NoError(t, err)
	assert.Equal(t, "{}", got.ConfigJSON)

	// the same ID cannot be recorded twice, and nothing of the second
	// attempt is kept
	again := sampleRun()
	again.ID = "fixed-id"
	again.References = append(again.References, Reference{Index: 9, File: "z.txt"})
	assert.Error(t, s.RecordRun(ctx, again))
	got, err = s.GetRun(ctx, "fixed-id")
	require.NoError(t, err)
	assert.Len(t, got.References, 3)
}

func TestGetRunNotFound(t *testing.T) {
	s := openTestStore(t, nil)
	_, err := s.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRuns(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s := openTestStore(t, clock)
	ctx := context.Background()

	var ids []string
	for _, exp := range []string{"first", "second", "third"} {
		run := sampleRun()
		run.Experiment = exp
		require.NoError(t, s.RecordRun(ctx, run))
		ids = append(ids, run.ID)
		clock.Advance(time.Minute)
	}

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{runs[0].ID, runs[1].ID, runs[2].ID})
	assert.Equal(t, "third", runs[0].Experiment)
	assert.Empty(t, runs[0].References)
	assert.Empty(t, runs[0].Pairs)

	runs, err = s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "second", runs[1].Experiment)
}

func TestNullFloat(t *testing.T) {
	tests := []struct {
		in    float64
		valid bool
	}{
		{1.5, true},
		{0, true},
		{math.NaN(), false},
		{math.Inf(1), false},
		{math.Inf(-1), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, nullFloat(tt.in).Valid, "%v", tt.in)
	}
	assert.True(t, math.IsNaN(fromNull(nullFloat(math.NaN()))))
}
