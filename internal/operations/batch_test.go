package operations_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GovindGNampoothiri/windCode/internal/artifacts"
	"github.com/GovindGNampoothiri/windCode/internal/config"
	"github.com/GovindGNampoothiri/windCode/internal/engine/testutil"
	"github.com/GovindGNampoothiri/windCode/internal/operations"
	"github.com/GovindGNampoothiri/windCode/internal/script"
)

func writeListing(t *testing.T, path string, lines ...string) {
	t.Helper()
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestPlanUnits(t *testing.T) {
	t.Run("interactive", func(t *testing.T) {
		cfg := config.Default()
		cfg.Run.Profile = config.ProfileInteractive
		cfg.Run.InputFile = "event_date.txt"
		cfg.Run.OutputDir = "out"

		units := operations.PlanUnits(cfg)
		require.Len(t, units, 1)
		assert.Equal(t, "event_date.txt", units[0].Listing)
		assert.Equal(t, "out", units[0].OutputDir)
		assert.False(t, units[0].Finalize)
	})

	t.Run("batch", func(t *testing.T) {
		cfg := config.Default()
		cfg.Run.Profile = config.ProfileBatch
		cfg.Run.InputPattern = "event_date_%d.txt"
		cfg.Run.OutputDir = "out"
		cfg.Run.FirstBatch = 3
		cfg.Run.BatchCount = 2

		units := operations.PlanUnits(cfg)
		require.Len(t, units, 2)
		assert.Equal(t, operations.Unit{Index: 3, Listing: "event_date_3.txt", OutputDir: "out_3", Finalize: true}, units[0])
		assert.Equal(t, operations.Unit{Index: 4, Listing: "event_date_4.txt", OutputDir: "out_4", Finalize: true}, units[1])
	})
}

func TestBatchRun(t *testing.T) {
	dir := t.TempDir()
	writeListing(t, filepath.Join(dir, "event_date_1.txt"), "2001-05-03", "", "2001-05-04")
	writeListing(t, filepath.Join(dir, "event_date_2.txt"), "2002-01-10 extra columns")

	units := []operations.Unit{
		{Index: 1, Listing: filepath.Join(dir, "event_date_1.txt"), OutputDir: filepath.Join(dir, "out_1"), Finalize: true},
		{Index: 2, Listing: filepath.Join(dir, "event_date_2.txt"), OutputDir: filepath.Join(dir, "out_2"), Finalize: true},
	}

	fa := &testutil.Factory{Setup: func(_ int, _ string, f *testutil.FakeEngine) {
		f.On(countCmd, plots("2"))
	}}
	acc := artifacts.NewAccumulators(dir, discardLogger(), "time.txt", "anisotropy.txt")
	state := operations.NewRunState("run", "batch")

	b := operations.NewBatch(operations.BatchConfig{
		Units:                  units,
		StartCounter:           1,
		DumpRoot:               "/data",
		Analyser:               analyserConfig(t),
		ContinueOnEventFailure: true,
	}, builder(script.Batch()), fa, acc, operations.AnalyserOptions{State: state, Logger: discardLogger()})

	res, err := b.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Runs, 2)
	assert.Len(t, res.Runs[0].Events, 2)
	assert.Len(t, res.Runs[1].Events, 1)
	assert.Equal(t, []int{1, 2}, res.Runs[0].Events[0].Dumps)
	assert.Equal(t, []int{3, 4}, res.Runs[0].Events[1].Dumps)
	// Counter restarts per listing
	assert.Equal(t, []int{1, 2}, res.Runs[1].Events[0].Dumps)

	assert.DirExists(t, filepath.Join(dir, "out_1"))
	assert.DirExists(t, filepath.Join(dir, "out_2"))
	for _, name := range []string{"time_1.txt", "anisotropy_1.txt", "time_2.txt", "anisotropy_2.txt"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	assert.NoFileExists(t, filepath.Join(dir, "time.txt"))
	require.Len(t, res.Finals, 2)

	dumps := fa.Launched()[2].SentMatching(dumpCmd)
	require.Len(t, dumps, 2)
	assert.Contains(t, dumps[0], "'"+filepath.Join(dir, "out_2", "1")+"'")

	snap := state.Snapshot()
	assert.Equal(t, operations.RunStatusCompleted, snap.Status)
	assert.Equal(t, 2, snap.Batch)
	assert.Equal(t, 3, snap.EventsDone)
}

func TestBatchRunMissingListing(t *testing.T) {
	dir := t.TempDir()
	state := operations.NewRunState("run", "batch")
	b := operations.NewBatch(operations.BatchConfig{
		Units:    []operations.Unit{{Index: 1, Listing: filepath.Join(dir, "missing.txt"), OutputDir: filepath.Join(dir, "out_1"), Finalize: true}},
		Analyser: analyserConfig(t),
	}, builder(script.Batch()), &testutil.Factory{}, artifacts.NewAccumulators(dir, discardLogger(), "time.txt"),
		operations.AnalyserOptions{State: state, Logger: discardLogger()})

	_, err := b.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, operations.ErrorTypeIO, operations.GetErrorType(err))
	assert.Equal(t, operations.RunStatusFailed, state.Snapshot().Status)
	assert.NoFileExists(t, filepath.Join(dir, "time_1.txt"))
}

func TestBatchRunAbortSkipsFinalize(t *testing.T) {
	dir := t.TempDir()
	writeListing(t, filepath.Join(dir, "event_date_1.txt"), "2001-05-03")

	fa := &testutil.Factory{Setup: func(_ int, _ string, f *testutil.FakeEngine) {
		f.On(loadCmd, testutil.Reply{Marker: testutil.InputPrompt})
	}}
	state := operations.NewRunState("run", "batch")
	b := operations.NewBatch(operations.BatchConfig{
		Units:                  []operations.Unit{{Index: 1, Listing: filepath.Join(dir, "event_date_1.txt"), OutputDir: filepath.Join(dir, "out_1"), Finalize: true}},
		Analyser:               analyserConfig(t),
		ContinueOnEventFailure: true,
	}, builder(script.Batch()), fa, artifacts.NewAccumulators(dir, discardLogger(), "time.txt"),
		operations.AnalyserOptions{State: state, Logger: discardLogger()})

	res, err := b.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, operations.ErrorTypeProtocol, operations.GetErrorType(err))
	assert.Empty(t, res.Finals)
	assert.FileExists(t, filepath.Join(dir, "time.txt"))
	assert.Equal(t, operations.RunStatusFailed, state.Snapshot().Status)
}

func TestBatchRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state := operations.NewRunState("run", "batch")
	b := operations.NewBatch(operations.BatchConfig{
		Units:    []operations.Unit{{Index: 1, Listing: "unused.txt"}},
		Analyser: analyserConfig(t),
	}, builder(script.Batch()), &testutil.Factory{}, artifacts.NewAccumulators(t.TempDir(), discardLogger()),
		operations.AnalyserOptions{State: state, Logger: discardLogger()})

	_, err := b.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, operations.ErrorTypeCancellation, operations.GetErrorType(err))
	assert.Equal(t, operations.RunStatusCancelled, state.Snapshot().Status)
}

func TestBatchRunRelativeOutputDirUnderWorkDir(t *testing.T) {
	workDir := t.TempDir()
	writeListing(t, filepath.Join(workDir, "event_date_1.txt"), "2001-05-03")

	fa := &testutil.Factory{Setup: func(_ int, _ string, f *testutil.FakeEngine) {
		f.On(countCmd, plots("1"))
	}}
	b := operations.NewBatch(operations.BatchConfig{
		Units:    []operations.Unit{{Index: 1, Listing: filepath.Join(workDir, "event_date_1.txt"), OutputDir: "out_1", Finalize: true}},
		DumpRoot: workDir,
		WorkDir:  workDir,
		Analyser: analyserConfig(t),
	}, builder(script.Batch()), fa, artifacts.NewAccumulators(workDir, discardLogger(), "time.txt"),
		operations.AnalyserOptions{Logger: discardLogger()})

	_, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.DirExists(t, filepath.Join(workDir, "out_1"))
	// not relative to the test's own directory
	assert.NoDirExists(t, "out_1")
}
