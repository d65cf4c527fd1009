package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GovindGNampoothiri/windCode/internal/config"
	"github.com/GovindGNampoothiri/windCode/internal/engine/testutil"
	"github.com/GovindGNampoothiri/windCode/internal/operations"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Engine.WorkDir = dir
	cfg.Run.Profile = config.ProfileBatch
	cfg.Run.InputPattern = filepath.Join(dir, "event_date_%d.txt")
	cfg.Run.OutputDir = filepath.Join(dir, "event_analyser_output")
	cfg.Run.FirstBatch = 1
	cfg.Run.BatchCount = 1
	cfg.Telemetry.EnableMetrics = true
	require.NoError(t, cfg.Validate())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "event_date_1.txt"), []byte("2001-05-03\n"), 0o644))
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func scriptedFactory() *testutil.Factory {
	return &testutil.Factory{Setup: func(_ int, _ string, f *testutil.FakeEngine) {
		f.On("print,total_plots", testutil.Reply{Output: "           1\n"})
	}}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitConfig, ExitCode(&ConfigError{Err: errors.New("bad")}))
	assert.Equal(t, ExitAborted, ExitCode(operations.NewIOError("listing", errors.New("missing"))))
}

func TestLoadConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "evdf.yaml")
	require.NoError(t, os.WriteFile(path, []byte("run:\n  profile: interactive\n  start_counter: 1\n"), 0o644))

	cfg, err := LoadConfig(Options{ConfigPath: path, Profile: config.ProfileBatch, Input: "dates_%d.txt"})
	require.NoError(t, err)
	assert.Equal(t, config.ProfileBatch, cfg.Run.Profile)
	assert.Equal(t, "dates_%d.txt", cfg.Run.InputPattern)
	assert.Equal(t, 1, cfg.Run.StartCounter)

	cfg, err = LoadConfig(Options{ConfigPath: path, Input: "dates.txt"})
	require.NoError(t, err)
	assert.Equal(t, "dates.txt", cfg.Run.InputFile)

	_, err = LoadConfig(Options{ConfigPath: path, Profile: "nightly"})
	require.Error(t, err)
	assert.Equal(t, ExitConfig, ExitCode(err))

	_, err = LoadConfig(Options{ConfigPath: filepath.Join(dir, "missing.yaml")})
	assert.Equal(t, ExitConfig, ExitCode(err))
}

func TestApplicationRun(t *testing.T) {
	cfg := testConfig(t)
	fa := scriptedFactory()

	a, err := New(cfg, Options{Logger: quietLogger(), Launcher: fa})
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Run(context.Background()))

	snap := a.State.Snapshot()
	assert.Equal(t, operations.RunStatusCompleted, snap.Status)
	assert.Equal(t, 1, snap.EventsDone)
	assert.Equal(t, 1, snap.RecordsDone)
	assert.Equal(t, a.RunID, snap.RunID)

	assert.FileExists(t, filepath.Join(cfg.Engine.WorkDir, "time_1.txt"))
	assert.FileExists(t, filepath.Join(cfg.Engine.WorkDir, "anisotropy_1.txt"))
	assert.DirExists(t, cfg.Run.OutputDir+"_1")

	require.Len(t, fa.Launched(), 1)
	dumps := fa.Launched()[0].SentMatching("cont2d_edited")
	require.Len(t, dumps, 1)
	// Dumps are absolute under the work dir
	assert.Contains(t, dumps[0], "'"+cfg.Engine.WorkDir+"/")
}

func TestApplicationRunAborts(t *testing.T) {
	cfg := testConfig(t)
	fa := &testutil.Factory{StartErr: errors.New("exec: \"idl\": executable file not found")}

	a, err := New(cfg, Options{Logger: quietLogger(), Launcher: fa})
	require.NoError(t, err)
	defer a.Close()

	err = a.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, ExitAborted, ExitCode(err))
	assert.Equal(t, operations.RunStatusFailed, a.State.Snapshot().Status)
}

func TestApplicationWithStatusServer(t *testing.T) {
	cfg := testConfig(t)
	cfg.Telemetry.ListenAddr = "127.0.0.1:0"

	a, err := New(cfg, Options{Logger: quietLogger(), Launcher: scriptedFactory()})
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.server)
	require.NoError(t, a.Run(context.Background()))
}

func TestApplicationTraceFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Telemetry.TraceFile = filepath.Join(t.TempDir(), "traces", "run.json")

	a, err := New(cfg, Options{Logger: quietLogger(), Launcher: scriptedFactory()})
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background()))
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	data, err := os.ReadFile(cfg.Telemetry.TraceFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "analyser.event")
}
