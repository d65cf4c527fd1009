package operations_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/GovindGNampoothiri/windCode/internal/artifacts"
	"github.com/GovindGNampoothiri/windCode/internal/engine"
	"github.com/GovindGNampoothiri/windCode/internal/engine/testutil"
	"github.com/GovindGNampoothiri/windCode/internal/event"
	"github.com/GovindGNampoothiri/windCode/internal/operations"
	"github.com/GovindGNampoothiri/windCode/internal/script"
)

const (
	calibrateCmd = "pesa_low_moment_calibrate"
	countCmd     = "print,total_plots"
	loadCmd      = "load_3dp_data"
	dumpCmd      = "cont2d_edited"
	prepCmd      = "dat1=get_3dp_structs"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func vocabulary() engine.Vocabulary {
	return engine.Vocabulary{
		Ready:     engine.Literal(testutil.ReadyPrompt),
		Input:     engine.Literal(testutil.InputPrompt),
		NoMoments: engine.Literal(testutil.NoMomentsMarker),
	}
}

func analyserConfig(t *testing.T, windows ...string) operations.AnalyserConfig {
	t.Helper()
	ws, err := event.ParseWindows(windows)
	require.NoError(t, err)
	return operations.AnalyserConfig{
		StartupPrompt: engine.Literal(testutil.StartupPrompt),
		Vocabulary:    vocabulary(),
		SyncTimeout:   time.Second,
		Windows:       ws,
		Layout:        artifacts.Layout{OutputDir: "event_analyser_output", DumpRoot: "/data/dumps"},
	}
}

func builder(profile script.Profile) *script.Builder {
	return script.NewBuilder(profile.WithoutDelays(), script.DefaultParams())
}

// plots scripts the record count reply
func plots(n string) testutil.Reply {
	return testutil.Reply{Output: "print,total_plots\n           " + n + "\n"}
}

func newAnalyser(t *testing.T, fa *testutil.Factory, counter *artifacts.Counter, state *operations.RunState, windows ...string) *operations.Analyser {
	t.Helper()
	a, err := operations.NewAnalyser(analyserConfig(t, windows...), builder(script.Interactive()), fa, counter,
		operations.AnalyserOptions{State: state, Logger: discardLogger()})
	require.NoError(t, err)
	return a
}

func mustDate(t *testing.T, s string) event.Date {
	t.Helper()
	d, err := event.Parse(s)
	require.NoError(t, err)
	return d
}
