package operations_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GovindGNampoothiri/windCode/internal/artifacts"
	"github.com/GovindGNampoothiri/windCode/internal/engine"
	"github.com/GovindGNampoothiri/windCode/internal/engine/testutil"
	"github.com/GovindGNampoothiri/windCode/internal/operations"
	"github.com/GovindGNampoothiri/windCode/internal/script"
	logtest "github.com/GovindGNampoothiri/windCode/internal/shared/testutil"
)

func TestNewAnalyserRequiresCollaborators(t *testing.T) {
	_, err := operations.NewAnalyser(operations.AnalyserConfig{}, nil, &testutil.Factory{}, artifacts.NewCounter(0), operations.AnalyserOptions{})
	require.Error(t, err)
	assert.Equal(t, operations.ErrorTypeValidation, operations.GetErrorType(err))
}

func TestProcessEventRunsEveryRecord(t *testing.T) {
	fa := &testutil.Factory{Setup: func(_ int, _ string, f *testutil.FakeEngine) {
		f.On(countCmd, plots("7"))
	}}
	state := operations.NewRunState("run-1", "interactive")
	a := newAnalyser(t, fa, artifacts.NewCounter(1), state)
	d := mustDate(t, "2001-05-03")

	res, err := a.ProcessEvent(context.Background(), d)
	require.NoError(t, err)

	assert.Equal(t, 7, res.Records)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, res.Dumps)
	assert.Zero(t, res.SkippedWindows)
	require.Len(t, res.Windows, 1)
	assert.Equal(t, operations.StepStatusCompleted, res.Windows[0].GetStatus())

	require.Len(t, fa.Launched(), 1)
	eng := fa.Launched()[0]
	assert.Equal(t, []string{d.String()}, fa.Labels)
	assert.Len(t, eng.SentMatching(dumpCmd), 7)
	for i := 0; i < 7; i++ {
		assert.Len(t, eng.SentMatching(fmt.Sprintf("el=ael[%d]", i)), 1, "record %d", i)
	}
	assert.Empty(t, eng.SentMatching("el=ael[7]"))
	assert.Contains(t, eng.SentMatching(dumpCmd)[0], "/data/dumps/")
	assert.Equal(t, 1, eng.CloseCount())

	snap := state.Snapshot()
	assert.Equal(t, 7, snap.RecordsDone)
	assert.Equal(t, 8, snap.NextDump)
	assert.Equal(t, 7, snap.TotalRecords)
}

func TestProcessEventCommandOrder(t *testing.T) {
	fa := &testutil.Factory{Setup: func(_ int, _ string, f *testutil.FakeEngine) {
		f.On(countCmd, plots("1"))
	}}
	a := newAnalyser(t, fa, artifacts.NewCounter(0), nil)

	_, err := a.ProcessEvent(context.Background(), mustDate(t, "1999-12-31"))
	require.NoError(t, err)

	sent := fa.Launched()[0].Sent()
	index := func(prefix string) int {
		for i, c := range sent {
			if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
				return i
			}
		}
		return -1
	}

	order := []string{"@./wind_3dp_pros/start_umn_3dp.pro", "date='123199'", loadCmd, calibrateCmd, prepCmd, countCmd, "el=ael[0]", dumpCmd}
	last := -1
	for _, p := range order {
		i := index(p)
		require.NotEqual(t, -1, i, "missing %q", p)
		assert.Greater(t, i, last, "%q out of order", p)
		last = i
	}
}

func TestProcessEventCalibrationSkips(t *testing.T) {
	tests := []struct {
		name   string
		reply  testutil.Reply
		reason string
	}{
		{
			name:   "no moments",
			reply:  testutil.Reply{Output: "Loading...\n", Marker: testutil.NoMomentsMarker},
			reason: operations.SkipReasonNoMoments,
		},
		{
			name:   "input prompt",
			reply:  testutil.Reply{Marker: testutil.InputPrompt},
			reason: operations.SkipReasonInputPrompt,
		},
		{
			name:   "late prompt",
			reply:  testutil.Reply{Output: "computing", Stall: true},
			reason: operations.SkipReasonTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := &testutil.Factory{Setup: func(_ int, _ string, f *testutil.FakeEngine) {
				f.On(calibrateCmd, tt.reply)
				f.On(countCmd, plots("3"))
			}}
			counter := artifacts.NewCounter(10)
			a := newAnalyser(t, fa, counter, nil)

			res, err := a.ProcessEvent(context.Background(), mustDate(t, "2001-05-03"))
			require.NoError(t, err)

			assert.Equal(t, 1, res.SkippedWindows)
			assert.Zero(t, res.Records)
			require.Len(t, res.Windows, 1)
			assert.Equal(t, operations.StepStatusSkipped, res.Windows[0].GetStatus())
			assert.Equal(t, tt.reason, res.Windows[0].Message)

			eng := fa.Launched()[0]
			assert.Empty(t, eng.SentMatching(prepCmd))
			assert.Empty(t, eng.SentMatching(countCmd))
			assert.Empty(t, eng.SentMatching(dumpCmd))
			assert.Equal(t, 10, counter.Peek())
			assert.Equal(t, 1, eng.CloseCount())
		})
	}
}

func TestProcessEventSkipKeepsSession(t *testing.T) {
	tests := []struct {
		name        string
		reply       testutil.Reply
		reason      string
		wantAnswers []string
	}{
		{
			name:   "no moments",
			reply:  testutil.Reply{Output: "% ", Marker: testutil.NoMomentsMarker},
			reason: operations.SkipReasonNoMoments,
		},
		{
			name:        "input prompt",
			reply:       testutil.Reply{Marker: testutil.InputPrompt},
			reason:      operations.SkipReasonInputPrompt,
			wantAnswers: []string{"retall"},
		},
		{
			name:   "late prompt",
			reply:  testutil.Reply{Output: "computing", Stall: true},
			reason: operations.SkipReasonTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := &testutil.Factory{Setup: func(_ int, _ string, f *testutil.FakeEngine) {
				f.On(calibrateCmd, tt.reply, testutil.Reply{})
				f.On(countCmd, plots("3"))
			}}
			a := newAnalyser(t, fa, artifacts.NewCounter(0), nil, "00:00:00", "12:00:00")

			res, err := a.ProcessEvent(context.Background(), mustDate(t, "2001-05-03"))
			require.NoError(t, err)

			require.Len(t, fa.Launched(), 1)
			require.Len(t, res.Windows, 2)
			assert.Equal(t, operations.StepStatusSkipped, res.Windows[0].GetStatus())
			assert.Equal(t, tt.reason, res.Windows[0].Message)
			assert.Equal(t, operations.StepStatusCompleted, res.Windows[1].GetStatus())
			assert.Equal(t, 3, res.Records)
			assert.Equal(t, []int{0, 1, 2}, res.Dumps)

			eng := fa.Launched()[0]
			if tt.wantAnswers == nil {
				assert.Empty(t, eng.Answers())
			} else {
				assert.Equal(t, tt.wantAnswers, eng.Answers())
			}
			loads := eng.SentMatching(loadCmd)
			require.Len(t, loads, 2)
			assert.Contains(t, loads[0], "'01-05-03/00:00:00'")
			assert.Contains(t, loads[1], "'01-05-03/12:00:00'")
			assert.Len(t, eng.SentMatching(countCmd), 1)
			assert.Len(t, eng.SentMatching(dumpCmd), 3)
		})
	}
}

func TestProcessEventFailures(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(f *testutil.FakeEngine)
		wantType    operations.ErrorType
		wantStep    string
		wantRecords int
	}{
		{
			name: "hung during record",
			setup: func(f *testutil.FakeEngine) {
				f.On(countCmd, plots("5"))
				f.On(dumpCmd, testutil.Reply{}, testutil.Reply{Timeout: true})
			},
			wantType:    operations.ErrorTypeSession,
			wantStep:    operations.StepRecord,
			wantRecords: 1,
		},
		{
			name: "hung at startup",
			setup: func(f *testutil.FakeEngine) {
				f.On("@", testutil.Reply{Timeout: true})
			},
			wantType: operations.ErrorTypeSession,
			wantStep: operations.StepStartup,
		},
		{
			name: "exited while loading",
			setup: func(f *testutil.FakeEngine) {
				f.On(loadCmd, testutil.Reply{Output: "Segmentation fault\n", Exit: true})
			},
			wantType: operations.ErrorTypeSession,
			wantStep: operations.StepLoad,
		},
		{
			name: "input prompt outside calibration",
			setup: func(f *testutil.FakeEngine) {
				f.On(loadCmd, testutil.Reply{Marker: testutil.InputPrompt})
			},
			wantType: operations.ErrorTypeProtocol,
			wantStep: operations.StepLoad,
		},
		{
			name: "calibrate never answers",
			setup: func(f *testutil.FakeEngine) {
				f.On(calibrateCmd, testutil.Reply{Output: "computing", Timeout: true})
			},
			wantType: operations.ErrorTypeSession,
			wantStep: operations.StepCalibrate,
		},
		{
			name: "input requests keep coming",
			setup: func(f *testutil.FakeEngine) {
				f.On(calibrateCmd, testutil.Reply{Marker: testutil.InputPrompt})
				f.On("retall", testutil.Reply{Marker: testutil.InputPrompt})
			},
			wantType: operations.ErrorTypeProtocol,
			wantStep: operations.StepCalibrate,
		},
		{
			name: "record count without digits",
			setup: func(f *testutil.FakeEngine) {
				f.On(countCmd, testutil.Reply{Output: "% Variable is undefined: AR_SIZE.\n"})
			},
			wantType: operations.ErrorTypeParse,
			wantStep: operations.StepRecordCount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := &testutil.Factory{Setup: func(_ int, _ string, f *testutil.FakeEngine) { tt.setup(f) }}
			a := newAnalyser(t, fa, artifacts.NewCounter(0), nil)

			res, err := a.ProcessEvent(context.Background(), mustDate(t, "2001-05-03"))
			require.Error(t, err)

			var opErr *operations.OperationError
			require.True(t, errors.As(err, &opErr))
			assert.Equal(t, tt.wantType, opErr.Type)
			assert.Equal(t, tt.wantStep, opErr.Step)
			assert.Equal(t, "2001-05-03", opErr.Event)
			assert.Equal(t, tt.wantRecords, res.Records)
			assert.Equal(t, 1, fa.Launched()[0].CloseCount())
		})
	}
}

func TestProcessEventHungKeepsCapturedOutput(t *testing.T) {
	fa := &testutil.Factory{Setup: func(_ int, _ string, f *testutil.FakeEngine) {
		f.On(loadCmd, testutil.Reply{Output: "partial output", Timeout: true})
	}}
	a := newAnalyser(t, fa, artifacts.NewCounter(0), nil)

	_, err := a.ProcessEvent(context.Background(), mustDate(t, "2001-05-03"))
	require.Error(t, err)
	assert.True(t, engine.IsType(err, engine.ErrorTypeHung))

	var se *engine.SessionError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Captured, "partial output")
}

func TestProcessEventStartFailure(t *testing.T) {
	fa := &testutil.Factory{StartErr: errors.New("idl: not found")}
	a := newAnalyser(t, fa, artifacts.NewCounter(0), nil)

	_, err := a.ProcessEvent(context.Background(), mustDate(t, "2001-05-03"))
	require.Error(t, err)
	assert.Equal(t, operations.ErrorTypeStartup, operations.GetErrorType(err))
	assert.False(t, operations.IsEventScoped(err))
	assert.Empty(t, fa.Launched())
}

func TestProcessEventCancelled(t *testing.T) {
	fa := &testutil.Factory{}
	a := newAnalyser(t, fa, artifacts.NewCounter(0), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.ProcessEvent(ctx, mustDate(t, "2001-05-03"))
	require.Error(t, err)
	assert.Equal(t, operations.ErrorTypeCancellation, operations.GetErrorType(err))
	require.Len(t, fa.Launched(), 1)
	assert.Equal(t, 1, fa.Launched()[0].CloseCount())
}

func TestProcessEventBatchProfile(t *testing.T) {
	fa := &testutil.Factory{Setup: func(_ int, _ string, f *testutil.FakeEngine) {
		f.On(countCmd, plots("2"))
	}}
	a, err := operations.NewAnalyser(analyserConfig(t), builder(script.Batch()), fa, artifacts.NewCounter(0),
		operations.AnalyserOptions{Logger: discardLogger()})
	require.NoError(t, err)

	res, err := a.ProcessEvent(context.Background(), mustDate(t, "2001-05-03"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Records)

	eng := fa.Launched()[0]
	assert.Len(t, eng.SentMatching(dumpCmd), 2)
	assert.Empty(t, eng.SentMatching("set_plot"))
	for _, c := range eng.SentMatching("dfra=") {
		assert.Contains(t, c, "[1e-17,1e-9]")
	}
}

func TestProcessEventLogsDataMissing(t *testing.T) {
	logger, logs := logtest.NewTestLogger(nil)
	fa := &testutil.Factory{Setup: func(_ int, _ string, f *testutil.FakeEngine) {
		f.On(calibrateCmd, testutil.Reply{Marker: testutil.InputPrompt})
	}}
	a, err := operations.NewAnalyser(analyserConfig(t), builder(script.Interactive()), fa, artifacts.NewCounter(0),
		operations.AnalyserOptions{Logger: logger})
	require.NoError(t, err)

	_, err = a.ProcessEvent(context.Background(), mustDate(t, "2001-05-03"))
	require.NoError(t, err)

	logtest.AssertLogged(t, logs, slog.LevelWarn, "DATA MISSING")
	recs := logs.Find("DATA MISSING")
	require.Len(t, recs, 1)
	assert.Equal(t, "2001-05-03", recs[0].Attrs["event"])
	assert.Equal(t, "00:00:00", recs[0].Attrs["window"])
	assert.Equal(t, operations.SkipReasonInputPrompt, recs[0].Attrs["reason"])
	logtest.AssertNoErrors(t, logs)
}
