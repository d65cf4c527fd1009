package operations_test

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GovindGNampoothiri/windCode/internal/artifacts"
	"github.com/GovindGNampoothiri/windCode/internal/engine"
	"github.com/GovindGNampoothiri/windCode/internal/operations"
	"github.com/GovindGNampoothiri/windCode/internal/script"
)

// TestConsoleProcess is not a real test. The session tests below re-execute
// the test binary with it to play an analysis console whose calibration
// replies follow CONSOLE_CALIBRATE, one comma-separated outcome per call.
func TestConsoleProcess(t *testing.T) {
	if os.Getenv("GO_WANT_CONSOLE_PROCESS") != "1" {
		return
	}
	outcomes := strings.Split(os.Getenv("CONSOLE_CALIBRATE"), ",")
	stall, _ := time.ParseDuration(os.Getenv("CONSOLE_STALL"))

	fmt.Print("IDL Version 8.5 (linux x86_64 m64).\nIDL> ")
	calls := 0
	reading := false
	in := bufio.NewScanner(os.Stdin)
	for in.Scan() {
		line := strings.TrimSpace(in.Text())
		if reading {
			reading = false
			fmt.Print("% READ: Input conversion error.\nUMN> ")
			continue
		}
		switch {
		case strings.HasPrefix(line, calibrateCmd):
			outcome := "ready"
			if calls < len(outcomes) {
				outcome = outcomes[calls]
			}
			calls++
			switch outcome {
			case "nomoments":
				fmt.Print("% No ion moments available for this interval\nUMN> ")
			case "input":
				fmt.Print("Please enter a value: ")
				reading = true
			case "stall":
				fmt.Print("computing\n")
				time.Sleep(stall)
				fmt.Print("UMN> ")
			default:
				fmt.Print("UMN> ")
			}
		case strings.HasPrefix(line, countCmd):
			fmt.Print("           3\nUMN> ")
		default:
			fmt.Print("UMN> ")
		}
	}
	os.Exit(0)
}

func consoleLauncher(outcomes string, syncTimeout time.Duration) *operations.SessionLauncher {
	return &operations.SessionLauncher{
		Config: engine.SessionConfig{
			Command: os.Args[0],
			Args:    []string{"-test.run=TestConsoleProcess", "--"},
			Env: []string{
				"GO_WANT_CONSOLE_PROCESS=1",
				"CONSOLE_CALIBRATE=" + outcomes,
				"CONSOLE_STALL=" + (syncTimeout * 3 / 2).String(),
			},
			SyncTimeout: syncTimeout,
			CloseGrace:  300 * time.Millisecond,
		},
		Logger: discardLogger(),
	}
}

func TestProcessEventSkipWithSession(t *testing.T) {
	if testing.Short() {
		t.Skip("starts engine processes")
	}

	tests := []struct {
		name    string
		outcome string
		reason  string
	}{
		{"no moments", "nomoments", operations.SkipReasonNoMoments},
		{"input prompt", "input", operations.SkipReasonInputPrompt},
		{"late prompt", "stall", operations.SkipReasonTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const syncTimeout = 2 * time.Second
			cfg := analyserConfig(t, "00:00:00", "12:00:00")
			cfg.SyncTimeout = syncTimeout

			a, err := operations.NewAnalyser(cfg, builder(script.Interactive()), consoleLauncher(tt.outcome+",ready", syncTimeout),
				artifacts.NewCounter(0), operations.AnalyserOptions{Logger: discardLogger()})
			require.NoError(t, err)

			res, err := a.ProcessEvent(context.Background(), mustDate(t, "2001-05-03"))
			require.NoError(t, err)

			require.Len(t, res.Windows, 2)
			assert.Equal(t, 1, res.SkippedWindows)
			assert.Equal(t, tt.reason, res.Windows[0].Message)
			assert.Equal(t, operations.StepStatusCompleted, res.Windows[1].GetStatus())
			assert.Equal(t, 3, res.Records)
			assert.Equal(t, []int{0, 1, 2}, res.Dumps)
		})
	}
}
