package app

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/GovindGNampoothiri/windCode/internal/config"
)

// Main parses args, runs the analyser and returns the exit code. profile is
// the binary's default; --profile overrides it.
func Main(name string, args []string, profile string, stderr io.Writer) int {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to the YAML configuration (default: evdf.yaml or configs/evdf.yaml)")
	profileFlag := fs.String("profile", profile, "run profile: interactive or batch")
	input := fs.String("input", "", "event listing; for the batch profile a pattern with %d")
	version := fs.Bool("version", false, "print the version and exit")
	if err := fs.Parse(args); err != nil {
		return ExitConfig
	}

	if *version {
		fmt.Fprintf(stderr, "%s %s\n", config.AppName, config.AppVersion)
		return ExitOK
	}

	a, err := NewApplication(Options{
		ConfigPath: *configPath,
		Profile:    *profileFlag,
		Input:      *input,
	})
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", name, err)
		return ExitCode(err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = a.Run(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", name, err)
	}
	return ExitCode(err)
}
