package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/GovindGNampoothiri/windCode/internal/artifacts"
	"github.com/GovindGNampoothiri/windCode/internal/config"
	"github.com/GovindGNampoothiri/windCode/internal/engine"
	"github.com/GovindGNampoothiri/windCode/internal/event"
	"github.com/GovindGNampoothiri/windCode/internal/infrastructure"
	"github.com/GovindGNampoothiri/windCode/internal/operations"
	"github.com/GovindGNampoothiri/windCode/internal/script"
	handlers "github.com/GovindGNampoothiri/windCode/internal/transport/http"
)

// Exit codes returned by the binaries
const (
	ExitOK      = 0
	ExitAborted = 1
	ExitConfig  = 2
)

// ConfigError marks a failure to build a usable configuration
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return "configuration: " + e.Err.Error() }

func (e *ConfigError) Unwrap() error { return e.Err }

// ExitCode maps a run error to the process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return ExitConfig
	}
	return ExitAborted
}

// Options select the configuration and override parts of it
type Options struct {
	ConfigPath string
	// Profile overrides run.profile when set
	Profile string
	// Input overrides run.input_file for the interactive profile and
	// run.input_pattern for the batch profile
	Input string
	// Stdout receives the raw engine echo; nil means os.Stdout
	Stdout io.Writer
	// Logger replaces the configured logger
	Logger *slog.Logger
	// Launcher replaces the engine launcher
	Launcher operations.Launcher
}

// Application is one configured analyser run
type Application struct {
	Config *config.Config
	Logger *slog.Logger
	RunID  string
	State  *operations.RunState
	OTel   *infrastructure.OTelProviders

	batch       *operations.Batch
	server      *handlers.Server
	traceFile   *os.File
	ownsLogFile bool

	closeOnce sync.Once
	closeErr  error
}

// LoadConfig loads the configuration and applies opts. Every failure is a
// ConfigError.
func LoadConfig(opts Options) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}

	if opts.Profile != "" {
		cfg.Run.Profile = opts.Profile
	}
	if opts.Input != "" {
		if cfg.Run.Profile == config.ProfileBatch {
			cfg.Run.InputPattern = opts.Input
		} else {
			cfg.Run.InputFile = opts.Input
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Err: err}
	}
	return cfg, nil
}

// NewApplication loads the configuration and wires every component
func NewApplication(opts Options) (*Application, error) {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return nil, err
	}
	return New(cfg, opts)
}

// New wires an application from a loaded configuration
func New(cfg *config.Config, opts Options) (*Application, error) {
	logger := opts.Logger
	if logger == nil {
		var err error
		if logger, err = infrastructure.InitializeLogger(cfg.Logging); err != nil {
			return nil, &ConfigError{Err: fmt.Errorf("failed to initialize logger: %w", err)}
		}
	}

	a := &Application{
		Config:      cfg,
		Logger:      logger,
		RunID:       infrastructure.GenerateRunID(),
		ownsLogFile: opts.Logger == nil,
	}
	a.State = operations.NewRunState(a.RunID, cfg.Run.Profile)

	if err := a.setupTelemetry(); err != nil {
		return nil, err
	}

	profile, err := script.ProfileByName(cfg.Run.Profile)
	if err != nil {
		return nil, a.fail(&ConfigError{Err: err})
	}
	params := script.DefaultParams()
	params.StartupScript = cfg.Engine.StartupScript
	params.CompileFiles = cfg.Engine.CompileFiles
	builder := script.NewBuilder(profile, params)

	windows, err := event.ParseWindows(cfg.Run.Windows)
	if err != nil {
		return nil, a.fail(&ConfigError{Err: err})
	}

	dumpRoot, err := a.dumpRoot()
	if err != nil {
		return nil, a.fail(&ConfigError{Err: err})
	}

	launcher := opts.Launcher
	if launcher == nil {
		launcher = a.sessionLauncher(opts.Stdout)
	}

	tracer, err := operations.NewAnalyserTracer(a.OTel)
	if err != nil {
		return nil, a.fail(err)
	}

	workDir := cfg.Engine.WorkDir
	if workDir == "" {
		workDir = "."
	}
	acc := artifacts.NewAccumulators(workDir, infrastructure.WithComponent(logger, "artifacts"), cfg.Run.TimeFile, cfg.Run.AnisotropyFile)

	a.batch = operations.NewBatch(operations.BatchConfig{
		Units:        operations.PlanUnits(cfg),
		StartCounter: cfg.Run.StartCounter,
		DumpRoot:     dumpRoot,
		WorkDir:      workDir,
		Analyser: operations.AnalyserConfig{
			StartupPrompt: engine.Literal(cfg.Engine.StartupPrompt),
			Vocabulary: engine.Vocabulary{
				Ready:     engine.Literal(cfg.Engine.ReadyPrompt),
				Input:     engine.Literal(cfg.Engine.InputPrompt),
				NoMoments: engine.Literal(cfg.Engine.NoMomentsMarker),
			},
			SyncTimeout: cfg.Engine.SyncTimeout,
			Windows:     windows,
		},
		ContinueOnEventFailure: cfg.Run.Profile == config.ProfileBatch,
	}, builder, launcher, acc, operations.AnalyserOptions{
		Tracer: tracer,
		State:  a.State,
		Logger: logger,
	})

	if addr := cfg.Telemetry.ListenAddr; addr != "" {
		router := handlers.NewRouter(a.State, a.OTel.PrometheusHTTP, logger)
		a.server = handlers.NewServer(addr, router, logger)
	}

	return a, nil
}

func (a *Application) setupTelemetry() error {
	otelCfg := infrastructure.DefaultOTelConfig()
	otelCfg.ServiceVersion = config.AppVersion
	otelCfg.EnableMetrics = a.Config.Telemetry.EnableMetrics

	if path := a.Config.Telemetry.TraceFile; path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return &ConfigError{Err: fmt.Errorf("failed to create trace directory: %w", err)}
		}
		f, err := os.Create(path)
		if err != nil {
			return &ConfigError{Err: fmt.Errorf("failed to open trace file: %w", err)}
		}
		a.traceFile = f
		otelCfg.TraceWriter = f
	}

	providers, err := infrastructure.InitializeOTel(otelCfg, a.Logger)
	if err != nil {
		return a.fail(fmt.Errorf("failed to initialize OpenTelemetry: %w", err))
	}
	a.OTel = providers
	return nil
}

// dumpRoot resolves where numeric dumps are written. The engine resolves
// relative paths against its own working directory, so the root is absolute.
func (a *Application) dumpRoot() (string, error) {
	root := a.Config.Run.DumpRoot
	if root == "" {
		root = a.Config.Engine.WorkDir
	}
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		root = wd
	}
	return filepath.Abs(root)
}

func (a *Application) sessionLauncher(stdout io.Writer) *operations.SessionLauncher {
	if stdout == nil {
		stdout = os.Stdout
	}
	cfg := a.Config
	l := &operations.SessionLauncher{
		Config: engine.SessionConfig{
			Command:     cfg.Engine.Command,
			Args:        cfg.Engine.Args,
			Dir:         cfg.Engine.WorkDir,
			SyncTimeout: cfg.Engine.SyncTimeout,
			CloseGrace:  cfg.Engine.CloseGrace,
			Echo:        stdout,
		},
		TranscriptLevel: cfg.Transcript.Level,
		Logger:          a.Logger,
	}
	if cfg.Transcript.Enabled {
		l.TranscriptPath = func(label string) string {
			return cfg.TranscriptPath(a.RunID, label)
		}
	}
	return l
}

// Run processes every configured listing. The status server, when
// configured, runs alongside and stops once the run ends.
func (a *Application) Run(ctx context.Context) error {
	ctx = infrastructure.WithRunID(ctx, a.RunID)
	a.Logger.InfoContext(ctx, "Analyser starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.String("profile", a.Config.Run.Profile),
		slog.String("engine", a.Config.Engine.Command))

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	defer stop()

	if a.server != nil {
		g.Go(func() error {
			return a.server.Run(runCtx)
		})
	}

	g.Go(func() error {
		defer stop()
		res, err := a.batch.Run(runCtx)
		a.logSummary(ctx, res, err)
		return err
	})

	return g.Wait()
}

func (a *Application) logSummary(ctx context.Context, res *operations.BatchResult, err error) {
	snap := a.State.Snapshot()
	attrs := []any{
		slog.String("status", string(snap.Status)),
		slog.Int("events_done", snap.EventsDone),
		slog.Int("events_failed", snap.EventsFailed),
		slog.Int("windows_skipped", snap.WindowsSkipped),
		slog.Int("records", snap.RecordsDone),
	}
	if res != nil {
		attrs = append(attrs, slog.Duration("duration", res.Duration))
	}
	if err != nil {
		infrastructure.WithError(a.Logger, err).ErrorContext(ctx, "Analyser stopped", attrs...)
		return
	}
	a.Logger.InfoContext(ctx, "Analyser finished", attrs...)
}

// Close flushes telemetry and closes files opened by New
func (a *Application) Close() error {
	a.closeOnce.Do(func() {
		var errs []error
		if a.OTel != nil {
			if err := a.OTel.Shutdown(context.Background()); err != nil {
				errs = append(errs, err)
			}
		}
		if a.traceFile != nil {
			if err := a.traceFile.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if a.ownsLogFile {
			if err := infrastructure.CloseLogFile(); err != nil {
				errs = append(errs, err)
			}
		}
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}

// fail releases what was opened so far and returns err
func (a *Application) fail(err error) error {
	_ = a.Close()
	return err
}
