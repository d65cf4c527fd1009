package operations

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/GovindGNampoothiri/windCode/internal/artifacts"
	"github.com/GovindGNampoothiri/windCode/internal/config"
	"github.com/GovindGNampoothiri/windCode/internal/event"
	"github.com/GovindGNampoothiri/windCode/internal/infrastructure"
	"github.com/GovindGNampoothiri/windCode/internal/script"
)

// Unit is one listing processed with its own output directory and counter
type Unit struct {
	Index     int    `json:"index"`
	Listing   string `json:"listing"`
	OutputDir string `json:"output_dir"`
	// Finalize renames the accumulators with the unit index when done
	Finalize bool `json:"finalize"`
}

// PlanUnits returns the listings a configuration covers. The interactive
// profile reads a single listing; the batch profile reads one numbered
// listing per index.
func PlanUnits(cfg *config.Config) []Unit {
	if cfg.Run.Profile == config.ProfileInteractive {
		return []Unit{{
			Index:     cfg.Run.FirstBatch,
			Listing:   cfg.Run.InputFile,
			OutputDir: cfg.OutputDirFor(cfg.Run.FirstBatch),
		}}
	}

	units := make([]Unit, 0, cfg.Run.BatchCount)
	for i := cfg.Run.FirstBatch; i < cfg.Run.FirstBatch+cfg.Run.BatchCount; i++ {
		units = append(units, Unit{
			Index:     i,
			Listing:   cfg.InputFileFor(i),
			OutputDir: cfg.OutputDirFor(i),
			Finalize:  true,
		})
	}
	return units
}

// BatchConfig describes a whole run
type BatchConfig struct {
	Units        []Unit
	StartCounter int
	// DumpRoot is the absolute directory numeric dumps are written under
	DumpRoot string
	// WorkDir is the engine's working directory; relative output dirs live
	// under it
	WorkDir  string
	Analyser AnalyserConfig
	// ContinueOnEventFailure moves on to the next date after a hung or
	// exited session
	ContinueOnEventFailure bool
}

// Batch runs every unit in order
type Batch struct {
	cfg          BatchConfig
	builder      *script.Builder
	launcher     Launcher
	accumulators *artifacts.Accumulators
	tracer       *AnalyserTracer
	state        *RunState
	logger       *slog.Logger
}

// NewBatch creates a batch
func NewBatch(cfg BatchConfig, builder *script.Builder, launcher Launcher, accumulators *artifacts.Accumulators, opts AnalyserOptions) *Batch {
	logger := opts.Logger
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Batch{
		cfg:          cfg,
		builder:      builder,
		launcher:     launcher,
		accumulators: accumulators,
		tracer:       opts.Tracer,
		state:        opts.State,
		logger:       infrastructure.WithComponent(logger, "batch"),
	}
}

// BatchResult holds one RunResult per unit
type BatchResult struct {
	Units    []Unit        `json:"units"`
	Runs     []*RunResult  `json:"runs"`
	Finals   [][]string    `json:"finalized,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Run processes each unit. The counter restarts for every listing and the
// accumulators are truncated before it and finalized after it.
func (b *Batch) Run(ctx context.Context) (result *BatchResult, err error) {
	ctx = infrastructure.EnsureRunID(ctx)
	start := time.Now()
	result = &BatchResult{}
	b.state.Start()
	defer func() {
		result.Duration = time.Since(start)
		switch {
		case err == nil:
			b.state.Complete()
		case errors.Is(err, context.Canceled) || GetErrorType(err) == ErrorTypeCancellation:
			b.state.Cancel()
		default:
			b.state.Fail(err)
		}
	}()

	for _, u := range b.cfg.Units {
		if err := ctx.Err(); err != nil {
			return result, NewCancellationError("batch", err)
		}

		run, err := b.runUnit(ctx, u)
		result.Units = append(result.Units, u)
		if run != nil {
			result.Runs = append(result.Runs, run)
		}
		if err != nil {
			return result, err
		}

		if u.Finalize {
			renamed, err := b.accumulators.Finalize(u.Index)
			if err != nil {
				return result, NewIOError("finalize", err)
			}
			result.Finals = append(result.Finals, renamed)
		}
	}

	b.logger.InfoContext(ctx, "Run complete",
		slog.Int("units", len(result.Units)),
		slog.Duration("duration", time.Since(start)))
	return result, nil
}

// outputPath resolves dir as the engine sees it
func (b *Batch) outputPath(dir string) string {
	if filepath.IsAbs(dir) || b.cfg.WorkDir == "" {
		return dir
	}
	return filepath.Join(b.cfg.WorkDir, dir)
}

func (b *Batch) runUnit(ctx context.Context, u Unit) (*RunResult, error) {
	log := b.logger.With(slog.Int("batch", u.Index), slog.String("listing", u.Listing))
	b.state.BeginBatch(u.Index, u.Listing)

	dates, err := event.ReadListingFile(u.Listing)
	if err != nil {
		return nil, NewIOError("listing", err)
	}
	if err := b.accumulators.Reset(); err != nil {
		return nil, NewIOError("accumulators", err)
	}
	if err := artifacts.EnsureDir(b.outputPath(u.OutputDir)); err != nil {
		return nil, NewIOError("output_dir", err)
	}

	counter := artifacts.NewCounter(b.cfg.StartCounter)
	acfg := b.cfg.Analyser
	acfg.Layout = artifacts.Layout{OutputDir: u.OutputDir, DumpRoot: b.cfg.DumpRoot}

	analyser, err := NewAnalyser(acfg, b.builder, b.launcher, counter, AnalyserOptions{
		Tracer: b.tracer,
		State:  b.state,
		Logger: b.logger,
	})
	if err != nil {
		return nil, err
	}

	log.InfoContext(ctx, "Processing listing",
		slog.Int("dates", len(dates)),
		slog.String("output_dir", u.OutputDir))

	runner := NewRunner(analyser, b.cfg.ContinueOnEventFailure, b.state, b.logger)
	return runner.Run(ctx, dates)
}
