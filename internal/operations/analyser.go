package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/GovindGNampoothiri/windCode/internal/artifacts"
	"github.com/GovindGNampoothiri/windCode/internal/engine"
	"github.com/GovindGNampoothiri/windCode/internal/event"
	"github.com/GovindGNampoothiri/windCode/internal/infrastructure"
	"github.com/GovindGNampoothiri/windCode/internal/script"
)

// Step names used in errors, logs and await metrics
const (
	StepStartup     = "startup"
	StepSetup       = "setup"
	StepLoad        = "load"
	StepCalibrate   = "calibrate"
	StepPrep        = "electron_prep"
	StepRecordCount = "record_count"
	StepRecord      = "record"
)

// Launcher starts one engine per event. label names the event in
// transcripts and logs.
type Launcher interface {
	Launch(ctx context.Context, label string) (engine.Engine, error)
}

// AnalyserConfig holds what the analyser needs to talk to the engine
type AnalyserConfig struct {
	StartupPrompt engine.Pattern
	Vocabulary    engine.Vocabulary
	// SyncTimeout bounds every wait; zero uses the engine default
	SyncTimeout time.Duration
	Windows     []event.Window
	Layout      artifacts.Layout
}

// Analyser processes event dates one at a time, each in its own session
type Analyser struct {
	cfg      AnalyserConfig
	builder  *script.Builder
	launcher Launcher
	counter  *artifacts.Counter
	tracer   *AnalyserTracer
	state    *RunState
	logger   *slog.Logger
}

// AnalyserOptions carries the optional collaborators
type AnalyserOptions struct {
	Tracer *AnalyserTracer
	State  *RunState
	Logger *slog.Logger
}

// NewAnalyser creates an analyser. counter is shared by every event of the
// run so dump numbers never repeat.
func NewAnalyser(cfg AnalyserConfig, builder *script.Builder, launcher Launcher, counter *artifacts.Counter, opts AnalyserOptions) (*Analyser, error) {
	if builder == nil || launcher == nil || counter == nil {
		return nil, NewValidationError("analyser", "builder, launcher and counter are required")
	}
	if len(cfg.Windows) == 0 {
		cfg.Windows = event.DefaultWindows()
	}

	logger := opts.Logger
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	tracer := opts.Tracer
	if tracer == nil {
		var err error
		if tracer, err = NewAnalyserTracer(nil); err != nil {
			return nil, err
		}
	}

	return &Analyser{
		cfg:      cfg,
		builder:  builder,
		launcher: launcher,
		counter:  counter,
		tracer:   tracer,
		state:    opts.State,
		logger:   infrastructure.WithComponent(logger, "analyser"),
	}, nil
}

// EventResult summarizes one processed date
type EventResult struct {
	Date           event.Date    `json:"date"`
	Windows        []*StepState  `json:"windows"`
	Records        int           `json:"records"`
	SkippedWindows int           `json:"skipped_windows"`
	Dumps          []int         `json:"dumps"`
	Duration       time.Duration `json:"duration"`
}

// ProcessEvent runs the full sequence for one date. The session is closed
// exactly once on every path. Windows whose calibration does not reach the
// ready prompt are skipped; any other engine failure ends the event.
func (a *Analyser) ProcessEvent(ctx context.Context, d event.Date) (res *EventResult, err error) {
	start := time.Now()
	date := d.String()
	res = &EventResult{Date: d}

	ctx, span := a.tracer.TraceEvent(ctx, date, a.builder.Profile.Name)
	defer func() {
		res.Duration = time.Since(start)
		a.tracer.RecordEventCompletion(ctx, span, res, res.Duration, err)
		span.End()
	}()

	log := a.logger.With(slog.String("event", date))
	a.state.BeginEvent(date)
	log.InfoContext(ctx, "Processing event",
		slog.Int("windows", len(a.cfg.Windows)),
		slog.Int("next_dump", a.counter.Peek()))

	eng, err := a.launcher.Launch(ctx, date)
	a.tracer.RecordSessionStart(ctx, err)
	if err != nil {
		return res, WrapEngineError(StepStartup, date, "", err)
	}
	defer func() {
		if cerr := eng.Close(); cerr != nil {
			log.WarnContext(ctx, "Engine close failed", slog.String("error", cerr.Error()))
		}
		if err != nil {
			a.tracer.RecordSessionFailure(ctx, err)
		}
	}()

	if err := a.prepare(ctx, eng, d); err != nil {
		return res, err
	}

	for i, w := range a.cfg.Windows {
		st := NewStepState(fmt.Sprintf("window_%d", i), w.Start)
		res.Windows = append(res.Windows, st)
		st.Start()
		a.state.BeginWindow(w.Start)

		records, skipped, err := a.processWindow(ctx, eng, d, w, res)
		if err != nil {
			st.Fail(err)
			return res, err
		}
		if skipped != "" {
			st.Skip(skipped)
			res.SkippedWindows++
			a.state.WindowSkipped()
			a.tracer.RecordWindowSkipped(ctx, w.Start, skipped)
			continue
		}
		st.SetMetadata("records", records)
		st.Complete()
	}

	log.InfoContext(ctx, "Event processed",
		slog.Int("records", res.Records),
		slog.Int("skipped_windows", res.SkippedWindows),
		slog.Duration("duration", time.Since(start)))
	return res, nil
}

// prepare answers the startup prompt and runs the per-event setup
func (a *Analyser) prepare(ctx context.Context, eng engine.Engine, d event.Date) error {
	date := d.String()

	began := time.Now()
	_, err := eng.Await(ctx, []engine.Pattern{a.cfg.StartupPrompt}, a.cfg.SyncTimeout)
	a.tracer.RecordAwait(ctx, StepStartup, time.Since(began))
	if err != nil {
		if engine.IsType(err, engine.ErrorTypeTimeout) {
			err = engine.NewHungError("", err)
		}
		return WrapEngineError(StepStartup, date, "", err)
	}

	if _, err := a.expectAll(ctx, eng, StepStartup, a.builder.Startup()); err != nil {
		return WrapEngineError(StepStartup, date, "", err)
	}
	if _, err := a.expectAll(ctx, eng, StepSetup, a.builder.Setup(d, a.cfg.Layout.OutputDir)); err != nil {
		return WrapEngineError(StepSetup, date, "", err)
	}
	return nil
}

// processWindow loads and calibrates one window, then runs every record.
// A non-empty skip reason means the window was abandoned at calibration.
func (a *Analyser) processWindow(ctx context.Context, eng engine.Engine, d event.Date, w event.Window, res *EventResult) (records int, skip string, err error) {
	date := d.String()
	log := a.logger.With(slog.String("event", date), slog.String("window", w.Start))

	if _, err := a.expectAll(ctx, eng, StepLoad, []script.Command{a.builder.Load(d, w)}); err != nil {
		return 0, "", WrapEngineError(StepLoad, date, w.Start, err)
	}

	if err := a.calibrate(ctx, eng); err != nil {
		if engine.IsSkippable(err) {
			skip = skipReason(err)
			log.WarnContext(ctx, "DATA MISSING, skipping window", slog.String("reason", skip))
			return 0, skip, nil
		}
		return 0, "", WrapEngineError(StepCalibrate, date, w.Start, err)
	}

	if _, err := a.expectAll(ctx, eng, StepPrep, a.builder.ElectronPrep()); err != nil {
		return 0, "", WrapEngineError(StepPrep, date, w.Start, err)
	}

	m, err := a.expectAll(ctx, eng, StepRecordCount, a.builder.RecordCount())
	if err != nil {
		return 0, "", WrapEngineError(StepRecordCount, date, w.Start, err)
	}
	total, err := engine.LastInteger(m.Before)
	if err != nil {
		return 0, "", NewParseError(StepRecordCount, date, w.Start, err)
	}

	a.state.SetTotalRecords(total)
	tracker := NewProgressTracker(date+"/"+w.Start, total)
	log.InfoContext(ctx, "Records found", slog.Int("total", total))

	for i := 0; i < total; i++ {
		dump := a.counter.Next()
		in := script.RecordInput{
			Index:      i,
			PlotPrefix: a.cfg.Layout.PlotPrefix(d, i),
			DumpPath:   a.cfg.Layout.DumpPath(dump),
		}
		if _, err := a.expectAll(ctx, eng, StepRecord, a.builder.Record(in)); err != nil {
			oe := WrapEngineError(StepRecord, date, w.Start, err)
			if oe.Context == nil {
				oe.Context = map[string]interface{}{}
			}
			oe.Context["record"] = i
			oe.Context["dump"] = dump
			return records, "", oe
		}

		records++
		res.Records++
		res.Dumps = append(res.Dumps, dump)
		tracker.Increment(fmt.Sprintf("record %d", i))
		a.state.RecordDone(i, a.counter.Peek())
		a.tracer.RecordRecord(ctx, i, dump)
		log.DebugContext(ctx, "Record done", tracker.LogAttrs()...)
	}
	return records, "", nil
}

// calibrate sends the checkpoint command. Any reply other than the ready
// prompt becomes a data-missing error, returned only after the console is
// back at its ready prompt so the next window starts in step.
func (a *Analyser) calibrate(ctx context.Context, eng engine.Engine) error {
	cmd := a.builder.Calibrate()
	if err := engine.SendWithDelay(ctx, eng, cmd.Text, cmd.Delay); err != nil {
		return err
	}

	began := time.Now()
	m, err := eng.Await(ctx, a.cfg.Vocabulary.Patterns(), a.cfg.SyncTimeout)
	a.tracer.RecordAwait(ctx, StepCalibrate, time.Since(began))

	var (
		cause    error
		captured = m.Before
		reading  bool
	)
	switch {
	case engine.IsType(err, engine.ErrorTypeTimeout):
		cause = err
		var sErr *engine.SessionError
		if errors.As(err, &sErr) {
			captured = sErr.Captured
		}
	case err != nil:
		return err
	case m.Index == engine.IndexReady:
		return nil
	case m.Index == engine.IndexInput:
		cause = engine.NewUnexpectedPromptError(cmd.Text, m)
		reading = true
	}

	if err := a.resync(ctx, eng, cmd.Text, reading); err != nil {
		return err
	}
	return engine.NewDataMissingError(cmd.Text, captured, cause)
}

// maxInputAborts bounds how often resync answers repeated input requests
const maxInputAborts = 3

// resync drains the console to its ready prompt. A pending input request is
// answered with the abort line; a prompt that never comes means the engine
// is hung.
func (a *Analyser) resync(ctx context.Context, eng engine.Engine, command string, reading bool) error {
	abort := a.builder.AbortInput()
	var last engine.Match
	for aborts := 0; ; {
		if reading {
			if aborts == maxInputAborts {
				return engine.NewUnexpectedPromptError(abort.Text, last)
			}
			aborts++
			if err := engine.SendWithDelay(ctx, eng, abort.Text, abort.Delay); err != nil {
				return err
			}
			command = abort.Text
		}

		began := time.Now()
		m, err := eng.Await(ctx, a.cfg.Vocabulary.Patterns(), a.cfg.SyncTimeout)
		a.tracer.RecordAwait(ctx, StepCalibrate, time.Since(began))
		if err != nil {
			if engine.IsType(err, engine.ErrorTypeTimeout) {
				return engine.NewHungError(command, err)
			}
			return err
		}
		if m.Index == engine.IndexReady {
			return nil
		}
		reading = m.Index == engine.IndexInput
		last = m
	}
}

// skipReason names why a data-missing window was skipped
func skipReason(err error) string {
	switch {
	case engine.IsType(err, engine.ErrorTypeTimeout):
		return SkipReasonTimeout
	case engine.IsType(err, engine.ErrorTypeUnexpectedPrompt):
		return SkipReasonInputPrompt
	}
	return SkipReasonNoMoments
}

// expectAll sends each command and waits for the ready prompt. It returns
// the match of the last command.
func (a *Analyser) expectAll(ctx context.Context, eng engine.Engine, step string, cmds []script.Command) (engine.Match, error) {
	var last engine.Match
	for _, c := range cmds {
		began := time.Now()
		m, err := engine.ExpectDelayed(ctx, eng, c.Text, c.Delay, a.cfg.Vocabulary, a.cfg.SyncTimeout)
		a.tracer.RecordAwait(ctx, step, time.Since(began))
		if err != nil {
			return m, err
		}
		last = m
	}
	return last, nil
}
