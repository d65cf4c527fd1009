package operations

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/GovindGNampoothiri/windCode/internal/engine"
	"github.com/GovindGNampoothiri/windCode/internal/event"
	"github.com/GovindGNampoothiri/windCode/internal/infrastructure"
)

// Runner processes a listing of dates strictly in order
type Runner struct {
	analyser *Analyser
	// continueOnEventFailure lets a hung or exited session cost only its
	// own date
	continueOnEventFailure bool
	state                  *RunState
	logger                 *slog.Logger
}

// NewRunner creates a runner over analyser
func NewRunner(analyser *Analyser, continueOnEventFailure bool, state *RunState, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Runner{
		analyser:               analyser,
		continueOnEventFailure: continueOnEventFailure,
		state:                  state,
		logger:                 infrastructure.WithComponent(logger, "runner"),
	}
}

// RunResult summarizes one listing
type RunResult struct {
	Events   []*EventResult `json:"events"`
	Errors   ErrorList      `json:"errors"`
	NextDump int            `json:"next_dump"`
	Duration time.Duration  `json:"duration"`
}

// Run processes dates one after another. Startup failures, protocol
// violations and cancellation abort the run. Event-scoped failures abort it
// too unless the runner continues on event failure.
func (r *Runner) Run(ctx context.Context, dates []event.Date) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{}
	defer func() {
		result.NextDump = r.analyser.counter.Peek()
		result.Duration = time.Since(start)
	}()

	for i, d := range dates {
		if err := ctx.Err(); err != nil {
			return result, NewCancellationError("run", err)
		}

		r.logger.InfoContext(ctx, "Starting event",
			slog.String("event", d.String()),
			slog.Int("position", i+1),
			slog.Int("of", len(dates)))

		res, err := r.analyser.ProcessEvent(ctx, d)
		result.Events = append(result.Events, res)
		if err == nil {
			r.state.EventDone(false)
			continue
		}

		r.state.EventDone(true)
		var opErr *OperationError
		if !errors.As(err, &opErr) {
			opErr = WrapEngineError("event", d.String(), "", err)
		}
		result.Errors.Add(opErr)

		if r.continueOnEventFailure && !engine.IsFatalToRun(err) && IsEventScoped(err) {
			r.logger.ErrorContext(ctx, "Event failed, continuing with next date",
				slog.String("event", d.String()),
				slog.String("type", string(opErr.Type)),
				slog.String("error", err.Error()))
			continue
		}

		r.logger.ErrorContext(ctx, "Event failed, aborting run",
			slog.String("event", d.String()),
			slog.String("type", string(opErr.Type)),
			slog.String("error", err.Error()))
		return result, opErr
	}

	return result, nil
}
