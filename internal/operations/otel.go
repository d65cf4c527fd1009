package operations

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/GovindGNampoothiri/windCode/internal/infrastructure"
)

const (
	TracerName = "windcode.analyser"
)

// AnalyserTracer provides OpenTelemetry instrumentation for event processing
type AnalyserTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.AnalyserMetrics
}

// NewAnalyserTracer creates a tracer from providers. Nil providers use the
// global (no-op by default) providers.
func NewAnalyserTracer(providers *infrastructure.OTelProviders) (*AnalyserTracer, error) {
	tracer := otel.Tracer(TracerName)
	meter := otel.Meter(TracerName)
	if providers != nil {
		tracer = providers.Tracer
		meter = providers.Meter
	}

	metrics, err := infrastructure.CreateAnalyserMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create analyser metrics: %w", err)
	}

	return &AnalyserTracer{tracer: tracer, metrics: metrics}, nil
}

// TraceEvent creates a span for one event date
func (at *AnalyserTracer) TraceEvent(ctx context.Context, date, profile string) (context.Context, trace.Span) {
	return at.tracer.Start(ctx, "analyser.event",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("event.date", date),
			attribute.String("run.profile", profile),
		),
	)
}

// RecordEventCompletion records event metrics and closes out the span status
func (at *AnalyserTracer) RecordEventCompletion(ctx context.Context, span trace.Span, res *EventResult, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = string(GetErrorType(err))
	}

	attrs := metric.WithAttributes(attribute.String("status", status))
	at.metrics.EventsTotal.Add(ctx, 1, attrs)
	at.metrics.EventDuration.Record(ctx, duration.Seconds(), attrs)

	if res != nil {
		span.SetAttributes(
			attribute.Int("event.records", res.Records),
			attribute.Int("event.windows_skipped", res.SkippedWindows),
		)
	}

	if err != nil {
		infrastructure.RecordError(ctx, err)
		return
	}
	span.SetStatus(codes.Ok, "event processed")
}

// RecordWindowSkipped counts a window skipped at the calibration checkpoint
func (at *AnalyserTracer) RecordWindowSkipped(ctx context.Context, window, reason string) {
	at.metrics.WindowsSkipped.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)))

	infrastructure.AddSpanEvent(ctx, "window.skipped", map[string]interface{}{
		"window": window,
		"reason": reason,
	})
}

// RecordRecord counts one record run through the plot sequence
func (at *AnalyserTracer) RecordRecord(ctx context.Context, index, dump int) {
	at.metrics.RecordsPlotted.Add(ctx, 1)

	infrastructure.AddSpanEvent(ctx, "record.done", map[string]interface{}{
		"record": index,
		"dump":   dump,
	})
}

// RecordSessionStart counts an engine launch
func (at *AnalyserTracer) RecordSessionStart(ctx context.Context, err error) {
	if err != nil {
		at.metrics.SessionFailures.Add(ctx, 1,
			metric.WithAttributes(attribute.String("type", string(ErrorTypeStartup))))
		return
	}
	at.metrics.SessionsStarted.Add(ctx, 1)
}

// RecordSessionFailure counts a session torn down after an error
func (at *AnalyserTracer) RecordSessionFailure(ctx context.Context, err error) {
	at.metrics.SessionFailures.Add(ctx, 1,
		metric.WithAttributes(attribute.String("type", string(GetErrorType(err)))))
}

// RecordAwait observes time spent waiting on the engine for a step
func (at *AnalyserTracer) RecordAwait(ctx context.Context, step string, d time.Duration) {
	at.metrics.AwaitDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("step", step)))
}
