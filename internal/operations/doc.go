// Package operations drives the event analysis over an engine session.
//
// An Analyser processes one event date in its own session: it answers the
// startup prompt, sets up the day, then for each time window loads the data,
// passes the calibration checkpoint and plots every electron record. Windows
// the engine cannot calibrate are skipped without ending the session.
//
// A Runner walks a listing of dates in order and applies the failure policy.
// A Batch runs one listing per unit, restarting the dump counter and
// finalizing the accumulator files for each.
//
// RunState mirrors progress for the status endpoint and AnalyserTracer
// records spans and metrics through OpenTelemetry.
package operations
