// Package app wires the analyser together: configuration, logging,
// telemetry, the engine launcher, the batch of listings and the optional
// status server.
//
// The binaries call NewApplication, Run and Close, and map the returned
// error to an exit code with ExitCode.
package app
