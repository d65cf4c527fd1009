// Package config provides configuration management for the event analyser.
//
// # Configuration Sources
//
// Configuration is assembled from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. YAML configuration file (evdf.yaml, configs/evdf.yaml or an explicit path)
//	3. Default values (lowest priority)
//
// The defaults reproduce the legacy EVDF driver scripts, so a bare
// run with no file and no environment drives "idl" with the UMN toolkit and
// reads event_date.txt.
//
// # Environment Variables
//
// All environment variables follow the pattern EVDF_<SECTION>_<FIELD>:
//
//	EVDF_ENGINE_COMMAND=/usr/local/bin/idl
//	EVDF_ENGINE_SYNC_TIMEOUT=90m
//	EVDF_RUN_PROFILE=batch
//	EVDF_RUN_WINDOWS=00:00:00,12:00:00
//	EVDF_LOGGING_LEVEL=debug
//
// # Validation
//
// Struct constraints are checked with go-playground/validator. Window start
// times must parse as HH:MM:SS.
package config
