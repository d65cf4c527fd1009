package config

import "time"

// Application constants
const (
	AppName    = "Wind 3DP Event Analyser"
	AppVersion = "1.0.0"

	// EnvPrefix namespaces every environment variable (EVDF_ENGINE_COMMAND, ...)
	EnvPrefix = "EVDF"
)

// Run profiles
const (
	ProfileInteractive = "interactive"
	ProfileBatch       = "batch"
)

// Engine console vocabulary. These are the literal strings printed by the
// UMN build of the Wind/3DP IDL toolkit.
const (
	StartupPrompt   = "IDL>"
	ReadyPrompt     = "UMN>"
	InputPrompt     = "Please enter"
	NoMomentsMarker = "No ion moments"
)

// Engine defaults
const (
	DefaultEngineCommand = "idl"
	DefaultStartupScript = "@./wind_3dp_pros/start_umn_3dp.pro"
	DefaultSyncTimeout   = time.Hour
	DefaultCloseGrace    = 5 * time.Second
)

// Log settings
const (
	DefaultLogLevel = "info"
	DefaultLogFile  = "logs/analyser.log"
)
