package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete analyser configuration
type Config struct {
	Engine     EngineConfig     `yaml:"engine" envconfig:"ENGINE"`
	Run        RunConfig        `yaml:"run" envconfig:"RUN"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envconfig:"TELEMETRY"`
	Transcript TranscriptConfig `yaml:"transcript" envconfig:"TRANSCRIPT"`
}

// EngineConfig describes how the IDL console is launched and which
// literal markers it prints.
type EngineConfig struct {
	Command         string        `yaml:"command" envconfig:"COMMAND" validate:"required"`
	Args            []string      `yaml:"args" envconfig:"ARGS"`
	WorkDir         string        `yaml:"work_dir" envconfig:"WORK_DIR"`
	StartupPrompt   string        `yaml:"startup_prompt" envconfig:"STARTUP_PROMPT" validate:"required"`
	ReadyPrompt     string        `yaml:"ready_prompt" envconfig:"READY_PROMPT" validate:"required"`
	InputPrompt     string        `yaml:"input_prompt" envconfig:"INPUT_PROMPT" validate:"required"`
	NoMomentsMarker string        `yaml:"no_moments_marker" envconfig:"NO_MOMENTS_MARKER" validate:"required"`
	StartupScript   string        `yaml:"startup_script" envconfig:"STARTUP_SCRIPT" validate:"required"`
	CompileFiles    []string      `yaml:"compile_files" envconfig:"COMPILE_FILES"`
	SyncTimeout     time.Duration `yaml:"sync_timeout" envconfig:"SYNC_TIMEOUT" validate:"gt=0"`
	CloseGrace      time.Duration `yaml:"close_grace" envconfig:"CLOSE_GRACE" validate:"gte=0"`
}

// RunConfig contains the event listing and output layout
type RunConfig struct {
	Profile        string   `yaml:"profile" envconfig:"PROFILE" validate:"oneof=interactive batch"`
	InputFile      string   `yaml:"input_file" envconfig:"INPUT_FILE" validate:"required"`
	InputPattern   string   `yaml:"input_pattern" envconfig:"INPUT_PATTERN" validate:"required,contains=%d"`
	OutputDir      string   `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
	DumpRoot       string   `yaml:"dump_root" envconfig:"DUMP_ROOT"`
	FirstBatch     int      `yaml:"first_batch" envconfig:"FIRST_BATCH" validate:"gte=0"`
	BatchCount     int      `yaml:"batch_count" envconfig:"BATCH_COUNT" validate:"gte=1"`
	StartCounter   int      `yaml:"start_counter" envconfig:"START_COUNTER" validate:"gte=0"`
	Windows        []string `yaml:"windows" envconfig:"WINDOWS" validate:"min=1,dive,len=8"`
	TimeFile       string   `yaml:"time_file" envconfig:"TIME_FILE" validate:"required"`
	AnisotropyFile string   `yaml:"anisotropy_file" envconfig:"ANISOTROPY_FILE" validate:"required"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Format   string `yaml:"format" envconfig:"FORMAT"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// TelemetryConfig controls metrics, tracing and the optional status listener
type TelemetryConfig struct {
	EnableMetrics bool   `yaml:"enable_metrics" envconfig:"ENABLE_METRICS"`
	TraceFile     string `yaml:"trace_file" envconfig:"TRACE_FILE"`
	ListenAddr    string `yaml:"listen_addr" envconfig:"LISTEN_ADDR"`
}

// TranscriptConfig controls the compressed copy of raw engine output
type TranscriptConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"ENABLED"`
	Dir     string `yaml:"dir" envconfig:"DIR"`
	Level   int    `yaml:"level" envconfig:"LEVEL" validate:"gte=1,lte=4"`
}

// Load builds the configuration from defaults, an optional YAML file and
// EVDF_* environment variables, in increasing order of precedence.
// An empty path searches the usual locations.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Fields without an env var set are left untouched
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file at filePath onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks field constraints and normalizes logging settings
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}

	if err := validator.New().Struct(c); err != nil {
		return err
	}

	for _, w := range c.Run.Windows {
		if _, err := time.Parse("15:04:05", w); err != nil {
			return fmt.Errorf("invalid window start %q: %w", w, err)
		}
	}

	// JSON is the only supported log format
	c.Logging.Format = "json"
	switch strings.ToLower(c.Logging.Output) {
	case "console", "file", "both":
	default:
		c.Logging.Output = "both"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = DefaultLogFile
	}

	return nil
}

// InputFileFor returns the listing path for a batch index
func (c *Config) InputFileFor(batch int) string {
	return fmt.Sprintf(c.Run.InputPattern, batch)
}

// OutputDirFor returns the output directory for a batch index.
// The interactive profile has no batch suffix.
func (c *Config) OutputDirFor(batch int) string {
	if c.Run.Profile == ProfileInteractive {
		return c.Run.OutputDir
	}
	return fmt.Sprintf("%s_%d", c.Run.OutputDir, batch)
}

// TranscriptPath returns the transcript file for one event
func (c *Config) TranscriptPath(runID, date string) string {
	return filepath.Join(c.Transcript.Dir, fmt.Sprintf("%s_%s.log.zst", runID, date))
}

// getConfigFilePath returns the first config file found in the common locations
func getConfigFilePath() string {
	locations := []string{
		"evdf.yaml",
		"configs/evdf.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns the configuration that reproduces the analyser scripts
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Command:         DefaultEngineCommand,
			StartupPrompt:   StartupPrompt,
			ReadyPrompt:     ReadyPrompt,
			InputPrompt:     InputPrompt,
			NoMomentsMarker: NoMomentsMarker,
			StartupScript:   DefaultStartupScript,
			CompileFiles:    []string{"get_3dp_structs.pro"},
			SyncTimeout:     DefaultSyncTimeout,
			CloseGrace:      DefaultCloseGrace,
		},
		Run: RunConfig{
			Profile:        ProfileInteractive,
			InputFile:      "event_date.txt",
			InputPattern:   "event_date_%d.txt",
			OutputDir:      "event_analyser_output",
			FirstBatch:     45,
			BatchCount:     1,
			StartCounter:   0,
			Windows:        []string{"00:00:00"},
			TimeFile:       "time.txt",
			AnisotropyFile: "anisotropy.txt",
		},
		Logging: LoggingConfig{
			Level:    DefaultLogLevel,
			Format:   "json",
			Output:   "both",
			FilePath: DefaultLogFile,
		},
		Telemetry: TelemetryConfig{
			EnableMetrics: true,
		},
		Transcript: TranscriptConfig{
			Enabled: false,
			Dir:     "transcripts",
			Level:   2,
		},
	}
}
