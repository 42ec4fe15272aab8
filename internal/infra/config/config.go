package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// DiagnosticsConfig holds default diagnostics buffer caps, applied when a
// preset does not set its own.
type DiagnosticsConfig struct {
	OutputLines int      `yaml:"output_lines"`
	EventLogCap int      `yaml:"event_log_cap"`
	EnvAllow    []string `yaml:"env_allow,omitempty"` // exact keys or "PREFIX*"
}

// ProbeConfig holds HTTP/websocket probe settings.
type ProbeConfig struct {
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// Config is the top-level application configuration.
type Config struct {
	Logger      LoggerConfig      `yaml:"logger"`
	Tracer      TracerConfig      `yaml:"tracer"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Probe       ProbeConfig       `yaml:"probe"`
	PresetsFile string            `yaml:"presets_file,omitempty"` // extra presets, YAML
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
		Diagnostics: DiagnosticsConfig{
			OutputLines: 400,
			EventLogCap: 500,
		},
		Probe: ProbeConfig{
			HTTPTimeout: 2 * time.Second,
			DialTimeout: 3 * time.Second,
		},
	}
}

// Load reads a YAML config file and applies env var overrides.
// An empty path yields the defaults (still env-overridable).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets APPBOOT_* variables win over file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("APPBOOT_LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("APPBOOT_LOG_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("APPBOOT_LOG_OUTPUT"); v != "" {
		cfg.Logger.Output = v
	}
	if v := os.Getenv("APPBOOT_TRACE_ENABLED"); v != "" {
		cfg.Tracer.Enabled = v == "1" || v == "true"
	}
	if v := os.Getenv("APPBOOT_PRESETS_FILE"); v != "" {
		cfg.PresetsFile = v
	}
	if v := os.Getenv("APPBOOT_OUTPUT_LINES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Diagnostics.OutputLines = n
		}
	}
}
