// Package logging provides pre-configured logrus loggers for roster
// components. Loggers are singletons per component and write to a file sink
// and/or stderr depending on configuration and terminal detection.
package logging

import "sync"

// Config defines the logging section of roster.yml.
type Config struct {
	// Level is the minimum log level to output (e.g., "debug", "info", "warn", "error").
	// Can be overridden by the GROVE_LOG_LEVEL environment variable.
	Level string `yaml:"level,omitempty" toml:"level,omitempty" json:"level,omitempty" jsonschema:"description=Minimum log level,enum=debug,enum=info,enum=warn,enum=error"`

	// ReportCaller, if true, includes the file, line, and function name in the log output.
	// Can be enabled with the GROVE_LOG_CALLER=true environment variable.
	ReportCaller bool `yaml:"report_caller,omitempty" toml:"report_caller,omitempty" json:"report_caller,omitempty" jsonschema:"description=Include caller file:line in log output"`

	// File configures logging to a file.
	File FileSinkConfig `yaml:"file,omitempty" toml:"file,omitempty" json:"file,omitempty" jsonschema:"description=File sink settings"`

	// Format configures the appearance of the log output.
	Format FormatConfig `yaml:"format,omitempty" toml:"format,omitempty" json:"format,omitempty" jsonschema:"description=Output format settings"`
}

// FileSinkConfig configures the file logging sink.
type FileSinkConfig struct {
	Enabled bool `yaml:"enabled,omitempty" toml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"description=Write logs to a file"`
	// Path is the full path to the log file. Empty means the default
	// per-component file under the roster log directory.
	Path string `yaml:"path,omitempty" toml:"path,omitempty" json:"path,omitempty" jsonschema:"description=Explicit log file path"`
}

// FormatConfig controls the log output format.
type FormatConfig struct {
	// Preset can be "default" (rich text), "simple" (minimal text), or "json".
	Preset string `yaml:"preset,omitempty" toml:"preset,omitempty" json:"preset,omitempty" jsonschema:"description=Formatter preset,enum=default,enum=simple,enum=json"`
	// DisableTimestamp disables the timestamp in the text formats.
	DisableTimestamp bool `yaml:"disable_timestamp,omitempty" toml:"disable_timestamp,omitempty" json:"disable_timestamp,omitempty" jsonschema:"description=Omit timestamps"`
	// DisableComponent disables the component name in the text formats.
	DisableComponent bool `yaml:"disable_component,omitempty" toml:"disable_component,omitempty" json:"disable_component,omitempty" jsonschema:"description=Omit the component tag"`
	// StructuredToStderr controls when structured logs are sent to stderr.
	// Can be "auto" (default), "always", or "never".
	StructuredToStderr string `yaml:"structured_to_stderr,omitempty" toml:"structured_to_stderr,omitempty" json:"structured_to_stderr,omitempty" jsonschema:"description=When to mirror logs to stderr,enum=auto,enum=always,enum=never"`
}

var (
	defaultsMu sync.RWMutex
	defaults   Config
)

// SetDefaults installs the logging configuration used by subsequently
// created loggers. Typically called once at startup after config load;
// loggers created before that fall back to environment variables.
func SetDefaults(cfg Config) {
	defaultsMu.Lock()
	defer defaultsMu.Unlock()
	defaults = cfg
}

func currentDefaults() Config {
	defaultsMu.RLock()
	defer defaultsMu.RUnlock()
	return defaults
}
