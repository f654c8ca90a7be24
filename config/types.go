package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/grovetools/roster/logging"
)

// WatchConfig controls transcript discovery.
type WatchConfig struct {
	// Roots are the directories scanned (recursively) for agent transcript
	// files. Paths may use ~ and environment variables.
	Roots []string `yaml:"roots,omitempty" toml:"roots,omitempty" json:"roots,omitempty" jsonschema:"description=Directories watched for transcript files (default: ~/.claude/projects)"`
	// Debounce is the per-file quiet period before a changed transcript is
	// re-parsed.
	Debounce Duration `yaml:"debounce,omitempty" toml:"debounce,omitempty" json:"debounce,omitempty" jsonschema:"description=Per-file quiet period before a change is parsed (default: 100ms)"`
}

// WorkspaceConfig restricts which session working directories the registry
// tracks. Empty roots admit every directory.
type WorkspaceConfig struct {
	Roots    []string `yaml:"roots,omitempty" toml:"roots,omitempty" json:"roots,omitempty" jsonschema:"description=Directories whose sessions are tracked; empty tracks everything"`
	Excludes []string `yaml:"excludes,omitempty" toml:"excludes,omitempty" json:"excludes,omitempty" jsonschema:"description=Glob patterns excluded from the workspace roots"`
}

// RegistryConfig tunes session bookkeeping.
type RegistryConfig struct {
	NotifyDebounce   Duration `yaml:"notify_debounce,omitempty" toml:"notify_debounce,omitempty" json:"notify_debounce,omitempty" jsonschema:"description=Quiet period before subscribers are notified of changes (default: 150ms)"`
	StaleToolTimeout Duration `yaml:"stale_tool_timeout,omitempty" toml:"stale_tool_timeout,omitempty" json:"stale_tool_timeout,omitempty" jsonschema:"description=How long a tool may run without completing before it is cleared (default: 30s)"`
	RecentToolsCap   int      `yaml:"recent_tools_cap,omitempty" toml:"recent_tools_cap,omitempty" json:"recent_tools_cap,omitempty" jsonschema:"description=Completed tool invocations kept per session (default: 15)"`
	InactiveCap      int      `yaml:"inactive_cap,omitempty" toml:"inactive_cap,omitempty" json:"inactive_cap,omitempty" jsonschema:"description=Archived and unclaimed sessions kept for listing (default: 50)"`
}

// DaemonConfig tunes the daemon's background loops.
type DaemonConfig struct {
	// SweepInterval is how often active sessions are re-validated against
	// the process table and the watch roots are re-scanned.
	SweepInterval Duration `yaml:"sweep_interval,omitempty" toml:"sweep_interval,omitempty" json:"sweep_interval,omitempty" jsonschema:"description=How often process liveness is re-validated (default: 5s)"`
}

// TerminalsConfig selects and configures the terminal provider used to
// locate and reveal the terminal a session runs in.
type TerminalsConfig struct {
	// Provider names the backend: "tmux" or "none".
	Provider string `yaml:"provider,omitempty" toml:"provider,omitempty" json:"provider,omitempty" jsonschema:"description=Terminal backend,enum=tmux,enum=none,default=tmux"`
	// TitleMarkers are substrings of terminal titles that identify panes
	// running an agent, used as a linking fallback when process ancestry
	// is inconclusive.
	TitleMarkers []string `yaml:"title_markers,omitempty" toml:"title_markers,omitempty" json:"title_markers,omitempty" jsonschema:"description=Title substrings that mark agent terminals (default: claude)"`
	// Options holds provider-specific settings, decoded by the provider
	// via DecodeOptions.
	Options map[string]interface{} `yaml:"options,omitempty" toml:"options,omitempty" json:"options,omitempty" jsonschema:"description=Provider-specific options"`
}

// DecodeOptions decodes the provider-specific options map into a
// provider's own typed options struct. The target must be a pointer.
// Missing options leave the target zero-valued.
func (t *TerminalsConfig) DecodeOptions(target interface{}) error {
	if t == nil || len(t.Options) == 0 {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: "yaml",
	})
	if err != nil {
		return fmt.Errorf("failed to create options decoder: %w", err)
	}

	if err := decoder.Decode(t.Options); err != nil {
		return fmt.Errorf("failed to decode terminal provider options: %w", err)
	}

	return nil
}

// Config represents the roster.yml configuration.
type Config struct {
	Name    string `yaml:"name,omitempty" toml:"name,omitempty" json:"name,omitempty" jsonschema:"description=Name of the workspace this configuration belongs to"`
	Version string `yaml:"version,omitempty" toml:"version,omitempty" json:"version,omitempty" jsonschema:"description=Configuration version (e.g. '1')"`

	Watch     *WatchConfig     `yaml:"watch,omitempty" toml:"watch,omitempty" json:"watch,omitempty" jsonschema:"description=Transcript discovery settings"`
	Workspace *WorkspaceConfig `yaml:"workspace,omitempty" toml:"workspace,omitempty" json:"workspace,omitempty" jsonschema:"description=Workspace boundary settings"`
	Registry  *RegistryConfig  `yaml:"registry,omitempty" toml:"registry,omitempty" json:"registry,omitempty" jsonschema:"description=Session registry tuning"`
	Daemon    *DaemonConfig    `yaml:"daemon,omitempty" toml:"daemon,omitempty" json:"daemon,omitempty" jsonschema:"description=Daemon loop tuning"`
	Terminals *TerminalsConfig `yaml:"terminals,omitempty" toml:"terminals,omitempty" json:"terminals,omitempty" jsonschema:"description=Terminal provider settings"`
	Logging   *logging.Config  `yaml:"logging,omitempty" toml:"logging,omitempty" json:"logging,omitempty" jsonschema:"description=Logging settings"`

	// Extensions captures unknown top-level keys so other tools can ship
	// their own sections in the same file.
	Extensions map[string]interface{} `yaml:",inline" toml:"-" json:"-" jsonschema:"-"`
}

// SetDefaults fills in defaults for unset fields and allocates the
// section structs so callers never nil-check them. Zero durations and
// caps are left as zero; each consumer applies its own default.
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = "1"
	}

	if c.Watch == nil {
		c.Watch = &WatchConfig{}
	}
	if len(c.Watch.Roots) == 0 {
		c.Watch.Roots = []string{"~/.claude/projects"}
	}

	if c.Workspace == nil {
		c.Workspace = &WorkspaceConfig{}
	}
	if c.Registry == nil {
		c.Registry = &RegistryConfig{}
	}
	if c.Daemon == nil {
		c.Daemon = &DaemonConfig{}
	}

	if c.Terminals == nil {
		c.Terminals = &TerminalsConfig{}
	}
	if c.Terminals.Provider == "" {
		c.Terminals.Provider = "tmux"
	}

	if c.Logging == nil {
		c.Logging = &logging.Config{}
	}
}

// UnmarshalExtension decodes a specific extension's configuration into
// the provided target struct. The target must be a pointer. A missing
// key is not an error; the target stays zero-valued.
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: "yaml",
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}

// ConfigSource identifies the origin of a configuration layer.
type ConfigSource string

const (
	SourceDefault  ConfigSource = "default"
	SourceGlobal   ConfigSource = "global"
	SourceProject  ConfigSource = "project"
	SourceOverride ConfigSource = "override"
)
