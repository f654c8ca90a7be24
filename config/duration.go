package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so config files can write intervals as
// human-readable strings ("150ms", "30s", "1m30s"). It marshals to the
// same string form in YAML, TOML, and JSON.
type Duration struct {
	time.Duration
}

// Dur builds a Duration from a time.Duration. Convenience for defaults.
func Dur(d time.Duration) Duration {
	return Duration{Duration: d}
}

// Or returns the wrapped duration, or fallback when unset.
func (d Duration) Or(fallback time.Duration) time.Duration {
	if d.Duration == 0 {
		return fallback
	}
	return d.Duration
}

// UnmarshalYAML decodes a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"150ms\" or \"30s\": %w", err)
	}
	return d.UnmarshalText([]byte(raw))
}

// MarshalYAML encodes the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, which covers both
// TOML decoding and quoted JSON strings.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
