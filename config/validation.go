package config

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/roster/errors"
)

var validProviders = map[string]bool{
	"":     true,
	"tmux": true,
	"none": true,
}

// Validate checks semantic constraints the schema cannot express.
func (c *Config) Validate() error {
	if c.Watch != nil {
		if err := validateDuration("watch.debounce", c.Watch.Debounce); err != nil {
			return err
		}
		if err := validateRoots("watch.roots", c.Watch.Roots); err != nil {
			return err
		}
	}

	if c.Workspace != nil {
		if err := validateRoots("workspace.roots", c.Workspace.Roots); err != nil {
			return err
		}
		for _, pattern := range c.Workspace.Excludes {
			if pattern == "" {
				return errors.New(errors.ErrCodeConfigValidation, "workspace.excludes cannot contain empty patterns")
			}
		}
	}

	if c.Registry != nil {
		if err := validateDuration("registry.notify_debounce", c.Registry.NotifyDebounce); err != nil {
			return err
		}
		if err := validateDuration("registry.stale_tool_timeout", c.Registry.StaleToolTimeout); err != nil {
			return err
		}
		if c.Registry.RecentToolsCap < 0 {
			return errors.New(errors.ErrCodeConfigValidation, "registry.recent_tools_cap cannot be negative").
				WithDetail("value", fmt.Sprintf("%d", c.Registry.RecentToolsCap))
		}
		if c.Registry.InactiveCap < 0 {
			return errors.New(errors.ErrCodeConfigValidation, "registry.inactive_cap cannot be negative").
				WithDetail("value", fmt.Sprintf("%d", c.Registry.InactiveCap))
		}
	}

	if c.Daemon != nil {
		if err := validateDuration("daemon.sweep_interval", c.Daemon.SweepInterval); err != nil {
			return err
		}
	}

	if c.Terminals != nil && !validProviders[c.Terminals.Provider] {
		return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("unknown terminal provider '%s' (expected tmux or none)", c.Terminals.Provider)).
			WithDetail("provider", c.Terminals.Provider)
	}

	if c.Logging != nil && c.Logging.Level != "" {
		if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
			return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("invalid logging level '%s'", c.Logging.Level)).
				WithDetail("level", c.Logging.Level)
		}
	}

	return nil
}

func validateDuration(fieldName string, d Duration) error {
	if d.Duration < 0 {
		return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("%s cannot be negative", fieldName)).
			WithDetail("value", d.String())
	}
	return nil
}

func validateRoots(fieldName string, roots []string) error {
	for _, root := range roots {
		if root == "" {
			return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("%s cannot contain empty paths", fieldName))
		}
	}
	return nil
}
