package config

import (
	"testing"
	"time"

	"github.com/grovetools/roster/errors"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantError bool
	}{
		{
			name:      "defaults are valid",
			mutate:    func(c *Config) {},
			wantError: false,
		},
		{
			name: "negative notify debounce",
			mutate: func(c *Config) {
				c.Registry.NotifyDebounce = Dur(-time.Second)
			},
			wantError: true,
		},
		{
			name: "negative recent tools cap",
			mutate: func(c *Config) {
				c.Registry.RecentToolsCap = -1
			},
			wantError: true,
		},
		{
			name: "negative inactive cap",
			mutate: func(c *Config) {
				c.Registry.InactiveCap = -5
			},
			wantError: true,
		},
		{
			name: "negative sweep interval",
			mutate: func(c *Config) {
				c.Daemon.SweepInterval = Dur(-time.Minute)
			},
			wantError: true,
		},
		{
			name: "unknown terminal provider",
			mutate: func(c *Config) {
				c.Terminals.Provider = "kitty"
			},
			wantError: true,
		},
		{
			name: "provider none is accepted",
			mutate: func(c *Config) {
				c.Terminals.Provider = "none"
			},
			wantError: false,
		},
		{
			name: "invalid logging level",
			mutate: func(c *Config) {
				c.Logging.Level = "verbose"
			},
			wantError: true,
		},
		{
			name: "valid logging level",
			mutate: func(c *Config) {
				c.Logging.Level = "debug"
			},
			wantError: false,
		},
		{
			name: "empty watch root",
			mutate: func(c *Config) {
				c.Watch.Roots = []string{""}
			},
			wantError: true,
		},
		{
			name: "empty workspace exclude",
			mutate: func(c *Config) {
				c.Workspace.Excludes = []string{"node_modules", ""}
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.SetDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantError {
				if err == nil {
					t.Fatal("expected a validation error")
				}
				if errors.GetCode(err) != errors.ErrCodeConfigValidation {
					t.Errorf("error code = %v, want CONFIG_VALIDATION", errors.GetCode(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
