package config

import (
	"strings"
	"testing"
)

func TestSchemaValidation(t *testing.T) {
	validator, err := NewSchemaValidator()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		doc       map[string]interface{}
		wantError bool
		errorMsg  string
	}{
		{
			name: "valid config",
			doc: map[string]interface{}{
				"version": "1",
				"registry": map[string]interface{}{
					"notify_debounce":  "150ms",
					"recent_tools_cap": 15,
				},
				"terminals": map[string]interface{}{
					"provider": "tmux",
					"options": map[string]interface{}{
						"socket_name": "dev",
					},
				},
			},
			wantError: false,
		},
		{
			name: "unknown key inside a known section",
			doc: map[string]interface{}{
				"registry": map[string]interface{}{
					"notify_debouce": "150ms",
				},
			},
			wantError: true,
			errorMsg:  "notify_debouce",
		},
		{
			name: "duration must be a string",
			doc: map[string]interface{}{
				"registry": map[string]interface{}{
					"notify_debounce": 150,
				},
			},
			wantError: true,
		},
		{
			name: "duration must look like a duration",
			doc: map[string]interface{}{
				"watch": map[string]interface{}{
					"debounce": "soon",
				},
			},
			wantError: true,
		},
		{
			name: "provider outside the enum",
			doc: map[string]interface{}{
				"terminals": map[string]interface{}{
					"provider": "kitty",
				},
			},
			wantError: true,
		},
		{
			name: "unknown top-level sections are extensions",
			doc: map[string]interface{}{
				"version": "1",
				"flow": map[string]interface{}{
					"anything": "goes",
				},
			},
			wantError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.Validate(tt.doc)
			if tt.wantError {
				if err == nil {
					t.Fatal("expected a validation error")
				}
				if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("error %q does not mention %q", err.Error(), tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}
