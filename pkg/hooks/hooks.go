// Package hooks manages the agent CLI's hook configuration. Installing
// registers the roster emit relay for the four lifecycle and tool events in
// the CLI's settings file; uninstalling removes only roster-managed entries
// and leaves everything else in the file untouched.
package hooks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Events are the hook points roster subscribes to, in the CLI's naming.
var Events = []string{"SessionStart", "SessionEnd", "PreToolUse", "PostToolUse"}

// DefaultSettingsPath returns the agent CLI's user settings file.
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".claude", "settings.json")
}

// Manager edits one settings file. The command is the shell line the CLI
// runs on each hook, with the event payload on stdin.
type Manager struct {
	settingsPath string
	command      string
}

// NewManager creates a manager for the given settings file and relay
// command. Empty arguments fall back to the defaults.
func NewManager(settingsPath, command string) *Manager {
	if settingsPath == "" {
		settingsPath = DefaultSettingsPath()
	}
	if command == "" {
		command = "roster emit"
	}
	return &Manager{settingsPath: settingsPath, command: command}
}

// SettingsPath returns the file this manager edits.
func (m *Manager) SettingsPath() string {
	return m.settingsPath
}

// Command returns the relay command line registered on each hook.
func (m *Manager) Command() string {
	return m.command
}

// Install registers the relay on every event. Idempotent: events already
// carrying the relay are left alone, and unrelated hooks are preserved.
func (m *Manager) Install() error {
	settings, err := m.load()
	if err != nil {
		return err
	}

	hooksSection := asMap(settings["hooks"])
	for _, event := range Events {
		entries := asSlice(hooksSection[event])
		if m.containsRelay(entries) {
			continue
		}
		entries = append(entries, m.relayEntry(event))
		hooksSection[event] = entries
	}
	settings["hooks"] = hooksSection

	return m.save(settings)
}

// Uninstall removes every entry that invokes the relay. Events left with no
// entries are dropped from the hooks section; a hooks section left empty is
// dropped from the file.
func (m *Manager) Uninstall() error {
	if _, err := os.Stat(m.settingsPath); os.IsNotExist(err) {
		return nil
	}
	settings, err := m.load()
	if err != nil {
		return err
	}

	hooksSection := asMap(settings["hooks"])
	for _, event := range Events {
		entries := asSlice(hooksSection[event])
		kept := entries[:0]
		for _, entry := range entries {
			if !m.isRelayEntry(entry) {
				kept = append(kept, entry)
			}
		}
		if len(kept) == 0 {
			delete(hooksSection, event)
		} else {
			hooksSection[event] = kept
		}
	}
	if len(hooksSection) == 0 {
		delete(settings, "hooks")
	} else {
		settings["hooks"] = hooksSection
	}

	return m.save(settings)
}

// Status reports, per event, whether the relay is registered.
func (m *Manager) Status() (map[string]bool, error) {
	status := make(map[string]bool, len(Events))
	for _, event := range Events {
		status[event] = false
	}

	settings, err := m.load()
	if err != nil {
		return nil, err
	}

	hooksSection := asMap(settings["hooks"])
	for _, event := range Events {
		status[event] = m.containsRelay(asSlice(hooksSection[event]))
	}
	return status, nil
}

// relayEntry builds one hook registration. Tool events carry a match-all
// matcher; lifecycle events take none.
func (m *Manager) relayEntry(event string) map[string]interface{} {
	entry := map[string]interface{}{
		"hooks": []interface{}{
			map[string]interface{}{
				"type":    "command",
				"command": m.command,
			},
		},
	}
	if event == "PreToolUse" || event == "PostToolUse" {
		entry["matcher"] = "*"
	}
	return entry
}

func (m *Manager) containsRelay(entries []interface{}) bool {
	for _, entry := range entries {
		if m.isRelayEntry(entry) {
			return true
		}
	}
	return false
}

// isRelayEntry reports whether an entry invokes the relay command.
func (m *Manager) isRelayEntry(entry interface{}) bool {
	for _, hook := range asSlice(asMap(entry)["hooks"]) {
		cmd, _ := asMap(hook)["command"].(string)
		if strings.Contains(cmd, m.command) {
			return true
		}
	}
	return false
}

// load reads the settings file as a generic document so keys roster does
// not know about survive a rewrite.
func (m *Manager) load() (map[string]interface{}, error) {
	data, err := os.ReadFile(m.settingsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]interface{}{}, nil
		}
		return nil, err
	}

	var settings map[string]interface{}
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", m.settingsPath, err)
	}
	if settings == nil {
		settings = map[string]interface{}{}
	}
	return settings, nil
}

// save writes the settings atomically: temp file in the same directory,
// renamed over the target.
func (m *Manager) save(settings map[string]interface{}) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(m.settingsPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp settings file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp settings file: %w", err)
	}
	if err := os.Rename(tmpName, m.settingsPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	return nil
}

func asMap(v interface{}) map[string]interface{} {
	if mp, ok := v.(map[string]interface{}); ok {
		return mp
	}
	return map[string]interface{}{}
}

func asSlice(v interface{}) []interface{} {
	if s, ok := v.([]interface{}); ok {
		return s
	}
	return nil
}
