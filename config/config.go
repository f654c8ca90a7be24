package config

import (
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/grovetools/roster/errors"
	"github.com/grovetools/roster/pkg/paths"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// configNames are the recognized project config file names, in precedence
// order. YAML is the primary format; TOML is accepted by extension.
var configNames = []string{
	"roster.yml",
	"roster.yaml",
	"roster.toml",
	".roster.yml",
	".roster.yaml",
	".roster.toml",
}

// Load reads and parses a single roster configuration file. The format is
// chosen by file extension. No hierarchical merging is applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}

	cfg, err := parseBytes(data, path)
	if err != nil {
		return nil, err
	}

	return finalize(cfg)
}

// LoadDefault loads the configuration with hierarchical merging, starting
// from the current working directory.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to get current directory")
	}

	return LoadFrom(cwd)
}

// LoadFrom loads configuration with hierarchical merging:
// 1. Global config (~/.config/grove/roster.yml) - base layer
// 2. Project config (roster.yml, searched upward from startDir) - overrides global
// 3. Local override (roster.override.yml next to the project config) - overrides all
//
// Every layer is optional. With no config files at all the result is the
// built-in defaults, so the daemon runs without any setup.
func LoadFrom(startDir string) (*Config, error) {
	return LoadFromWithLogger(startDir, logrus.New())
}

// LoadFromWithLogger is LoadFrom with load progress logged at debug level.
func LoadFromWithLogger(startDir string, logger *logrus.Logger) (*Config, error) {
	var finalConfig *Config

	// 1. Global config.
	if globalPath := GlobalConfigPath(); globalPath != "" {
		if _, err := os.Stat(globalPath); err == nil {
			logger.WithField("path", globalPath).Debug("Loading global configuration")
			globalData, err := os.ReadFile(globalPath)
			if err == nil {
				if globalConfig, err := parseBytes(globalData, globalPath); err == nil {
					finalConfig = globalConfig
				} else {
					logger.WithError(err).Warn("Failed to parse global configuration, continuing without it")
				}
			} else {
				logger.WithError(err).Warn("Failed to read global configuration, continuing without it")
			}
		}
	}

	// 2. Project config.
	projectPath, err := FindConfigFile(startDir)
	if err == nil {
		logger.WithField("path", projectPath).Debug("Loading project configuration")
		projectData, err := os.ReadFile(projectPath)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read project config").
				WithDetail("path", projectPath)
		}

		projectConfig, err := parseBytes(projectData, projectPath)
		if err != nil {
			return nil, err
		}

		if finalConfig == nil {
			finalConfig = projectConfig
		} else {
			finalConfig = mergeConfigs(finalConfig, projectConfig)
		}

		// 3. Local overrides next to the project config.
		projectDir := filepath.Dir(projectPath)
		for _, overridePath := range overridePaths(projectDir) {
			if _, err := os.Stat(overridePath); err != nil {
				continue
			}
			logger.WithField("path", overridePath).Debug("Loading local override configuration")

			overrideData, err := os.ReadFile(overridePath)
			if err != nil {
				logger.WithError(err).Warn("Failed to read override file, skipping")
				continue
			}

			overrideConfig, err := parseBytes(overrideData, overridePath)
			if err != nil {
				logger.WithError(err).Warn("Failed to parse override file, skipping")
				continue
			}

			finalConfig = mergeConfigs(finalConfig, overrideConfig)
		}
	} else if errors.GetCode(err) != errors.ErrCodeConfigNotFound {
		return nil, err
	}

	if finalConfig == nil {
		logger.Debug("No configuration files found, using defaults")
		finalConfig = &Config{}
	}

	cfg, err := finalize(finalConfig)
	if err != nil {
		return nil, err
	}

	if logger.IsLevelEnabled(logrus.DebugLevel) {
		if configData, err := yaml.Marshal(cfg); err == nil {
			logger.Debugf("Merged configuration:\n%s", string(configData))
		}
	}

	return cfg, nil
}

// LoadFromBytes parses a YAML configuration from a byte slice, then applies
// defaults and validation.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg, err := parseBytes(data, "roster.yml")
	if err != nil {
		return nil, err
	}

	return finalize(cfg)
}

// finalize applies defaults and semantic validation to a merged config.
func finalize(cfg *Config) (*Config, error) {
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// parseBytes expands environment variables, unmarshals the data, and
// schema-validates the raw document so typos inside known sections are
// caught at the file they live in. The format is chosen by the path's
// extension (.toml gets TOML, everything else YAML).
func parseBytes(data []byte, path string) (*Config, error) {
	expanded := []byte(expandEnvVars(string(data)))

	var cfg Config
	var doc map[string]interface{}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(expanded, &cfg); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse TOML configuration").
				WithDetail("path", path)
		}
		if err := toml.Unmarshal(expanded, &doc); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse TOML configuration").
				WithDetail("path", path)
		}
	} else {
		if err := yaml.Unmarshal(expanded, &cfg); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse YAML configuration").
				WithDetail("path", path)
		}
		if err := yaml.Unmarshal(expanded, &doc); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse YAML configuration").
				WithDetail("path", path)
		}
	}

	if err := validateDocument(doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "schema validation failed").
			WithDetail("path", path)
	}

	return &cfg, nil
}

// validateDocument checks a raw parsed config document against the schema.
func validateDocument(doc map[string]interface{}) error {
	if doc == nil {
		return nil
	}
	validator, err := NewSchemaValidator()
	if err != nil {
		return err
	}
	return validator.Validate(doc)
}

// FindConfigFile searches for a roster configuration file:
// 1. startDir up to the filesystem root
// 2. Git repository root (if in a git repo)
// 3. Global config directory
func FindConfigFile(startDir string) (string, error) {
	dir := startDir
	for {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if gitRoot, err := getGitRoot(startDir); err == nil && gitRoot != "" {
		for _, name := range configNames {
			path := filepath.Join(gitRoot, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}
	}

	if globalPath := GlobalConfigPath(); globalPath != "" {
		if info, err := os.Stat(globalPath); err == nil && !info.IsDir() {
			return globalPath, nil
		}
	}

	return "", errors.ConfigNotFound(startDir).WithDetail("searchPath", startDir)
}

// GlobalConfigPath returns the path of the global roster config file.
func GlobalConfigPath() string {
	dir := paths.ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "roster.yml")
}

// overridePaths lists the local override file candidates for a project dir.
func overridePaths(projectDir string) []string {
	return []string{
		filepath.Join(projectDir, "roster.override.yml"),
		filepath.Join(projectDir, "roster.override.yaml"),
		filepath.Join(projectDir, ".roster.override.yml"),
		filepath.Join(projectDir, ".roster.override.yaml"),
	}
}

// expandEnvVars replaces ${VAR} with environment variable values and
// supports ${VAR:-default} fallbacks.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]

		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}

// getGitRoot attempts to find the git repository root.
func getGitRoot(dir string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}
