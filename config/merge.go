package config

import "github.com/grovetools/roster/logging"

// mergeConfigs merges override configuration into base. Scalars are
// replaced when the override sets a non-zero value; slices are replaced
// wholesale when non-empty; nil sections keep the base section.
func mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.Name != "" {
		result.Name = override.Name
	}
	if override.Version != "" {
		result.Version = override.Version
	}

	result.Watch = mergeWatch(result.Watch, override.Watch)
	result.Workspace = mergeWorkspace(result.Workspace, override.Workspace)
	result.Registry = mergeRegistry(result.Registry, override.Registry)
	result.Daemon = mergeDaemon(result.Daemon, override.Daemon)
	result.Terminals = mergeTerminals(result.Terminals, override.Terminals)
	result.Logging = mergeLogging(result.Logging, override.Logging)

	if override.Extensions != nil {
		if result.Extensions == nil {
			result.Extensions = make(map[string]interface{})
		}
		for key, value := range override.Extensions {
			// Same extension key in both layers: merge the maps one
			// level deep so overrides can change a single option.
			if baseValue, exists := result.Extensions[key]; exists {
				if baseMap, baseOk := baseValue.(map[string]interface{}); baseOk {
					if overrideMap, overrideOk := value.(map[string]interface{}); overrideOk {
						mergedMap := make(map[string]interface{})
						for k, v := range baseMap {
							mergedMap[k] = v
						}
						for k, v := range overrideMap {
							mergedMap[k] = v
						}
						result.Extensions[key] = mergedMap
						continue
					}
				}
			}
			result.Extensions[key] = value
		}
	}

	return &result
}

func mergeWatch(base, override *WatchConfig) *WatchConfig {
	if override == nil {
		return base
	}
	if base == nil {
		copied := *override
		return &copied
	}

	result := *base
	if len(override.Roots) > 0 {
		result.Roots = override.Roots
	}
	if override.Debounce.Duration != 0 {
		result.Debounce = override.Debounce
	}
	return &result
}

func mergeWorkspace(base, override *WorkspaceConfig) *WorkspaceConfig {
	if override == nil {
		return base
	}
	if base == nil {
		copied := *override
		return &copied
	}

	result := *base
	if len(override.Roots) > 0 {
		result.Roots = override.Roots
	}
	if len(override.Excludes) > 0 {
		result.Excludes = override.Excludes
	}
	return &result
}

func mergeRegistry(base, override *RegistryConfig) *RegistryConfig {
	if override == nil {
		return base
	}
	if base == nil {
		copied := *override
		return &copied
	}

	result := *base
	if override.NotifyDebounce.Duration != 0 {
		result.NotifyDebounce = override.NotifyDebounce
	}
	if override.StaleToolTimeout.Duration != 0 {
		result.StaleToolTimeout = override.StaleToolTimeout
	}
	if override.RecentToolsCap != 0 {
		result.RecentToolsCap = override.RecentToolsCap
	}
	if override.InactiveCap != 0 {
		result.InactiveCap = override.InactiveCap
	}
	return &result
}

func mergeDaemon(base, override *DaemonConfig) *DaemonConfig {
	if override == nil {
		return base
	}
	if base == nil {
		copied := *override
		return &copied
	}

	result := *base
	if override.SweepInterval.Duration != 0 {
		result.SweepInterval = override.SweepInterval
	}
	return &result
}

func mergeTerminals(base, override *TerminalsConfig) *TerminalsConfig {
	if override == nil {
		return base
	}
	if base == nil {
		copied := *override
		return &copied
	}

	result := *base
	if override.Provider != "" {
		result.Provider = override.Provider
	}
	if len(override.TitleMarkers) > 0 {
		result.TitleMarkers = override.TitleMarkers
	}
	if len(override.Options) > 0 {
		if result.Options == nil {
			result.Options = make(map[string]interface{})
		} else {
			merged := make(map[string]interface{}, len(result.Options))
			for k, v := range result.Options {
				merged[k] = v
			}
			result.Options = merged
		}
		for k, v := range override.Options {
			result.Options[k] = v
		}
	}
	return &result
}

func mergeLogging(base, override *logging.Config) *logging.Config {
	if override == nil {
		return base
	}
	if base == nil {
		copied := *override
		return &copied
	}

	result := *base
	if override.Level != "" {
		result.Level = override.Level
	}
	if override.ReportCaller {
		result.ReportCaller = true
	}
	if override.File.Enabled {
		result.File.Enabled = true
	}
	if override.File.Path != "" {
		result.File.Path = override.File.Path
	}
	if override.Format.Preset != "" {
		result.Format.Preset = override.Format.Preset
	}
	if override.Format.DisableTimestamp {
		result.Format.DisableTimestamp = true
	}
	if override.Format.DisableComponent {
		result.Format.DisableComponent = true
	}
	if override.Format.StructuredToStderr != "" {
		result.Format.StructuredToStderr = override.Format.StructuredToStderr
	}
	return &result
}
