package config

// mergeConfigs merges override configuration into base
func mergeConfigs(base, override *Config) *Config {
	result := *base

	// A non-empty stories list replaces the base list wholesale
	if len(override.Stories) > 0 {
		result.Stories = append([]StoriesEntry(nil), override.Stories...)
	}
	if override.ConfigDir != "" {
		result.ConfigDir = override.ConfigDir
	}
	if override.PreviewAnnotations != "" {
		result.PreviewAnnotations = override.PreviewAnnotations
	}

	result.Features = mergeFeatures(result.Features, override.Features)

	if override.Server.Addr != "" {
		result.Server.Addr = override.Server.Addr
	}
	if override.Watch.Enabled != nil {
		result.Watch.Enabled = override.Watch.Enabled
	}
	if override.Watch.DebounceMs != 0 {
		result.Watch.DebounceMs = override.Watch.DebounceMs
	}

	if override.Extensions != nil {
		merged := make(map[string]interface{}, len(result.Extensions)+len(override.Extensions))
		for key, value := range result.Extensions {
			merged[key] = value
		}
		for key, value := range override.Extensions {
			// If both base and override have the same extension key, merge them
			if baseMap, ok := merged[key].(map[string]interface{}); ok {
				if overrideMap, ok := value.(map[string]interface{}); ok {
					mergedMap := make(map[string]interface{}, len(baseMap)+len(overrideMap))
					for k, v := range baseMap {
						mergedMap[k] = v
					}
					for k, v := range overrideMap {
						mergedMap[k] = v
					}
					merged[key] = mergedMap
					continue
				}
			}
			merged[key] = value
		}
		result.Extensions = merged
	}

	return &result
}

func mergeFeatures(base, override FeaturesConfig) FeaturesConfig {
	result := base
	if override.V2Compatibility {
		result.V2Compatibility = true
	}
	if override.PlayFunctions != nil {
		result.PlayFunctions = override.PlayFunctions
	}
	return result
}
