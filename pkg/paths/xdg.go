// Package paths provides XDG-compliant path resolution for storybook.
//
// Resolution order:
// 1. STORYBOOK_HOME (portable root) → $STORYBOOK_HOME/{config,cache}
// 2. XDG env vars → $XDG_*_HOME/storybook
// 3. Platform defaults → ~/.config/storybook, ~/.cache/storybook
package paths

import (
	"os"
	"path/filepath"
)

func getConfigHome() string {
	if home := os.Getenv("STORYBOOK_HOME"); home != "" {
		return filepath.Join(home, "config")
	}
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return xdgConfigHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config")
	}
	return ""
}

func getCacheHome() string {
	if home := os.Getenv("STORYBOOK_HOME"); home != "" {
		return filepath.Join(home, "cache")
	}
	if xdgCacheHome := os.Getenv("XDG_CACHE_HOME"); xdgCacheHome != "" {
		return xdgCacheHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".cache")
	}
	return ""
}

// ConfigDir returns the user-wide storybook configuration directory.
// The global storybook.yml lives here.
func ConfigDir() string {
	base := getConfigHome()
	if base == "" {
		return ""
	}
	if os.Getenv("STORYBOOK_HOME") != "" {
		return base
	}
	return filepath.Join(base, "storybook")
}

// CacheDir returns the storybook cache directory.
// Used for the index dump written by `storybook index --cache`.
func CacheDir() string {
	base := getCacheHome()
	if base == "" {
		return ""
	}
	if os.Getenv("STORYBOOK_HOME") != "" {
		return base
	}
	return filepath.Join(base, "storybook")
}

// GlobalConfigFile returns the path of the global configuration file.
func GlobalConfigFile() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "storybook.yml")
}
