// Package fs locates gitsage's per-user directories.
package fs

import (
	"os"
	"path/filepath"
)

// DefaultConfigDir returns the default configuration directory for gitsage.
// Uses XDG_CONFIG_HOME if set, otherwise falls back to ~/.config/gitsage.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "gitsage")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "gitsage")
}

// DefaultConfigPath returns the path of the configuration file.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}
