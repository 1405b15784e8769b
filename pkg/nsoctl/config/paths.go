package config

import (
	"os"
	"path/filepath"
)

const (
	defaultConfigDirName = "nsoctl"
	defaultConfigFile    = "config.yaml"
	defaultTokenFile     = "tokens.db"
)

func DefaultConfigPath() string {
	if env := os.Getenv("NSOCTL_CONFIG"); env != "" {
		return env
	}
	base, err := os.UserConfigDir()
	if err == nil {
		return filepath.Join(base, defaultConfigDirName, defaultConfigFile)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".nsoctl", defaultConfigFile)
}

// DefaultTokenPath is the bbolt file used by the file token storage.
func DefaultTokenPath() string {
	base, err := os.UserConfigDir()
	if err == nil {
		return filepath.Join(base, defaultConfigDirName, defaultTokenFile)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".nsoctl", defaultTokenFile)
}
