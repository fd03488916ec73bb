package config

import (
	"os"
	"path/filepath"
)

const appDirName = ".tether"

// DataDir returns the base data directory for tether.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, appDirName), nil
}

// SettingsPath returns the path to the settings file.
func SettingsPath() (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "settings.toml"), nil
}

// CursorDBPath returns the path to the persisted cursor database.
func CursorDBPath() (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "cursors.db"), nil
}
