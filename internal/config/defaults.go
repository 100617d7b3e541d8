package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// platformDataDir returns the platform-specific data directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/engaged/
//   - Linux:   ~/.local/share/engaged/
//   - Windows: %APPDATA%\engaged\
//
// Falls back to ~/.engaged if platform detection fails.
func platformDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fallbackDataDir()
		}
		return filepath.Join(homeDir, "Library", "Application Support", "engaged")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return fallbackDataDir()
		}
		return filepath.Join(appData, "engaged")
	default: // Linux and other Unix
		dataHome := os.Getenv("XDG_DATA_HOME")
		if dataHome == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return fallbackDataDir()
			}
			dataHome = filepath.Join(homeDir, ".local", "share")
		}
		return filepath.Join(dataHome, "engaged")
	}
}

func fallbackDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".engaged"
	}
	return filepath.Join(homeDir, ".engaged")
}
