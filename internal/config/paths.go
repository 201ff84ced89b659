package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "chemsync"

// Files chemsync keeps on disk.
const (
	configFileName = "config.toml"
	runLogFileName = "runs.db"
)

// userDir is a per-user base directory: XDG on Linux, one shared
// Application Support directory on macOS.
type userDir struct {
	xdgEnv   string
	fallback string // relative to home
}

var (
	configHome = userDir{xdgEnv: "XDG_CONFIG_HOME", fallback: ".config"}
	dataHome   = userDir{xdgEnv: "XDG_DATA_HOME", fallback: filepath.Join(".local", "share")}
)

// under returns chemsync's directory inside d for the given OS.
func (d userDir) under(home, goos string) string {
	if goos == "darwin" {
		return filepath.Join(home, "Library", "Application Support", appName)
	}

	if xdg := os.Getenv(d.xdgEnv); xdg != "" && goos == "linux" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(home, d.fallback, appName)
}

func (d userDir) file(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(d.under(home, runtime.GOOS), name)
}

// DefaultConfigPath is where the config file is read from when neither
// CHEMSYNC_CONFIG nor --config names one.
func DefaultConfigPath() string {
	return configHome.file(configFileName)
}

// DefaultRunLogPath is the default [state] run_log database.
func DefaultRunLogPath() string {
	return dataHome.file(runLogFileName)
}
