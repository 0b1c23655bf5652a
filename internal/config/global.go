package config

import (
	"os"
	"path/filepath"
)

// EnvHome overrides the per-user state directory.
const EnvHome = "SUPERSET_IMPORT_HOME"

// StateDir returns the per-user directory holding the credential fallback
// file and debug logs: $SUPERSET_IMPORT_HOME, else ~/.superset-import.
func StateDir() string {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".superset-import")
	}
	return filepath.Join(homeDir, ".superset-import")
}

// DebugDir returns the default directory for debug log files.
func DebugDir() string {
	return filepath.Join(StateDir(), "debug")
}
