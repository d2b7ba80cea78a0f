package logging

import (
	"os"
	"path/filepath"
)

// LogDirEnv overrides the log directory.
const LogDirEnv = "CATALOGSEARCH_LOG_DIR"

// DefaultLogDir returns $CATALOGSEARCH_LOG_DIR, else ~/.catalogsearch/logs,
// else a directory under the system temp dir.
func DefaultLogDir() string {
	if dir := os.Getenv(LogDirEnv); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".catalogsearch", "logs")
	}
	return filepath.Join(home, ".catalogsearch", "logs")
}

// DefaultLogPath returns the server log written by serve and --debug.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "server.log")
}
