package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	// Given: a file-only config
	path := filepath.Join(t.TempDir(), "logs", "server.log")
	cfg := Config{Level: "info", FilePath: path, MaxSizeMB: 1, MaxFiles: 2}

	// When: logging through the returned logger
	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)
	logger.Info("index_saved", slog.String("name", "product_index"), slog.Int("count", 3))
	logger.Debug("dropped")
	cleanup()

	// Then: one JSON line at info level is present
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "index_saved", entry["msg"])
	assert.Equal(t, "product_index", entry["name"])
	assert.Equal(t, float64(3), entry["count"])
}

func TestSetup_NoOutputsDiscards(t *testing.T) {
	logger, cleanup, err := Setup(Config{Level: "debug"})
	require.NoError(t, err)
	defer cleanup()

	assert.NotPanics(t, func() { logger.Info("nothing") })
}

func TestRotatingWriter_RotatesWhenFull(t *testing.T) {
	// Given: a writer with a 1MB cap and an existing full file
	dir := t.TempDir()
	path := filepath.Join(dir, "server.log")
	require.NoError(t, os.WriteFile(path, make([]byte, 1024*1024), 0o644))

	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	// When: writing past the cap
	_, err = w.Write([]byte("fresh line\n"))
	require.NoError(t, err)

	// Then: the old content moved to .1 and the live file holds the new line
	_, err = os.Stat(path + ".1")
	assert.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fresh line\n", string(data))
}

func TestDebugConfig_UsesLogFile(t *testing.T) {
	t.Setenv(LogDirEnv, "")
	cfg := DebugConfig()
	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, DefaultLogPath(), cfg.FilePath)
	assert.True(t, strings.HasSuffix(cfg.FilePath, filepath.Join(".catalogsearch", "logs", "server.log")))

	serve := ServeConfig("warn")
	assert.False(t, serve.WriteToStderr)
}

func TestDefaultLogDir_EnvOverride(t *testing.T) {
	// Given: the log dir env var points at a temp dir
	dir := t.TempDir()
	t.Setenv(LogDirEnv, dir)

	// Then: both the dir and the server log path follow it
	assert.Equal(t, dir, DefaultLogDir())
	assert.Equal(t, filepath.Join(dir, "server.log"), DefaultLogPath())
}
