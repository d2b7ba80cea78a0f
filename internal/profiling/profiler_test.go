package profiling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_Enabled(t *testing.T) {
	assert.False(t, Options{}.Enabled())
	assert.True(t, Options{MemPath: "heap.prof"}.Enabled())
}

func TestSession_WritesAllProfiles(t *testing.T) {
	// Given: every profile requested
	dir := t.TempDir()
	opts := Options{
		CPUPath:   filepath.Join(dir, "cpu.prof"),
		MemPath:   filepath.Join(dir, "heap.prof"),
		TracePath: filepath.Join(dir, "trace.out"),
	}

	// When: a session runs some work and stops
	s, err := Start(opts)
	require.NoError(t, err)
	sum := 0
	for i := 0; i < 1000000; i++ {
		sum += i
	}
	_ = sum
	require.NoError(t, s.Stop())

	// Then: each file exists and is non-empty
	for _, path := range []string{opts.CPUPath, opts.MemPath, opts.TracePath} {
		info, err := os.Stat(path)
		require.NoError(t, err, path)
		assert.Greater(t, info.Size(), int64(0), path)
	}

	// And: stopping again is a no-op
	assert.NoError(t, s.Stop())
}

func TestStart_BadPathLeavesNothingRunning(t *testing.T) {
	dir := t.TempDir()

	_, err := Start(Options{
		CPUPath:   filepath.Join(dir, "cpu.prof"),
		TracePath: filepath.Join(dir, "missing", "trace.out"),
	})
	require.Error(t, err)

	// CPU profiling was stopped, so a new session can start it again.
	s, err := Start(Options{CPUPath: filepath.Join(dir, "cpu2.prof")})
	require.NoError(t, err)
	require.NoError(t, s.Stop())
}

func TestWriteHeap_BadPath(t *testing.T) {
	err := WriteHeap(filepath.Join(t.TempDir(), "missing", "heap.prof"))
	assert.Error(t, err)
}
