package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/catalogsearch/internal/cache"
)

func TestOperation_String(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpCreate, "CREATE"},
		{OpModify, "MODIFY"},
		{OpDelete, "DELETE"},
		{OpRename, "RENAME"},
		{Operation(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.op.String())
		})
	}
}

func TestOptions_WithDefaults(t *testing.T) {
	o := Options{}.WithDefaults()
	assert.Equal(t, DefaultOptions().DebounceWindow, o.DebounceWindow)
	assert.Equal(t, DefaultOptions().PollInterval, o.PollInterval)

	custom := Options{DebounceWindow: time.Second}.WithDefaults()
	assert.Equal(t, time.Second, custom.DebounceWindow)
}

func TestDiff(t *testing.T) {
	t0 := time.Unix(1000, 0)
	t1 := time.Unix(2000, 0)
	prev := map[string]fileSnapshot{
		"keep.md":    {modTime: t0, size: 10},
		"edit.md":    {modTime: t0, size: 10},
		"removed.md": {modTime: t0, size: 10},
	}
	cur := map[string]fileSnapshot{
		"keep.md":  {modTime: t0, size: 10},
		"edit.md":  {modTime: t1, size: 10},
		"added.md": {modTime: t1, size: 3},
	}

	events := diff(prev, cur, t1)

	require.Len(t, events, 3)
	assert.Equal(t, FileEvent{Path: "added.md", Operation: OpCreate, Timestamp: t1}, events[0])
	assert.Equal(t, FileEvent{Path: "edit.md", Operation: OpModify, Timestamp: t1}, events[1])
	assert.Equal(t, FileEvent{Path: "removed.md", Operation: OpDelete, Timestamp: t1}, events[2])
}

func TestSnapshot_OnlyCorpusFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.md"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.TXT"), []byte("y"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "c.go"), []byte("z"), 0o644))

	state := snapshot(root)

	assert.Len(t, state, 2)
	assert.Contains(t, state, "a.md")
	assert.Contains(t, state, filepath.Join("sub", "b.TXT"))
}

func runWatcher(t *testing.T, opts Options) (string, *cache.MemoryBuster, *Watcher) {
	t.Helper()
	root := t.TempDir()
	buster := cache.NewMemoryBuster()
	w, err := New(root, buster, opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	select {
	case <-w.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher never became ready")
	}
	return root, buster, w
}

func busterValue(b *cache.MemoryBuster) string {
	v, _ := b.Value(context.Background())
	return v
}

func TestWatcher_CorpusChangeBumpsBuster(t *testing.T) {
	for _, opts := range []Options{
		{DebounceWindow: 20 * time.Millisecond},
		{DebounceWindow: 20 * time.Millisecond, PollInterval: 20 * time.Millisecond, ForcePolling: true},
	} {
		t.Run(map[bool]string{false: "fsnotify", true: "polling"}[opts.ForcePolling], func(t *testing.T) {
			// Given: a running watcher over an empty corpus
			root, buster, w := runWatcher(t, opts)
			require.Equal(t, cache.DefaultBuster, busterValue(buster))

			// When: a help document is written
			require.NoError(t, os.WriteFile(filepath.Join(root, "faq.md"), []byte("hello"), 0o644))

			// Then: the buster moves off its default
			assert.Eventually(t, func() bool {
				return busterValue(buster) != cache.DefaultBuster
			}, 3*time.Second, 10*time.Millisecond)
			assert.GreaterOrEqual(t, w.Bumps(), uint64(1))
		})
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	root, buster, _ := runWatcher(t, Options{DebounceWindow: 20 * time.Millisecond})

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.go"), []byte("package x"), 0o644))

	assert.Never(t, func() bool {
		return busterValue(buster) != cache.DefaultBuster
	}, 200*time.Millisecond, 20*time.Millisecond)
}

func TestWatcher_CreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "missing", "corpus")
	w, err := New(root, cache.NewMemoryBuster(), Options{ForcePolling: true})
	require.NoError(t, err)
	assert.Equal(t, "polling", w.Mode())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	<-w.Ready()
	cancel()
	require.NoError(t, <-done)

	assert.DirExists(t, root)
}
