package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/catalogsearch/internal/cache"
	"github.com/Aman-CERP/catalogsearch/internal/corpus"
)

// Operation represents a file system operation type.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is a change to one corpus file.
type FileEvent struct {
	// Path is relative to the watched root.
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Options configures the watcher behavior.
type Options struct {
	// DebounceWindow is the quiet period before a batch bumps the buster.
	DebounceWindow time.Duration
	// PollInterval is the scan interval when fsnotify is unavailable.
	PollInterval time.Duration
	// ForcePolling skips fsnotify.
	ForcePolling bool
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow: 500 * time.Millisecond,
		PollInterval:   5 * time.Second,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaults.PollInterval
	}
	return o
}

// Watcher bumps a cache buster when corpus documents change.
type Watcher struct {
	root      string
	buster    cache.Buster
	opts      Options
	debouncer *Debouncer
	fsw       *fsnotify.Watcher
	ready     chan struct{}
	readyOnce sync.Once
	bumps     atomic.Uint64
}

// New creates a watcher over root. It falls back to polling when fsnotify
// cannot be initialised.
func New(root string, buster cache.Buster, opts Options) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve corpus root: %w", err)
	}
	opts = opts.WithDefaults()

	w := &Watcher{
		root:      abs,
		buster:    buster,
		opts:      opts,
		debouncer: NewDebouncer(opts.DebounceWindow),
		ready:     make(chan struct{}),
	}
	if !opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			slog.Warn("fsnotify_unavailable, falling back to polling", slog.String("error", err.Error()))
		} else {
			w.fsw = fsw
		}
	}
	return w, nil
}

// Mode returns "fsnotify" or "polling".
func (w *Watcher) Mode() string {
	if w.fsw != nil {
		return "fsnotify"
	}
	return "polling"
}

// Ready is closed once the initial watches or baseline scan are in place.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Bumps returns how many times the buster was bumped.
func (w *Watcher) Bumps() uint64 {
	return w.bumps.Load()
}

// Run watches until ctx is cancelled and then returns nil. A missing root is
// created first.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.debouncer.Stop()

	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return fmt.Errorf("create corpus dir: %w", err)
	}

	slog.Info("corpus_watch_started",
		slog.String("root", w.root),
		slog.String("mode", w.Mode()))

	if w.fsw != nil {
		defer func() { _ = w.fsw.Close() }()
		return w.runFsnotify(ctx)
	}
	return w.runPolling(ctx)
}

func (w *Watcher) runFsnotify(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return fmt.Errorf("add directories to watcher: %w", err)
	}
	w.markReady()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleFsnotify(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("corpus_watch_error", slog.String("error", err.Error()))
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return nil
			}
			w.bump(ctx, batch)
		}
	}
}

func (w *Watcher) runPolling(ctx context.Context) error {
	state := snapshot(w.root)
	w.markReady()

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			cur := snapshot(w.root)
			for _, e := range diff(state, cur, now) {
				w.debouncer.Add(e)
			}
			state = cur
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return nil
			}
			w.bump(ctx, batch)
		}
	}
}

func (w *Watcher) markReady() {
	w.readyOnce.Do(func() { close(w.ready) })
}

// handleFsnotify filters to corpus files and feeds the debouncer. New
// directories are watched as they appear.
func (w *Watcher) handleFsnotify(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				slog.Warn("corpus_watch_add_failed",
					slog.String("path", event.Name),
					slog.String("error", err.Error()))
			}
			return
		}
	}
	if !corpus.IsCorpusFile(event.Name) {
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		rel = event.Name
	}
	w.debouncer.Add(FileEvent{Path: rel, Operation: op, Timestamp: time.Now()})
}

// addRecursive watches dir and every non-hidden directory below it.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != w.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// bump records one document mutation per batch.
func (w *Watcher) bump(ctx context.Context, batch []FileEvent) {
	if len(batch) == 0 {
		return
	}
	if err := w.buster.Bump(ctx); err != nil {
		slog.Warn("buster_bump_failed",
			slog.Int("changes", len(batch)),
			slog.String("error", err.Error()))
		return
	}
	w.bumps.Add(1)
	slog.Info("buster_bumped",
		slog.String("source", "corpus_watch"),
		slog.Int("changes", len(batch)),
		slog.String("first", batch[0].Path),
		slog.String("value", cache.CurrentValue(ctx, w.buster)))
}
