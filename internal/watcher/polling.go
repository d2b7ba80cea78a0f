package watcher

import (
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/Aman-CERP/catalogsearch/internal/corpus"
)

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

// snapshot records every corpus file under root by relative path.
// Unreadable entries are skipped.
func snapshot(root string) map[string]fileSnapshot {
	state := make(map[string]fileSnapshot)
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !corpus.IsCorpusFile(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		state[rel] = fileSnapshot{modTime: info.ModTime(), size: info.Size()}
		return nil
	})
	return state
}

// diff returns the events turning prev into cur, ordered by path.
func diff(prev, cur map[string]fileSnapshot, now time.Time) []FileEvent {
	var events []FileEvent
	for path, s := range cur {
		old, ok := prev[path]
		switch {
		case !ok:
			events = append(events, FileEvent{Path: path, Operation: OpCreate, Timestamp: now})
		case !old.modTime.Equal(s.modTime) || old.size != s.size:
			events = append(events, FileEvent{Path: path, Operation: OpModify, Timestamp: now})
		}
	}
	for path := range prev {
		if _, ok := cur[path]; !ok {
			events = append(events, FileEvent{Path: path, Operation: OpDelete, Timestamp: now})
		}
	}
	slices.SortFunc(events, func(a, b FileEvent) int { return strings.Compare(a.Path, b.Path) })
	return events
}
