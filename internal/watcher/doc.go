// Package watcher keeps result caches honest while the help corpus is edited.
//
// A Watcher observes the corpus directory with fsnotify, or by polling where
// fsnotify cannot start, and bumps the cache buster once per debounced batch
// of .md/.txt changes. It never rebuilds the index; that stays an explicit
// operation.
//
// Usage:
//
//	w, err := watcher.New(corpusDir, buster, watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	return w.Run(ctx) // returns nil once ctx is cancelled
package watcher
