// Package store persists built vector indexes as a gob blob plus a JSON
// manifest per index kind, and hands them back as immutable snapshots.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Aman-CERP/catalogsearch/internal/vectorize"
)

// Index names used for artifacts.
const (
	ProductIndexName = "product_index"
	CorpusIndexName  = "assistant_index"
)

// DefaultVersion is reported when no manifest exists.
const DefaultVersion = "0"

// Index is an immutable snapshot of a built vector index. IDs, Vectors, and
// (when present) Texts and Meta are aligned by position and follow corpus order.
type Index struct {
	Name       string
	Version    string
	IDs        []string
	Texts      []string
	Meta       []map[string]string
	Vectors    []vectorize.SparseVector
	Vectorizer *vectorize.Vectorizer

	posOnce sync.Once
	pos     map[string]int
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	return len(idx.IDs)
}

// Dim returns the vocabulary size.
func (idx *Index) Dim() int {
	if idx.Vectorizer == nil {
		return 0
	}
	return idx.Vectorizer.Dim()
}

// Position returns the row of id.
func (idx *Index) Position(id string) (int, bool) {
	idx.posOnce.Do(func() {
		idx.pos = make(map[string]int, len(idx.IDs))
		for i, docID := range idx.IDs {
			if _, dup := idx.pos[docID]; !dup {
				idx.pos[docID] = i
			}
		}
	})
	p, ok := idx.pos[id]
	return p, ok
}

// Text returns the stored text of row i, or "" when texts were not kept.
func (idx *Index) Text(i int) string {
	if i < 0 || i >= len(idx.Texts) {
		return ""
	}
	return idx.Texts[i]
}

// MetaAt returns the metadata of row i, or nil.
func (idx *Index) MetaAt(i int) map[string]string {
	if i < 0 || i >= len(idx.Meta) {
		return nil
	}
	return idx.Meta[i]
}

// Validate checks the positional alignment of the snapshot.
func (idx *Index) Validate() error {
	if len(idx.IDs) != len(idx.Vectors) {
		return fmt.Errorf("index %s: %d ids but %d vectors", idx.Name, len(idx.IDs), len(idx.Vectors))
	}
	if len(idx.Texts) != 0 && len(idx.Texts) != len(idx.IDs) {
		return fmt.Errorf("index %s: %d ids but %d texts", idx.Name, len(idx.IDs), len(idx.Texts))
	}
	if len(idx.Meta) != 0 && len(idx.Meta) != len(idx.IDs) {
		return fmt.Errorf("index %s: %d ids but %d metadata rows", idx.Name, len(idx.IDs), len(idx.Meta))
	}
	if idx.Vectorizer == nil {
		return fmt.Errorf("index %s: missing vectorizer", idx.Name)
	}
	return nil
}

// Manifest describes the latest persisted snapshot of one index kind.
type Manifest struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	Count      int    `json:"count"`
	Dim        int    `json:"dim"`
	Vectorizer string `json:"vectorizer"`
	File       string `json:"file"`
	Timestamp  string `json:"timestamp"`
}

// IndexStore persists one index kind.
type IndexStore interface {
	// Name returns the index name this store persists.
	Name() string

	// Load returns the persisted snapshot, or nil with no error if none exists.
	// The returned version comes from the manifest, or DefaultVersion.
	Load(ctx context.Context) (*Index, error)

	// Save persists idx and overwrites the manifest.
	Save(ctx context.Context, idx *Index) error

	// Manifest returns the current manifest, or nil with no error if none exists.
	Manifest(ctx context.Context) (*Manifest, error)
}

// CurrentVersion returns the manifest version of s, or DefaultVersion when
// there is no readable manifest.
func CurrentVersion(ctx context.Context, s IndexStore) string {
	m, err := s.Manifest(ctx)
	if err != nil {
		slog.Warn("manifest_unreadable",
			slog.String("name", s.Name()),
			slog.String("error", err.Error()))
		return DefaultVersion
	}
	if m == nil || m.Version == "" {
		return DefaultVersion
	}
	return m.Version
}
