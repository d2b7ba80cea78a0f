package store

import (
	"context"
	"sync"
	"time"

	"github.com/Aman-CERP/catalogsearch/internal/vectorize"
)

// MemoryStore is an in-process IndexStore for tests and embedding callers.
type MemoryStore struct {
	name string

	mu       sync.RWMutex
	idx      *Index
	manifest *Manifest
}

var _ IndexStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store for the named index.
func NewMemoryStore(name string) *MemoryStore {
	return &MemoryStore{name: name}
}

// Name implements IndexStore.
func (s *MemoryStore) Name() string { return s.name }

// Load implements IndexStore.
func (s *MemoryStore) Load(ctx context.Context) (*Index, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.idx == nil {
		return nil, nil
	}
	version := DefaultVersion
	if s.manifest != nil && s.manifest.Version != "" {
		version = s.manifest.Version
	}
	return &Index{
		Name:       s.name,
		Version:    version,
		IDs:        s.idx.IDs,
		Texts:      s.idx.Texts,
		Meta:       s.idx.Meta,
		Vectors:    s.idx.Vectors,
		Vectorizer: s.idx.Vectorizer,
	}, nil
}

// Save implements IndexStore.
func (s *MemoryStore) Save(ctx context.Context, idx *Index) error {
	if err := idx.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.idx = idx
	s.manifest = &Manifest{
		Name:       s.name,
		Version:    idx.Version,
		Count:      idx.Len(),
		Dim:        idx.Dim(),
		Vectorizer: vectorize.Descriptor,
		Timestamp:  formatTimestamp(time.Now()),
	}
	return nil
}

// Manifest implements IndexStore.
func (s *MemoryStore) Manifest(ctx context.Context) (*Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.manifest == nil {
		return nil, nil
	}
	m := *s.manifest
	return &m, nil
}
