package store

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/catalogsearch/internal/errors"
	"github.com/Aman-CERP/catalogsearch/internal/vectorize"
)

// blob is the gob payload of an index artifact.
type blob struct {
	Version    string
	IDs        []string
	Texts      []string
	Meta       []map[string]string
	Vectors    []vectorize.SparseVector
	Vectorizer *vectorize.Vectorizer
}

// FileStore keeps <name>.gob and <name>_manifest.json in an artifacts directory.
// Each file is replaced atomically, but the pair is not: a crash between the
// two writes leaves a new blob next to the old manifest, and Load trusts the
// manifest's version.
type FileStore struct {
	dir  string
	name string
	now  func() time.Time
}

var _ IndexStore = (*FileStore)(nil)

// NewFileStore creates a store for the named index under dir.
func NewFileStore(dir, name string) *FileStore {
	return &FileStore{dir: dir, name: name, now: time.Now}
}

// Name implements IndexStore.
func (s *FileStore) Name() string { return s.name }

// BlobPath returns the artifact path.
func (s *FileStore) BlobPath() string {
	return filepath.Join(s.dir, s.blobFile())
}

// ManifestPath returns the manifest path.
func (s *FileStore) ManifestPath() string {
	return filepath.Join(s.dir, s.name+"_manifest.json")
}

func (s *FileStore) blobFile() string {
	return s.name + ".gob"
}

// Load implements IndexStore.
func (s *FileStore) Load(ctx context.Context) (*Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(s.BlobPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.New(errors.ErrCodeFilePermission, "open index artifact", err).
			WithDetail("path", s.BlobPath())
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("failed to close index artifact", slog.String("error", closeErr.Error()))
		}
	}()

	var b blob
	if err := gob.NewDecoder(file).Decode(&b); err != nil {
		return nil, errors.New(errors.ErrCodeCorruptIndex, "decode index artifact", err).
			WithDetail("path", s.BlobPath()).
			WithSuggestion("rebuild the index with 'catalogsearch index build'")
	}

	idx := &Index{
		Name:       s.name,
		Version:    CurrentVersion(ctx, s),
		IDs:        b.IDs,
		Texts:      b.Texts,
		Meta:       b.Meta,
		Vectors:    b.Vectors,
		Vectorizer: b.Vectorizer,
	}
	if err := idx.Validate(); err != nil {
		return nil, errors.New(errors.ErrCodeCorruptIndex, err.Error(), err).
			WithDetail("path", s.BlobPath())
	}
	return idx, nil
}

// Save implements IndexStore.
func (s *FileStore) Save(ctx context.Context, idx *Index) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := idx.Validate(); err != nil {
		return errors.New(errors.ErrCodeInvalidInput, "refusing to save invalid index", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.New(errors.ErrCodeArtifactWrite, "create artifacts directory", err).
			WithDetail("path", s.dir)
	}

	b := blob{
		Version:    idx.Version,
		IDs:        idx.IDs,
		Texts:      idx.Texts,
		Meta:       idx.Meta,
		Vectors:    idx.Vectors,
		Vectorizer: idx.Vectorizer,
	}
	if err := WriteAtomic(s.BlobPath(), func(w io.Writer) error {
		return gob.NewEncoder(w).Encode(b)
	}); err != nil {
		return errors.New(errors.ErrCodeArtifactWrite, "write index artifact", err).
			WithDetail("path", s.BlobPath())
	}

	m := Manifest{
		Name:       s.name,
		Version:    idx.Version,
		Count:      idx.Len(),
		Dim:        idx.Dim(),
		Vectorizer: vectorize.Descriptor,
		File:       s.blobFile(),
		Timestamp:  formatTimestamp(s.now()),
	}
	if err := WriteAtomic(s.ManifestPath(), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}); err != nil {
		return errors.New(errors.ErrCodeArtifactWrite, "write index manifest", err).
			WithDetail("path", s.ManifestPath())
	}

	slog.Info("index_saved",
		slog.String("name", s.name),
		slog.String("version", m.Version),
		slog.Int("count", m.Count),
		slog.Int("dim", m.Dim))
	return nil
}

// Manifest implements IndexStore.
func (s *FileStore) Manifest(ctx context.Context) (*Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.ManifestPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.New(errors.ErrCodeFilePermission, "read index manifest", err).
			WithDetail("path", s.ManifestPath())
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.New(errors.ErrCodeManifestCorrupt, "parse index manifest", err).
			WithDetail("path", s.ManifestPath())
	}
	return &m, nil
}

// WriteAtomic writes through a temp file in the target directory and renames
// it over path.
func WriteAtomic(path string, write func(io.Writer) error) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if err := write(file); err != nil {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("failed to close temp file during cleanup", slog.String("error", closeErr.Error()))
		}
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encode: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// formatTimestamp renders t as ISO-8601 UTC with a Z suffix.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000Z")
}
