package index

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/catalogsearch/internal/corpus"
	"github.com/Aman-CERP/catalogsearch/internal/errors"
	"github.com/Aman-CERP/catalogsearch/internal/store"
	"github.com/Aman-CERP/catalogsearch/internal/telemetry"
)

// countingSource wraps a DocumentSource and counts fetches.
type countingSource struct {
	inner DocumentSource
	calls atomic.Int32
}

func (c *countingSource) Documents(ctx context.Context) ([]Document, error) {
	c.calls.Add(1)
	return c.inner.Documents(ctx)
}

type failingSource struct{}

func (failingSource) Documents(context.Context) ([]Document, error) {
	return nil, stderrors.New("database is locked")
}

func testProducts() corpus.StaticProducts {
	return corpus.StaticProducts{
		{ID: 11, Name: "Blue Ceramic Mug", Description: "350ml mug for coffee", Category: "Mugs", IsActive: true, Stock: 4},
		{ID: 12, Name: "Steel Teapot", Description: "loose leaf tea", Category: "Tea", IsActive: true, Stock: 1},
		{ID: 13, Name: "Oak Cutting Board", Description: "solid wood", Category: "Kitchen", IsActive: false, Stock: 0},
	}
}

func TestProvider_BuildProducts(t *testing.T) {
	// Given: three products in the catalog
	ctx := context.Background()
	s := store.NewMemoryStore(store.ProductIndexName)
	p := NewProvider(ProductDocuments{Source: testProducts()}, s)

	// When: building without a version
	idx, err := p.Build(ctx, "")
	require.NoError(t, err)

	// Then: all products (inactive included) are indexed in corpus order
	assert.Equal(t, []string{"11", "12", "13"}, idx.IDs)
	assert.Equal(t, len(idx.IDs), len(idx.Vectors))
	assert.Equal(t, "3", idx.Version, "default version is the document count")
	assert.Nil(t, idx.Texts)
	assert.Equal(t, "3", p.CurrentVersion(ctx))

	_, ok := idx.Vectorizer.Vocabulary["ceramic mug"]
	assert.True(t, ok, "bigrams are indexed")
}

func TestProvider_BuildCorpusKeepsTextAndMeta(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "faq.md"),
		[]byte("How do I reset my password?\n\nShipping takes three days."), 0o644))

	p := NewProvider(ChunkDocuments{Source: corpus.NewDirSource(root)}, store.NewMemoryStore(store.CorpusIndexName))
	idx, err := p.Build(ctx, "v1")
	require.NoError(t, err)

	assert.Equal(t, []string{"faq.md:0", "faq.md:1"}, idx.IDs)
	assert.Equal(t, "How do I reset my password?", idx.Text(0))
	assert.Equal(t, map[string]string{
		"path":  filepath.Join(root, "faq.md"),
		"doc":   "faq.md",
		"chunk": "1",
	}, idx.MetaAt(1))
	assert.Equal(t, "v1", idx.Version)
}

func TestProvider_EmptyCorpusBuildsDegenerateIndex(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(ProductDocuments{Source: corpus.StaticProducts{}}, store.NewMemoryStore(store.ProductIndexName))

	idx, err := p.Build(ctx, "")
	require.NoError(t, err)

	assert.Equal(t, 0, idx.Len())
	assert.Empty(t, idx.Vectors)
	assert.Equal(t, "0", idx.Version)
	assert.True(t, idx.Vectorizer.Fitted)
	assert.Equal(t, 1, idx.Dim(), "placeholder token only")
}

func TestProvider_SourceFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := store.NewFileStore(dir, store.ProductIndexName)
	p := NewProvider(failingSource{}, s)

	_, err := p.Build(ctx, "9")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeCorpusUnreachable))
	assert.True(t, errors.IsFatal(err))

	_, statErr := os.Stat(s.BlobPath())
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(s.ManifestPath())
	assert.True(t, os.IsNotExist(statErr))
}

func TestProvider_LoadOrBuildIsLazy(t *testing.T) {
	// Given: nothing persisted yet
	ctx := context.Background()
	src := &countingSource{inner: ProductDocuments{Source: testProducts()}}
	s := store.NewFileStore(t.TempDir(), store.ProductIndexName)
	p := NewProvider(src, s)

	// When: the first query-time call happens
	first, err := p.LoadOrBuild(ctx)
	require.NoError(t, err)

	// Then: it builds once and later calls reuse the snapshot
	second, err := p.LoadOrBuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.calls.Load())
	assert.Same(t, first, second)

	// And: a fresh provider over the same artifacts loads instead of building
	other := &countingSource{inner: ProductDocuments{Source: testProducts()}}
	loaded, err := NewProvider(other, s).LoadOrBuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(0), other.calls.Load())
	assert.Equal(t, first.IDs, loaded.IDs)
}

func TestProvider_LoadOrBuildSeesRebuildsFromElsewhere(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	reader := NewProvider(ProductDocuments{Source: testProducts()}, store.NewFileStore(dir, store.ProductIndexName))
	writer := NewProvider(ProductDocuments{Source: testProducts()[:1]}, store.NewFileStore(dir, store.ProductIndexName))

	_, err := reader.LoadOrBuild(ctx)
	require.NoError(t, err)

	_, err = writer.Build(ctx, "rebuilt")
	require.NoError(t, err)

	idx, err := reader.LoadOrBuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, "rebuilt", idx.Version)
	assert.Equal(t, 1, idx.Len())
}

func TestProvider_LoadOrBuildWithLockAndCorruptArtifact(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := store.NewFileStore(dir, store.ProductIndexName)
	require.NoError(t, os.WriteFile(s.BlobPath(), []byte("not gob"), 0o644))

	p := NewProvider(ProductDocuments{Source: testProducts()}, s,
		WithLock(store.NewFileLock(dir, store.ProductIndexName)))

	idx, err := p.LoadOrBuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())
}

func TestProductKey(t *testing.T) {
	id, ok := ParseProductKey(ProductKey(42))
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok = ParseProductKey("faq.md:0")
	assert.False(t, ok)
}

func TestProvider_WithMetricsRecordsBuilds(t *testing.T) {
	metrics := telemetry.NewMetrics()
	p := NewProvider(ProductDocuments{Source: testProducts()}, store.NewMemoryStore(store.ProductIndexName), WithMetrics(metrics))

	_, err := p.Build(context.Background(), "v1")
	require.NoError(t, err)

	assert.Contains(t, metrics.Snapshot().Operations, telemetry.OpBuild)
}
