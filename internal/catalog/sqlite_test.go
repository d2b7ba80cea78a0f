package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/catalogsearch/internal/cache"
	"github.com/Aman-CERP/catalogsearch/internal/corpus"
	"github.com/Aman-CERP/catalogsearch/internal/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleProducts() []corpus.Product {
	return []corpus.Product{
		{ID: 1, Name: "Blue Mug", Description: "ceramic mug", Category: "Mugs", IsActive: true, Stock: 5},
		{ID: 2, Name: "Red Mug", Description: "ceramic mug", Category: "Mugs", IsActive: false, Stock: 5},
		{ID: 3, Name: "Soup Bowl", Description: "deep bowl", Category: "Bowls", IsActive: true, Stock: 0},
	}
}

func TestStore_UpsertAndList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Upsert(ctx, sampleProducts()...))

	products, err := s.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, "blue-mug", products[0].Slug)
	assert.False(t, products[1].IsActive)

	// Updating keeps the id and replaces fields
	updated := products[2]
	updated.Stock = 9
	require.NoError(t, s.Upsert(ctx, updated))
	got, err := s.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 9, got.Stock)
}

func TestStore_UpsertRejectsNamelessProducts(t *testing.T) {
	err := newTestStore(t).Upsert(context.Background(), corpus.Product{ID: 1})
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))
}

func TestStore_Eligibility(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Upsert(ctx, sampleProducts()...))

	states, err := s.Eligibility(ctx, []int64{1, 2, 3, 42})
	require.NoError(t, err)

	assert.Equal(t, corpus.ProductState{Eligible: true, Category: "Mugs"}, states[1])
	assert.False(t, states[2].Eligible, "inactive")
	assert.False(t, states[3].Eligible, "out of stock")
	_, found := states[42]
	assert.False(t, found)
}

func TestStore_MutationsBumpBuster(t *testing.T) {
	// Given: a catalog with a frozen clock
	ctx := context.Background()
	s := newTestStore(t)
	s.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	before, err := s.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, cache.DefaultBuster, before)

	// When: creating, then deleting, a product
	require.NoError(t, s.Upsert(ctx, sampleProducts()[0]))
	afterSave, err := s.Value(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, 1))
	afterDelete, err := s.Value(ctx)
	require.NoError(t, err)

	// Then: every mutation changed the value, even within one second
	assert.NotEqual(t, before, afterSave)
	assert.NotEqual(t, afterSave, afterDelete)
	assert.Equal(t, "1700000001", afterDelete)
}

func TestStore_DeleteMissingDoesNotBump(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.Delete(ctx, 77)
	assert.True(t, errors.HasCode(err, errors.ErrCodeProductNotFound))

	v, err := s.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, cache.DefaultBuster, v)
}

func TestStore_BusterPersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Bump(ctx))
	want, err := s.Value(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStore_IDsBySlug(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Upsert(ctx, sampleProducts()...))

	ids, err := s.IDsBySlug(ctx, []string{"soup-bowl", "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"soup-bowl": 3}, ids)
}

func TestImportYAML(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	path := filepath.Join(t.TempDir(), "products.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
products:
  - id: 10
    name: Espresso Cup
    description: small porcelain cup
    category: Cups
    stock: 4
  - id: 11
    slug: retired-cup
    name: Retired Cup
    category: Cups
    is_active: false
`), 0o644))

	n, err := s.ImportYAML(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	cup, err := s.Get(ctx, 10)
	require.NoError(t, err)
	assert.True(t, cup.IsActive, "is_active defaults to true")
	assert.Equal(t, "espresso-cup", cup.Slug)

	retired, err := s.Get(ctx, 11)
	require.NoError(t, err)
	assert.False(t, retired.IsActive)
	assert.Equal(t, "retired-cup", retired.Slug)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "blue-mug-350ml", Slugify("  Blue Mug (350ml)! "))
	assert.Equal(t, "café", Slugify("Café"))
	assert.Equal(t, "", Slugify("!!!"))
}
