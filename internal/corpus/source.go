// Package corpus defines the documents the engine indexes and the collaborator
// contracts that supply them.
package corpus

import "context"

// Product is a catalog record as seen by the product index.
type Product struct {
	ID          int64  `yaml:"id" json:"id"`
	Slug        string `yaml:"slug" json:"slug"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Category    string `yaml:"category" json:"category"`
	IsActive    bool   `yaml:"is_active" json:"is_active"`
	Stock       int    `yaml:"stock" json:"stock"`
}

// Document returns the raw text indexed for p.
func (p Product) Document() string {
	return p.Name + " " + p.Description + " " + p.Category
}

// Eligible reports whether p may be recommended.
func (p Product) Eligible() bool {
	return p.IsActive && p.Stock > 0
}

// ProductSource lists every product, active or not.
type ProductSource interface {
	ListProducts(ctx context.Context) ([]Product, error)
}

// ProductState is the recommendation-time view of a product.
type ProductState struct {
	Eligible bool
	Category string
}

// EligibilitySource reports the current state of products. Ids missing from
// the returned map are treated as eligible with no category.
type EligibilitySource interface {
	Eligibility(ctx context.Context, ids []int64) (map[int64]ProductState, error)
}

// Chunk is one paragraph of a help document.
type Chunk struct {
	ID   string
	Text string
	Meta ChunkMeta
}

// ChunkMeta locates a chunk in its source document.
type ChunkMeta struct {
	Path    string
	Doc     string
	Ordinal int
}

// ChunkSource yields the help corpus.
type ChunkSource interface {
	Chunks(ctx context.Context) ([]Chunk, error)
}

// StaticProducts serves a fixed product list. It implements both
// ProductSource and EligibilitySource.
type StaticProducts []Product

var (
	_ ProductSource     = StaticProducts(nil)
	_ EligibilitySource = StaticProducts(nil)
)

// ListProducts implements ProductSource.
func (s StaticProducts) ListProducts(ctx context.Context) ([]Product, error) {
	out := make([]Product, len(s))
	copy(out, s)
	return out, nil
}

// Eligibility implements EligibilitySource.
func (s StaticProducts) Eligibility(ctx context.Context, ids []int64) (map[int64]ProductState, error) {
	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make(map[int64]ProductState, len(ids))
	for _, p := range s {
		if _, ok := want[p.ID]; ok {
			out[p.ID] = ProductState{Eligible: p.Eligible(), Category: p.Category}
		}
	}
	return out, nil
}
