// Package index builds vector index snapshots from collaborator corpora and
// serves them lazily to query-time components.
package index

import (
	"context"
	"strconv"

	"github.com/Aman-CERP/catalogsearch/internal/corpus"
)

// Document is one unit of indexable text.
type Document struct {
	// ID identifies the document in the index.
	ID string
	// Text is vectorized after normalization.
	Text string
	// Stored is kept verbatim in the snapshot for answer assembly. Optional.
	Stored string
	// Meta is kept in the snapshot. Optional.
	Meta map[string]string
}

// DocumentSource yields the full corpus for one index kind.
type DocumentSource interface {
	Documents(ctx context.Context) ([]Document, error)
}

// ProductDocuments adapts a ProductSource. Every product is indexed, active or
// not; eligibility is applied at query time.
type ProductDocuments struct {
	Source corpus.ProductSource
}

// Documents implements DocumentSource.
func (p ProductDocuments) Documents(ctx context.Context) ([]Document, error) {
	products, err := p.Source.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, len(products))
	for i, prod := range products {
		docs[i] = Document{ID: ProductKey(prod.ID), Text: prod.Document()}
	}
	return docs, nil
}

// ChunkDocuments adapts a ChunkSource, keeping paragraph text and location.
type ChunkDocuments struct {
	Source corpus.ChunkSource
}

// Documents implements DocumentSource.
func (c ChunkDocuments) Documents(ctx context.Context) ([]Document, error) {
	chunks, err := c.Source.Chunks(ctx)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, len(chunks))
	for i, ch := range chunks {
		docs[i] = Document{
			ID:     ch.ID,
			Text:   ch.Text,
			Stored: ch.Text,
			Meta: map[string]string{
				"path":  ch.Meta.Path,
				"doc":   ch.Meta.Doc,
				"chunk": strconv.Itoa(ch.Meta.Ordinal),
			},
		}
	}
	return docs, nil
}

// ProductKey renders a product id as an index identifier.
func ProductKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ParseProductKey is the inverse of ProductKey.
func ParseProductKey(key string) (int64, bool) {
	id, err := strconv.ParseInt(key, 10, 64)
	return id, err == nil
}
