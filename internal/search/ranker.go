// Package search ranks indexed products by cosine similarity and re-ranks
// the ranked list for category diversity.
package search

import (
	"sort"

	"github.com/Aman-CERP/catalogsearch/internal/store"
	"github.com/Aman-CERP/catalogsearch/internal/vectorize"
)

// Scored is one row of an index with its similarity to a query or source item.
type Scored struct {
	Pos   int
	ID    string
	Score float64
}

// ScoreQuery ranks every row of idx by cosine similarity to q, highest first.
// Ties keep corpus order.
func ScoreQuery(q vectorize.SparseVector, idx *store.Index) []Scored {
	scored := make([]Scored, idx.Len())
	for i, row := range idx.Vectors {
		scored[i] = Scored{Pos: i, ID: idx.IDs[i], Score: vectorize.Cosine(q, row)}
	}
	sortScored(scored)
	return scored
}

// ScoreAgainstItem ranks every row of idx against the row of id. The source
// row itself is included. It reports false when id is not indexed.
func ScoreAgainstItem(id string, idx *store.Index) ([]Scored, bool) {
	pos, ok := idx.Position(id)
	if !ok {
		return nil, false
	}
	return ScoreQuery(idx.Vectors[pos], idx), true
}

func sortScored(scored []Scored) {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
}
