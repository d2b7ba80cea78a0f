package vectorize

import "sort"

// Explain returns up to topK terms of vec ordered by descending weight. Equal
// weights put the higher column first. terms maps column to term (see
// Vectorizer.Terms); columns outside it are skipped.
func Explain(vec SparseVector, terms []string, topK int) []string {
	if topK <= 0 || vec.Len() == 0 {
		return nil
	}

	type pair struct {
		weight float64
		col    int
	}
	pairs := make([]pair, 0, vec.Len())
	for i, col := range vec.Indices {
		if vec.Values[i] == 0 {
			continue
		}
		pairs = append(pairs, pair{weight: vec.Values[i], col: col})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].weight != pairs[j].weight {
			return pairs[i].weight > pairs[j].weight
		}
		return pairs[i].col > pairs[j].col
	})
	if len(pairs) > topK {
		pairs = pairs[:topK]
	}

	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if p.col < 0 || p.col >= len(terms) {
			continue
		}
		out = append(out, terms[p.col])
	}
	return out
}
