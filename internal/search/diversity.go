package search

import "math"

// Candidate is a ranked item offered to a Reranker.
type Candidate struct {
	Pos      int
	ID       string
	Score    float64
	Category string
}

// Reranker turns a relevance-ordered candidate list into a top-k selection.
type Reranker interface {
	Rerank(candidates []Candidate, k int) []Candidate
}

var (
	_ Reranker = TopK{}
	_ Reranker = Greedy{}
	_ Reranker = (*MMR)(nil)
)

// TopK keeps the first k candidates.
type TopK struct{}

// Rerank implements Reranker.
func (TopK) Rerank(candidates []Candidate, k int) []Candidate {
	if k > len(candidates) {
		k = len(candidates)
	}
	if k < 0 {
		k = 0
	}
	out := make([]Candidate, k)
	copy(out, candidates[:k])
	return out
}

// Greedy walks candidates in score order and accepts one when its category is
// new or while fewer than max(2, k/2) items are selected. Unfilled slots are
// backfilled with the best remaining candidates, appended in score order.
type Greedy struct{}

// GreedyFloor is the number of leading slots filled regardless of category.
func GreedyFloor(k int) int {
	return max(2, k/2)
}

// Rerank implements Reranker.
func (Greedy) Rerank(candidates []Candidate, k int) []Candidate {
	if k <= 0 || len(candidates) == 0 {
		return []Candidate{}
	}

	floor := GreedyFloor(k)
	selected := make([]Candidate, 0, k)
	taken := make([]bool, len(candidates))
	seen := make(map[string]bool)
	for i, c := range candidates {
		if len(selected) >= k {
			break
		}
		if !seen[c.Category] || len(selected) < floor {
			selected = append(selected, c)
			taken[i] = true
			seen[c.Category] = true
		}
	}

	for i, c := range candidates {
		if len(selected) >= k {
			break
		}
		if !taken[i] {
			selected = append(selected, c)
		}
	}
	return selected
}

// SimilarityFunc measures redundancy between two candidates.
type SimilarityFunc func(a, b Candidate) float64

// MMR selects by Maximal Marginal Relevance: each step takes the candidate
// maximising Lambda*score - (1-Lambda)*max similarity to the selection. The
// first candidate reaching the best value wins ties. Cost is O(k*n) calls to
// Similarity.
type MMR struct {
	Lambda     float64
	Similarity SimilarityFunc
}

// DefaultMMRLambda weights relevance over diversity.
const DefaultMMRLambda = 0.7

// Rerank implements Reranker.
func (m *MMR) Rerank(candidates []Candidate, k int) []Candidate {
	if k <= 0 || len(candidates) == 0 {
		return []Candidate{}
	}

	remaining := make([]Candidate, len(candidates))
	copy(remaining, candidates)
	selected := make([]Candidate, 0, min(k, len(candidates)))

	for len(selected) < k && len(remaining) > 0 {
		best, bestScore := -1, math.Inf(-1)
		for i, c := range remaining {
			redundancy := 0.0
			for j, s := range selected {
				sim := m.Similarity(c, s)
				if j == 0 || sim > redundancy {
					redundancy = sim
				}
			}
			score := m.Lambda*c.Score - (1-m.Lambda)*redundancy
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			// Only reachable with NaN scores.
			best = 0
		}
		selected = append(selected, remaining[best])
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return selected
}
