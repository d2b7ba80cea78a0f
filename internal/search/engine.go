package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Aman-CERP/catalogsearch/internal/corpus"
	"github.com/Aman-CERP/catalogsearch/internal/errors"
	"github.com/Aman-CERP/catalogsearch/internal/index"
	"github.com/Aman-CERP/catalogsearch/internal/store"
	"github.com/Aman-CERP/catalogsearch/internal/telemetry"
	"github.com/Aman-CERP/catalogsearch/internal/textnorm"
	"github.com/Aman-CERP/catalogsearch/internal/vectorize"
)

// ExplainTerms is the number of terms listed in result reasons.
const ExplainTerms = 5

// IndexSource hands out the current product index snapshot.
type IndexSource interface {
	LoadOrBuild(ctx context.Context) (*store.Index, error)
	CurrentVersion(ctx context.Context) string
}

// Result is one ranked product.
type Result struct {
	ProductID int64   `json:"product_id"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason"`
}

// RecommendOptions controls Recommend.
type RecommendOptions struct {
	K int
	// ExcludeSelf keeps the source product out of its own recommendations.
	ExcludeSelf bool
	// Diversify applies the greedy category re-ranker.
	Diversify bool
}

// Engine answers product search and recommendation queries.
type Engine struct {
	index       IndexSource
	eligibility corpus.EligibilitySource
	metrics     *telemetry.Metrics
}

// NewEngine creates an engine. eligibility may be nil, in which case every
// product is eligible and uncategorised. metrics may be nil.
func NewEngine(idx IndexSource, eligibility corpus.EligibilitySource, metrics *telemetry.Metrics) *Engine {
	return &Engine{index: idx, eligibility: eligibility, metrics: metrics}
}

// Version returns the product index version used in cache keys.
func (e *Engine) Version(ctx context.Context) string {
	return e.index.CurrentVersion(ctx)
}

// Search ranks products against free text and returns the top max(k, 1).
// Unknown query terms carry no weight, so an unrelated query returns
// low-scoring results rather than an error.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]Result, error) {
	start := time.Now()
	k = max(k, 1)

	idx, err := e.index.LoadOrBuild(ctx)
	if err != nil {
		return nil, err
	}
	if idx.Len() == 0 {
		return []Result{}, nil
	}

	qv, err := idx.Vectorizer.Transform(textnorm.Normalize(query))
	if err != nil {
		return nil, errors.New(errors.ErrCodeSearchFailed, "vectorize query", err)
	}
	ranked := ScoreQuery(qv, idx)
	if len(ranked) > k {
		ranked = ranked[:k]
	}

	reason := "Matched on features: " + explain(qv, idx)
	results := make([]Result, 0, len(ranked))
	for _, s := range ranked {
		id, ok := index.ParseProductKey(s.ID)
		if !ok {
			continue
		}
		results = append(results, Result{ProductID: id, Score: s.Score, Reason: reason})
	}

	e.record(telemetry.OpSearch, start)
	slog.Debug("product_search",
		slog.Int("query_len", len(query)),
		slog.Int("k", k),
		slog.Int("results", len(results)),
		slog.String("version", idx.Version),
		slog.Duration("duration", time.Since(start)))
	return results, nil
}

// Recommend ranks products against a source product. An id absent from the
// index yields an empty list.
func (e *Engine) Recommend(ctx context.Context, productID int64, opts RecommendOptions) ([]Result, error) {
	start := time.Now()
	k := max(opts.K, 1)

	idx, src, candidates, err := e.candidates(ctx, productID, opts.ExcludeSelf)
	if err != nil || idx == nil {
		return []Result{}, err
	}

	var reranker Reranker = TopK{}
	if opts.Diversify {
		reranker = Greedy{}
	}
	selected := reranker.Rerank(candidates, k)

	e.record(telemetry.OpRecommend, start)
	slog.Debug("product_recommend",
		slog.Int64("product_id", productID),
		slog.Int("k", k),
		slog.Bool("exclude_self", opts.ExcludeSelf),
		slog.Bool("diversify", opts.Diversify),
		slog.Int("results", len(selected)),
		slog.Duration("duration", time.Since(start)))
	return toResults(selected, "Similar products (shared features: "+explain(src, idx)+")"), nil
}

// RecommendMMR recommends with Maximal Marginal Relevance over the eligible
// products, excluding the source. lambda must lie in [0, 1]; 1 is pure
// relevance, 0 favours dissimilarity to what was already picked. Scores in
// the result are relevance to the source.
func (e *Engine) RecommendMMR(ctx context.Context, productID int64, k int, lambda float64) ([]Result, error) {
	start := time.Now()
	if lambda < 0 || lambda > 1 {
		return nil, errors.ValidationError(fmt.Sprintf("mmr lambda %.2f outside [0, 1]", lambda), nil)
	}
	k = max(k, 1)

	idx, src, candidates, err := e.candidates(ctx, productID, true)
	if err != nil || idx == nil {
		return []Result{}, err
	}

	mmr := &MMR{
		Lambda: lambda,
		Similarity: func(a, b Candidate) float64 {
			return vectorize.Cosine(idx.Vectors[a.Pos], idx.Vectors[b.Pos])
		},
	}
	selected := mmr.Rerank(candidates, k)

	e.record(telemetry.OpRecommendMMR, start)
	slog.Debug("product_recommend_mmr",
		slog.Int64("product_id", productID),
		slog.Int("k", k),
		slog.Float64("lambda", lambda),
		slog.Int("results", len(selected)),
		slog.Duration("duration", time.Since(start)))
	return toResults(selected, "MMR diversification (features: "+explain(src, idx)+")"), nil
}

// candidates ranks the index against productID and keeps eligible products.
// A nil index means there is nothing to recommend.
func (e *Engine) candidates(ctx context.Context, productID int64, excludeSelf bool) (*store.Index, vectorize.SparseVector, []Candidate, error) {
	idx, err := e.index.LoadOrBuild(ctx)
	if err != nil {
		return nil, vectorize.SparseVector{}, nil, err
	}
	if idx.Len() == 0 {
		return nil, vectorize.SparseVector{}, nil, nil
	}

	key := index.ProductKey(productID)
	srcPos, ok := idx.Position(key)
	if !ok {
		return nil, vectorize.SparseVector{}, nil, nil
	}
	src := idx.Vectors[srcPos]

	scored := make([]Scored, idx.Len())
	for i, row := range idx.Vectors {
		scored[i] = Scored{Pos: i, ID: idx.IDs[i], Score: vectorize.Cosine(src, row)}
	}
	if excludeSelf {
		scored[srcPos].Score = -1
	}
	sortScored(scored)

	ids := make([]int64, 0, len(scored))
	for _, s := range scored {
		if id, ok := index.ParseProductKey(s.ID); ok {
			ids = append(ids, id)
		}
	}
	states := map[int64]corpus.ProductState{}
	if e.eligibility != nil {
		states, err = e.eligibility.Eligibility(ctx, ids)
		if err != nil {
			return nil, vectorize.SparseVector{}, nil, errors.New(errors.ErrCodeCatalogUnavailable, "load product eligibility", err)
		}
	}

	out := make([]Candidate, 0, len(scored))
	for _, s := range scored {
		if excludeSelf && s.Pos == srcPos {
			continue
		}
		id, ok := index.ParseProductKey(s.ID)
		if !ok {
			continue
		}
		state, known := states[id]
		if known && !state.Eligible {
			continue
		}
		out = append(out, Candidate{Pos: s.Pos, ID: s.ID, Score: s.Score, Category: state.Category})
	}
	return idx, src, out, nil
}

func (e *Engine) record(op string, start time.Time) {
	e.metrics.RecordDuration(op, time.Since(start))
	e.metrics.Incr(op+"_calls", 1)
}

func explain(vec vectorize.SparseVector, idx *store.Index) string {
	return strings.Join(vectorize.Explain(vec, idx.Vectorizer.Terms(), ExplainTerms), ", ")
}

func toResults(selected []Candidate, reason string) []Result {
	out := make([]Result, 0, len(selected))
	for _, c := range selected {
		id, ok := index.ParseProductKey(c.ID)
		if !ok {
			continue
		}
		out = append(out, Result{ProductID: id, Score: c.Score, Reason: reason})
	}
	return out
}
