// Package eval measures product search quality as precision at K over a
// file of labelled queries.
package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Aman-CERP/catalogsearch/internal/search"
	"github.com/Aman-CERP/catalogsearch/internal/store"
)

// LatestReport is the report file overwritten on every run.
const LatestReport = "search_eval_latest.json"

// Query is one labelled query.
type Query struct {
	Q             string   `json:"q"`
	ExpectedSlugs []string `json:"expected_slugs"`
}

// QueryResult is the outcome for one query.
type QueryResult struct {
	Q             string   `json:"q"`
	ExpectedSlugs []string `json:"expected_slugs"`
	FoundIDs      []int64  `json:"found_ids"`
	PAtK          float64  `json:"p_at_k"`
}

// Report summarises a run.
type Report struct {
	IndexVersion string        `json:"index_version"`
	K            int           `json:"k"`
	Count        int           `json:"count"`
	MacroPAtK    float64       `json:"macro_P@K"`
	Results      []QueryResult `json:"results"`
	Timestamp    int64         `json:"timestamp"`
}

// Searcher runs product searches.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]search.Result, error)
	Version(ctx context.Context) string
}

// SlugResolver maps product slugs to ids. Unknown slugs are absent.
type SlugResolver interface {
	IDsBySlug(ctx context.Context, slugs []string) (map[string]int64, error)
}

// ReadQueries parses a JSON array of {q, expected_slugs}.
func ReadQueries(r io.Reader) ([]Query, error) {
	var queries []Query
	if err := json.NewDecoder(r).Decode(&queries); err != nil {
		return nil, fmt.Errorf("decode queries: %w", err)
	}
	return queries, nil
}

// PrecisionAtK is the share of the first k found ids that are expected.
// It is 0 for k <= 0.
func PrecisionAtK(found []int64, expected map[int64]bool, k int) float64 {
	if k <= 0 {
		return 0
	}
	hits := 0
	for _, id := range found[:min(k, len(found))] {
		if expected[id] {
			hits++
		}
	}
	return float64(hits) / float64(k)
}

// Run evaluates every query at k. Slugs missing from the catalog count as
// unmatched.
func Run(ctx context.Context, s Searcher, slugs SlugResolver, queries []Query, k int, now time.Time) (*Report, error) {
	needed := make(map[string]bool)
	for _, q := range queries {
		for _, slug := range q.ExpectedSlugs {
			needed[slug] = true
		}
	}
	list := make([]string, 0, len(needed))
	for slug := range needed {
		list = append(list, slug)
	}
	slugIDs, err := slugs.IDsBySlug(ctx, list)
	if err != nil {
		return nil, fmt.Errorf("resolve slugs: %w", err)
	}

	report := &Report{
		IndexVersion: s.Version(ctx),
		K:            k,
		Count:        len(queries),
		Results:      make([]QueryResult, 0, len(queries)),
		Timestamp:    now.Unix(),
	}

	var sum float64
	for _, q := range queries {
		expected := make(map[int64]bool)
		for _, slug := range q.ExpectedSlugs {
			if id, ok := slugIDs[slug]; ok {
				expected[id] = true
			}
		}

		hits, err := s.Search(ctx, q.Q, k)
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", q.Q, err)
		}
		found := make([]int64, len(hits))
		for i, h := range hits {
			found[i] = h.ProductID
		}

		p := PrecisionAtK(found, expected, k)
		sum += p
		report.Results = append(report.Results, QueryResult{
			Q:             q.Q,
			ExpectedSlugs: q.ExpectedSlugs,
			FoundIDs:      found,
			PAtK:          round4(p),
		})
	}
	if len(queries) > 0 {
		report.MacroPAtK = round4(sum / float64(len(queries)))
	}

	slog.Info("search_eval",
		slog.Int("k", k),
		slog.Int("count", report.Count),
		slog.Float64("macro_p_at_k", report.MacroPAtK),
		slog.String("version", report.IndexVersion))
	return report, nil
}

// Write stores the report as search_eval_<unix>.json and LatestReport in dir
// and returns the path of the latter.
func Write(dir string, report *Report) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifacts dir: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	latest := filepath.Join(dir, LatestReport)
	stamped := filepath.Join(dir, "search_eval_"+strconv.FormatInt(report.Timestamp, 10)+".json")
	for _, path := range []string{stamped, latest} {
		if err := store.WriteAtomic(path, func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}); err != nil {
			return "", fmt.Errorf("write %s: %w", path, err)
		}
	}
	return latest, nil
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
