package eval

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/catalogsearch/internal/search"
)

type fakeSearcher struct {
	results map[string][]int64
}

func (f fakeSearcher) Search(_ context.Context, q string, k int) ([]search.Result, error) {
	ids := f.results[q]
	out := make([]search.Result, 0, k)
	for _, id := range ids[:min(k, len(ids))] {
		out = append(out, search.Result{ProductID: id})
	}
	return out, nil
}

func (fakeSearcher) Version(context.Context) string { return "7" }

type fakeSlugs map[string]int64

func (f fakeSlugs) IDsBySlug(_ context.Context, slugs []string) (map[string]int64, error) {
	out := make(map[string]int64)
	for _, s := range slugs {
		if id, ok := f[s]; ok {
			out[s] = id
		}
	}
	return out, nil
}

func TestPrecisionAtK(t *testing.T) {
	expected := map[int64]bool{1: true, 3: true}

	tests := []struct {
		name  string
		found []int64
		k     int
		want  float64
	}{
		{"all hits", []int64{1, 3}, 2, 1.0},
		{"half", []int64{1, 2}, 2, 0.5},
		{"short list divides by k", []int64{1}, 4, 0.25},
		{"only first k count", []int64{2, 1, 3}, 1, 0},
		{"zero k", []int64{1}, 0, 0},
		{"nothing found", nil, 3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PrecisionAtK(tt.found, expected, tt.k), 1e-9)
		})
	}
}

func TestRun_MacroAverage(t *testing.T) {
	// Given: two labelled queries, one with an unknown slug
	s := fakeSearcher{results: map[string][]int64{
		"teapot": {10, 11, 12},
		"mug":    {20, 21, 22},
	}}
	slugs := fakeSlugs{"steel-teapot": 10, "red-mug": 22}
	queries := []Query{
		{Q: "teapot", ExpectedSlugs: []string{"steel-teapot"}},
		{Q: "mug", ExpectedSlugs: []string{"red-mug", "gone"}},
	}

	// When: evaluating at k=3
	report, err := Run(context.Background(), s, slugs, queries, 3, time.Unix(1700000000, 0))
	require.NoError(t, err)

	// Then: each query scores 1/3 and the macro average matches
	assert.Equal(t, "7", report.IndexVersion)
	assert.Equal(t, 2, report.Count)
	require.Len(t, report.Results, 2)
	assert.Equal(t, 0.3333, report.Results[0].PAtK)
	assert.Equal(t, []int64{20, 21, 22}, report.Results[1].FoundIDs)
	assert.Equal(t, 0.3333, report.MacroPAtK)
	assert.Equal(t, int64(1700000000), report.Timestamp)
}

func TestRun_NoQueries(t *testing.T) {
	report, err := Run(context.Background(), fakeSearcher{}, fakeSlugs{}, nil, 10, time.Now())
	require.NoError(t, err)
	assert.Zero(t, report.MacroPAtK)
	assert.NotNil(t, report.Results)
}

func TestReadQueries(t *testing.T) {
	queries, err := ReadQueries(strings.NewReader(`[{"q": "thé vert", "expected_slugs": ["green-tea"]}]`))
	require.NoError(t, err)
	require.Len(t, queries, 1)
	assert.Equal(t, "thé vert", queries[0].Q)

	_, err = ReadQueries(strings.NewReader(`{"q": 1}`))
	assert.Error(t, err)
}

func TestWrite_StampedAndLatest(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	report := &Report{IndexVersion: "3", K: 5, Timestamp: 1700000000, Results: []QueryResult{}}

	latest, err := Write(dir, report)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, LatestReport), latest)
	assert.FileExists(t, filepath.Join(dir, "search_eval_1700000000.json"))

	data, err := os.ReadFile(latest)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "3", got["index_version"])
	assert.Contains(t, got, "macro_P@K")
}
