package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/catalogsearch/internal/assistant"
	"github.com/Aman-CERP/catalogsearch/internal/config"
	"github.com/Aman-CERP/catalogsearch/internal/errors"
	"github.com/Aman-CERP/catalogsearch/internal/eval"
	"github.com/Aman-CERP/catalogsearch/internal/search"
)

type resultsOutput struct {
	Version string          `json:"version"`
	Results []search.Result `json:"results"`
}

func importSeed(t *testing.T, dir string) {
	t.Helper()
	out, err := runCLI(t, "catalog", "import", filepath.Join(dir, "products.yaml"), "--dir", dir)
	require.NoError(t, err)
	require.Contains(t, out, "imported 4 product(s)")
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

// =============================================================================
// Catalog and index
// =============================================================================

func TestCatalog_ImportThenDelete(t *testing.T) {
	// Given: a fresh project
	dir := newProject(t)

	// When: the seed is imported
	out, err := runCLI(t, "catalog", "import", filepath.Join(dir, "products.yaml"), "--dir", dir, "--format", "json")
	require.NoError(t, err)

	// Then: all products are stored and the buster has moved
	imported := decode[map[string]any](t, out)
	assert.Equal(t, float64(4), imported["imported"])
	firstBuster := imported["buster"]
	assert.NotEqual(t, "0", firstBuster)

	// When: one product is deleted
	out, err = runCLI(t, "catalog", "delete", "2", "--dir", dir, "--format", "json")
	require.NoError(t, err)

	// Then: the buster moves again
	deleted := decode[map[string]any](t, out)
	assert.NotEqual(t, firstBuster, deleted["buster"])

	// And: deleting it twice fails
	_, err = runCLI(t, "catalog", "delete", "2", "--dir", dir)
	assert.Error(t, err)
}

func TestCatalog_DeleteRejectsBadID(t *testing.T) {
	dir := newProject(t)

	_, err := runCLI(t, "catalog", "delete", "abc", "--dir", dir)
	assert.Error(t, err)
}

func TestProjectDir_MustBeDirectory(t *testing.T) {
	dir := newProject(t)
	file := filepath.Join(dir, "products.yaml")

	tests := []struct {
		name string
		args []string
	}{
		{"missing dir", []string{"search", "teapot", "--dir", filepath.Join(dir, "missing")}},
		{"file as dir", []string{"index", "info", "--dir", file}},
		{"config init", []string{"config", "init", "--dir", file}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidPath), err.Error())
		})
	}
}

func TestIndex_BuildAndInfo(t *testing.T) {
	dir := newProject(t)
	importSeed(t, dir)

	// Given: nothing has been built
	out, err := runCLI(t, "index", "info", "--dir", dir, "--format", "json")
	require.NoError(t, err)
	info := decode[struct {
		Indexes []indexSummary `json:"indexes"`
		Buster  string         `json:"buster"`
	}](t, out)
	require.Len(t, info.Indexes, 2)
	assert.False(t, info.Indexes[0].Built)
	assert.Equal(t, "0", info.Indexes[0].Version)

	// When: both indexes are built
	out, err = runCLI(t, "index", "build", "products", "--dir", dir, "--format", "json")
	require.NoError(t, err)
	built := decode[indexSummary](t, out)
	assert.Equal(t, "4", built.Version, "default version is the document count")
	assert.Equal(t, 4, built.Count)

	_, err = runCLI(t, "index", "build", "corpus", "--idx-version", "v7", "--dir", dir)
	require.NoError(t, err)

	// Then: info reports both manifests
	out, err = runCLI(t, "index", "info", "--dir", dir, "--format", "json")
	require.NoError(t, err)
	info = decode[struct {
		Indexes []indexSummary `json:"indexes"`
		Buster  string         `json:"buster"`
	}](t, out)
	assert.True(t, info.Indexes[0].Built)
	assert.Equal(t, "product_index", info.Indexes[0].Name)
	assert.Equal(t, "assistant_index", info.Indexes[1].Name)
	assert.Equal(t, "v7", info.Indexes[1].Version)
	assert.Equal(t, 2, info.Indexes[1].Count)
	assert.NotEqual(t, "0", info.Buster)

	assert.FileExists(t, filepath.Join(dir, ".catalogsearch", "artifacts", "product_index.gob"))
	assert.FileExists(t, filepath.Join(dir, ".catalogsearch", "artifacts", "assistant_index_manifest.json"))
}

func TestIndex_BuildRejectsUnknownKind(t *testing.T) {
	dir := newProject(t)

	_, err := runCLI(t, "index", "build", "orders", "--dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown index")
}

// =============================================================================
// Search, recommend, ask
// =============================================================================

func TestSearch_BuildsLazilyAndFindsDistinctiveToken(t *testing.T) {
	dir := newProject(t)
	importSeed(t, dir)

	out, err := runCLI(t, "search", "teapot", "-n", "2", "--dir", dir, "--format", "json")
	require.NoError(t, err)

	res := decode[resultsOutput](t, out)
	require.NotEmpty(t, res.Results)
	assert.LessOrEqual(t, len(res.Results), 2)
	assert.Equal(t, int64(2), res.Results[0].ProductID)
	assert.Equal(t, "4", res.Version)
}

func TestSearch_TextOutputUsesProductNames(t *testing.T) {
	dir := newProject(t)
	importSeed(t, dir)

	out, err := runCLI(t, "search", "teapot", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Steel Teapot (#2)")
}

func TestRecommend_ExcludesSelfAndIneligible(t *testing.T) {
	// Given: a catalog where product 3 is out of stock
	dir := newProject(t)
	importSeed(t, dir)

	// When: recommending for the blue mug
	out, err := runCLI(t, "recommend", "1", "--dir", dir, "--format", "json")
	require.NoError(t, err)

	// Then: the other mug ranks first and neither the source nor product 3 appears
	res := decode[resultsOutput](t, out)
	require.NotEmpty(t, res.Results)
	assert.Equal(t, int64(4), res.Results[0].ProductID)
	for _, r := range res.Results {
		assert.NotEqual(t, int64(1), r.ProductID)
		assert.NotEqual(t, int64(3), r.ProductID)
	}
}

func TestRecommend_IncludeSelfAndMMR(t *testing.T) {
	dir := newProject(t)
	importSeed(t, dir)

	out, err := runCLI(t, "recommend", "1", "--exclude-self=false", "--dir", dir, "--format", "json")
	require.NoError(t, err)
	res := decode[resultsOutput](t, out)
	require.NotEmpty(t, res.Results)
	assert.Equal(t, int64(1), res.Results[0].ProductID, "a product is most similar to itself")

	out, err = runCLI(t, "recommend", "1", "--mmr", "--lambda", "1", "--dir", dir, "--format", "json")
	require.NoError(t, err)
	res = decode[resultsOutput](t, out)
	require.NotEmpty(t, res.Results)
	assert.Equal(t, int64(4), res.Results[0].ProductID)

	_, err = runCLI(t, "recommend", "1", "--mmr", "--lambda", "2", "--dir", dir)
	assert.Error(t, err)
}

func TestAsk(t *testing.T) {
	dir := newProject(t)

	// When: asking something the corpus covers
	out, err := runCLI(t, "ask", "how do I reset my password", "--dir", dir, "--format", "json")
	require.NoError(t, err)

	// Then: the answer is extracted from the matching paragraph
	ans := decode[assistant.Answer](t, out)
	assert.NotEqual(t, assistant.RefusalMessage, ans.Answer)
	assert.Contains(t, ans.Answer, "reset your password")
	require.NotEmpty(t, ans.Sources)
	assert.Equal(t, "faq.md:0", ans.Sources[0].ID)
	assert.NotEmpty(t, ans.TraceID)

	// When: asking something unrelated
	out, err = runCLI(t, "ask", "quantum chromodynamics lattice", "--dir", dir, "--format", "json")
	require.NoError(t, err)

	// Then: it refuses with no sources
	ans = decode[assistant.Answer](t, out)
	assert.Equal(t, assistant.RefusalMessage, ans.Answer)
	assert.Empty(t, ans.Sources)
}

// =============================================================================
// Eval and config
// =============================================================================

func TestEval_WritesReports(t *testing.T) {
	dir := newProject(t)
	importSeed(t, dir)
	queries := filepath.Join(dir, "queries.json")
	require.NoError(t, os.WriteFile(queries, []byte(`[{"q": "teapot", "expected_slugs": ["steel-teapot"]}]`), 0o644))

	out, err := runCLI(t, "eval", "--file", queries, "--k", "1", "--dir", dir, "--format", "json")
	require.NoError(t, err)

	report := decode[eval.Report](t, out)
	assert.Equal(t, 1.0, report.MacroPAtK)
	assert.Equal(t, 1, report.Count)
	assert.FileExists(t, filepath.Join(dir, ".catalogsearch", "artifacts", eval.LatestReport))
}

func TestEval_MissingFile(t *testing.T) {
	dir := newProject(t)

	_, err := runCLI(t, "eval", "--file", filepath.Join(dir, "nope.json"), "--dir", dir)
	assert.Error(t, err)
}

func TestConfig_InitAndShow(t *testing.T) {
	dir := newProject(t)

	// When: initialising the project config twice
	out, err := runCLI(t, "config", "init", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Created project configuration")
	assert.FileExists(t, filepath.Join(dir, config.ProjectFileName))

	out, err = runCLI(t, "config", "init", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	// Then: the merged config loads the template values
	out, err = runCLI(t, "config", "show", "--dir", dir, "--format", "json")
	require.NoError(t, err)
	cfg := decode[config.Config](t, out)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, 0.7, cfg.Search.MMRLambda)
}

func TestConfig_UserInitAndUpgrade(t *testing.T) {
	newProject(t)

	out, err := runCLI(t, "config", "init", "--user")
	require.NoError(t, err)
	assert.Contains(t, out, "Created user configuration")
	assert.FileExists(t, config.GetUserConfigPath())

	out, err = runCLI(t, "config", "init", "--user", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration upgraded")

	backups, err := config.ListUserConfigBackups()
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestConfig_Path(t *testing.T) {
	newProject(t)

	out, err := runCLI(t, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join("catalogsearch", "config.yaml"))
}

func TestServe_WiresToolServer(t *testing.T) {
	dir := newProject(t)
	projectDir = dir
	t.Cleanup(func() { projectDir = "." })

	a, err := openApp()
	require.NoError(t, err)
	defer a.Close()

	srv, err := newToolServer(a)
	require.NoError(t, err)
	status, err := srv.IndexStatus(t.Context())
	require.NoError(t, err)
	assert.Len(t, status.Indexes, 2)
}
