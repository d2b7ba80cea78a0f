package cmd

import (
	"fmt"
	"os"

	"github.com/Aman-CERP/catalogsearch/internal/assistant"
	"github.com/Aman-CERP/catalogsearch/internal/catalog"
	"github.com/Aman-CERP/catalogsearch/internal/config"
	"github.com/Aman-CERP/catalogsearch/internal/corpus"
	"github.com/Aman-CERP/catalogsearch/internal/errors"
	"github.com/Aman-CERP/catalogsearch/internal/index"
	"github.com/Aman-CERP/catalogsearch/internal/search"
	"github.com/Aman-CERP/catalogsearch/internal/store"
	"github.com/Aman-CERP/catalogsearch/internal/telemetry"
)

// app wires the engine for one CLI invocation.
type app struct {
	cfg       *config.Config
	catalog   *catalog.Store
	stores    []*store.FileStore
	products  *index.Provider
	corpus    *index.Provider
	metrics   *telemetry.Metrics
	engine    *search.Engine
	assistant *assistant.Assistant
}

// openApp loads configuration from --dir and opens the catalog. Indexes are
// loaded lazily on first use.
func openApp() (*app, error) {
	if err := checkProjectDir(projectDir); err != nil {
		return nil, err
	}
	cfg, err := config.Load(projectDir)
	if err != nil {
		return nil, err
	}
	cat, err := catalog.Open(cfg.Paths.CatalogDB)
	if err != nil {
		return nil, err
	}

	productStore := store.NewFileStore(cfg.Paths.ArtifactsDir, store.ProductIndexName)
	corpusStore := store.NewFileStore(cfg.Paths.ArtifactsDir, store.CorpusIndexName)
	metrics := telemetry.NewMetrics()

	products := index.NewProvider(index.ProductDocuments{Source: cat}, productStore, providerOptions(cfg, store.ProductIndexName, metrics)...)
	chunks := index.NewProvider(index.ChunkDocuments{Source: corpus.NewDirSource(cfg.Paths.CorpusDir)}, corpusStore, providerOptions(cfg, store.CorpusIndexName, metrics)...)

	return &app{
		cfg:       cfg,
		catalog:   cat,
		stores:    []*store.FileStore{productStore, corpusStore},
		products:  products,
		corpus:    chunks,
		metrics:   metrics,
		engine:    search.NewEngine(products, cat, metrics),
		assistant: assistant.New(chunks, metrics),
	}, nil
}

// checkProjectDir rejects a --dir that is missing or not a directory.
func checkProjectDir(dir string) error {
	info, err := os.Stat(dir)
	if err == nil && !info.IsDir() {
		err = fmt.Errorf("%s is a file", dir)
	}
	if err != nil {
		return errors.New(errors.ErrCodeInvalidPath, "invalid project directory", err).
			WithDetail("path", dir).
			WithSuggestion("Pass an existing directory with --dir.")
	}
	return nil
}

func providerOptions(cfg *config.Config, name string, metrics *telemetry.Metrics) []index.Option {
	opts := []index.Option{index.WithMetrics(metrics)}
	if cfg.Index.Lock {
		opts = append(opts, index.WithLock(store.NewFileLock(cfg.Paths.ArtifactsDir, name)))
	}
	return opts
}

// provider returns the provider for an index kind as named on the command line.
func (a *app) provider(kind string) (*index.Provider, error) {
	switch kind {
	case "products", store.ProductIndexName:
		return a.products, nil
	case "corpus", store.CorpusIndexName:
		return a.corpus, nil
	}
	return nil, fmt.Errorf("unknown index %q (want products or corpus)", kind)
}

func (a *app) Close() error {
	return a.catalog.Close()
}
