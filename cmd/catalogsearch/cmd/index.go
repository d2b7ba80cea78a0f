package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/catalogsearch/internal/output"
	"github.com/Aman-CERP/catalogsearch/internal/store"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build and inspect the persisted indexes",
	}
	cmd.AddCommand(newIndexBuildCmd())
	cmd.AddCommand(newIndexInfoCmd())
	return cmd
}

func newIndexBuildCmd() *cobra.Command {
	var idxVersion string

	cmd := &cobra.Command{
		Use:   "build products|corpus",
		Short: "Fit and persist an index",
		Long: `Fit a TF-IDF vectorizer over the product catalog or the help corpus and
persist the snapshot with its manifest.

Without --idx-version the version is the document count, which does not
increase monotonically. Pass an explicit version when ordering matters.`,
		Example: `  catalogsearch index build products
  catalogsearch index build corpus --idx-version 2026-10-17`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"products", "corpus"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndexBuild(cmd, args[0], idxVersion)
		},
	}
	cmd.Flags().StringVar(&idxVersion, "idx-version", "", "Version label for the snapshot (default: document count)")
	return cmd
}

func runIndexBuild(cmd *cobra.Command, kind, idxVersion string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.provider(kind)
	if err != nil {
		return err
	}
	idx, err := p.Build(cmd.Context(), idxVersion)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if format == output.FormatJSON {
		return out.JSON(indexSummary{Name: idx.Name, Version: idx.Version, Count: idx.Len(), Dim: idx.Dim(), Built: true})
	}
	out.Successf("Built %s", idx.Name)
	out.KeyValue("version", idx.Version)
	out.KeyValue("documents", idx.Len())
	out.KeyValue("features", idx.Dim())
	return nil
}

// indexSummary is the JSON shape of index build and index info.
type indexSummary struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	Count      int    `json:"count"`
	Dim        int    `json:"dim"`
	Vectorizer string `json:"vectorizer,omitempty"`
	Timestamp  string `json:"timestamp,omitempty"`
	Built      bool   `json:"built"`
}

func newIndexInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show index manifests and the cache buster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndexInfo(cmd)
		},
	}
}

func runIndexInfo(cmd *cobra.Command) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	summaries := make([]indexSummary, 0, len(a.stores))
	for _, s := range a.stores {
		summary := indexSummary{Name: s.Name(), Version: store.DefaultVersion}
		m, err := s.Manifest(ctx)
		if err != nil {
			return err
		}
		if m != nil {
			summary = indexSummary{
				Name:       s.Name(),
				Version:    m.Version,
				Count:      m.Count,
				Dim:        m.Dim,
				Vectorizer: m.Vectorizer,
				Timestamp:  m.Timestamp,
				Built:      true,
			}
		}
		summaries = append(summaries, summary)
	}
	buster, err := a.catalog.Value(ctx)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if format == output.FormatJSON {
		return out.JSON(struct {
			Indexes []indexSummary `json:"indexes"`
			Buster  string         `json:"buster"`
		}{summaries, buster})
	}

	for _, s := range summaries {
		out.Header(s.Name)
		if !s.Built {
			out.Warningf("not built, run 'catalogsearch index build %s'", kindOf(s.Name))
			continue
		}
		out.KeyValue("version", s.Version)
		out.KeyValue("documents", s.Count)
		out.KeyValue("features", s.Dim)
		out.KeyValue("built at", s.Timestamp)
	}
	out.Newline()
	out.KeyValue("buster", buster)
	return nil
}

func kindOf(name string) string {
	if name == store.CorpusIndexName {
		return "corpus"
	}
	return "products"
}

