package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/catalogsearch/internal/errors"
	"github.com/Aman-CERP/catalogsearch/internal/eval"
	"github.com/Aman-CERP/catalogsearch/internal/output"
)

func newEvalCmd() *cobra.Command {
	var (
		file string
		k    int
	)

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Measure search precision@k against labelled queries",
		Long: `Run every query of a JSON file through product search and report
precision@k per query and the macro average. Expected products are given
by slug. The report is written to the artifacts directory as
search_eval_<unix>.json and search_eval_latest.json.`,
		Example: `  catalogsearch eval --file eval/queries.json --k 10

  # eval/queries.json
  [{"q": "coffee mug", "expected_slugs": ["blue-mug"]}]`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if k <= 0 {
				return errors.ValidationError("--k must be positive", nil)
			}
			format, err := outputFormat()
			if err != nil {
				return err
			}
			f, err := os.Open(file)
			if err != nil {
				return errors.New(errors.ErrCodeFileNotFound, "open query file", err).WithDetail("path", file)
			}
			queries, err := eval.ReadQueries(f)
			_ = f.Close()
			if err != nil {
				return errors.ValidationError("parse query file", err)
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := eval.Run(cmd.Context(), a.engine, a.catalog, queries, k, time.Now())
			if err != nil {
				return err
			}
			path, err := eval.Write(a.cfg.Paths.ArtifactsDir, report)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			if format == output.FormatJSON {
				return out.JSON(report)
			}
			out.Header(fmt.Sprintf("Search evaluation (k=%d, index version %s)", report.K, report.IndexVersion))
			for i, r := range report.Results {
				out.Ranked(i+1, r.Q, r.PAtK, "")
			}
			out.Newline()
			out.KeyValue("macro P@K", report.MacroPAtK)
			out.KeyValue("report", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "eval/queries.json", "JSON file of {q, expected_slugs} queries")
	cmd.Flags().IntVar(&k, "k", 10, "Cutoff for precision@k")
	return cmd
}
