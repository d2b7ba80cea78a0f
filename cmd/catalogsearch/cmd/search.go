package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/catalogsearch/internal/errors"
	"github.com/Aman-CERP/catalogsearch/internal/output"
	"github.com/Aman-CERP/catalogsearch/internal/search"
)

func newSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the product catalog",
		Long: `Rank every indexed product against free text by TF-IDF cosine similarity.
The product index is built on first use when none is persisted.`,
		Example: `  catalogsearch search "ceramic coffee mug"
  catalogsearch search teapot -n 3 --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results (default from config)")
	return cmd
}

func runSearch(cmd *cobra.Command, query string, limit int) error {
	if strings.TrimSpace(query) == "" {
		return errors.New(errors.ErrCodeQueryEmpty, "query cannot be empty", nil)
	}
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
	if limit <= 0 {
		limit = a.cfg.Search.DefaultLimit
	}
	slog.Info("search_started", slog.String("query", query), slog.Int("limit", limit))

	results, err := a.engine.Search(ctx, query, limit)
	if err != nil {
		return err
	}
	return printResults(ctx, cmd, a, format, fmt.Sprintf("Results for %q", query), results)
}

func newRecommendCmd() *cobra.Command {
	var (
		limit       int
		excludeSelf bool
		diversify   bool
		useMMR      bool
		lambda      float64
	)

	cmd := &cobra.Command{
		Use:   "recommend <product-id>",
		Short: "Recommend products similar to one product",
		Long: `Rank products by similarity to a source product. Inactive or out-of-stock
products are never recommended. --diversify prefers unseen categories;
--mmr uses maximal marginal relevance instead.`,
		Example: `  catalogsearch recommend 42
  catalogsearch recommend 42 --diversify -n 5
  catalogsearch recommend 42 --mmr --lambda 0.5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProductID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("exclude-self") {
				excludeSelf = a.cfg.Search.ExcludeSelf
			}
			if !cmd.Flags().Changed("diversify") {
				diversify = a.cfg.Search.Diversify
			}
			if !cmd.Flags().Changed("lambda") {
				lambda = a.cfg.Search.MMRLambda
			}
			if limit <= 0 {
				limit = a.cfg.Search.DefaultLimit
			}
			return runRecommend(cmd, a, id, limit, excludeSelf, diversify, useMMR, lambda)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().BoolVar(&excludeSelf, "exclude-self", true, "Drop the source product from the results")
	cmd.Flags().BoolVar(&diversify, "diversify", false, "Prefer products from categories not yet shown")
	cmd.Flags().BoolVar(&useMMR, "mmr", false, "Re-rank with maximal marginal relevance")
	cmd.Flags().Float64Var(&lambda, "lambda", 0.7, "MMR relevance weight between 0 and 1")
	return cmd
}

func runRecommend(cmd *cobra.Command, a *app, id int64, limit int, excludeSelf, diversify, useMMR bool, lambda float64) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var results []search.Result
	if useMMR {
		if lambda < 0 || lambda > 1 {
			return errors.ValidationError("lambda must be between 0 and 1", nil)
		}
		results, err = a.engine.RecommendMMR(ctx, id, limit, lambda)
	} else {
		results, err = a.engine.Recommend(ctx, id, search.RecommendOptions{
			K:           limit,
			ExcludeSelf: excludeSelf,
			Diversify:   diversify,
		})
	}
	if err != nil {
		return err
	}
	return printResults(ctx, cmd, a, format, fmt.Sprintf("Similar to %s", productLabel(ctx, a, id)), results)
}

func parseProductID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("invalid product id %q", s), err).
			WithSuggestion("Product ids are positive integers.")
	}
	return id, nil
}

// printResults renders ranked products with names from the catalog.
func printResults(ctx context.Context, cmd *cobra.Command, a *app, format output.Format, title string, results []search.Result) error {
	out := output.New(cmd.OutOrStdout())
	if format == output.FormatJSON {
		return out.JSON(struct {
			Version string          `json:"version"`
			Results []search.Result `json:"results"`
		}{a.engine.Version(ctx), results})
	}

	out.Header(title)
	if len(results) == 0 {
		out.Warning("No results")
		return nil
	}
	for i, r := range results {
		out.Ranked(i+1, productLabel(ctx, a, r.ProductID), r.Score, r.Reason)
	}
	return nil
}

func productLabel(ctx context.Context, a *app, id int64) string {
	p, err := a.catalog.Get(ctx, id)
	if err != nil {
		return fmt.Sprintf("#%d", id)
	}
	return fmt.Sprintf("%s (#%d)", p.Name, id)
}
