package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/catalogsearch/internal/output"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the SQLite product catalog",
		Long: `Import and delete catalog products. Every mutation bumps the cache buster
so running servers stop serving cached results. Indexes are not rebuilt;
run 'catalogsearch index build products' afterwards.`,
	}
	cmd.AddCommand(newCatalogImportCmd())
	cmd.AddCommand(newCatalogDeleteCmd())
	return cmd
}

func newCatalogImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Upsert products from a YAML file",
		Example: `  catalogsearch catalog import products.yaml

  # products.yaml
  products:
    - id: 1
      name: Blue mug
      description: Ceramic, 350ml
      category: Mugs
      stock: 12`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			n, err := a.catalog.ImportYAML(ctx, args[0])
			if err != nil {
				return err
			}
			return printMutation(cmd, a, "imported", n)
		},
	}
}

func newCatalogDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <product-id>",
		Short: "Delete one product",
		Args:  cobra.ExactArgs(1),
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

			if err := a.catalog.Delete(cmd.Context(), id); err != nil {
				return err
			}
			return printMutation(cmd, a, "deleted", 1)
		},
	}
}

func printMutation(cmd *cobra.Command, a *app, action string, n int) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}
	buster, err := a.catalog.Value(cmd.Context())
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if format == output.FormatJSON {
		return out.JSON(map[string]any{action: n, "buster": buster})
	}
	out.Successf("%s %d product(s)", action, n)
	out.KeyValue("buster", buster)
	return nil
}
