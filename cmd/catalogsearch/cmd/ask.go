package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/catalogsearch/internal/errors"
	"github.com/Aman-CERP/catalogsearch/internal/output"
)

func newAskCmd() *cobra.Command {
	var (
		k         int
		threshold float64
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a help question from the documentation corpus",
		Long: `Retrieve the closest paragraphs of the help corpus and answer extractively
from the best two. Questions whose best match scores below the threshold
are refused.`,
		Example: `  catalogsearch ask "how do I reset my password?"
  catalogsearch ask "refund policy" -k 3 --threshold 0.2`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			if strings.TrimSpace(question) == "" {
				return errors.New(errors.ErrCodeQueryEmpty, "question cannot be empty", nil)
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

			if k <= 0 {
				k = a.cfg.Assistant.Limit
			}
			if !cmd.Flags().Changed("threshold") {
				threshold = a.cfg.Assistant.Threshold
			}

			ans, err := a.assistant.Answer(cmd.Context(), question, k, threshold)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			if format == output.FormatJSON {
				return out.JSON(ans)
			}
			if ans.Refused() {
				out.Warning(ans.Answer)
			} else {
				out.Header("Answer")
				out.Block(ans.Answer)
				out.Newline()
				out.Header("Sources")
				for i, src := range ans.Sources {
					out.Ranked(i+1, src.ID, src.Score, src.Meta["path"])
				}
			}
			out.Newline()
			out.Status("", fmt.Sprintf("trace %s, corpus version %s", ans.TraceID, ans.Version))
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", 0, "Number of paragraphs to retrieve (default from config)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0.1, "Minimum best score needed to answer")
	return cmd
}
