// Package cmd provides the CLI commands for catalogsearch.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	engerrors "github.com/Aman-CERP/catalogsearch/internal/errors"
	"github.com/Aman-CERP/catalogsearch/internal/logging"
	"github.com/Aman-CERP/catalogsearch/internal/output"
	"github.com/Aman-CERP/catalogsearch/internal/profiling"
	"github.com/Aman-CERP/catalogsearch/pkg/version"
)

// Persistent flags shared by every subcommand.
var (
	debugMode      bool
	formatFlag     string
	projectDir     string
	loggingCleanup func()

	profileOpts profiling.Options
	profile     *profiling.Session
)

// NewRootCmd creates the root command for the catalogsearch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalogsearch",
		Short: "TF-IDF product search, recommendations and help answers",
		Long: `catalogsearch indexes a product catalog and a help corpus with TF-IDF
(word unigrams and bigrams) and serves search, content-based
recommendations and extractive help answers from the CLI or over MCP.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("catalogsearch version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.catalogsearch/logs/")
	cmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "text", "Output format: text, json")
	cmd.PersistentFlags().StringVar(&projectDir, "dir", ".", "Project directory holding .catalogsearch.yaml")

	cmd.PersistentFlags().StringVar(&profileOpts.CPUPath, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.MemPath, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.TracePath, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newRecommendCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newCatalogCmd())
	cmd.AddCommand(newEvalCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging installs the slog default and starts any requested
// profiles. serve replaces the logger with file-only logging since stdout
// carries JSON-RPC.
func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if profileOpts.Enabled() {
		session, err := profiling.Start(profileOpts)
		if err != nil {
			return err
		}
		profile = session
	}

	cfg := logging.DefaultConfig()
	cfg.Level = "warn"
	if debugMode {
		cfg = logging.DebugConfig()
	}
	cleanup, err := logging.SetupDefault(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	if debugMode {
		slog.Debug("Debug logging enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
	}
	return nil
}

func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var err error
	if profile != nil {
		err = profile.Stop()
		profile = nil
	}
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return err
}

// Execute runs the root command and prints a structured error on failure.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		if formatFlag == string(output.FormatJSON) {
			if data, jerr := engerrors.FormatJSON(err); jerr == nil {
				fmt.Fprintln(root.ErrOrStderr(), string(data))
				return err
			}
		}
		fmt.Fprintln(root.ErrOrStderr(), engerrors.FormatForCLI(err))
	}
	return err
}

// outputFormat parses --format.
func outputFormat() (output.Format, error) {
	return output.ParseFormat(formatFlag)
}
