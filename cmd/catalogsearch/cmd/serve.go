package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/catalogsearch/internal/logging"
	"github.com/Aman-CERP/catalogsearch/internal/mcp"
	"github.com/Aman-CERP/catalogsearch/internal/watcher"
)

func newServeCmd() *cobra.Command {
	var noWatch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP tool server on stdio",
		Long: `Serve search_products, recommend_products, answer_question and index_status
over MCP on stdio. stdout carries JSON-RPC only; logs go to
~/.catalogsearch/logs/server.log.

While serving, changes to corpus files bump the cache buster so cached
results are not served after a document mutation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, noWatch)
		},
	}
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not watch the corpus directory")
	return cmd
}

func runServe(ctx context.Context, noWatch bool) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if !debugMode {
		if loggingCleanup != nil {
			loggingCleanup()
		}
		cleanup, err := logging.SetupDefault(logging.ServeConfig(a.cfg.Server.LogLevel))
		if err != nil {
			return err
		}
		loggingCleanup = cleanup
	}

	srv, err := newToolServer(a)
	if err != nil {
		return err
	}

	// The watcher stops when the client disconnects.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return srv.Serve(gctx)
	})

	if a.cfg.Watch.Enabled && !noWatch {
		w, err := watcher.New(a.cfg.Paths.CorpusDir, a.catalog, watcher.Options{
			DebounceWindow: a.cfg.WatchDebounce(),
		})
		if err != nil {
			return err
		}
		g.Go(func() error {
			return w.Run(gctx)
		})
		slog.Info("corpus_watch_started",
			slog.String("root", a.cfg.Paths.CorpusDir),
			slog.String("mode", w.Mode()))
	}

	return g.Wait()
}

// newToolServer wires the MCP server to the app. The catalog's persisted
// buster is shared with the corpus watcher and with other CLI processes.
func newToolServer(a *app) (*mcp.Server, error) {
	return mcp.NewServer(mcp.Deps{
		Products:  a.engine,
		Assistant: a.assistant,
		Indexes:   []mcp.IndexInfo{a.products, a.corpus},
		Buster:    a.catalog,
		Metrics:   a.metrics,
	}, a.cfg)
}
