package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"dialogue/internal/httpapi"
	"dialogue/internal/usecase"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the conversation API (save, list, feedback, search, evaluate).

Examples:
  dialogue serve
  dialogue serve --addr :9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if check, err := usecase.NewReembedUseCase(a.store, a.embedder, nil, 0).Check(ctx); err == nil && check.NeedsReembed {
		logger.Warn("store embedding space differs from config; saves are refused until 'dialogue reembed' runs",
			"reason", check.Reason)
	}

	saver, err := a.saver()
	if err != nil {
		return err
	}
	evaluator, err := a.evaluator()
	if err != nil {
		return err
	}

	if a.cfg.Server.Mode != "" {
		gin.SetMode(a.cfg.Server.Mode)
	}

	srv := httpapi.New(httpapi.Deps{
		Store:     a.store,
		Saver:     saver,
		Searcher:  a.searcher(false),
		Feedback:  usecase.NewFeedbackUseCase(a.store, a.cache),
		Evaluator: evaluator,
		Stats:     usecase.NewStatsUseCase(a.store),
		ListLimit: a.cfg.Search.ListLimit,
		Logger:    logger,
	})

	addr := a.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	fmt.Printf("Serving conversations on %s (store: %s, embedding: %s/%d, scoring: %s)\n",
		addr, a.cfg.Store.Backend, a.embedder.ModelName(), a.embedder.Dimension(), evaluator.Rule())
	return srv.Run(ctx, addr, a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout)
}
