package cli

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/stravasync/stravasync/internal/api"
	"github.com/stravasync/stravasync/internal/metrics"
	"github.com/stravasync/stravasync/internal/store"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Expose synced data over HTTP",
	Long: `Start a read-only HTTP server over the local database.

Endpoints:
  GET /healthz
  GET /metrics
  GET /api/v1/activities
  GET /api/v1/activities/:id/kudos
  GET /api/v1/stats

Example:
  stravasync serve --port 8318`,
	RunE: runServe,
}

var serveFlags struct {
	Host string
	Port int
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.Host, "host", "", "Server host (overrides config)")
	serveCmd.Flags().IntVar(&serveFlags.Port, "port", 0, "Server port (overrides config)")

	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	if serveFlags.Host != "" {
		cfg.Server.Host = serveFlags.Host
	}
	if serveFlags.Port != 0 {
		cfg.Server.HTTPPort = serveFlags.Port
	}

	st, err := store.NewSQLiteStore(cfg.Storage.DatabasePath, logger)
	if err != nil {
		return err
	}

	server := api.NewServer(cfg.Server, st, metrics.NewMetrics("stravasync"), logger)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := api.SetupSignalHandler()
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		logger.Info("signal received, shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(ctx)
}
