package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvtable/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `serve starts the HTTP API on SERVER_HOST:SERVER_PORT. Postgres export is
enabled when DATABASE_URL is set. SIGINT or SIGTERM drains running loads and
stops the server.`,
	Args: exactArgs(0),
	RunE: runServe,
}

var serveOpts struct {
	port int
}

func init() {
	serveCmd.Flags().IntVar(&serveOpts.port, "port", 0, "Listen port (default: $SERVER_PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveOpts.port > 0 {
		cfg.Server.Port = serveOpts.port
	}

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"max_concurrent", cfg.CSV.MaxConcurrent,
		"max_tables", cfg.Store.MaxTables,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"postgres", cfg.Database.URL != "",
	)

	ctx := commandContext(cmd)
	svc, cleanup, err := newService(ctx, cfg.Database.URL != "")
	if err != nil {
		return err
	}
	defer cleanup()

	// Background jobs stop when the server does.
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()
	svc.Start(jobCtx)

	server := web.NewServer(cfg, svc)

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-sigCtx.Done():
	}

	slog.Info("shutting down...")
	cancelJobs()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if status := svc.LimiterStatus(); status.Active > 0 {
		slog.Info("waiting for loads to complete", "active", status.Active)
		if err := svc.Shutdown(shutdownCtx); err != nil {
			slog.Warn("loads did not complete in time", "error", err)
		} else {
			slog.Info("all loads completed")
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		return err
	}
	slog.Info("server stopped")
	return nil
}
