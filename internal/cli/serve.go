package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"stockroom/internal/adapters/dashboard"
	"stockroom/internal/adapters/exports"
)

const (
	defaultHost     = "0.0.0.0"
	defaultPort     = "8000"
	shutdownTimeout = 10 * time.Second
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	var host, port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web dashboard and JSON API",
		Long: `Serve the HTML dashboard, the JSON API under /api/v1, Prometheus metrics on
/metrics and a liveness probe on /healthz.

Examples:
  stockroom serve                      # listen on 0.0.0.0:$PORT (default 8000)
  stockroom serve --port 9000 --log-format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := strconv.ParseUint(port, 10, 16); err != nil {
				return fmt.Errorf("invalid port %q", port)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withApp(cmd, opts, func(a *app) error {
				return serve(ctx, a, net.JoinHostPort(host, port))
			})
		},
	}
	cmd.Flags().StringVar(&host, "host", defaultHost, "Interface to bind")
	cmd.Flags().StringVar(&port, "port", envOr("PORT", defaultPort), "Port to listen on (PORT)")
	return cmd
}

// buildHandler wires the export worker and the dashboard for a.
func buildHandler(ctx context.Context, a *app) (http.Handler, *exports.Worker, error) {
	worker, err := a.openExports(ctx)
	if err != nil {
		return nil, nil, err
	}
	srv, err := dashboard.New(a.service,
		dashboard.WithExports(worker),
		dashboard.WithMetrics(a.registry),
		dashboard.WithLogger(a.logger.With("component", "http")),
	)
	if err != nil {
		_ = worker.Stop(ctx)
		return nil, nil, err
	}
	return srv.Handler(), worker, nil
}

func serve(ctx context.Context, a *app, addr string) error {
	handler, worker, err := buildHandler(ctx, a)
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()
	a.logger.Info("stockroom listening", "addr", addr, "storage", a.config.Storage.Driver, "history", a.config.History)

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("listen %s: %w", addr, err)
		}
	case <-ctx.Done():
		a.logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown", "error", err)
	}
	if err := worker.Stop(shutdownCtx); err != nil {
		a.logger.Error("export worker shutdown", "error", err)
	}
	return serveErr
}
