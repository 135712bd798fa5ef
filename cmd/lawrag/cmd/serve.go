package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/lawrag/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var transport string
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP tool server",
		Long: `Start the MCP server exposing the answer and search_law tools.

stdout carries JSON-RPC only; logs go to the log file. With --metrics-addr
(or server.metrics_addr) Prometheus metrics are served on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), transport, metricsAddr)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "", "Transport: stdio (default from server.transport)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address for the /metrics endpoint, e.g. :9090")
	return cmd
}

func runServe(ctx context.Context, transport, metricsAddr string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if transport == "" {
		transport = cfg.Server.Transport
	}
	if metricsAddr == "" {
		metricsAddr = cfg.Server.MetricsAddr
	}

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	if err := a.enableAnswering(); err != nil {
		return err
	}

	if metricsAddr != "" {
		srv := startMetricsServer(metricsAddr, a.metrics.Handler())
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	server, err := mcp.NewServer(a.orchestrator, a.retriever)
	if err != nil {
		return err
	}
	return server.Serve(ctx, transport)
}

func startMetricsServer(addr string, handler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("metrics_server_started", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics_server_failed", slog.String("error", err.Error()))
		}
	}()
	return srv
}
