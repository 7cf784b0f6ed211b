package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/bit2swaz/bulkload/internal/bench"
	"github.com/bit2swaz/bulkload/internal/config"
	"github.com/bit2swaz/bulkload/internal/metrics"
	"github.com/bit2swaz/bulkload/internal/report"
)

func runLoad(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.ParseArgs(args); err != nil {
		return err
	}

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	slog.Info("Starting bulkload",
		"count", cfg.Count,
		"block_size", cfg.BlockSize,
		"driver", cfg.Driver)

	metrics.Init()
	if cfg.MetricsAddr != "" {
		srv := startMetricsServer(cfg.MetricsAddr)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				slog.Error("Metrics server shutdown failed", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, runErr := bench.Run(ctx, cfg, logger)

	out := cmd.OutOrStdout()
	report.PrintTimings(out, summary)
	if runErr == nil && !cfg.NoTable {
		if err := report.Render(out, summary); err != nil {
			slog.Error("Failed to render summary", "error", err)
		}
	}

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			slog.Error("Failed to write metrics file", "path", cfg.MetricsFile, "error", err)
		} else {
			slog.Info("Metrics written", "path", cfg.MetricsFile)
		}
	}

	return runErr
}

func newLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(cmd.OutOrStdout(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, nil
}

func startMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		slog.Info("Metrics server listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "error", err)
		}
	}()
	return srv
}
