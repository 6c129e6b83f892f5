// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/trackmint/trackmint/internal/config"
	"github.com/trackmint/trackmint/internal/httpapi"
	"github.com/trackmint/trackmint/internal/logging"
	"github.com/trackmint/trackmint/internal/observability"
)

// shutdownTimeout bounds graceful shutdown of the HTTP servers.
const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the auth HTTP API",
		Long: `Start the auth HTTP API, the metrics and health server and the
background sweeper that prunes expired tokens.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := logging.SetDefault("trackmint", version, cfg.LogFormat, level)
	logger.Info("starting trackmint", "config", cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		comps     *components
		obsServer *observability.Server
		metrics   *observability.Metrics
	)
	if cfg.MetricsAddr != "" {
		// Ready once storage answers; comps is assigned before Start.
		obsServer = observability.NewServer(cfg.MetricsAddr, func() bool {
			return comps != nil && comps.storage.ready()
		})
		metrics = obsServer.Metrics()
	} else {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	comps, err = buildComponents(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := comps.Close(); closeErr != nil {
			logger.Warn("error releasing resources", "error", closeErr)
		}
	}()

	app, err := httpapi.New(httpapi.Config{
		Service: comps.service,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if obsServer != nil {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", cfg.MetricsAddr).Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability", logger)
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		comps.sweeper.Run(ctx)
	}()

	httpErrChan := make(chan error, 1)
	go func() {
		httpErrChan <- app.Listen(cfg.HTTPAddr)
	}()

	cmd.Println("TrackMint auth service started")
	logger.Info("http api listening", "addr", cfg.HTTPAddr)

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-httpErrChan:
		if err != nil {
			serveErr = oops.Code("HTTP_SERVE_FAILED").With("addr", cfg.HTTPAddr).Wrap(err)
		}
	}
	cancel()

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("error stopping http api", "error", err)
	}
	if obsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}
	<-sweepDone

	logger.Info("shutdown complete")
	return serveErr
}

// monitorServerErrors cancels ctx when a background server fails.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errs <-chan error, name string, logger *slog.Logger) {
	select {
	case <-ctx.Done():
	case err, ok := <-errs:
		if ok && err != nil {
			logger.Error("server failed", "server", name, "error", err)
			cancel()
		}
	}
}
