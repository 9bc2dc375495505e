// Command doorcore serves the door catalog HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"doorcore/internal/adapters/doors"
	"doorcore/internal/config"
	"doorcore/internal/core"
	"doorcore/internal/forge"
)

func main() {
	configDir := flag.String("config-dir", "", "directory holding doorcore.yaml (default: working directory)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := run(*configDir, logger); err != nil {
		logger.Error("doorcore exited", "error", err)
		os.Exit(1)
	}
}

func run(configDir string, logger *slog.Logger) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}

	store, err := core.OpenRecordStore(cfg.Storage)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	metrics := core.NewPrometheusMetricsRecorder(registry)
	service := core.NewService(store, core.WithMetrics(metrics))

	blobs, err := core.OpenBlobStore(ctx, cfg.Blob)
	if err != nil {
		return err
	}
	exporter := core.NewExporter(store, blobs)

	opts := []doors.HandlerOption{
		doors.WithExporter(exporter),
		doors.WithMetricsHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
		doors.WithDevMode(cfg.DevMode),
	}
	if cfg.ForgeEnabled {
		tokens, err := forge.NewTokenCache(cfg.Forge)
		if err != nil {
			return err
		}
		opts = append(opts, doors.WithTokenCache(tokens))
	}
	handler := doors.NewHandler(service, opts...)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           doors.RequestLogger(logger, handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("doorcore listening",
			"addr", cfg.ListenAddr,
			"storage", string(cfg.Storage.Driver),
			"blob", string(cfg.Blob.Driver),
			"forge", cfg.ForgeEnabled,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
