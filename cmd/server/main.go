package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/owamns/clinmr/internal/api/rest"
	"github.com/owamns/clinmr/internal/runs"
	"github.com/owamns/clinmr/internal/shared/config"
	"github.com/owamns/clinmr/internal/shared/logging"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: config/server.yaml)")
	flag.Parse()

	cfg, err := config.LoadServer(*configPath)
	if err != nil {
		logging.NewSlogLogger(os.Stderr, logging.ParseLevel("error"), "text").
			Fatal("Failed to load config", "error", err)
	}

	logger := logging.NewSlogLogger(os.Stdout, logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)

	store, err := runs.NewStore(cfg.Store)
	if err != nil {
		logger.Fatal("Failed to open run store", "driver", cfg.Store.Driver, "error", err)
	}
	defer store.Close()

	workspace, err := runs.NewWorkspace(cfg.Output.BaseDir)
	if err != nil {
		logger.Fatal("Failed to prepare output directory", "path", cfg.Output.BaseDir, "error", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	service := runs.NewService(runs.Config{
		Dataset:          cfg.Dataset.Path,
		Engine:           cfg.Engine,
		Model:            cfg.Model,
		Workers:          cfg.Runs.Workers,
		QueueSize:        cfg.Runs.QueueSize,
		MaxInlineResults: cfg.Output.MaxInlineResults,
	}, store, workspace, runs.NewMetrics(registry), logger)

	if n, err := service.RecoverInterrupted(); err != nil {
		logger.Fatal("Failed to recover interrupted runs", "error", err)
	} else if n > 0 {
		logger.Warn("Marked interrupted runs as failed", "count", n)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	if cfg.Runs.Retention > 0 {
		sweeper := runs.NewSweeper(cfg.Runs.SweepInterval, cfg.Runs.Retention, service, logger.With("component", "sweeper"))
		go sweeper.Start(ctx)
	}

	metrics := promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	server := rest.NewServer(cfg.REST, service, metrics, logger)

	go func() {
		logger.Info("Starting analytics API server",
			"addr", cfg.REST.Addr,
			"dataset", cfg.Dataset.Path,
			"store", cfg.Store.Driver,
			"workers", cfg.Runs.Workers,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stop()

	// Give server 30 seconds to finish serving ongoing requests
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	service.Close()

	logger.Info("Server stopped")
}
