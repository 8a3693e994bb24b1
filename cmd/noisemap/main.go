package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/noise-map-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/noise-map-service/internal/adapter/kafka"
	"github.com/couchcryptid/noise-map-service/internal/config"
	"github.com/couchcryptid/noise-map-service/internal/feed"
	"github.com/couchcryptid/noise-map-service/internal/observability"
	"github.com/couchcryptid/noise-map-service/internal/render"
	"github.com/couchcryptid/noise-map-service/internal/simulator"
	"github.com/couchcryptid/noise-map-service/internal/store"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	region := simulator.SriLanka()
	if cfg.RegionFile != "" {
		region, err = simulator.LoadRegion(cfg.RegionFile)
		if err != nil {
			logger.Error("failed to load region", "path", cfg.RegionFile, "error", err)
			os.Exit(1)
		}
	}
	logger.Info("region loaded", "name", region.Name, "clusters", len(region.Clusters))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	readings, err := store.Open(ctx, cfg.DBPath, logger)
	if err != nil {
		logger.Error("failed to open store", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}

	var src feed.SampleSource
	switch cfg.FeedMode {
	case config.FeedModeLive:
		src = feed.NewLiveSource(readings, cfg.LiveWindow)
		logger.Info("live feed enabled", "window", cfg.LiveWindow)
	default:
		rnd := simulator.NewRandomSource()
		if cfg.MockSeed != nil {
			rnd = simulator.NewSource(*cfg.MockSeed)
		}
		gen := simulator.New(region, simulator.WithSource(rnd))
		src = feed.NewMockSource(gen, cfg.MockSampleCount, cfg.MockChangeRatio, metrics)
		logger.Info("mock feed enabled", "samples", cfg.MockSampleCount, "change_ratio", cfg.MockChangeRatio)
	}

	// Publishing to Kafka is feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS.
	var (
		loader feed.SnapshotLoader
		writer *kafkaadapter.Writer
	)
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		loader = writer
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSamplesTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	f := feed.New(src, loader, clockwork.NewRealClock(), cfg.FeedInterval, logger, metrics)

	heatmap, err := render.NewHeatmap(region, render.DefaultOptions())
	if err != nil {
		logger.Error("failed to create heatmap renderer", "error", err)
		os.Exit(1)
	}

	api := httpadapter.NewAPI(readings, f, render.NewCachedHeatmap(heatmap, render.DefaultCacheEntries), logger, metrics)
	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Readiness{f, readings}, api, logger)

	// Start HTTP server.
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the sample feed.
	go func() {
		if err := f.Run(ctx); err != nil {
			logger.Error("feed error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := readings.Close(); err != nil {
		logger.Error("store close error", "error", err)
	}

	logger.Info("shutdown complete")
}
