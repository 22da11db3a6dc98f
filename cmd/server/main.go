package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/hazard-reference-service/internal/adapter/hazardapi"
	httpadapter "github.com/couchcryptid/hazard-reference-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/hazard-reference-service/internal/adapter/kafka"
	"github.com/couchcryptid/hazard-reference-service/internal/cache"
	"github.com/couchcryptid/hazard-reference-service/internal/config"
	"github.com/couchcryptid/hazard-reference-service/internal/domain"
	"github.com/couchcryptid/hazard-reference-service/internal/observability"
	"github.com/couchcryptid/hazard-reference-service/internal/pipeline"
	"github.com/couchcryptid/hazard-reference-service/internal/storage/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	store, err := sqlite.Open(cfg.DBPath, clock, logger)
	if err != nil {
		logger.Error("failed to open store", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}

	client := hazardapi.NewClient(cfg.UpstreamBaseURL, cfg.UpstreamTimeout, clock, logger, metrics)
	source := cache.NewSourceCache(client, cfg.SnapshotTTL, clock, logger, metrics)
	deriver := domain.NewDeriver(clock, logger)

	// Refresh notifications are feature-flagged via KAFKA_ENABLED.
	var notifier pipeline.Notifier
	var kafkaNotifier *kafkaadapter.Notifier
	if cfg.KafkaEnabled {
		kafkaNotifier = kafkaadapter.NewNotifier(cfg, logger)
		notifier = kafkaNotifier
		logger.Info("kafka refresh notifications enabled", "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka refresh notifications disabled")
	}

	gate := pipeline.New(source, deriver, store, notifier, cfg.PartitionFreshFor, clock, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, gate, gate, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaNotifier != nil {
		if err := kafkaNotifier.Close(); err != nil {
			logger.Error("kafka notifier close error", "error", err)
		}
	}
	if err := store.Close(); err != nil {
		logger.Error("store close error", "error", err)
	}

	logger.Info("shutdown complete")
}
