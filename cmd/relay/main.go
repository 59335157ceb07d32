package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/friend-location-relay/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/friend-location-relay/internal/adapter/kafka"
	"github.com/couchcryptid/friend-location-relay/internal/adapter/mapbox"
	"github.com/couchcryptid/friend-location-relay/internal/config"
	"github.com/couchcryptid/friend-location-relay/internal/observability"
	"github.com/couchcryptid/friend-location-relay/internal/publisher"
	"github.com/couchcryptid/friend-location-relay/internal/relay"
	"github.com/couchcryptid/friend-location-relay/internal/simulator"
	"github.com/couchcryptid/friend-location-relay/internal/store"
	"github.com/sourcegraph/conc"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg)
	if err != nil {
		logger.Error("failed to open store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	logger.Info("store opened", "backend", cfg.StoreBackend)

	var opts []relay.Option

	// Reverse geocoding is feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger, metrics)
		opts = append(opts, relay.WithGeocoder(mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)))
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	var changes *kafkaadapter.ChangeWriter
	if cfg.ChangeEventsEnabled {
		changes = kafkaadapter.NewChangeWriter(cfg, logger)
		opts = append(opts, relay.WithChangeSink(changes))
		logger.Info("change events enabled", "topic", cfg.ChangeTopic)
	}

	svc := relay.NewService(st, logger, metrics, opts...)

	sim := simulator.New(svc, logger, metrics, simulator.WithDefaultSteps(cfg.SimulationSteps))
	sims := simulator.NewManager(sim, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, logger,
		httpadapter.WithPathPrefix(cfg.PathPrefix),
		httpadapter.WithSimulations(sims),
	)

	var wg conc.WaitGroup

	wg.Go(func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	})

	var (
		feed *kafkaadapter.Feed
		pub  *publisher.Publisher
	)
	if cfg.FeedEnabled {
		feed = kafkaadapter.NewFeed(cfg, logger, metrics)
		pub = publisher.New(feed, svc, logger, metrics)

		wg.Go(func() {
			if err := feed.Run(ctx); err != nil {
				logger.Error("position feed error", "error", err)
			}
		})
		for _, id := range cfg.FeedEntities {
			if _, err := pub.Start(ctx, id, nil); err != nil {
				logger.Error("failed to start live publishing", "friend_id", id, "error", err)
			}
		}
		logger.Info("device feed enabled", "topic", cfg.FeedTopic, "entities", len(cfg.FeedEntities))
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := sims.Shutdown(shutdownCtx); err != nil {
		logger.Error("simulation shutdown error", "error", err)
	}
	if pub != nil {
		if err := pub.Close(shutdownCtx); err != nil {
			logger.Error("publisher shutdown error", "error", err)
		}
	}
	wg.Wait()

	if feed != nil {
		if err := feed.Close(); err != nil {
			logger.Error("kafka feed close error", "error", err)
		}
	}
	if changes != nil {
		if err := changes.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := st.Close(); err != nil {
		logger.Error("store close error", "error", err)
	}

	logger.Info("shutdown complete")
}
