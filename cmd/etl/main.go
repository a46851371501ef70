package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/couchcryptid/outbreak-metrics-etl/internal/adapter/filesink"
	kafkaadapter "github.com/couchcryptid/outbreak-metrics-etl/internal/adapter/kafka"
	"github.com/couchcryptid/outbreak-metrics-etl/internal/adapter/source"
	"github.com/couchcryptid/outbreak-metrics-etl/internal/config"
	"github.com/couchcryptid/outbreak-metrics-etl/internal/domain"
	"github.com/couchcryptid/outbreak-metrics-etl/internal/ingest"
	"github.com/couchcryptid/outbreak-metrics-etl/internal/observability"
	"github.com/couchcryptid/outbreak-metrics-etl/internal/pipeline"
	"github.com/couchcryptid/outbreak-metrics-etl/internal/registry"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	overrides, err := registry.DefaultOverrides()
	if cfg.OverridesFile != "" {
		overrides, err = registry.LoadOverrides(cfg.OverridesFile)
	}
	if err != nil {
		logger.Error("failed to load overrides", "error", err)
		return 1
	}
	reg := registry.New(overrides, logger)

	// Optional ETag cache for remote datasets (REDIS_ADDR).
	var cache source.Cache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = client.Close() }()
		cache = source.NewRedisCache(client, cfg.SourceCacheTTL)
		logger.Info("source cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.SourceCacheTTL)
	}
	loader := source.NewLoader(cfg.FetchTimeout, cache, logger)

	live := ingest.NewFallbackProvider(
		ingest.NewKeyedFeed(loader, cfg.LivePrimarySource),
		ingest.NewListFeed(loader, cfg.LiveSecondarySource),
		logger,
		func(from, to string, kind domain.LiveFailure) {
			metrics.LiveFallbacks.WithLabelValues(from, to, kind.String()).Inc()
		},
	)

	sinks := []pipeline.Sink{filesink.New(cfg.OutputDir, logger)}
	if cfg.KafkaEnabled() {
		writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		sinks = append(sinks, writer)
		logger.Info("kafka sink enabled", "topic", cfg.KafkaTopic)
	}

	p := pipeline.New(pipeline.Sources{
		Country: cfg.CountrySource,
		State:   cfg.StateSource,
		County:  cfg.CountySource,
	}, pipeline.Deps{
		Loader:   loader,
		Live:     live,
		Registry: reg,
		Sinks:    sinks,
		Clock:    clockwork.NewRealClock(),
		Logger:   logger,
		Metrics:  metrics,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, runErr := p.Run(ctx)

	if cfg.PushgatewayURL != "" {
		if err := observability.Push(context.Background(), cfg.PushgatewayURL, p.RunID(), prometheus.DefaultGatherer); err != nil {
			logger.Warn("metrics push failed", "error", err)
		}
	}

	if runErr != nil {
		return 1
	}
	return 0
}
