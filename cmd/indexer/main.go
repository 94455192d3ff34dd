package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/ingestion/repository"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	rebuild := flag.Bool("rebuild", false, "rebuild the index from the document table before consuming")
	rebuildOnly := flag.Bool("rebuild-only", false, "rebuild the index and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Storage.Backend != "redis" {
		fmt.Fprintln(os.Stderr, "the standalone indexer needs storage.backend redis; the memory backend is fed by the searcher")
		os.Exit(1)
	}
	cfg.Indexer.RebuildOnStart = cfg.Indexer.RebuildOnStart || *rebuild || *rebuildOnly

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer service",
		"key_prefix", cfg.Storage.KeyPrefix,
		"rebuild_on_start", cfg.Indexer.RebuildOnStart,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startup := resilience.RetryConfig{MaxAttempts: 5, InitialDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second}
	var redisClient *pkgredis.Client
	err = resilience.Retry(ctx, "connect-redis", startup, func() error {
		var err error
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		return err
	})
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	var db *postgres.Client
	err = resilience.Retry(ctx, "connect-postgres", startup, func() error {
		var err error
		db, err = postgres.New(ctx, cfg.Postgres)
		return err
	})
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	repo := repository.New(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	engine, err := indexer.NewFromConfig(cfg, redisClient, m)
	if err != nil {
		slog.Error("failed to create index", "error", err)
		os.Exit(1)
	}

	rebuilt, err := engine.Bootstrap(ctx, repo)
	if err != nil {
		slog.Error("index bootstrap failed", "error", err)
		os.Exit(1)
	}
	slog.Info("index ready", "rebuilt", rebuilt)
	if *rebuildOnly {
		return
	}

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, reg)
		defer func() {
			if err := shutdownMetrics(context.Background()); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	invalidations := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate)
	defer invalidations.Close()

	kafkaConsumer := kafka.NewConsumer(
		cfg.Kafka,
		cfg.Kafka.Topics.DocumentEvents,
		"",
		consumer.HandleMessage(engine, invalidations, repo),
	)
	indexConsumer := consumer.New(kafkaConsumer)

	slog.Info("indexer service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.DocumentEvents,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := indexConsumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}
	slog.Info("indexer service stopped")
}
