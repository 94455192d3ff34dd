package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/ingestion/repository"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/redis"
)

// localInvalidator drops the searcher's own cache when its embedded
// consumer changes the index.
type localInvalidator struct{ cache *cache.QueryCache }

func (l localInvalidator) Publish(ctx context.Context, _ kafka.Event) error {
	return l.cache.Invalidate(ctx)
}

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"backend", cfg.Storage.Backend,
		"embedded_indexer", cfg.Indexer.Embedded,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		if cfg.Storage.Backend == "redis" {
			slog.Error("redis is required for the redis index backend", "error", err)
			os.Exit(1)
		}
		slog.Warn("redis unavailable, search caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	engine, err := indexer.NewFromConfig(cfg, redisClient, m)
	if err != nil {
		slog.Error("failed to create index", "error", err)
		os.Exit(1)
	}

	// A process-local index starts empty and is loaded from the document
	// table before events are consumed.
	if cfg.Storage.Backend == "memory" {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, memory index starts empty", "error", err)
		} else {
			n, err := engine.Rebuild(ctx, repository.New(db))
			db.Close()
			if err != nil {
				slog.Error("loading memory index failed", "error", err)
				os.Exit(1)
			}
			slog.Info("memory index loaded", "documents", n)
		}
	}

	var queryCache *cache.QueryCache
	if redisClient != nil {
		queryCache = cache.New(redisClient, cfg.Redis, m)
		slog.Info("search cache enabled",
			"addr", cfg.Redis.Addr,
			"ttl", cfg.Redis.CacheTTL,
		)
	}

	exec := executor.New(engine.Tokenizer(), engine.Index(),
		executor.WithPoolSize(cfg.Search.CandidatePoolSize),
		executor.WithMetrics(m),
	)
	h := handler.New(exec, engine, queryCache, cfg.Search, m)

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		stats, err := engine.Stats(ctx)
		if err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d documents", stats.TotalDocuments)}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		return health.PingCheck(redisClient.Ping, health.StatusDegraded)(ctx)
	})

	mux := http.NewServeMux()
	h.Routes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if cfg.Server.RateLimit > 0 {
		limiter := ratelimit.New(cfg.Server.RateLimit, cfg.Server.RateBurst)
		limiter.StartSweeper(ctx, time.Minute)
		chain = middleware.RateLimit(limiter)(chain)
	}
	chain = middleware.CORS(cfg.Server.CORSOrigins)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Indexer.Embedded {
		// Every searcher needs every event, so each instance gets its own
		// consumer group.
		host, _ := os.Hostname()
		group := fmt.Sprintf("%s-searcher-%s", cfg.Kafka.ConsumerGroup, host)
		var invalidations consumer.Publisher
		if queryCache != nil {
			invalidations = localInvalidator{cache: queryCache}
		}
		docConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentEvents, group,
			consumer.HandleMessage(engine, invalidations, nil))
		g.Go(func() error {
			return consumer.New(docConsumer).Start(gctx)
		})
		slog.Info("embedded indexer consuming", "topic", cfg.Kafka.Topics.DocumentEvents, "group", group)
	} else if queryCache != nil {
		host, _ := os.Hostname()
		group := fmt.Sprintf("%s-invalidate-%s", cfg.Kafka.ConsumerGroup, host)
		invConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate, group,
			func(ctx context.Context, _ []byte, value []byte) error {
				event, err := kafka.DecodeJSON[ingestion.InvalidationEvent](value)
				if err != nil {
					slog.Warn("dropping malformed invalidation event", "error", err)
					return nil
				}
				slog.Debug("invalidating search cache", "doc_id", event.DocumentID, "op", event.Op)
				return queryCache.Invalidate(ctx)
			})
		g.Go(func() error {
			return invConsumer.Start(gctx)
		})
		slog.Info("cache invalidation consumer started", "topic", cfg.Kafka.Topics.CacheInvalidate)
	}

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, reg)
		defer func() {
			if err := shutdownMetrics(context.Background()); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		slog.Info("search service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("search service error", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}
