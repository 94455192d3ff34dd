// Command ingestion starts the document ingestion HTTP service.
//
// The service accepts documents via PUT /api/v1/documents/{id} and deletions
// via DELETE /api/v1/documents/{id}, stores them in PostgreSQL, and publishes
// change events to Kafka for the indexer. It provides a health endpoint at
// GET /health.
//
// Usage:
//
//	go run ./cmd/ingestion [-config configs/development.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/ingestion/repository"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/ratelimit"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting ingestion service", "port", cfg.Ingestion.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(ctx, cfg.Postgres)
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
	slog.Info("connected to postgres")

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentEvents)
	defer producer.Close()
	slog.Info("kafka producer initialized", "topic", cfg.Kafka.Topics.DocumentEvents)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, reg)
		defer func() {
			if err := shutdownMetrics(context.Background()); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	pub := publisher.New(repo, producer)
	h := handler.New(pub, repo, cfg.Ingestion.MaxTextLength)

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(db.Ping, health.StatusDown))

	mux := http.NewServeMux()
	h.Routes(mux)
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
		Addr:         fmt.Sprintf(":%d", cfg.Ingestion.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()
	slog.Info("ingestion service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("ingestion service stopped")
}
