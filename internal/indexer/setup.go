package indexer

import (
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/redis"
)

// NewFromConfig builds the tokenizer, index backend and engine described by
// cfg. rdb is required for the redis backend and ignored otherwise; m may be
// nil.
func NewFromConfig(cfg *config.Config, rdb *pkgredis.Client, m *metrics.Metrics) (*Engine, error) {
	tok, err := tokenizer.New(tokenizer.Config{
		N:             cfg.Tokenizer.N,
		PaddingLeft:   cfg.Tokenizer.PaddingLeft,
		PaddingRight:  cfg.Tokenizer.PaddingRight,
		PaddingMiddle: cfg.Tokenizer.PaddingMiddle,
	})
	if err != nil {
		return nil, fmt.Errorf("creating tokenizer: %w", err)
	}

	var backend index.Store
	switch cfg.Storage.Backend {
	case "memory":
		backend = index.NewMemoryStore()
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("storage backend redis requires a redis client")
		}
		backend = store.NewRedisStore(rdb, cfg.Storage.KeyPrefix)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	idx := index.New(backend,
		index.WithRetainEmptyTerms(cfg.Storage.RetainEmptyTerms),
		index.WithLogger(slog.Default().With("component", "inverted-index", "backend", cfg.Storage.Backend)),
	)
	return NewEngine(tok, idx, cfg.Indexer, m), nil
}
