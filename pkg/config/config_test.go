package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Tokenizer.N)
	assert.Equal(t, 200, cfg.Search.CandidatePoolSize)
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, "document-events", cfg.Kafka.Topics.DocumentEvents)
}

func TestLoadYAMLWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := `
server:
  port: 9000
  writeTimeout: 5s
storage:
  backend: memory
indexer:
  embedded: true
search:
  candidatePoolSize: 50
tokenizer:
  n: 4
`
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o644))

	t.Setenv("FZ_SEARCH_MIN_QUALITY", "0.05")
	t.Setenv("FZ_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("FZ_METRICS_PORT", "9191")
	t.Setenv("FZ_SERVER_RATE_LIMIT", "12.5")
	t.Setenv("FZ_SERVER_CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 50, cfg.Search.CandidatePoolSize)
	assert.Equal(t, 4, cfg.Tokenizer.N)
	assert.Equal(t, "$", cfg.Tokenizer.PaddingLeft)
	assert.InDelta(t, 0.05, cfg.Search.MinQuality, 1e-9)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 9191, cfg.Metrics.Port)
	assert.InDelta(t, 12.5, cfg.Server.RateLimit, 1e-9)
	assert.Equal(t, 100, cfg.Server.RateBurst)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestDevelopmentConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "development.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, "cache-invalidate", cfg.Kafka.Topics.CacheInvalidate)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Storage.Backend = "etcd" }},
		{"memory without embedded indexer", func(c *Config) { c.Storage.Backend = "memory" }},
		{"negative rate limit", func(c *Config) { c.Server.RateLimit = -1 }},
		{"zero pool", func(c *Config) { c.Search.CandidatePoolSize = 0 }},
		{"max below default", func(c *Config) { c.Search.MaxResults = 1; c.Search.DefaultLimit = 5 }},
		{"empty key prefix", func(c *Config) { c.Storage.KeyPrefix = "" }},
		{"key prefix is cache namespace", func(c *Config) { c.Storage.KeyPrefix = CacheKeyNamespace }},
		{"key prefix under cache namespace", func(c *Config) { c.Storage.KeyPrefix = "search:idx" }},
		{"glob in key prefix", func(c *Config) { c.Storage.KeyPrefix = "fz*" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, defaultConfig().Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := defaultConfig()
	cfg.Storage.Backend = "etcd"
	cfg.Search.CandidatePoolSize = 0
	err := cfg.Validate()
	assert.ErrorContains(t, err, "storage.backend")
	assert.ErrorContains(t, err, "candidatePoolSize")
}

func TestKeyPrefixOutsideCacheNamespace(t *testing.T) {
	for _, prefix := range []string{"fz", "searchidx", "idx:search"} {
		cfg := defaultConfig()
		cfg.Storage.KeyPrefix = prefix
		assert.NoError(t, cfg.Validate(), prefix)
	}

	cfg := defaultConfig()
	cfg.Storage.Backend = "memory"
	cfg.Indexer.Embedded = true
	cfg.Storage.KeyPrefix = CacheKeyNamespace
	assert.NoError(t, cfg.Validate(), "the memory backend has no redis keys")
}
