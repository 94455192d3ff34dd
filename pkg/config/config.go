// Package config reads the YAML configuration shared by every fuzzy search
// binary. Defaults cover local development; FZ_* variables override the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	Tokenizer TokenizerConfig `yaml:"tokenizer"`
	Indexer   IndexerConfig   `yaml:"indexer"`
	Search    SearchConfig    `yaml:"search"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RateLimit       float64       `yaml:"rateLimit"` // per client IP per second, 0 disables
	RateBurst       int           `yaml:"rateBurst"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
}

type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

type KafkaTopics struct {
	DocumentEvents  string `yaml:"documentEvents"`
	CacheInvalidate string `yaml:"cacheInvalidate"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// CacheKeyNamespace holds every query cache key in Redis. Cache invalidation
// deletes the whole namespace, so the index must live outside it.
const CacheKeyNamespace = "search"

// StorageConfig selects where the inverted index lives. Backend is either
// "memory" (process-local) or "redis" (shared between indexer and searchers).
type StorageConfig struct {
	Backend          string `yaml:"backend"`
	KeyPrefix        string `yaml:"keyPrefix"`
	RetainEmptyTerms bool   `yaml:"retainEmptyTerms"`
}

// TokenizerConfig pins the n-gram scheme. Index-time and query-time
// configuration must be identical.
type TokenizerConfig struct {
	N             int    `yaml:"n"`
	PaddingLeft   string `yaml:"paddingLeft"`
	PaddingRight  string `yaml:"paddingRight"`
	PaddingMiddle string `yaml:"paddingMiddle"`
}

// IndexerConfig controls how the index is fed.
type IndexerConfig struct {
	// Embedded makes the search service consume document events itself.
	// Required for the memory backend.
	Embedded       bool          `yaml:"embedded"`
	RebuildOnStart bool          `yaml:"rebuildOnStart"`
	RebuildTimeout time.Duration `yaml:"rebuildTimeout"`
}

// SearchConfig controls query execution limits.
type SearchConfig struct {
	CandidatePoolSize int     `yaml:"candidatePoolSize"`
	MinQuality        float64 `yaml:"minQuality"`
	DefaultLimit      int     `yaml:"defaultLimit"`
	MaxResults        int     `yaml:"maxResults"`
}

type IngestionConfig struct {
	Port          int `yaml:"port"`
	MaxTextLength int `yaml:"maxTextLength"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load layers the file at path (skipped when empty) and then the environment
// over the defaults, and validates the result.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every setting the services cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Storage.Backend != "memory" && c.Storage.Backend != "redis" {
		errs = append(errs, fmt.Errorf("storage.backend must be memory or redis, got %q", c.Storage.Backend))
	}
	if c.Storage.Backend == "memory" && !c.Indexer.Embedded {
		errs = append(errs, errors.New("storage.backend memory requires indexer.embedded"))
	}
	if c.Storage.Backend == "redis" {
		if err := checkKeyPrefix(c.Storage.KeyPrefix); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rateLimit must not be negative, got %g", c.Server.RateLimit))
	}
	if c.Search.CandidatePoolSize < 1 {
		errs = append(errs, fmt.Errorf("search.candidatePoolSize must be positive, got %d", c.Search.CandidatePoolSize))
	}
	if c.Search.DefaultLimit < 1 || c.Search.MaxResults < c.Search.DefaultLimit {
		errs = append(errs, fmt.Errorf("search limits invalid: defaultLimit=%d maxResults=%d",
			c.Search.DefaultLimit, c.Search.MaxResults))
	}
	return errors.Join(errs...)
}

// checkKeyPrefix rejects index prefixes whose keys the query cache flush or
// the index reset pattern would over-match.
func checkKeyPrefix(prefix string) error {
	switch {
	case prefix == "":
		return errors.New("storage.keyPrefix must not be empty")
	case strings.ContainsAny(prefix, "*?[]\\"):
		return fmt.Errorf("storage.keyPrefix %q must not contain glob characters", prefix)
	case prefix == CacheKeyNamespace || strings.HasPrefix(prefix, CacheKeyNamespace+":"):
		return fmt.Errorf("storage.keyPrefix %q collides with the query cache namespace %q", prefix, CacheKeyNamespace)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       50,
			RateBurst:       100,
			CORSOrigins:     []string{"*"},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "fuzzysearch",
			User:            "fuzzysearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "fuzzysearch-indexer",
			Topics: KafkaTopics{
				DocumentEvents:  "document-events",
				CacheInvalidate: "cache-invalidate",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Storage: StorageConfig{
			Backend:   "redis",
			KeyPrefix: "fz",
		},
		Tokenizer: TokenizerConfig{
			N:             3,
			PaddingLeft:   "$",
			PaddingRight:  "!",
			PaddingMiddle: "_",
		},
		Indexer: IndexerConfig{
			RebuildTimeout: 10 * time.Minute,
		},
		Search: SearchConfig{
			CandidatePoolSize: 200,
			DefaultLimit:      10,
			MaxResults:        100,
		},
		Ingestion: IngestionConfig{
			Port:          8081,
			MaxTextLength: 1048576,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides lets FZ_* variables replace file values. Empty or
// unparseable values are ignored.
func applyEnvOverrides(cfg *Config) {
	envInt("FZ_SERVER_PORT", &cfg.Server.Port)
	envFloat("FZ_SERVER_RATE_LIMIT", &cfg.Server.RateLimit)
	envList("FZ_SERVER_CORS_ORIGINS", &cfg.Server.CORSOrigins)

	envString("FZ_POSTGRES_HOST", &cfg.Postgres.Host)
	envInt("FZ_POSTGRES_PORT", &cfg.Postgres.Port)
	envString("FZ_POSTGRES_DATABASE", &cfg.Postgres.Database)
	envString("FZ_POSTGRES_USER", &cfg.Postgres.User)
	envString("FZ_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	envString("FZ_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)

	envList("FZ_KAFKA_BROKERS", &cfg.Kafka.Brokers)
	envString("FZ_REDIS_ADDR", &cfg.Redis.Addr)
	envString("FZ_REDIS_PASSWORD", &cfg.Redis.Password)

	envString("FZ_STORAGE_BACKEND", &cfg.Storage.Backend)
	envString("FZ_STORAGE_KEY_PREFIX", &cfg.Storage.KeyPrefix)
	envBool("FZ_INDEXER_EMBEDDED", &cfg.Indexer.Embedded)
	envInt("FZ_SEARCH_CANDIDATE_POOL_SIZE", &cfg.Search.CandidatePoolSize)
	envFloat("FZ_SEARCH_MIN_QUALITY", &cfg.Search.MinQuality)
	envInt("FZ_INGESTION_PORT", &cfg.Ingestion.Port)

	envString("FZ_LOGGING_LEVEL", &cfg.Logging.Level)
	envString("FZ_LOGGING_FORMAT", &cfg.Logging.Format)
	envBool("FZ_METRICS_ENABLED", &cfg.Metrics.Enabled)
	envInt("FZ_METRICS_PORT", &cfg.Metrics.Port)
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envList(key string, dst *[]string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = strings.Split(v, ",")
	}
}

func envInt(key string, dst *int) {
	envParse(key, dst, strconv.Atoi)
}

func envFloat(key string, dst *float64) {
	envParse(key, dst, func(v string) (float64, error) { return strconv.ParseFloat(v, 64) })
}

func envBool(key string, dst *bool) {
	envParse(key, dst, strconv.ParseBool)
}

func envParse[T any](key string, dst *T, parse func(string) (T, error)) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	if parsed, err := parse(v); err == nil {
		*dst = parsed
	}
}
