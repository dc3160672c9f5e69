package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/utafrali/storefront-search/internal/ranking"
	pkgconfig "github.com/utafrali/storefront-search/pkg/config"
	"github.com/utafrali/storefront-search/pkg/database"
)

// Search engine backends.
const (
	EngineMemory        = "memory"
	EnginePostgres      = "postgres"
	EngineElasticsearch = "elasticsearch"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Analytics sinks.
const (
	SinkKafka = "kafka"
	SinkLog   = "log"
	SinkNoop  = "noop"
)

// Config holds all configuration for the search service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort       int           `env:"SEARCH_HTTP_PORT" envDefault:"8010"`
	RequestTimeout time.Duration `env:"SEARCH_REQUEST_TIMEOUT" envDefault:"30s"`
	AdminToken     string        `env:"ADMIN_TOKEN"`

	// Search engine selection (memory, postgres or elasticsearch)
	SearchEngine string `env:"SEARCH_ENGINE" envDefault:"elasticsearch"`
	// FallbackEnabled serves the built-in catalog when the primary engine fails.
	FallbackEnabled bool `env:"SEARCH_FALLBACK_ENABLED" envDefault:"true"`

	// Elasticsearch
	ElasticsearchURL           string `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200"`
	ElasticsearchIndex         string `env:"ELASTICSEARCH_INDEX" envDefault:"storefront_products"`
	ElasticsearchMaxCandidates int    `env:"ELASTICSEARCH_MAX_CANDIDATES" envDefault:"1000"`

	// PostgreSQL
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"storefront"`
	PostgresPass     string `env:"POSTGRES_PASSWORD" envDefault:"storefront_secret"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"storefront"`
	PostgresSSL      string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	PostgresMaxConns int32  `env:"POSTGRES_MAX_CONNS" envDefault:"20"`

	// Caches, history and trending (memory or redis)
	CacheBackend    string        `env:"CACHE_BACKEND" envDefault:"memory"`
	CacheMaxEntries int           `env:"CACHE_MAX_ENTRIES" envDefault:"10000"`
	RedisHost       string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort       int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass       string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB         int           `env:"REDIS_DB" envDefault:"0"`
	SuggestCacheTTL time.Duration `env:"SUGGEST_CACHE_TTL" envDefault:"5m"`
	FacetCacheTTL   time.Duration `env:"FACET_CACHE_TTL" envDefault:"5m"`
	HistoryTTL      time.Duration `env:"HISTORY_TTL" envDefault:"720h"`

	// Live search debounce windows
	SearchDebounce  time.Duration `env:"SEARCH_DEBOUNCE" envDefault:"300ms"`
	SuggestDebounce time.Duration `env:"SUGGEST_DEBOUNCE" envDefault:"150ms"`

	// Ranking
	RankingMaxResults int     `env:"RANKING_MAX_RESULTS" envDefault:"50"`
	RankingMinScore   float64 `env:"RANKING_MIN_SCORE" envDefault:"0.1"`
	// RankingWeights overrides the six factor weights, comma separated in the
	// order base, personalized, trending, location, seasonal, popularity.
	RankingWeights string `env:"RANKING_WEIGHTS"`
	Weights        ranking.Weights

	// Analytics
	AnalyticsSink       string `env:"ANALYTICS_SINK" envDefault:"log"`
	AnalyticsBufferSize int    `env:"ANALYTICS_BUFFER_SIZE" envDefault:"1024"`

	// Kafka
	KafkaBrokers         []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaConsumerEnabled bool     `env:"KAFKA_CONSUMER_ENABLED" envDefault:"true"`
	KafkaGroupID         string   `env:"KAFKA_GROUP_ID" envDefault:"search-service"`

	// Product service URL for reindex fetching. Empty disables reindex.
	ProductServiceURL string `env:"PRODUCT_SERVICE_URL" envDefault:"http://localhost:8080"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Rate limiting per client IP. Zero RPS disables it.
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"50"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"100"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	PprofAllowedCIDRs  []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load search config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants and resolves the ranking weights.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if !slices.Contains([]string{EngineMemory, EnginePostgres, EngineElasticsearch}, c.SearchEngine) {
		return fmt.Errorf("SEARCH_ENGINE must be memory, postgres or elasticsearch, got %q", c.SearchEngine)
	}
	if c.SearchEngine == EnginePostgres {
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required")
		}
	}
	if c.CacheBackend != CacheMemory && c.CacheBackend != CacheRedis {
		return fmt.Errorf("CACHE_BACKEND must be memory or redis, got %q", c.CacheBackend)
	}
	if !slices.Contains([]string{SinkKafka, SinkLog, SinkNoop}, c.AnalyticsSink) {
		return fmt.Errorf("ANALYTICS_SINK must be kafka, log or noop, got %q", c.AnalyticsSink)
	}
	if (c.AnalyticsSink == SinkKafka || c.KafkaConsumerEnabled) && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.SearchDebounce < 0 || c.SuggestDebounce < 0 {
		return fmt.Errorf("debounce windows must not be negative")
	}
	if c.RankingMaxResults < 1 {
		return fmt.Errorf("RANKING_MAX_RESULTS must be positive, got %d", c.RankingMaxResults)
	}
	if c.RankingMinScore < 0 || c.RankingMinScore > 1 {
		return fmt.Errorf("RANKING_MIN_SCORE must be between 0.0 and 1.0, got %f", c.RankingMinScore)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}

	c.Weights = ranking.DefaultWeights()
	if c.RankingWeights != "" {
		w, err := ranking.ParseWeights(c.RankingWeights)
		if err != nil {
			return fmt.Errorf("RANKING_WEIGHTS: %w", err)
		}
		c.Weights = w
	}
	return nil
}

// IsDevelopment reports whether the service runs in a development environment.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Ranking returns the optimizer settings.
func (c *Config) Ranking() ranking.Config {
	return ranking.Config{
		Weights:    c.Weights,
		MaxResults: c.RankingMaxResults,
		MinScore:   c.RankingMinScore,
	}
}

// Postgres returns the connection settings of the catalog database.
func (c *Config) Postgres() database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPass
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSL
	pg.MaxConns = c.PostgresMaxConns
	return pg
}

// Redis returns the connection settings of the cache Redis.
func (c *Config) Redis() database.RedisConfig {
	rc := database.DefaultRedisConfig()
	rc.Host = c.RedisHost
	rc.Port = c.RedisPort
	rc.Password = c.RedisPass
	rc.DB = c.RedisDB
	return rc
}
