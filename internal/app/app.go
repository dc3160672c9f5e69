package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront-search/internal/analytics"
	"github.com/utafrali/storefront-search/internal/cache"
	"github.com/utafrali/storefront-search/internal/config"
	"github.com/utafrali/storefront-search/internal/domain"
	"github.com/utafrali/storefront-search/internal/engine"
	esengine "github.com/utafrali/storefront-search/internal/engine/elasticsearch"
	"github.com/utafrali/storefront-search/internal/engine/memory"
	pgengine "github.com/utafrali/storefront-search/internal/engine/postgres"
	"github.com/utafrali/storefront-search/internal/engine/postgres/migrations"
	"github.com/utafrali/storefront-search/internal/event"
	"github.com/utafrali/storefront-search/internal/fixture"
	handler "github.com/utafrali/storefront-search/internal/handler/http"
	"github.com/utafrali/storefront-search/internal/history"
	"github.com/utafrali/storefront-search/internal/ranking"
	"github.com/utafrali/storefront-search/internal/retriever"
	"github.com/utafrali/storefront-search/internal/service"
	"github.com/utafrali/storefront-search/internal/suggest"
	"github.com/utafrali/storefront-search/internal/trending"
	"github.com/utafrali/storefront-search/pkg/breaker"
	"github.com/utafrali/storefront-search/pkg/database"
	"github.com/utafrali/storefront-search/pkg/health"
	"github.com/utafrali/storefront-search/pkg/httpclient"
	pkgkafka "github.com/utafrali/storefront-search/pkg/kafka"
	"github.com/utafrali/storefront-search/pkg/middleware"
	"github.com/utafrali/storefront-search/pkg/tracing"
)

// ServiceName identifies the service in logs, traces and metrics.
const ServiceName = "search-service"

// App wires together all dependencies and runs the search service.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	consumers  []*pkgkafka.Consumer
	producer   *pkgkafka.Producer
	analytics  *analytics.Async
	httpServer *http.Server

	// closers release connections in reverse order of opening.
	closers []func() error
}

// stores groups the cache, history and trending backends.
type stores struct {
	suggest  cache.Cache[[]domain.Suggestion]
	lists    cache.Cache[[]string]
	facets   cache.Cache[domain.Facets]
	history  history.Store
	trending trending.Tracker
}

// NewApp creates a new application instance, initializing all dependencies.
// ctx bounds connection setup and background janitors.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.close()
		}
	}()

	tcfg := tracing.DefaultConfig(ServiceName)
	tcfg.Environment = cfg.Environment
	tcfg.Enabled = cfg.OTELEnabled
	tcfg.OTLPEndpoint = cfg.OTELEndpoint
	tcfg.SampleRate = cfg.OTELSampleRate
	shutdownTracer, err := tracing.InitTracer(ctx, tcfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.closers = append(a.closers, func() error {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdownTracer(sctx)
	})

	healthHandler := health.NewHandler()

	primary, err := a.primaryEngine(ctx)
	if err != nil {
		return nil, err
	}
	var fallback engine.SearchEngine
	if cfg.FallbackEnabled && cfg.SearchEngine != config.EngineMemory {
		fallback = memory.NewSeeded(fixture.Products())
		logger.Info("fallback catalog enabled", slog.Int("products", len(fixture.Products())))
	}
	ret := retriever.New(primary, fallback, breaker.DefaultConfig("search-engine"), logger)
	healthHandler.Register(primary.Name(), ret.Ping)

	st, err := a.stores(ctx, healthHandler)
	if err != nil {
		return nil, err
	}

	scfg := suggest.DefaultConfig()
	scfg.CacheTTL = cfg.SuggestCacheTTL
	suggestEngine := suggest.New(scfg, suggest.Deps{
		Catalog:      ret,
		Trending:     st.trending,
		History:      st.history,
		SuggestCache: st.suggest,
		ListCache:    st.lists,
		Logger:       logger,
	})

	sink := a.analyticsSink()

	var catalog *httpclient.CircuitBreakerClient
	if cfg.ProductServiceURL != "" {
		catalog = httpclient.NewCircuitBreakerClient(
			httpclient.New(httpclient.DefaultConfig()),
			breaker.DefaultConfig("product-service"),
			"product-service",
			logger,
		)
	}

	searchService := service.NewSearchService(service.Deps{
		Retriever:  ret,
		Optimizer:  ranking.New(cfg.Ranking()),
		Suggest:    suggestEngine,
		History:    st.history,
		Analytics:  sink,
		FacetCache: st.facets,
		FacetTTL:   cfg.FacetCacheTTL,
		Catalog:    catalog,
		CatalogURL: cfg.ProductServiceURL,
		Logger:     logger,
	})

	if cfg.KafkaConsumerEnabled {
		a.startConsumers(searchService)
	}
	if cfg.KafkaConsumerEnabled || cfg.AnalyticsSink == config.SinkKafka {
		healthHandler.Register("kafka", func(ctx context.Context) error {
			return pkgkafka.PingBrokers(ctx, cfg.KafkaBrokers)
		})
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	cors.Environment = cfg.Environment

	router := handler.NewRouter(ctx, handler.RouterConfig{
		ServiceName:     ServiceName,
		AdminToken:      cfg.AdminToken,
		CORS:            cors,
		RateLimitRPS:    cfg.RateLimitRPS,
		RateLimitBurst:  cfg.RateLimitBurst,
		PprofCIDRs:      cfg.PprofAllowedCIDRs,
		RequestTimeout:  cfg.RequestTimeout,
		SearchDebounce:  cfg.SearchDebounce,
		SuggestDebounce: cfg.SuggestDebounce,
	}, searchService, healthHandler, logger)

	// Write deadlines of live connections are managed per message, so the
	// server-wide WriteTimeout only has to cover ordinary requests.
	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return a, nil
}

// primaryEngine builds the configured search backend.
func (a *App) primaryEngine(ctx context.Context) (engine.SearchEngine, error) {
	cfg, logger := a.cfg, a.logger

	switch cfg.SearchEngine {
	case config.EngineElasticsearch:
		eng, err := esengine.New(ctx, esengine.Config{
			URL:           cfg.ElasticsearchURL,
			IndexName:     cfg.ElasticsearchIndex,
			MaxCandidates: cfg.ElasticsearchMaxCandidates,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("init elasticsearch engine: %w", err)
		}
		logger.Info("elasticsearch search engine initialized",
			slog.String("url", cfg.ElasticsearchURL),
			slog.String("index", cfg.ElasticsearchIndex),
		)
		return eng, nil

	case config.EnginePostgres:
		pg := cfg.Postgres()
		pool, err := database.NewPostgresPool(ctx, &pg, logger)
		if err != nil {
			return nil, fmt.Errorf("init postgres engine: %w", err)
		}
		a.closers = append(a.closers, func() error {
			pool.Close()
			return nil
		})
		if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
			return nil, fmt.Errorf("migrate products schema: %w", err)
		}
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, ServiceName); err != nil {
			logger.Warn("failed to register pool metrics", slog.String("error", err.Error()))
		}
		logger.Info("postgres search engine initialized",
			slog.String("host", pg.Host),
			slog.String("database", pg.DBName),
		)
		return pgengine.New(pool), nil

	default:
		logger.Info("in-memory search engine initialized")
		return memory.NewSeeded(fixture.Products()), nil
	}
}

// stores builds caches, history and trending on the configured backend.
func (a *App) stores(ctx context.Context, healthHandler *health.Handler) (stores, error) {
	cfg := a.cfg

	if cfg.CacheBackend != config.CacheRedis {
		a.logger.Info("in-memory caches initialized", slog.Int("max_entries", cfg.CacheMaxEntries))
		return stores{
			suggest:  cache.NewMemory[[]domain.Suggestion](cfg.CacheMaxEntries),
			lists:    cache.NewMemory[[]string](cfg.CacheMaxEntries),
			facets:   cache.NewMemory[domain.Facets](cfg.CacheMaxEntries),
			history:  history.NewMemoryStore(),
			trending: trending.NewMemoryTracker(),
		}, nil
	}

	rc := cfg.Redis()
	client, err := database.NewRedisClient(ctx, rc)
	if err != nil {
		return stores{}, fmt.Errorf("init redis: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	healthHandler.Register("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	a.logger.Info("redis caches initialized", slog.String("addr", rc.Addr()))

	return redisStores(client, cfg.HistoryTTL), nil
}

func redisStores(client *redis.Client, historyTTL time.Duration) stores {
	return stores{
		suggest:  cache.NewRedis[[]domain.Suggestion](client, "search:suggest"),
		lists:    cache.NewRedis[[]string](client, "search:lists"),
		facets:   cache.NewRedis[domain.Facets](client, "search:facets"),
		history:  history.NewRedisStore(client, historyTTL),
		trending: trending.NewRedisTracker(client),
	}
}

// analyticsSink builds the configured tracking sink. Kafka and log sinks are
// fed through a bounded queue so searches never wait on delivery.
func (a *App) analyticsSink() analytics.Sink {
	cfg := a.cfg

	var pub analytics.Publisher
	switch cfg.AnalyticsSink {
	case config.SinkKafka:
		pub = analytics.NewKafkaPublisher(a.kafkaProducer())
	case config.SinkLog:
		pub = analytics.NewLogPublisher(a.logger)
	default:
		a.logger.Info("analytics disabled")
		return analytics.Noop{}
	}

	a.analytics = analytics.NewAsync(pub, cfg.AnalyticsBufferSize, a.logger)
	a.logger.Info("analytics sink initialized", slog.String("sink", cfg.AnalyticsSink))
	return a.analytics
}

// kafkaProducer lazily creates the producer shared by analytics and dead letters.
func (a *App) kafkaProducer() *pkgkafka.Producer {
	if a.producer == nil {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(a.cfg.KafkaBrokers), a.logger)
	}
	return a.producer
}

// startConsumers creates one consumer per product topic. Poison messages go
// to the topic's dead letter queue.
func (a *App) startConsumers(indexer event.Indexer) {
	eventConsumer := event.NewConsumer(indexer, a.logger)
	producer := a.kafkaProducer()

	topics := event.Topics()
	for _, topic := range topics {
		consumerCfg := pkgkafka.ConsumerConfig{
			Brokers:  a.cfg.KafkaBrokers,
			GroupID:  a.cfg.KafkaGroupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6, // 10 MB
		}
		c := pkgkafka.NewConsumer(consumerCfg, eventConsumer.Handle, a.logger).WithDeadLetter(producer)
		a.consumers = append(a.consumers, c)
	}
	a.logger.Info("kafka consumers initialized",
		slog.Any("brokers", a.cfg.KafkaBrokers),
		slog.Int("topic_count", len(topics)),
	)
}

// Run starts the HTTP server and Kafka consumers, blocking until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1+len(a.consumers))

	// Start Kafka consumers in background goroutines.
	for _, c := range a.consumers {
		go func() {
			if err := c.Start(ctx); err != nil {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}()
	}

	// Start HTTP server.
	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// Close Kafka consumers.
	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// Flush queued analytics before the producer goes away.
	if a.analytics != nil {
		if err := a.analytics.Close(shutdownCtx); err != nil {
			a.logger.Error("analytics flush error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	errs = append(errs, a.close())

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// close releases the producer and every connection opened by NewApp.
func (a *App) close() error {
	var errs []error
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.producer = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
