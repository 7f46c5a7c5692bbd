package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/trustmecro/trust-service/internal/analysis"
	"github.com/trustmecro/trust-service/internal/config"
	"github.com/trustmecro/trust-service/internal/event"
	"github.com/trustmecro/trust-service/internal/evidence"
	handler "github.com/trustmecro/trust-service/internal/handler/http"
	"github.com/trustmecro/trust-service/internal/llm"
	"github.com/trustmecro/trust-service/internal/prompt"
	"github.com/trustmecro/trust-service/internal/repository/postgres"
	"github.com/trustmecro/trust-service/internal/service"
	"github.com/trustmecro/trust-service/migrations"
	"github.com/trustmecro/trust-service/pkg/database"
	"github.com/trustmecro/trust-service/pkg/health"
	"github.com/trustmecro/trust-service/pkg/httpclient"
	pkgkafka "github.com/trustmecro/trust-service/pkg/kafka"
	"github.com/trustmecro/trust-service/pkg/middleware"
	"github.com/trustmecro/trust-service/pkg/tracing"
)

const serviceName = "trust"

// App wires together all dependencies and runs the trust service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	gemini         *llm.GeminiBackend
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Configure slow query logging.
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Redis backs the evidence cache only; the service runs without it.
	redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Warn("redis unavailable, evidence cache disabled", slog.String("error", err.Error()))
	}

	// Initialize Kafka producer with connection validation and retry.
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	if err := pingKafkaWithRetry(ctx, producer, logger); err != nil {
		logger.Warn("kafka producer ping failed after retries, continuing in degraded mode",
			slog.String("error", err.Error()),
		)
	} else {
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Generative model. A missing key leaves the invoker unconfigured.
	gemini, err := llm.NewGeminiBackend(ctx, llm.GeminiConfig{
		APIKey:   cfg.GeminiAPIKey,
		Model:    cfg.GeminiModel,
		JSONMode: true,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init gemini: %w", err)
	}
	var backend llm.Backend
	if gemini != nil {
		backend = gemini
	} else {
		logger.Warn("GEMINI_API_KEY is not set, analysis runs unconfigured")
	}
	invoker := llm.NewInvoker(backend, cfg.ModelTimeout, logger)

	// Evidence pipeline.
	gatherer, searchCheck := newGatherer(cfg, redisClient, logger)
	builder, err := prompt.NewBuilder(cfg.PromptSettings())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init prompt builder: %w", err)
	}
	policy := analysis.DefaultPolicy()
	productAnalyzer := analysis.NewProductAnalyzer(gatherer, builder, invoker, policy, logger)
	reviewAnalyzer := analysis.NewReviewAnalyzer(builder, invoker, policy, logger)

	// Build the trust ledger.
	store := postgres.NewStore(pool)
	repos := store.Repositories()
	eventProducer := event.NewProducer(producer, logger)

	productService := service.NewProductService(repos, productAnalyzer, eventProducer, logger)
	reviewService := service.NewReviewService(repos, store, reviewAnalyzer, eventProducer, logger)
	moderationService := service.NewModerationService(repos, store, eventProducer, logger)

	// Health checks.
	healthHandler := health.NewHandler(3 * time.Second)
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if redisClient != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})
	if searchCheck != nil {
		healthHandler.RegisterNonCritical("serpapi", searchCheck)
	}

	// HTTP router.
	router := handler.NewRouter(handler.RouterDeps{
		Products:   productService,
		Reviews:    reviewService,
		Moderation: moderationService,
		Health:     healthHandler,
		Validate:   middleware.NewJWTValidator([]byte(cfg.JWTSecret), cfg.JWTIssuer),
		CORS:       middleware.CORSConfig{AllowedOrigins: cfg.CORSOrigins, MaxAge: 300},
		Logger:     logger,
	})

	// Listing creation waits on evidence gathering and the model, so the
	// write timeout covers both.
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.ModelTimeout + cfg.SearchTimeout + cfg.ImageFetchTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		producer:       producer,
		gemini:         gemini,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// newGatherer builds the evidence gatherer and, when search is configured,
// a readiness check on the SerpAPI breaker. Without a SerpAPI key every
// lookup reports a failure and only image bytes are collected.
func newGatherer(cfg *config.Config, redisClient *redis.Client, logger *slog.Logger) (*evidence.Gatherer, health.Checker) {
	var (
		search      evidence.SearchBackend
		searchCheck health.Checker
	)
	serpClient := evidence.NewSerpAPIClient(nil, logger)
	if serp := evidence.NewSerpAPI(serpClient, evidence.SerpAPIConfig{
		APIKey:  cfg.SerpAPIKey,
		BaseURL: cfg.SerpAPIBaseURL,
		RPS:     cfg.SerpAPIRPS,
	}); serp != nil {
		search = serp
		searchCheck = serpClient.Check
		if redisClient != nil {
			search = evidence.NewCachedSearch(serp, evidence.NewRedisCache(redisClient, cfg.EvidenceCacheTTL), logger)
		}
	} else {
		logger.Warn("SERPAPI_KEY is not set, web and reverse image search disabled")
	}

	fetchCfg := httpclient.DefaultConfig()
	fetchCfg.Timeout = cfg.ImageFetchTimeout
	fetchCfg.MaxRetries = 1
	fetcher := evidence.NewImageFetcher(httpclient.New(fetchCfg), cfg.MaxImageBytes)

	gatherer := evidence.NewGatherer(fetcher, search, evidence.GathererConfig{
		FetchTimeout:  cfg.ImageFetchTimeout,
		SearchTimeout: cfg.SearchTimeout,
		Concurrency:   cfg.EvidenceConcurrency,
	}, logger)
	return gatherer, searchCheck
}

// Run starts the HTTP server, then blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

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
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka producer
// 4. Model client and Redis
// 5. PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.gemini != nil {
		if err := a.gemini.Close(); err != nil {
			a.logger.Error("gemini client close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// pingKafkaWithRetry attempts to ping the Kafka producer with exponential
// backoff (3 attempts, 1s/2s with ±25% jitter between them).
func pingKafkaWithRetry(ctx context.Context, producer *pkgkafka.Producer, logger *slog.Logger) error {
	const attempts = 3
	var lastErr error
	for attempt := range attempts {
		if lastErr = producer.Ping(ctx); lastErr == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		base := time.Duration(1<<uint(attempt)) * time.Second
		jitter := time.Duration(float64(base) * 0.25 * (2*rand.Float64() - 1)) // #nosec G404 -- non-cryptographic jitter
		wait := base + jitter
		logger.Warn("kafka producer ping failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", attempts),
			slog.Duration("backoff", wait),
			slog.String("error", lastErr.Error()),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("kafka ping: context canceled during retry: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("kafka producer ping failed after %d attempts: %w", attempts, lastErr)
}
