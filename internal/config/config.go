package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/trustmecro/trust-service/internal/prompt"
	pkgconfig "github.com/trustmecro/trust-service/pkg/config"
	"github.com/trustmecro/trust-service/pkg/database"
)

// Config holds all configuration for the trust service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"TRUST_HTTP_PORT" envDefault:"8010"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"trust"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"trust_secret"`
	PostgresDB   string `env:"TRUST_DB_NAME" envDefault:"trust_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`
	SlowQueryThresholdMs  int   `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`

	// Redis evidence cache
	RedisAddr        string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword    string        `env:"REDIS_PASSWORD"`
	RedisDB          int           `env:"REDIS_DB" envDefault:"0"`
	EvidenceCacheTTL time.Duration `env:"EVIDENCE_CACHE_TTL" envDefault:"24h"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Generative model
	GeminiAPIKey string        `env:"GEMINI_API_KEY"`
	GeminiModel  string        `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	ModelTimeout time.Duration `env:"MODEL_TIMEOUT" envDefault:"60s"`

	// Search backend
	SerpAPIKey     string  `env:"SERPAPI_KEY"`
	SerpAPIBaseURL string  `env:"SERPAPI_BASE_URL" envDefault:"https://serpapi.com/search.json"`
	SerpAPIRPS     float64 `env:"SERPAPI_RPS" envDefault:"2"`

	// Evidence gathering
	ImageFetchTimeout   time.Duration `env:"IMAGE_FETCH_TIMEOUT" envDefault:"10s"`
	SearchTimeout       time.Duration `env:"SEARCH_TIMEOUT" envDefault:"15s"`
	MaxImageBytes       int64         `env:"MAX_IMAGE_BYTES" envDefault:"8388608"`
	EvidenceConcurrency int           `env:"EVIDENCE_CONCURRENCY" envDefault:"4"`

	// Scoring
	TrustWeights   map[string]float64 `env:"TRUST_WEIGHTS" envDefault:"description:0.10,price:0.25,image:0.30,seller:0.15,brand:0.20"`
	FXRate         float64            `env:"FX_RATE" envDefault:"80"`
	PriceTolerance float64            `env:"PRICE_TOLERANCE" envDefault:"0.20"`

	// Auth
	JWTSecret string `env:"JWT_SECRET"`
	JWTIssuer string `env:"JWT_ISSUER"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load trust config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresHost == "" {
		return errors.New("POSTGRES_HOST is required")
	}
	if c.PostgresUser == "" {
		return errors.New("POSTGRES_USER is required")
	}
	if c.DBMaxConns < 1 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("invalid pool size: min %d, max %d", c.DBMinConns, c.DBMaxConns)
	}
	if len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.ModelTimeout <= 0 || c.SearchTimeout <= 0 || c.ImageFetchTimeout <= 0 {
		return errors.New("MODEL_TIMEOUT, SEARCH_TIMEOUT and IMAGE_FETCH_TIMEOUT must be > 0")
	}
	if c.MaxImageBytes <= 0 {
		return fmt.Errorf("MAX_IMAGE_BYTES must be > 0, got %d", c.MaxImageBytes)
	}
	if c.EvidenceConcurrency < 1 {
		return fmt.Errorf("EVIDENCE_CONCURRENCY must be >= 1, got %d", c.EvidenceConcurrency)
	}
	if c.SerpAPIRPS <= 0 {
		return fmt.Errorf("SERPAPI_RPS must be > 0, got %f", c.SerpAPIRPS)
	}
	if c.FXRate <= 0 {
		return fmt.Errorf("FX_RATE must be > 0, got %f", c.FXRate)
	}
	if c.PriceTolerance <= 0 || c.PriceTolerance >= 1 {
		return fmt.Errorf("PRICE_TOLERANCE must be between 0 and 1, got %f", c.PriceTolerance)
	}
	if err := prompt.Weights(c.TrustWeights).Validate(); err != nil {
		return fmt.Errorf("TRUST_WEIGHTS: %w", err)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// Postgres returns the connection pool settings.
func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// PromptSettings returns the scoring settings for the prompt builder.
func (c *Config) PromptSettings() prompt.Settings {
	return prompt.Settings{
		Weights:        prompt.Weights(c.TrustWeights),
		FXRate:         c.FXRate,
		PriceTolerance: c.PriceTolerance,
	}
}
