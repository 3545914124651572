package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	PostgreSQL PostgreSQLConfig
	Server     ServerConfig
	Search     SearchConfig
	Pipeline   PipelineConfig
	Cache      CacheConfig
	Logging    LoggingConfig
	OpenAI     OpenAIConfig
}

// PostgreSQLConfig holds PostgreSQL database configuration
type PostgreSQLConfig struct {
	DSN                string // full connection string, takes precedence over the fields below
	Driver             string // "postgres" (lib/pq) or "pgx"
	Host               string
	Port               int
	User               string
	Password           string
	Database           string
	SSLMode            string
	MaxConnections     int
	MaxIdleConnections int
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	GinMode        string
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
}

// SearchConfig holds search-related configuration
type SearchConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	ChatPageSize    int
}

// PipelineConfig holds the chat pipeline limits
type PipelineConfig struct {
	Workers      int
	FetchTimeout time.Duration
	HistoryTurns int
}

// CacheConfig holds cache backend configuration
type CacheConfig struct {
	Backend  string // "memory" or "redis"
	TTL      time.Duration
	RedisURL string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// OpenAIConfig holds OpenAI-compatible API configuration
type OpenAIConfig struct {
	APIKey               string
	APIBase              string
	ChatModel            string
	PlanTemperature      float64
	PlanMaxTokens        int
	NarrativeTemperature float64
	NarrativeMaxTokens   int
	Timeout              int
	RateLimit            float64 // requests per second
	RateBurst            int
	Enabled              bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		PostgreSQL: PostgreSQLConfig{
			DSN:                getEnv("DATABASE_URL", getEnv("PG_DSN", "")),
			Driver:             getEnv("PG_DRIVER", "postgres"),
			Host:               getEnv("PG_HOST", "localhost"),
			Port:               getEnvAsInt("PG_PORT", 5432),
			User:               getEnv("PG_USER", "postgres"),
			Password:           getEnv("PG_PASSWORD", ""),
			Database:           getEnv("PG_DATABASE", "houser"),
			SSLMode:            getEnv("PG_SSLMODE", "disable"),
			MaxConnections:     getEnvAsInt("PG_MAX_CONNECTIONS", 25),
			MaxIdleConnections: getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", 5),
		},
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:        getEnv("GIN_MODE", "release"),
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: getEnv("CORS_ALLOWED_METHODS", "GET,POST,OPTIONS"),
			AllowedHeaders: getEnv("CORS_ALLOWED_HEADERS", "Content-Type,Authorization,Accept"),
		},
		Search: SearchConfig{
			DefaultPageSize: getEnvAsInt("SEARCH_DEFAULT_PAGE_SIZE", 20),
			MaxPageSize:     getEnvAsInt("SEARCH_MAX_PAGE_SIZE", 100),
			ChatPageSize:    getEnvAsInt("SEARCH_CHAT_PAGE_SIZE", 10),
		},
		Pipeline: PipelineConfig{
			Workers:      getEnvAsInt("PIPELINE_WORKERS", 10),
			FetchTimeout: getEnvAsDuration("PIPELINE_FETCH_TIMEOUT", 7*time.Second),
			HistoryTurns: getEnvAsInt("PIPELINE_HISTORY_TURNS", 6),
		},
		Cache: CacheConfig{
			Backend:  strings.ToLower(getEnv("CACHE_BACKEND", "memory")),
			TTL:      getEnvAsDuration("CACHE_TTL", time.Hour),
			RedisURL: getEnv("REDIS_URL", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		OpenAI: OpenAIConfig{
			APIKey:               getEnv("OPENAI_API_KEY", ""),
			APIBase:              getEnv("OPENAI_API_BASE", "https://api.openai.com/v1"),
			ChatModel:            getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			PlanTemperature:      getEnvAsFloat("OPENAI_PLAN_TEMPERATURE", 0),
			PlanMaxTokens:        getEnvAsInt("OPENAI_PLAN_MAX_TOKENS", 400),
			NarrativeTemperature: getEnvAsFloat("OPENAI_NARRATIVE_TEMPERATURE", 0.7),
			NarrativeMaxTokens:   getEnvAsInt("OPENAI_NARRATIVE_MAX_TOKENS", 300),
			Timeout:              getEnvAsInt("OPENAI_TIMEOUT", 30),
			RateLimit:            getEnvAsFloat("OPENAI_RATE_LIMIT", 20),
			RateBurst:            getEnvAsInt("OPENAI_RATE_BURST", 10),
			Enabled:              getEnv("OPENAI_API_KEY", "") != "",
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail late at runtime
func (c *Config) Validate() error {
	switch c.PostgreSQL.Driver {
	case "postgres", "pgx":
	default:
		return fmt.Errorf("PG_DRIVER must be postgres or pgx, got %q", c.PostgreSQL.Driver)
	}
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when CACHE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be memory or redis, got %q", c.Cache.Backend)
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("PIPELINE_WORKERS must be positive")
	}
	if c.Pipeline.FetchTimeout <= 0 {
		return fmt.Errorf("PIPELINE_FETCH_TIMEOUT must be positive")
	}
	if c.Search.MaxPageSize < c.Search.DefaultPageSize {
		return fmt.Errorf("SEARCH_MAX_PAGE_SIZE (%d) is below SEARCH_DEFAULT_PAGE_SIZE (%d)",
			c.Search.MaxPageSize, c.Search.DefaultPageSize)
	}
	return nil
}

// GetPostgreSQLDSN returns PostgreSQL connection string
func (c *Config) GetPostgreSQLDSN() string {
	if c.PostgreSQL.DSN != "" {
		return c.PostgreSQL.DSN
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgreSQL.Host,
		c.PostgreSQL.Port,
		c.PostgreSQL.User,
		c.PostgreSQL.Password,
		c.PostgreSQL.Database,
		c.PostgreSQL.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		slog.Warn("invalid integer value, using default", "key", key, "default", defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		slog.Warn("invalid float value, using default", "key", key, "default", defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		slog.Warn("invalid duration value, using default", "key", key, "default", defaultValue)
		return defaultValue
	}
	return value
}
