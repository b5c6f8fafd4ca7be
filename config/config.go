package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Cache         CacheConfig
	Batch         BatchConfig
	Selector      SelectorConfig
	Embedding     EmbeddingConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration for the ops surface
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// CacheConfig holds configuration for the multi-level response cache
type CacheConfig struct {
	Enabled           bool
	SemanticEnabled   bool
	TemplateEnabled   bool
	SemanticThreshold float64
	TTL               time.Duration
	MaxEntries        int
	// RedisURL selects the shared external backing store when set.
	// Empty means in-process storage only.
	RedisURL  string
	KeyPrefix string
}

// BatchConfig holds configuration for request coalescing
type BatchConfig struct {
	MaxSize int
	MaxWait time.Duration
}

// SelectorConfig holds configuration for model selection
type SelectorConfig struct {
	DefaultObjective string
	// CatalogFile optionally overrides the built-in model catalog
	// with a YAML file.
	CatalogFile string
}

// EmbeddingConfig holds configuration for the optional embedding backend
// used by the semantic cache level
type EmbeddingConfig struct {
	OpenAIAPIKey string
	Model        string
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8090),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Cache: CacheConfig{
			Enabled:           getEnvAsBool("CACHE_ENABLED", true),
			SemanticEnabled:   getEnvAsBool("CACHE_SEMANTIC_ENABLED", true),
			TemplateEnabled:   getEnvAsBool("CACHE_TEMPLATE_ENABLED", true),
			SemanticThreshold: getEnvAsFloat("CACHE_SEMANTIC_THRESHOLD", 0.95),
			TTL:               getEnvAsDuration("CACHE_TTL", time.Hour),
			MaxEntries:        getEnvAsInt("CACHE_MAX_ENTRIES", 10000),
			RedisURL:          getEnv("REDIS_URL", ""),
			KeyPrefix:         getEnv("CACHE_KEY_PREFIX", "aiopt"),
		},
		Batch: BatchConfig{
			MaxSize: getEnvAsInt("BATCH_MAX_SIZE", 5),
			MaxWait: getEnvAsDuration("BATCH_MAX_WAIT", 100*time.Millisecond),
		},
		Selector: SelectorConfig{
			DefaultObjective: getEnv("SELECTOR_DEFAULT_OBJECTIVE", "balanced"),
			CatalogFile:      getEnv("MODEL_CATALOG_FILE", ""),
		},
		Embedding: EmbeddingConfig{
			OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
			Model:        getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all configuration fields hold usable values
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Cache.SemanticThreshold < 0 || c.Cache.SemanticThreshold > 1 {
		return fmt.Errorf("semantic threshold must be in [0,1], got %f", c.Cache.SemanticThreshold)
	}
	if c.Cache.MaxEntries < 1 {
		return fmt.Errorf("cache max entries must be positive, got %d", c.Cache.MaxEntries)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache TTL cannot be negative, got %s", c.Cache.TTL)
	}

	if c.Batch.MaxSize < 1 {
		return fmt.Errorf("batch max size must be positive, got %d", c.Batch.MaxSize)
	}
	if c.Batch.MaxWait <= 0 {
		return fmt.Errorf("batch max wait must be positive, got %s", c.Batch.MaxWait)
	}

	switch c.Selector.DefaultObjective {
	case "cost", "quality", "latency", "balanced":
	default:
		return fmt.Errorf("unknown selection objective %q", c.Selector.DefaultObjective)
	}

	switch c.Observability.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("log format must be json or console, got %q", c.Observability.LogFormat)
	}

	return nil
}

// IsProduction returns true when running in the production environment
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// SemanticCacheUsable reports whether the semantic level has everything
// it needs (feature flag plus an embedding backend credential).
func (c *Config) SemanticCacheUsable() bool {
	return c.Cache.SemanticEnabled && c.Embedding.OpenAIAPIKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if dur, err := time.ParseDuration(value); err == nil {
			return dur
		}
	}
	return defaultValue
}
