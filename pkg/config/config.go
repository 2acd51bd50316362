package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	CreatorDB CreatorDBConfig
	Explorer  ExplorerConfig
	OTEL      OTELConfig
}

// AppConfig holds process-wide settings
type AppConfig struct {
	Environment string
	LogLevel    string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

// CreatorDBConfig holds settings for the metered creator search API
type CreatorDBConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// BatchSize is how many identities are requested per search call.
	// Pages are sliced out of the batch that contains them.
	BatchSize int

	SearchCredits  int
	ProfileCredits int

	RateLimitPerSecond float64
	RateBurst          int
	MaxRetries         int
}

// ExplorerConfig holds explorer search cache settings
type ExplorerConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	CacheTTL        time.Duration

	PrefetchDelay     time.Duration
	PrefetchLookAhead int
	PrefetchTimeout   time.Duration

	EnrichConcurrency   int
	FetchLinkedProfiles bool

	HotCacheTTL     time.Duration
	WarmingInterval time.Duration
	WarmingTopN     int
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins:  strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "creator_explorer"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},
		CreatorDB: CreatorDBConfig{
			BaseURL:            getEnv("CREATORDB_BASE_URL", "https://apiv3.creatordb.app"),
			APIKey:             getEnv("CREATORDB_API_KEY", ""),
			Timeout:            getEnvAsDuration("CREATORDB_TIMEOUT", 30*time.Second),
			BatchSize:          getEnvAsInt("CREATORDB_BATCH_SIZE", 50),
			SearchCredits:      getEnvAsInt("CREATORDB_SEARCH_CREDITS", 1),
			ProfileCredits:     getEnvAsInt("CREATORDB_PROFILE_CREDITS", 0),
			RateLimitPerSecond: getEnvAsFloat("CREATORDB_RATE_LIMIT", 5),
			RateBurst:          getEnvAsInt("CREATORDB_RATE_BURST", 10),
			MaxRetries:         getEnvAsInt("CREATORDB_MAX_RETRIES", 3),
		},
		Explorer: ExplorerConfig{
			DefaultPageSize:     getEnvAsInt("EXPLORER_DEFAULT_PAGE_SIZE", 10),
			MaxPageSize:         getEnvAsInt("EXPLORER_MAX_PAGE_SIZE", 50),
			CacheTTL:            getEnvAsDuration("EXPLORER_CACHE_TTL", 7*24*time.Hour),
			PrefetchDelay:       getEnvAsDuration("EXPLORER_PREFETCH_DELAY", 500*time.Millisecond),
			PrefetchLookAhead:   getEnvAsInt("EXPLORER_PREFETCH_LOOKAHEAD", 2),
			PrefetchTimeout:     getEnvAsDuration("EXPLORER_PREFETCH_TIMEOUT", 2*time.Minute),
			EnrichConcurrency:   getEnvAsInt("EXPLORER_ENRICH_CONCURRENCY", 8),
			FetchLinkedProfiles: getEnvAsBool("EXPLORER_FETCH_LINKED_PROFILES", true),
			HotCacheTTL:         getEnvAsDuration("EXPLORER_HOT_CACHE_TTL", 10*time.Minute),
			WarmingInterval:     getEnvAsDuration("EXPLORER_WARMING_INTERVAL", 15*time.Minute),
			WarmingTopN:         getEnvAsInt("EXPLORER_WARMING_TOP_N", 20),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "creator-explorer"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the explorer cannot run with
func (c *Config) Validate() error {
	if c.CreatorDB.BatchSize <= 0 {
		return fmt.Errorf("CREATORDB_BATCH_SIZE must be positive, got %d", c.CreatorDB.BatchSize)
	}
	if c.Explorer.DefaultPageSize <= 0 || c.Explorer.MaxPageSize <= 0 {
		return fmt.Errorf("explorer page sizes must be positive")
	}
	if c.Explorer.DefaultPageSize > c.Explorer.MaxPageSize {
		return fmt.Errorf("EXPLORER_DEFAULT_PAGE_SIZE (%d) exceeds EXPLORER_MAX_PAGE_SIZE (%d)",
			c.Explorer.DefaultPageSize, c.Explorer.MaxPageSize)
	}
	if c.Explorer.EnrichConcurrency <= 0 {
		return fmt.Errorf("EXPLORER_ENRICH_CONCURRENCY must be positive, got %d", c.Explorer.EnrichConcurrency)
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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

// getEnvAsDuration accepts Go duration strings ("30s") or bare seconds ("30")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
