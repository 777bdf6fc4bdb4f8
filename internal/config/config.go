package config

import (
	"crypto/rand"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds configuration for the DevClip API server.
type Config struct {
	HTTPPort          string
	JWTSecret         []byte
	AdminPasswordHash string
	Storage           string
	Database          DatabaseConfig
	Cache             CacheConfig
	Redis             RedisConfig
	AI                AIConfig
	Limits            LimitsConfig
	RateLimit         RateLimitConfig
	UsageQueue        UsageQueueConfig
	Refresh           RefreshConfig
	ErrorArchive      ErrorArchiveConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	AutoMigrate     bool
}

// CacheConfig holds cache settings
type CacheConfig struct {
	APIKeyCacheSize int
	APIKeyCacheTTL  time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled      bool
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AIConfig holds settings for the chat-completion provider
type AIConfig struct {
	BaseURL         string
	APIKey          string
	RequestTimeout  time.Duration
	MaxTokens       int
	FreeModel       string
	ProModel        string
	EnterpriseModel string
}

// LimitsConfig holds input size caps in bytes
type LimitsConfig struct {
	FormatMaxBytes int
	AIMaxBytes     int
}

// RateLimitConfig enables per-key request throttling (requires Redis)
type RateLimitConfig struct {
	Enabled bool
	Window  time.Duration
}

// UsageQueueConfig controls asynchronous usage logging
type UsageQueueConfig struct {
	Async        bool
	UseRedis     bool
	BatchSize    int
	BatchTimeout time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// RefreshConfig controls the monthly credit refresh worker
type RefreshConfig struct {
	Enabled  bool
	Interval time.Duration
}

// ErrorArchiveConfig holds configuration for the S3-based error archive
type ErrorArchiveConfig struct {
	Enabled       bool          // Whether to ship error events to S3
	BufferSize    int           // In-memory queue size
	FlushSize     int           // Flush to S3 after this many events
	FlushInterval time.Duration // Flush to S3 after this duration
	S3Bucket      string
	S3Region      string
	S3Prefix      string // Prefix for S3 keys (e.g., "errors/")
	PodName       string // Instance identifier for multi-pod deployments
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	storage := strings.ToLower(getEnvString("DEVCLIP_STORAGE", StoragePostgres))
	if storage != StoragePostgres && storage != StorageMemory {
		return nil, fmt.Errorf("DEVCLIP_STORAGE must be %q or %q, got %q", StoragePostgres, StorageMemory, storage)
	}

	dbURL := os.Getenv("DATABASE_URL")
	if storage == StoragePostgres && dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	adminPasswordHash := getEnvString("ADMIN_PASSWORD_HASH", "")
	jwtSecret, err := loadJWTSecret(storage, adminPasswordHash)
	if err != nil {
		return nil, err
	}

	redisEnabled := getEnvBool("REDIS_ENABLED", false)

	cfg := &Config{
		HTTPPort:          getEnvString("HTTP_PORT", "8080"),
		JWTSecret:         jwtSecret,
		AdminPasswordHash: adminPasswordHash,
		Storage:           storage,
		Database: DatabaseConfig{
			URL:             dbURL,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Cache: CacheConfig{
			APIKeyCacheSize: getEnvInt("CACHE_API_KEY_SIZE", 1000),
			APIKeyCacheTTL:  getEnvDuration("CACHE_API_KEY_TTL", 5*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:      redisEnabled,
			Address:      getEnvString("REDIS_ADDRESS", "localhost:6379"),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		AI: AIConfig{
			BaseURL:         getEnvString("AI_BASE_URL", "https://api.openai.com/v1"),
			APIKey:          getEnvString("AI_API_KEY", ""),
			RequestTimeout:  getEnvDuration("AI_REQUEST_TIMEOUT", 30*time.Second),
			MaxTokens:       getEnvInt("AI_MAX_TOKENS", 1000),
			FreeModel:       getEnvString("AI_MODEL_FREE", "gpt-4o-mini"),
			ProModel:        getEnvString("AI_MODEL_PRO", "gpt-4o"),
			EnterpriseModel: getEnvString("AI_MODEL_ENTERPRISE", "gpt-4.1"),
		},
		Limits: LimitsConfig{
			FormatMaxBytes: getEnvInt("FORMAT_MAX_BYTES", 100*1024),
			AIMaxBytes:     getEnvInt("AI_MAX_BYTES", 10*1024),
		},
		RateLimit: RateLimitConfig{
			Enabled: getEnvBool("RATE_LIMIT_ENABLED", redisEnabled),
			Window:  getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		UsageQueue: UsageQueueConfig{
			Async:        getEnvBool("USAGE_ASYNC", false),
			UseRedis:     getEnvBool("USAGE_QUEUE_REDIS", false),
			BatchSize:    getEnvInt("USAGE_QUEUE_BATCH_SIZE", 100),
			BatchTimeout: getEnvDuration("USAGE_QUEUE_BATCH_TIMEOUT", 5*time.Second),
			MaxRetries:   getEnvInt("USAGE_QUEUE_MAX_RETRIES", 3),
			RetryBackoff: getEnvDuration("USAGE_QUEUE_RETRY_BACKOFF", time.Second),
		},
		Refresh: RefreshConfig{
			Enabled:  getEnvBool("REFRESH_WORKER_ENABLED", true),
			Interval: getEnvDuration("REFRESH_WORKER_INTERVAL", time.Hour),
		},
		ErrorArchive: ErrorArchiveConfig{
			Enabled:       getEnvBool("ERROR_ARCHIVE_ENABLED", false),
			BufferSize:    getEnvInt("ERROR_ARCHIVE_BUFFER_SIZE", 1000),
			FlushSize:     getEnvInt("ERROR_ARCHIVE_FLUSH_SIZE", 100),
			FlushInterval: getEnvDuration("ERROR_ARCHIVE_FLUSH_INTERVAL", time.Minute),
			S3Bucket:      getEnvString("ERROR_ARCHIVE_S3_BUCKET", ""),
			S3Region:      getEnvString("ERROR_ARCHIVE_S3_REGION", "us-east-1"),
			S3Prefix:      getEnvString("ERROR_ARCHIVE_S3_PREFIX", "errors/"),
			PodName:       getEnvString("POD_NAME", "devclip-0"),
		},
	}

	if cfg.UsageQueue.UseRedis && !cfg.Redis.Enabled {
		return nil, fmt.Errorf("USAGE_QUEUE_REDIS requires REDIS_ENABLED")
	}
	if cfg.ErrorArchive.Enabled && cfg.ErrorArchive.S3Bucket == "" {
		return nil, fmt.Errorf("ERROR_ARCHIVE_S3_BUCKET is required when the error archive is enabled")
	}

	return cfg, nil
}

// loadJWTSecret reads JWT_SECRET. It is required for persistent storage and
// whenever admin login is enabled. A throwaway development server gets a
// random secret, so tokens never outlive the process.
func loadJWTSecret(storage, adminPasswordHash string) ([]byte, error) {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		return []byte(secret), nil
	}
	if storage == StoragePostgres {
		return nil, fmt.Errorf("JWT_SECRET is required with %s storage", StoragePostgres)
	}
	if adminPasswordHash != "" {
		return nil, fmt.Errorf("JWT_SECRET is required when ADMIN_PASSWORD_HASH is set")
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	return secret, nil
}
