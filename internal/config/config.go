package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

// Config is the whole application configuration, see Load.
type Config struct {
	App       AppConfig
	Storage   StorageConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	ShortURL  ShortURLConfig
	Access    AccessConfig
	Log       LogConfig
}

type AppConfig struct {
	Port string
	// Version is recorded into every short URL's locator as the version of
	// the application that wrote the state.
	Version string
	BaseURL string
}

type StorageConfig struct {
	Backend string // memory | postgres | redis
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
	Migrate  bool
}

// URL returns the connection string used by both pgx and migrate.
func (c DBConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type AuthConfig struct {
	APIKeys map[string]string // API key -> name/description
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// ShortURLConfig controls generated slugs.
type ShortURLConfig struct {
	SlugLength      int
	SlugMaxAttempts int
}

// AccessConfig sizes the access tracker worker pool.
type AccessConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
}

type LogConfig struct {
	Level       string
	Development bool
}

// Load reads .env from the working directory (if present) and the environment.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile reads configuration from path and the environment. Environment
// variables win over the file; a missing file is not an error.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	cfg.App.Port = v.GetString("APP_PORT")
	cfg.App.Version = v.GetString("APP_VERSION")
	cfg.App.BaseURL = strings.TrimRight(v.GetString("APP_BASE_URL"), "/")

	cfg.Storage.Backend = strings.ToLower(v.GetString("STORAGE_BACKEND"))

	cfg.DB.Host = v.GetString("DB_HOST")
	cfg.DB.Port = v.GetString("DB_PORT")
	cfg.DB.User = v.GetString("DB_USER")
	cfg.DB.Password = v.GetString("DB_PASSWORD")
	cfg.DB.Name = v.GetString("DB_NAME")
	cfg.DB.SSLMode = v.GetString("DB_SSLMODE")
	cfg.DB.MaxConns = v.GetInt32("DB_MAX_CONNS")
	cfg.DB.MinConns = v.GetInt32("DB_MIN_CONNS")
	cfg.DB.Migrate = v.GetBool("DB_MIGRATE")

	cfg.Redis.Host = v.GetString("REDIS_HOST")
	cfg.Redis.Port = v.GetString("REDIS_PORT")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")

	// Format: key1:name1,key2:name2
	cfg.Auth.APIKeys = parseAPIKeys(v.GetString("API_KEYS"))

	cfg.RateLimit.RequestsPerSecond = v.GetFloat64("RATE_LIMIT_RPS")
	cfg.RateLimit.BurstSize = v.GetInt("RATE_LIMIT_BURST")

	cfg.ShortURL.SlugLength = v.GetInt("SLUG_LENGTH")
	cfg.ShortURL.SlugMaxAttempts = v.GetInt("SLUG_MAX_ATTEMPTS")

	cfg.Access.Workers = v.GetInt("ACCESS_WORKERS")
	cfg.Access.BufferSize = v.GetInt("ACCESS_BUFFER_SIZE")
	cfg.Access.MaxRetries = v.GetInt("ACCESS_MAX_RETRIES")

	cfg.Log.Level = v.GetString("LOG_LEVEL")
	cfg.Log.Development = v.GetBool("LOG_DEVELOPMENT")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("APP_VERSION", "1.0.0")
	v.SetDefault("APP_BASE_URL", "http://localhost:8080")
	v.SetDefault("STORAGE_BACKEND", StoragePostgres)
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_CONNS", 25)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DB_MIGRATE", true)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("SLUG_LENGTH", 8)
	v.SetDefault("SLUG_MAX_ATTEMPTS", 5)
	v.SetDefault("ACCESS_WORKERS", 3)
	v.SetDefault("ACCESS_BUFFER_SIZE", 1000)
	v.SetDefault("ACCESS_MAX_RETRIES", 3)
	v.SetDefault("LOG_LEVEL", "info")
}

// Validate rejects settings the application cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case StorageMemory, StoragePostgres, StorageRedis:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.App.Port == "" {
		return errors.New("APP_PORT cannot be empty")
	}
	if c.App.Version == "" {
		return errors.New("APP_VERSION cannot be empty")
	}
	if c.Storage.Backend == StoragePostgres && (c.DB.MaxConns <= 0 || c.DB.MinConns < 0 || c.DB.MinConns > c.DB.MaxConns) {
		return fmt.Errorf("invalid postgres pool size: min %d, max %d", c.DB.MinConns, c.DB.MaxConns)
	}
	if c.ShortURL.SlugLength < 4 {
		return fmt.Errorf("SLUG_LENGTH must be at least 4, got %d", c.ShortURL.SlugLength)
	}
	if c.ShortURL.SlugMaxAttempts <= 0 {
		return errors.New("SLUG_MAX_ATTEMPTS must be positive")
	}
	if c.Access.Workers <= 0 || c.Access.BufferSize <= 0 {
		return errors.New("ACCESS_WORKERS and ACCESS_BUFFER_SIZE must be positive")
	}
	return nil
}

// parseAPIKeys parses comma-separated API keys in format "key1:name1,key2:name2"
func parseAPIKeys(raw string) map[string]string {
	keys := make(map[string]string)
	if raw == "" {
		return keys
	}

	pairs := strings.Split(raw, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) == 2 {
			keys[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}

	return keys
}
