// Package config provides unified configuration loading for the retail assistant.
// Supports YAML files, .env files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the retail assistant.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Cart          CartConfig          `yaml:"cart"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	Retrieval     RetrievalConfig     `yaml:"retrieval"`
	Orders        OrdersConfig        `yaml:"orders"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	// APIToken, when set, is required as a bearer token on /api routes.
	APIToken string `yaml:"api_token"`
}

// DatabaseConfig holds product index connection settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// CartConfig holds cart lifecycle settings.
type CartConfig struct {
	// TTL expires an untouched cart. Zero disables expiry.
	TTL          time.Duration `yaml:"ttl"`
	OrderSentTTL time.Duration `yaml:"order_sent_ttl"`
}

// EmbeddingConfig holds embedding service settings.
type EmbeddingConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Model      string        `yaml:"model"`
	Dimension  int           `yaml:"dimension"`
	BatchSize  int           `yaml:"batch_size"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// RetrievalConfig holds hybrid search tuning.
type RetrievalConfig struct {
	Limit            int           `yaml:"limit"`
	LexicalWeight    float64       `yaml:"lexical_weight"`
	SemanticWeight   float64       `yaml:"semantic_weight"`
	SectorBoost      float64       `yaml:"sector_boost"`
	RRFConstant      int           `yaml:"rrf_constant"`
	MinScore         float64       `yaml:"min_score"`
	RetryImprovement float64       `yaml:"retry_improvement"`
	MaxRetryWords    int           `yaml:"max_retry_words"`
	CacheResults     bool          `yaml:"cache_results"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
}

// OrdersConfig holds order-management API settings.
type OrdersConfig struct {
	BaseURL string        `yaml:"base_url"`
	Path    string        `yaml:"path"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies .env and environment overrides.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8090,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     60 * time.Second,
			IdleTimeout:      120 * time.Second,
			RequestTimeout:   45 * time.Second,
			GracefulShutdown: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path: "/tmp/retail-assistant.db",
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			Prefix:   "ra:",
		},
		Cart: CartConfig{
			TTL:          72 * time.Hour,
			OrderSentTTL: 24 * time.Hour,
		},
		Embedding: EmbeddingConfig{
			BaseURL:    "https://api.openai.com/v1",
			Model:      "text-embedding-3-small",
			Dimension:  1536,
			BatchSize:  50,
			Timeout:    20 * time.Second,
			MaxRetries: 3,
		},
		Retrieval: RetrievalConfig{
			Limit:            20,
			LexicalWeight:    1.0,
			SemanticWeight:   1.0,
			SectorBoost:      0.5,
			RRFConstant:      50,
			MinScore:         0.50,
			RetryImprovement: 0.05,
			MaxRetryWords:    8,
			CacheResults:     true,
			CacheTTL:         10 * time.Minute,
		},
		Orders: OrdersConfig{
			Path:    "/api/pedidos",
			Timeout: 20 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			ServiceName: "retail-assistant",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}

	if c.Database.Driver == "postgres" && c.Database.Postgres.DSN == "" {
		return fmt.Errorf("postgres driver requires a dsn")
	}

	if c.Retrieval.Limit < 1 || c.Retrieval.Limit > 100 {
		return fmt.Errorf("retrieval limit must be between 1 and 100")
	}

	if c.Retrieval.RRFConstant < 1 {
		return fmt.Errorf("rrf_constant must be positive")
	}

	if c.Retrieval.MinScore < 0 || c.Retrieval.MinScore > 1 {
		return fmt.Errorf("min_score must be between 0 and 1")
	}

	if c.Retrieval.MaxRetryWords < 0 {
		return fmt.Errorf("max_retry_words must not be negative")
	}

	if c.Cart.TTL < 0 {
		return fmt.Errorf("cart ttl must not be negative")
	}

	return nil
}

// DatabaseDSN returns the appropriate database connection string.
func (c *Config) DatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLite.Path
	}
	return c.Database.Postgres.DSN
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("ASSISTANT_API_TOKEN"); v != "" {
		cfg.Server.APIToken = v
	}

	// VECTOR_DB_CONNECTION_STRING wins over DATABASE_URL, matching the vectorizer scripts.
	for _, key := range []string{"DATABASE_URL", "VECTOR_DB_CONNECTION_STRING"} {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Database.Driver = "sqlite"
			cfg.Database.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Database.Driver = "postgres"
			cfg.Database.Postgres.DSN = v
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.Enabled = true
		cfg.Redis.Addr = v
	}

	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}

	if v := os.Getenv("EMBEDDING_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}

	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}

	if v := os.Getenv("ORDERS_API_URL"); v != "" {
		cfg.Orders.BaseURL = v
	}

	if v := os.Getenv("ORDERS_API_TOKEN"); v != "" {
		cfg.Orders.Token = v
	}

	if v := os.Getenv("CART_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cart.TTL = d
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
