// Package config assembles server settings from defaults, an optional YAML
// file, a .env file, SHOPFLOOR_* environment variables and command-line
// flags, in that order of precedence (flags win).
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/and161185/shopfloor/internal/cache"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

// Config is the complete server configuration.
type Config struct {
	ConfigFile string `yaml:"-"`
	EnvFile    string `yaml:"-"`

	Addr        string `yaml:"addr" env:"SHOPFLOOR_ADDR"`
	HealthAddr  string `yaml:"health_addr" env:"SHOPFLOOR_HEALTH_ADDR"`
	MetricsAddr string `yaml:"metrics_addr" env:"SHOPFLOOR_METRICS_ADDR"`
	TLSCert     string `yaml:"tls_cert" env:"SHOPFLOOR_TLS_CERT"`
	TLSKey      string `yaml:"tls_key" env:"SHOPFLOOR_TLS_KEY"`
	Dev         bool   `yaml:"dev" env:"SHOPFLOOR_DEV"`

	MaxConns       int64         `yaml:"max_conns" env:"SHOPFLOOR_MAX_CONNS"`
	MaxFrame       int           `yaml:"max_frame" env:"SHOPFLOOR_MAX_FRAME"`
	ReadTimeout    time.Duration `yaml:"read_timeout" env:"SHOPFLOOR_READ_TIMEOUT"`
	WriteTimeout   time.Duration `yaml:"write_timeout" env:"SHOPFLOOR_WRITE_TIMEOUT"`
	HandlerTimeout time.Duration `yaml:"handler_timeout" env:"SHOPFLOOR_HANDLER_TIMEOUT"`

	Store         string `yaml:"store" env:"SHOPFLOOR_STORE"`
	DSN           string `yaml:"dsn" env:"SHOPFLOOR_DSN"`
	RedisAddr     string `yaml:"redis_addr" env:"SHOPFLOOR_REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" env:"SHOPFLOOR_REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"SHOPFLOOR_REDIS_DB"`

	CacheEngine     string        `yaml:"cache_engine" env:"SHOPFLOOR_CACHE_ENGINE"`
	CacheSize       int           `yaml:"cache_size" env:"SHOPFLOOR_CACHE_SIZE"`
	CacheTTL        time.Duration `yaml:"cache_ttl" env:"SHOPFLOOR_CACHE_TTL"`
	RefreshInterval time.Duration `yaml:"refresh_interval" env:"SHOPFLOOR_REFRESH_INTERVAL"`
	BufferSize      int           `yaml:"buffer_size" env:"SHOPFLOOR_BUFFER_SIZE"`

	JWTKey        string        `yaml:"jwt_key" env:"SHOPFLOOR_JWT_KEY"`
	TokenTTL      time.Duration `yaml:"token_ttl" env:"SHOPFLOOR_TOKEN_TTL"`
	AdminEmail    string        `yaml:"admin_email" env:"SHOPFLOOR_ADMIN_EMAIL"`
	AdminPassword string        `yaml:"admin_password" env:"SHOPFLOOR_ADMIN_PASSWORD"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		EnvFile:         ".env",
		Addr:            ":7070",
		MetricsAddr:     ":9090",
		MaxConns:        256,
		MaxFrame:        1 << 20,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		HandlerTimeout:  30 * time.Second,
		Store:           StoreMemory,
		RedisAddr:       "localhost:6379",
		CacheEngine:     cache.EngineLRU,
		CacheSize:       10_000,
		RefreshInterval: 5 * time.Second,
		BufferSize:      1024,
		TokenTTL:        24 * time.Hour,
	}
}

func bind(fs *flag.FlagSet, c *Config) {
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "YAML config file")
	fs.StringVar(&c.EnvFile, "env-file", c.EnvFile, ".env file (ignored if missing)")
	fs.StringVar(&c.Addr, "addr", c.Addr, "listen address")
	fs.StringVar(&c.HealthAddr, "health-addr", c.HealthAddr, "gRPC health listen address (empty disables)")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "Prometheus listen address (empty disables)")
	fs.StringVar(&c.TLSCert, "tls-cert", c.TLSCert, "TLS certificate (PEM)")
	fs.StringVar(&c.TLSKey, "tls-key", c.TLSKey, "TLS private key (PEM)")
	fs.BoolVar(&c.Dev, "dev", c.Dev, "development logging")
	fs.Int64Var(&c.MaxConns, "max-conns", c.MaxConns, "max concurrently served connections")
	fs.IntVar(&c.MaxFrame, "max-frame", c.MaxFrame, "max request frame size in bytes")
	fs.DurationVar(&c.ReadTimeout, "read-timeout", c.ReadTimeout, "request read timeout")
	fs.DurationVar(&c.WriteTimeout, "write-timeout", c.WriteTimeout, "response write timeout")
	fs.DurationVar(&c.HandlerTimeout, "handler-timeout", c.HandlerTimeout, "request processing timeout")
	fs.StringVar(&c.Store, "store", c.Store, "document store: postgres|redis|memory")
	fs.StringVar(&c.DSN, "dsn", c.DSN, "PostgreSQL DSN")
	fs.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "Redis address")
	fs.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database")
	fs.StringVar(&c.CacheEngine, "cache-engine", c.CacheEngine, "local cache: lru|lfu")
	fs.IntVar(&c.CacheSize, "cache-size", c.CacheSize, "local cache capacity per entity")
	fs.DurationVar(&c.CacheTTL, "cache-ttl", c.CacheTTL, "local cache TTL (0 disables)")
	fs.DurationVar(&c.RefreshInterval, "refresh-interval", c.RefreshInterval, "cache refresh interval")
	fs.IntVar(&c.BufferSize, "buffer-size", c.BufferSize, "pending buffer capacity per entity")
	fs.StringVar(&c.JWTKey, "jwt-key", c.JWTKey, "HS256 signing key (required)")
	fs.DurationVar(&c.TokenTTL, "token-ttl", c.TokenTTL, "token lifetime (0 disables expiry)")
	fs.StringVar(&c.AdminEmail, "admin-email", c.AdminEmail, "bootstrap admin email")
	fs.StringVar(&c.AdminPassword, "admin-password", c.AdminPassword, "bootstrap admin password")
}

// Load builds the configuration for the given command-line arguments.
func Load(args []string) (Config, error) {
	// First pass only locates the config and .env files.
	pre := Default()
	first := flag.NewFlagSet("shopfloor", flag.ContinueOnError)
	bind(first, &pre)
	if err := first.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Default()
	cfg.ConfigFile, cfg.EnvFile = pre.ConfigFile, pre.EnvFile
	if cfg.ConfigFile != "" {
		b, err := os.ReadFile(cfg.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", cfg.ConfigFile, err)
		}
	}
	if cfg.EnvFile != "" {
		if err := godotenv.Load(cfg.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", cfg.EnvFile, err)
		}
	}
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("environment: %w", err)
	}

	final := flag.NewFlagSet("shopfloor", flag.ContinueOnError)
	final.SetOutput(io.Discard)
	bind(final, &cfg)
	if err := final.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.JWTKey == "":
		return errors.New("missing jwt signing key (-jwt-key or SHOPFLOOR_JWT_KEY)")
	case c.Store != StorePostgres && c.Store != StoreRedis && c.Store != StoreMemory:
		return fmt.Errorf("unknown store %q", c.Store)
	case c.Store == StorePostgres && c.DSN == "":
		return errors.New("postgres store requires -dsn")
	case c.CacheEngine != cache.EngineLRU && c.CacheEngine != cache.EngineLFU:
		return fmt.Errorf("unknown cache engine %q", c.CacheEngine)
	case (c.TLSCert == "") != (c.TLSKey == ""):
		return errors.New("tls-cert and tls-key must be set together")
	case c.MaxFrame <= 0 || c.MaxFrame > 64<<20:
		return fmt.Errorf("max-frame %d out of range", c.MaxFrame)
	case c.MaxConns <= 0:
		return errors.New("max-conns must be positive")
	case (c.AdminEmail == "") != (c.AdminPassword == ""):
		return errors.New("admin-email and admin-password must be set together")
	}
	return nil
}
