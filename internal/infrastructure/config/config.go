package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
	Channel  ChannelConfig
	Sync     SyncConfig
	Cache    CacheConfig
	HTTP     HTTPConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds the local store connection settings. Driver "sqlite"
// uses Path; driver "postgres" uses the host/port/credential fields.
type DatabaseConfig struct {
	Driver          string
	Path            string // sqlite file path, ":memory:" for tests
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
}

// RedisConfig holds Redis connection settings for the shared cache tier
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// ChannelConfig holds the remote event source connection settings
type ChannelConfig struct {
	BaseURL        string
	AuthToken      string
	OrdersPath     string
	RequestTimeout time.Duration
	// ReconnectDelay is the wait between stream reconnect attempts
	ReconnectDelay time.Duration
}

// SyncConfig holds the ingestion pipeline tunables
type SyncConfig struct {
	Enabled bool
	// StalenessWindow is the maximum event age admitted as a live order
	StalenessWindow time.Duration
	// SessionCap bounds the number of admissions per process lifetime
	SessionCap int
	// RecencyGuard suppresses inbound echoes of local writes within this window
	RecencyGuard time.Duration
	// ReconcileCooldown blocks repeated reconciliation runs within this window
	ReconcileCooldown time.Duration
}

// CacheConfig holds read-through cache tunables
type CacheConfig struct {
	// VolatileTTL applies to fast-changing stores such as live order lists
	VolatileTTL time.Duration
	// StaticTTL applies to slow-changing stores such as products and settings
	StaticTTL time.Duration
	// ThrottleWindow suppresses repeat fetch attempts within this window
	ThrottleWindow time.Duration
	// RefreshDelay is the wait before the background refresh after a write
	RefreshDelay time.Duration
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// AllowOrigins lists the origins permitted by CORS; empty rejects all
	// cross-origin requests
	AllowOrigins []string
}

// Load loads configuration from a TOML file and environment variables.
// Priority (highest to lowest):
//  1. Environment variables with POS_ prefix (e.g. POS_CHANNEL_AUTHTOKEN)
//  2. config.toml
//  3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine, defaults and env vars apply
	}

	v.SetEnvPrefix("POS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Path:            v.GetString("database.path"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Channel: ChannelConfig{
			BaseURL:        v.GetString("channel.base_url"),
			AuthToken:      v.GetString("channel.auth_token"),
			OrdersPath:     v.GetString("channel.orders_path"),
			RequestTimeout: v.GetDuration("channel.request_timeout"),
			ReconnectDelay: v.GetDuration("channel.reconnect_delay"),
		},
		Sync: SyncConfig{
			Enabled:           v.GetBool("sync.enabled"),
			StalenessWindow:   v.GetDuration("sync.staleness_window"),
			SessionCap:        v.GetInt("sync.session_cap"),
			RecencyGuard:      v.GetDuration("sync.recency_guard"),
			ReconcileCooldown: v.GetDuration("sync.reconcile_cooldown"),
		},
		Cache: CacheConfig{
			VolatileTTL:    v.GetDuration("cache.volatile_ttl"),
			StaticTTL:      v.GetDuration("cache.static_ttl"),
			ThrottleWindow: v.GetDuration("cache.throttle_window"),
			RefreshDelay:   v.GetDuration("cache.refresh_delay"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:  v.GetDuration("http.read_timeout"),
			WriteTimeout: v.GetDuration("http.write_timeout"),
			IdleTimeout:  v.GetDuration("http.idle_timeout"),
			AllowOrigins: v.GetStringSlice("http.allow_origins"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "backoffice")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "backoffice.db")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 60)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("channel.orders_path", "orders")
	v.SetDefault("channel.request_timeout", 30*time.Second)
	v.SetDefault("channel.reconnect_delay", 5*time.Second)

	v.SetDefault("sync.enabled", true)
	v.SetDefault("sync.staleness_window", 2*time.Hour)
	v.SetDefault("sync.session_cap", 100)
	v.SetDefault("sync.recency_guard", 10*time.Second)
	v.SetDefault("sync.reconcile_cooldown", 30*time.Second)

	v.SetDefault("cache.volatile_ttl", 5*time.Second)
	v.SetDefault("cache.static_ttl", 5*time.Minute)
	v.SetDefault("cache.throttle_window", 2*time.Second)
	v.SetDefault("cache.refresh_delay", 500*time.Millisecond)

	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
}

// Validate checks the configuration for inconsistencies
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.Host == "" || c.Database.DBName == "" {
			return fmt.Errorf("database.host and database.dbname are required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Sync.Enabled && c.Channel.BaseURL == "" {
		return fmt.Errorf("channel.base_url is required when sync is enabled")
	}
	if c.Sync.StalenessWindow <= 0 {
		return fmt.Errorf("sync.staleness_window must be positive")
	}
	if c.Sync.SessionCap <= 0 {
		return fmt.Errorf("sync.session_cap must be positive")
	}
	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// DSN returns the postgres connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// Addr returns the redis address in host:port form
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
