package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root of all runtime configuration.
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Stock     StockConfig
	Telemetry TelemetryConfig
}

// AppConfig identifies the service and its listen port.
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds PostgreSQL connection and pool settings.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // minutes
	ConnMaxIdleTime int // minutes
}

// RedisConfig holds the optional Redis cache connection.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig controls log level, encoding, and destination.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server, CORS, and rate limit settings.
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string

	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// StockConfig tunes the optimistic stock update protocol.
type StockConfig struct {
	MaxAttempts    int           // attempt budget for one stock update
	AttemptTimeout time.Duration // per-attempt deadline, 0 disables
	BackoffBase    time.Duration // base delay before the second attempt
	BackoffMax     time.Duration // cap on the delay between attempts
	CacheTTL       time.Duration // read cache TTL for stock levels
}

// TelemetryConfig holds OTLP trace and metric export settings.
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string  // OTLP gRPC collector endpoint
	SamplingRatio     float64 // trace sampling ratio, 0.0 to 1.0
	Insecure          bool    // disable TLS for the collector connection
	MetricsInterval   time.Duration
}

// Load reads configuration in priority order: SALON_-prefixed
// environment variables, then config.toml, then built-in defaults.
// A missing config file is not an error.
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
	}

	v.SetEnvPrefix("SALON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
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
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),

			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
		},
		Stock: StockConfig{
			MaxAttempts:    v.GetInt("stock.max_attempts"),
			AttemptTimeout: v.GetDuration("stock.attempt_timeout"),
			BackoffBase:    v.GetDuration("stock.backoff_base"),
			BackoffMax:     v.GetDuration("stock.backoff_max"),
			CacheTTL:       v.GetDuration("stock.cache_ttl"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
		},
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fallback replaces a zero value with its default. Unset and
// explicitly-zero values are indistinguishable, so a zero always
// means "use the default".
func fallback[T comparable](field *T, def T) {
	var zero T
	if *field == zero {
		*field = def
	}
}

func (c *Config) applyDefaults() {
	fallback(&c.App.Name, "salonsuite-backend")
	fallback(&c.App.Env, "development")
	fallback(&c.App.Port, "8080")

	fallback(&c.Database.Host, "localhost")
	fallback(&c.Database.Port, 5432)
	fallback(&c.Database.User, "postgres")
	fallback(&c.Database.DBName, "salonsuite")
	fallback(&c.Database.SSLMode, "disable")
	fallback(&c.Database.MaxOpenConns, 25)
	fallback(&c.Database.MaxIdleConns, 5)
	fallback(&c.Database.ConnMaxLifetime, 60)
	fallback(&c.Database.ConnMaxIdleTime, 30)

	fallback(&c.Redis.Host, "localhost")
	fallback(&c.Redis.Port, 6379)

	fallback(&c.Log.Level, "info")
	fallback(&c.Log.Format, "console")
	fallback(&c.Log.Output, "stdout")

	fallback(&c.HTTP.ReadTimeout, 15*time.Second)
	fallback(&c.HTTP.WriteTimeout, 15*time.Second)
	fallback(&c.HTTP.IdleTimeout, 60*time.Second)
	fallback(&c.HTTP.MaxHeaderBytes, 1<<20)
	fallback(&c.HTTP.MaxBodySize, 1<<20)
	fallback(&c.HTTP.RateLimitRequests, 100)
	fallback(&c.HTTP.RateLimitWindow, time.Minute)

	// CORS origins deliberately have no fallback. An empty list allows
	// no cross-origin requests until origins are configured.
	if len(c.HTTP.CORSAllowMethods) == 0 {
		c.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(c.HTTP.CORSAllowHeaders) == 0 {
		c.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "X-Tenant-ID"}
	}

	fallback(&c.Stock.MaxAttempts, 3)
	fallback(&c.Stock.BackoffBase, 10*time.Millisecond)
	fallback(&c.Stock.BackoffMax, 200*time.Millisecond)
	fallback(&c.Stock.CacheTTL, 30*time.Second)

	fallback(&c.Telemetry.CollectorEndpoint, "localhost:4317")
	fallback(&c.Telemetry.SamplingRatio, 1.0)
	fallback(&c.Telemetry.MetricsInterval, 60*time.Second)
}

func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Stock.MaxAttempts <= 0 {
		return fmt.Errorf("stock.max_attempts must be positive")
	}
	if c.Stock.AttemptTimeout < 0 {
		return fmt.Errorf("stock.attempt_timeout cannot be negative")
	}
	if c.Stock.BackoffBase > c.Stock.BackoffMax {
		return fmt.Errorf("stock.backoff_base (%s) cannot exceed stock.backoff_max (%s)",
			c.Stock.BackoffBase, c.Stock.BackoffMax)
	}

	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0")
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	return nil
}

// DSN builds a postgres:// URL with user and password escaped.
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis address in host:port form.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
