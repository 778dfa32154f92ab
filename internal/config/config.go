// Package config provides configuration management for the gateway.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/popeskul/evolution-gateway/evolution"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Evolution      EvolutionConfig      `mapstructure:"evolution"`
	Webhook        WebhookConfig        `mapstructure:"webhook"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Scheduler      SchedulerConfig      `mapstructure:"scheduler"`
	Middleware     MiddlewareConfig     `mapstructure:"middleware"`
}

type ServerConfig struct {
	Port         string `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// SentTTL is how long, in seconds, sent message ids stay cached.
	SentTTL int `mapstructure:"sent_ttl"`
}

// EvolutionConfig addresses the upstream Evolution API instance.
type EvolutionConfig struct {
	BaseURL            string            `mapstructure:"base_url"`
	Instance           string            `mapstructure:"instance"`
	APIKey             string            `mapstructure:"api_key"`
	Timeout            int               `mapstructure:"timeout"`
	InsecureSkipVerify bool              `mapstructure:"insecure_skip_verify"`
	Headers            map[string]string `mapstructure:"headers"`
	Retry              RetryConfig       `mapstructure:"retry"`
}

// RetryConfig holds the backoff settings; intervals are in milliseconds.
type RetryConfig struct {
	MaxRetries      int     `mapstructure:"max_retries"`
	InitialInterval int     `mapstructure:"initial_interval_ms"`
	MaxInterval     int     `mapstructure:"max_interval_ms"`
	Multiplier      float64 `mapstructure:"multiplier"`
	Jitter          float64 `mapstructure:"jitter"`
}

type WebhookConfig struct {
	// Secret enables signature verification of inbound deliveries.
	Secret          string `mapstructure:"secret"`
	SignatureHeader string `mapstructure:"signature_header"`
	// DedupeTTL is how long, in seconds, a delivery key is remembered.
	DedupeTTL    int   `mapstructure:"dedupe_ttl"`
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

type CircuitBreakerConfig struct {
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"`
	Timeout          int     `mapstructure:"timeout"`
	FailureRatio     float64 `mapstructure:"failure_ratio"`
	ConsecutiveFails uint32  `mapstructure:"consecutive_fails"`
}

type SchedulerConfig struct {
	IntervalSeconds int  `mapstructure:"interval_seconds"`
	BatchSize       int  `mapstructure:"batch_size"`
	AutoStart       bool `mapstructure:"auto_start"`
}

type MiddlewareConfig struct {
	RateLimit      int      `mapstructure:"rate_limit"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
	RequestTimeout int      `mapstructure:"request_timeout"`
	EnableCORS     bool     `mapstructure:"enable_cors"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 60)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "evolution_gateway")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.sent_ttl", 86400)
	v.SetDefault("evolution.timeout", 15)
	v.SetDefault("evolution.retry.max_retries", 3)
	v.SetDefault("evolution.retry.initial_interval_ms", 2000)
	v.SetDefault("evolution.retry.max_interval_ms", 8000)
	v.SetDefault("evolution.retry.multiplier", 2.0)
	v.SetDefault("evolution.retry.jitter", 0.2)
	v.SetDefault("evolution.base_url", "")
	v.SetDefault("evolution.instance", "")
	v.SetDefault("evolution.api_key", "")
	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.signature_header", "X-Signature")
	v.SetDefault("webhook.dedupe_ttl", 86400)
	v.SetDefault("webhook.max_body_bytes", 1<<20)
	v.SetDefault("circuit_breaker.max_requests", 3)
	v.SetDefault("circuit_breaker.interval", 60)
	v.SetDefault("circuit_breaker.timeout", 60)
	v.SetDefault("circuit_breaker.failure_ratio", 0.6)
	v.SetDefault("circuit_breaker.consecutive_fails", 5)
	v.SetDefault("scheduler.interval_seconds", 30)
	v.SetDefault("scheduler.batch_size", 10)
	v.SetDefault("scheduler.auto_start", true)
	v.SetDefault("middleware.rate_limit", 100)
	v.SetDefault("middleware.rate_limit_burst", 1000)
	v.SetDefault("middleware.request_timeout", 60)
	v.SetDefault("middleware.enable_cors", true)
	v.SetDefault("middleware.allowed_origins", []string{"*"})
}

// LoadConfig reads a YAML file and overlays environment variables, where
// "evolution.api_key" is read from EVOLUTION_API_KEY. Only keys with a
// default or a file value are overridable.
func LoadConfig(configPath string) (*Config, error) {
	config, err := load(configPath)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadDatabaseConfig loads only the database section, skipping validation of
// the rest. A missing file leaves defaults and environment overrides.
func LoadDatabaseConfig(configPath string) (*DatabaseConfig, error) {
	config, err := load(configPath)
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		config, err = unmarshal(newViper(""))
		if err != nil {
			return nil, err
		}
	}
	return &config.Database, nil
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
	}
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func load(configPath string) (*Config, error) {
	v := newViper(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &config, nil
}

// Validate rejects configurations the gateway cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Evolution.BaseURL) == "" {
		errs = append(errs, errors.New("evolution.base_url is required"))
	}
	if strings.TrimSpace(c.Evolution.Instance) == "" {
		errs = append(errs, errors.New("evolution.instance is required"))
	}
	if strings.TrimSpace(c.Evolution.APIKey) == "" {
		errs = append(errs, errors.New("evolution.api_key is required"))
	}
	if c.Scheduler.IntervalSeconds <= 0 {
		errs = append(errs, errors.New("scheduler.interval_seconds must be positive"))
	}
	if c.Scheduler.BatchSize <= 0 {
		errs = append(errs, errors.New("scheduler.batch_size must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// GetDSN returns PostgreSQL connection string.
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// Addr returns the Redis host:port.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ClientConfig converts the section into an evolution.Config.
func (e *EvolutionConfig) ClientConfig() evolution.Config {
	return evolution.Config{
		BaseURL:            e.BaseURL,
		Instance:           e.Instance,
		APIKey:             e.APIKey,
		Timeout:            time.Duration(e.Timeout) * time.Second,
		InsecureSkipVerify: e.InsecureSkipVerify,
		Headers:            e.Headers,
		Retry: &evolution.RetryPolicy{
			MaxRetries:      e.Retry.MaxRetries,
			InitialInterval: time.Duration(e.Retry.InitialInterval) * time.Millisecond,
			MaxInterval:     time.Duration(e.Retry.MaxInterval) * time.Millisecond,
			Multiplier:      e.Retry.Multiplier,
			Jitter:          e.Retry.Jitter,
		},
	}
}
