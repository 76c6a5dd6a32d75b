package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/jwalitptl/lifepulse/internal/connectivity"
	"github.com/jwalitptl/lifepulse/internal/storage"
	"github.com/jwalitptl/lifepulse/pkg/logger"
	"github.com/jwalitptl/lifepulse/pkg/messaging/redis"
	"github.com/jwalitptl/lifepulse/pkg/remote"
	"github.com/jwalitptl/lifepulse/pkg/worker"
)

// EnvPrefix namespaces environment overrides, e.g. LIFEPULSE_SYNC_INTERVAL or
// LIFEPULSE_REMOTE_REDIS_URL.
const EnvPrefix = "LIFEPULSE"

const (
	SubmitterHTTP  = "http"
	SubmitterRedis = "redis"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server" split_words:"true"`
	Storage      StorageConfig      `mapstructure:"storage" split_words:"true"`
	Sync         SyncConfig         `mapstructure:"sync" split_words:"true"`
	Remote       RemoteConfig       `mapstructure:"remote" split_words:"true"`
	Connectivity ConnectivityConfig `mapstructure:"connectivity" split_words:"true"`
	Log          LogConfig          `mapstructure:"log" split_words:"true"`
	Metrics      MetricsConfig      `mapstructure:"metrics" split_words:"true"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port" split_words:"true"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" split_words:"true"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" split_words:"true"`
	RateLimit    float64       `mapstructure:"rate_limit" split_words:"true"`
	RateBurst    int           `mapstructure:"rate_burst" split_words:"true"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes" split_words:"true"`
}

type StorageConfig struct {
	Driver    string `mapstructure:"driver" split_words:"true"`
	DSN       string `mapstructure:"dsn" split_words:"true"`
	Namespace string `mapstructure:"namespace" split_words:"true"`
	Capacity  int64  `mapstructure:"capacity" split_words:"true"`
}

type SyncConfig struct {
	Interval   time.Duration `mapstructure:"interval" split_words:"true"`
	MaxRetries int           `mapstructure:"max_retries" split_words:"true"`
	Retention  time.Duration `mapstructure:"retention" split_words:"true"`
}

type RemoteConfig struct {
	Submitter string        `mapstructure:"submitter" split_words:"true"`
	Endpoint  string        `mapstructure:"endpoint" split_words:"true"`
	Timeout   time.Duration `mapstructure:"timeout" split_words:"true"`
	RateLimit float64       `mapstructure:"rate_limit" split_words:"true"`
	Burst     int           `mapstructure:"burst" split_words:"true"`
	Redis     RedisConfig   `mapstructure:"redis" split_words:"true"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url" split_words:"true"`
	Channel      string        `mapstructure:"channel" split_words:"true"`
	MaxRetries   int           `mapstructure:"max_retries" split_words:"true"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" split_words:"true"`
	PoolSize     int           `mapstructure:"pool_size" split_words:"true"`
	MinIdleConns int           `mapstructure:"min_idle_conns" split_words:"true"`
}

type ConnectivityConfig struct {
	ProbeURL      string        `mapstructure:"probe_url" split_words:"true"`
	ProbeTimeout  time.Duration `mapstructure:"probe_timeout" split_words:"true"`
	PollInterval  time.Duration `mapstructure:"poll_interval" split_words:"true"`
	InitialOnline bool          `mapstructure:"initial_online" split_words:"true"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" split_words:"true"`
	Format string `mapstructure:"format" split_words:"true"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace" split_words:"true"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.max_body_bytes", int64(1<<20))

	v.SetDefault("storage.driver", storage.DriverSQLite)
	v.SetDefault("storage.dsn", "lifepulse.db")
	v.SetDefault("storage.namespace", storage.DefaultNamespace)
	v.SetDefault("storage.capacity", int64(storage.DefaultCapacity))

	defaults := worker.DefaultSyncEngineConfig()
	v.SetDefault("sync.interval", defaults.Interval)
	v.SetDefault("sync.max_retries", defaults.MaxRetries)
	v.SetDefault("sync.retention", defaults.Retention)

	v.SetDefault("remote.submitter", SubmitterHTTP)
	v.SetDefault("remote.endpoint", "http://localhost:9000/api/emergency-requests")
	v.SetDefault("remote.timeout", 10*time.Second)
	v.SetDefault("remote.rate_limit", 5.0)
	v.SetDefault("remote.burst", 5)
	v.SetDefault("remote.redis.url", "redis://localhost:6379/0")
	v.SetDefault("remote.redis.channel", "emergency-requests")
	v.SetDefault("remote.redis.max_retries", 3)
	v.SetDefault("remote.redis.retry_backoff", 500*time.Millisecond)
	v.SetDefault("remote.redis.pool_size", 10)
	v.SetDefault("remote.redis.min_idle_conns", 2)

	v.SetDefault("connectivity.probe_url", "")
	v.SetDefault("connectivity.probe_timeout", 3*time.Second)
	v.SetDefault("connectivity.poll_interval", 5*time.Second)
	v.SetDefault("connectivity.initial_online", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("metrics.namespace", "lifepulse")
}

// LoadConfig reads config.yaml (or path, when given), then applies LIFEPULSE_*
// environment overrides. A missing config file is fine when no path is given.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/lifepulse")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "server.port must be between 1 and 65535")
	}
	switch c.Storage.Driver {
	case storage.DriverMemory, storage.DriverSQLite, storage.DriverPostgres, storage.DriverRedis:
	default:
		problems = append(problems, fmt.Sprintf("storage.driver %q is not supported", c.Storage.Driver))
	}
	if c.Storage.Driver != storage.DriverMemory && c.Storage.DSN == "" {
		problems = append(problems, "storage.dsn is required")
	}
	if c.Storage.Capacity <= 0 {
		problems = append(problems, "storage.capacity must be positive")
	}
	if c.Sync.Interval <= 0 {
		problems = append(problems, "sync.interval must be positive")
	}
	if c.Sync.MaxRetries < 0 {
		problems = append(problems, "sync.max_retries must not be negative")
	}
	if c.Sync.Retention <= 0 {
		problems = append(problems, "sync.retention must be positive")
	}
	switch c.Remote.Submitter {
	case SubmitterHTTP:
		if c.Remote.Endpoint == "" {
			problems = append(problems, "remote.endpoint is required for the http submitter")
		}
	case SubmitterRedis:
		if c.Remote.Redis.URL == "" || c.Remote.Redis.Channel == "" {
			problems = append(problems, "remote.redis.url and remote.redis.channel are required for the redis submitter")
		}
	default:
		problems = append(problems, fmt.Sprintf("remote.submitter %q is not supported", c.Remote.Submitter))
	}
	if c.Connectivity.PollInterval <= 0 {
		problems = append(problems, "connectivity.poll_interval must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) ToSyncConfig() worker.SyncEngineConfig {
	return worker.SyncEngineConfig{
		Interval:   c.Sync.Interval,
		MaxRetries: c.Sync.MaxRetries,
		Retention:  c.Sync.Retention,
	}
}

func (c *Config) ToStoreConfig() storage.Config {
	return storage.Config{
		Namespace: c.Storage.Namespace,
		Capacity:  c.Storage.Capacity,
	}
}

func (c *Config) ToHTTPConfig() remote.HTTPConfig {
	return remote.HTTPConfig{
		Endpoint:  c.Remote.Endpoint,
		Timeout:   c.Remote.Timeout,
		RateLimit: c.Remote.RateLimit,
		Burst:     c.Remote.Burst,
	}
}

func (c *Config) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.Remote.Redis.URL,
		MaxRetries:   c.Remote.Redis.MaxRetries,
		RetryBackoff: c.Remote.Redis.RetryBackoff,
		PoolSize:     c.Remote.Redis.PoolSize,
		MinIdleConns: c.Remote.Redis.MinIdleConns,
	}
}

func (c *Config) ToConnectivityConfig() connectivity.Config {
	return connectivity.Config{PollInterval: c.Connectivity.PollInterval}
}

func (c *Config) ToLoggerConfig() *logger.Config {
	return &logger.Config{
		Level:      logger.ParseLevel(c.Log.Level),
		Format:     c.Log.Format,
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
	}
}
