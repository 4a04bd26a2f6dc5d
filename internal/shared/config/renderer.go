package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RendererConfig contains all configuration for the renderer service and CLI.
type RendererConfig struct {
	API     APIConfig     `mapstructure:"api"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Poll    PollConfig    `mapstructure:"poll"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Storage StorageConfig `mapstructure:"storage"`
	History HistoryConfig `mapstructure:"history"`
	Breaker BreakerConfig `mapstructure:"breaker"`
	REST    RESTConfig    `mapstructure:"rest"`
	GRPC    GRPCConfig    `mapstructure:"grpc"`
	Health  HealthConfig  `mapstructure:"health"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// APIConfig describes the remote rendering API.
type APIConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	StorefrontID   int64         `mapstructure:"storefront_id"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AuthConfig contains OAuth2 client-credentials settings. StaticToken, when set,
// bypasses the token endpoint entirely.
type AuthConfig struct {
	TokenURL     string   `mapstructure:"token_url"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	Scopes       []string `mapstructure:"scopes"`
	StaticToken  string   `mapstructure:"static_token"`
}

// PollConfig is the attempt budget for status polling.
type PollConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Interval    time.Duration `mapstructure:"interval"`
	Backoff     string        `mapstructure:"backoff"`
	MaxInterval time.Duration `mapstructure:"max_interval"`
}

type FetchConfig struct {
	Extension string `mapstructure:"extension"`
	ChunkSize int    `mapstructure:"chunk_size"`
}

// StorageConfig selects where fetched artifacts are persisted.
type StorageConfig struct {
	Type  string             `mapstructure:"type"`
	Local LocalStorageConfig `mapstructure:"local"`
	S3    S3StorageConfig    `mapstructure:"s3"`
}

type LocalStorageConfig struct {
	Dir string `mapstructure:"dir"`
}

type S3StorageConfig struct {
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// HistoryConfig selects the run history backend.
type HistoryConfig struct {
	Type  string      `mapstructure:"type"`
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// BreakerConfig configures the circuit breaker guarding the remote API.
type BreakerConfig struct {
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
}

// RESTConfig contains REST API server configuration.
type RESTConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// GRPCConfig contains gRPC health server configuration.
type GRPCConfig struct {
	Addr             string        `mapstructure:"addr"`
	EnableReflection bool          `mapstructure:"enable_reflection"`
	KeepaliveMinTime time.Duration `mapstructure:"keepalive_min_time"`
}

type HealthConfig struct {
	CheckInterval time.Duration `mapstructure:"check_interval"`
}

// LoadRenderer loads the renderer configuration from the given path.
// If configPath is empty, it looks for renderer.yaml in the config/ directory.
// Environment variables with CCRENDER_ prefix override config file values.
func LoadRenderer(configPath string) (*RendererConfig, error) {
	v := viper.New()

	v.SetDefault("api.base_url", "https://api.customerscanvashub.com")
	v.SetDefault("api.storefront_id", 0)
	v.SetDefault("api.request_timeout", 30*time.Second)
	v.SetDefault("auth.token_url", "https://customerscanvashub.com/connect/token")
	v.SetDefault("auth.scopes", []string{"Projects_full", "Tenants_read", "Artifacts_read"})
	v.SetDefault("poll.max_attempts", 20)
	v.SetDefault("poll.interval", 3*time.Second)
	v.SetDefault("poll.backoff", "constant")
	v.SetDefault("poll.max_interval", 15*time.Second)
	v.SetDefault("fetch.extension", "pdf")
	v.SetDefault("fetch.chunk_size", 1024*1024)
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local.dir", ".")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("history.type", "memory")
	v.SetDefault("history.redis.addr", "localhost:6379")
	v.SetDefault("history.redis.prefix", "ccrender:")
	v.SetDefault("history.redis.ttl", 7*24*time.Hour)
	v.SetDefault("breaker.max_requests", 1)
	v.SetDefault("breaker.interval", 60*time.Second)
	v.SetDefault("breaker.timeout", 30*time.Second)
	v.SetDefault("breaker.consecutive_failures", 5)
	v.SetDefault("rest.addr", ":8000")
	v.SetDefault("rest.read_timeout", 15*time.Second)
	// A render request blocks for the whole polling budget.
	v.SetDefault("rest.write_timeout", 5*time.Minute)
	v.SetDefault("rest.idle_timeout", 60*time.Second)
	v.SetDefault("grpc.addr", ":9090")
	v.SetDefault("grpc.enable_reflection", true)
	v.SetDefault("grpc.keepalive_min_time", 30*time.Second)
	v.SetDefault("health.check_interval", 5*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("renderer")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("CCRENDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg RendererConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the settings that would otherwise fail deep inside a run.
func (c *RendererConfig) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.StorefrontID <= 0 {
		return fmt.Errorf("api.storefront_id must be greater than 0")
	}
	if c.Poll.MaxAttempts < 1 {
		return fmt.Errorf("poll.max_attempts must be at least 1")
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive")
	}
	if c.Fetch.ChunkSize <= 0 {
		return fmt.Errorf("fetch.chunk_size must be positive")
	}
	switch c.Storage.Type {
	case "local":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
	switch c.History.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported history type: %s", c.History.Type)
	}
	return nil
}
