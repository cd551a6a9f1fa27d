// Package config loads service configuration from defaults, a YAML file,
// a .env file and FEEDREWRITE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/bryan-buckman/feedrewrite/internal/lock"
	"github.com/bryan-buckman/feedrewrite/internal/logger"
	"github.com/bryan-buckman/feedrewrite/internal/model"
	"github.com/bryan-buckman/feedrewrite/internal/pipeline"
	"github.com/bryan-buckman/feedrewrite/internal/rewrite"
	"github.com/bryan-buckman/feedrewrite/internal/rss"
	"github.com/bryan-buckman/feedrewrite/internal/shortener"
	"github.com/bryan-buckman/feedrewrite/internal/storage"
)

// EnvPrefix is prepended to every environment variable.
const EnvPrefix = "FEEDREWRITE"

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Keys      pipeline.Keys   `mapstructure:"keys"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Channel   ChannelConfig   `mapstructure:"channel"`
	Rewrite   RewriteConfig   `mapstructure:"rewrite"`
	Shortener ShortenerConfig `mapstructure:"shortener"`
	Lock      LockConfig      `mapstructure:"lock"`
}

type ServerConfig struct {
	Addr       string        `mapstructure:"addr"`
	RunTimeout time.Duration `mapstructure:"run_timeout"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type StorageConfig struct {
	Backend  string         `mapstructure:"backend"`
	Prefix   string         `mapstructure:"prefix"`
	S3       S3Config       `mapstructure:"s3"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type S3Config struct {
	Endpoint     string `mapstructure:"endpoint"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	UseSSL       bool   `mapstructure:"use_ssl"`
	CreateBucket bool   `mapstructure:"create_bucket"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type PipelineConfig struct {
	Name             string        `mapstructure:"name"`
	FeedBatchSize    int           `mapstructure:"feed_batch_size"`
	URLBatchSize     int           `mapstructure:"url_batch_size"`
	MaxItemsPerFeed  int           `mapstructure:"max_items_per_feed"`
	Selection        string        `mapstructure:"selection"`
	FetchConcurrency int           `mapstructure:"fetch_concurrency"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
	DomainInterval   time.Duration `mapstructure:"domain_interval"`
	RewriteTimeout   time.Duration `mapstructure:"rewrite_timeout"`
	FeedWindow       int           `mapstructure:"feed_window"`
	Schedule         string        `mapstructure:"schedule"`
	NextStageURL     string        `mapstructure:"next_stage_url"`
}

type ChannelConfig struct {
	Title       string `mapstructure:"title"`
	Link        string `mapstructure:"link"`
	Description string `mapstructure:"description"`
}

type RewriteConfig struct {
	MinLength   int                      `mapstructure:"min_length"`
	MaxLength   int                      `mapstructure:"max_length"`
	MinViable   int                      `mapstructure:"min_viable"`
	MaxTokens   int                      `mapstructure:"max_tokens"`
	Temperature float32                  `mapstructure:"temperature"`
	Providers   []rewrite.ProviderConfig `mapstructure:"providers"`
}

type ShortenerConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Token    string        `mapstructure:"token"`
	Domain   string        `mapstructure:"domain"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type LockConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// defaultProviders is the fallback chain used when none is configured.
var defaultProviders = []map[string]any{
	{"id": "groq", "kind": rewrite.KindOpenAI, "base_url": "https://api.groq.com/openai/v1", "api_key_env": "GROQ_API_KEY", "model": "llama-3.1-8b-instant"},
	{"id": "openrouter", "kind": rewrite.KindOpenAI, "base_url": "https://openrouter.ai/api/v1", "api_key_env": "OPENROUTER_API_KEY", "model": "meta-llama/llama-3.1-8b-instruct"},
	{"id": "openai", "kind": rewrite.KindOpenAI, "base_url": "https://api.openai.com/v1", "api_key_env": "OPENAI_API_KEY", "model": "gpt-4o-mini"},
	{"id": "deepseek", "kind": rewrite.KindOpenAI, "base_url": "https://api.deepseek.com/v1", "api_key_env": "DEEPSEEK_API_KEY", "model": "deepseek-chat"},
	{"id": "anthropic", "kind": rewrite.KindAnthropic, "api_key_env": "ANTHROPIC_API_KEY", "model": "claude-3-5-haiku-latest"},
}

// SetDefaults registers every key so environment overrides apply.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.run_timeout", 10*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("storage.backend", "s3")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("storage.s3.endpoint", "s3.amazonaws.com")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.region", "")
	v.SetDefault("storage.s3.use_ssl", true)
	v.SetDefault("storage.s3.create_bucket", false)
	v.SetDefault("storage.sqlite.path", "feedrewrite.db")
	v.SetDefault("storage.postgres.dsn", "")

	keys := pipeline.DefaultKeys()
	v.SetDefault("keys.feeds", keys.Feeds)
	v.SetDefault("keys.urls", keys.URLs)
	v.SetDefault("keys.cursor", keys.Cursor)
	v.SetDefault("keys.items", keys.Items)
	v.SetDefault("keys.feed_xml", keys.FeedXML)

	v.SetDefault("pipeline.name", "rewrite")
	v.SetDefault("pipeline.feed_batch_size", 5)
	v.SetDefault("pipeline.url_batch_size", 1)
	v.SetDefault("pipeline.max_items_per_feed", rss.DefaultMaxPerFeed)
	v.SetDefault("pipeline.selection", string(rss.PolicyFeedOrder))
	v.SetDefault("pipeline.fetch_concurrency", 1)
	v.SetDefault("pipeline.fetch_timeout", rss.DefaultTimeout)
	v.SetDefault("pipeline.domain_interval", rss.DelayBetweenDomainRequests)
	v.SetDefault("pipeline.rewrite_timeout", rewrite.DefaultAttemptTimeout)
	v.SetDefault("pipeline.feed_window", 100)
	v.SetDefault("pipeline.schedule", "")
	v.SetDefault("pipeline.next_stage_url", "")

	v.SetDefault("channel.title", "Rewritten Headlines")
	v.SetDefault("channel.link", "https://example.com/")
	v.SetDefault("channel.description", "Short rewrites of the latest articles")

	def := rewrite.DefaultOptions()
	v.SetDefault("rewrite.min_length", def.MinLength)
	v.SetDefault("rewrite.max_length", def.MaxLength)
	v.SetDefault("rewrite.min_viable", def.MinViable)
	v.SetDefault("rewrite.max_tokens", def.MaxTokens)
	v.SetDefault("rewrite.temperature", def.Temperature)
	v.SetDefault("rewrite.providers", defaultProviders)

	v.SetDefault("shortener.endpoint", shortener.DefaultEndpoint)
	v.SetDefault("shortener.token", "")
	v.SetDefault("shortener.domain", "")
	v.SetDefault("shortener.timeout", shortener.DefaultTimeout)

	v.SetDefault("lock.backend", "local")
	v.SetDefault("lock.ttl", 15*time.Minute)
	v.SetDefault("lock.redis.addr", "localhost:6379")
	v.SetDefault("lock.redis.password", "")
	v.SetDefault("lock.redis.db", 0)
}

// NewViper returns a viper instance with defaults, environment binding and,
// when present, the config file. An empty cfgFile searches ./config.yaml and
// ./config/config.yaml; a missing default file is not an error.
func NewViper(cfgFile string) (*viper.Viper, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Pipeline.FeedBatchSize <= 0 {
		errs = append(errs, errors.New("pipeline.feed_batch_size must be positive"))
	}
	if c.Pipeline.URLBatchSize <= 0 {
		errs = append(errs, errors.New("pipeline.url_batch_size must be positive"))
	}
	if c.Pipeline.MaxItemsPerFeed <= 0 {
		errs = append(errs, errors.New("pipeline.max_items_per_feed must be positive"))
	}
	if _, err := rss.ParsePolicy(c.Pipeline.Selection); err != nil {
		errs = append(errs, fmt.Errorf("pipeline.selection: %w", err))
	}
	if c.Rewrite.MinLength <= 0 || c.Rewrite.MaxLength <= 0 {
		errs = append(errs, errors.New("rewrite.min_length and rewrite.max_length must be positive"))
	} else if c.Rewrite.MinLength > c.Rewrite.MaxLength {
		errs = append(errs, fmt.Errorf("rewrite.min_length (%d) exceeds rewrite.max_length (%d)", c.Rewrite.MinLength, c.Rewrite.MaxLength))
	}
	for i, p := range c.Rewrite.Providers {
		if p.ID == "" {
			errs = append(errs, fmt.Errorf("rewrite.providers[%d]: id is required", i))
		}
		if k := strings.ToLower(p.Kind); k != "" && k != rewrite.KindOpenAI && k != rewrite.KindAnthropic {
			errs = append(errs, fmt.Errorf("rewrite.providers[%d]: unknown kind %q", i, p.Kind))
		}
	}

	switch c.Storage.Backend {
	case "", "s3":
		if c.Storage.S3.Bucket == "" {
			errs = append(errs, errors.New("storage.s3.bucket is required for the s3 backend"))
		}
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			errs = append(errs, errors.New("storage.sqlite.path is required for the sqlite backend"))
		}
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			errs = append(errs, errors.New("storage.postgres.dsn is required for the postgres backend"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}

	if c.Server.RunTimeout <= 0 {
		errs = append(errs, errors.New("server.run_timeout must be positive"))
	}

	switch c.Lock.Backend {
	case "", "local":
	case "redis":
		if c.Lock.Redis.Addr == "" {
			errs = append(errs, errors.New("lock.redis.addr is required for the redis lock"))
		}
		ttl := c.Lock.TTL
		if ttl <= 0 {
			ttl = lock.DefaultTTL
		}
		if longest := c.Server.RunTimeout + pipeline.PersistTimeout; c.Server.RunTimeout > 0 && longest >= ttl {
			errs = append(errs, fmt.Errorf("lock.ttl (%s) must exceed server.run_timeout plus %s persist time (%s)", ttl, pipeline.PersistTimeout, longest))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown lock backend %q", c.Lock.Backend))
	}
	return errors.Join(errs...)
}

// StorageOptions maps the storage section to storage.Options.
func (c *Config) StorageOptions() storage.Options {
	s3 := c.Storage.S3
	return storage.Options{
		Backend: c.Storage.Backend,
		Prefix:  c.Storage.Prefix,
		S3: storage.S3Config{
			Endpoint:     s3.Endpoint,
			AccessKey:    s3.AccessKey,
			SecretKey:    s3.SecretKey,
			Bucket:       s3.Bucket,
			Region:       s3.Region,
			UseSSL:       s3.UseSSL,
			CreateBucket: s3.CreateBucket,
		},
		SQLitePath:  c.Storage.SQLite.Path,
		PostgresDSN: c.Storage.Postgres.DSN,
	}
}

// LoggerConfig maps the log section to logger.Config.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{Level: c.Log.Level, Development: c.Log.Development}
}

// PipelineOptions maps the pipeline, keys and channel sections.
func (c *Config) PipelineOptions() pipeline.Options {
	policy, _ := rss.ParsePolicy(c.Pipeline.Selection)
	return pipeline.Options{
		Name:            c.Pipeline.Name,
		FeedBatchSize:   c.Pipeline.FeedBatchSize,
		URLBatchSize:    c.Pipeline.URLBatchSize,
		MaxItemsPerFeed: c.Pipeline.MaxItemsPerFeed,
		Policy:          policy,
		FeedWindow:      c.Pipeline.FeedWindow,
		Channel: model.ChannelMeta{
			Title:       c.Channel.Title,
			Link:        c.Channel.Link,
			Description: c.Channel.Description,
		},
		Keys: c.Keys,
	}
}

// FetchOptions maps the fetch settings to rss.Options.
func (c *Config) FetchOptions() rss.Options {
	return rss.Options{
		Timeout:        c.Pipeline.FetchTimeout,
		Concurrency:    c.Pipeline.FetchConcurrency,
		DomainInterval: c.Pipeline.DomainInterval,
	}
}

// RewriteOptions maps the rewrite section to rewrite.Options.
func (c *Config) RewriteOptions() rewrite.Options {
	return rewrite.Options{
		MinLength:   c.Rewrite.MinLength,
		MaxLength:   c.Rewrite.MaxLength,
		MinViable:   c.Rewrite.MinViable,
		MaxTokens:   c.Rewrite.MaxTokens,
		Temperature: c.Rewrite.Temperature,
	}
}

// ShortenerOptions maps the shortener section.
func (c *Config) ShortenerOptions() shortener.Config {
	return shortener.Config{
		Endpoint: c.Shortener.Endpoint,
		Token:    c.Shortener.Token,
		Domain:   c.Shortener.Domain,
		Timeout:  c.Shortener.Timeout,
	}
}
