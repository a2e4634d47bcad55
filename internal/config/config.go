// Package config loads and validates optimizer configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Host      HostConfig      `mapstructure:"host"`
	Sitemap   SitemapConfig   `mapstructure:"sitemap"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Insight   InsightConfig   `mapstructure:"insight"`
	Submit    SubmitConfig    `mapstructure:"submit"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// HostConfig points at the page host's authoring API.
type HostConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Username       string `mapstructure:"username"`
	AppPassword    string `mapstructure:"app_password"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	LinkLimit      int    `mapstructure:"link_limit"`
}

// SitemapConfig governs sitemap resolution.
type SitemapConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	CandidateLimit int    `mapstructure:"candidate_limit"`
}

// GeneratorConfig sets defaults for generative provider calls.
type GeneratorConfig struct {
	TimeoutMs       int `mapstructure:"timeout_ms"`
	MinWordsDefault int `mapstructure:"min_words_default"`
	MaxWordsDefault int `mapstructure:"max_words_default"`
}

// InsightConfig configures the keyword-insight tool integration.
type InsightConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	BaseURL         string `mapstructure:"base_url"`
	APIKey          string `mapstructure:"api_key"`
	PollAttempts    int    `mapstructure:"poll_attempts"`
	PollIntervalSec int    `mapstructure:"poll_interval_seconds"`
}

// SubmitConfig bounds the job submission boundary.
type SubmitConfig struct {
	RatePerSecond  float64 `mapstructure:"rate_per_second"`
	Burst          int     `mapstructure:"burst"`
	DedupeTTLSec   int     `mapstructure:"dedupe_ttl_seconds"`
	ArchiveRawText bool    `mapstructure:"archive_raw_text"`
}

// StorageConfig selects the blob archive backend.
type StorageConfig struct {
	Provider  string `mapstructure:"provider"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("OPTIMIZER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("host.timeout_seconds", 15)
	v.SetDefault("host.link_limit", 100)
	v.SetDefault("sitemap.user_agent", "pagelift-bot/0.1")
	v.SetDefault("sitemap.timeout_seconds", 30)
	v.SetDefault("sitemap.candidate_limit", 0)
	v.SetDefault("generator.timeout_ms", 180000)
	v.SetDefault("generator.min_words_default", 2000)
	v.SetDefault("generator.max_words_default", 3000)
	v.SetDefault("insight.enabled", false)
	v.SetDefault("insight.poll_attempts", 10)
	v.SetDefault("insight.poll_interval_seconds", 8)
	v.SetDefault("submit.rate_per_second", 1)
	v.SetDefault("submit.burst", 5)
	v.SetDefault("submit.dedupe_ttl_seconds", 30)
	v.SetDefault("submit.archive_raw_text", true)
	v.SetDefault("storage.provider", "noop")
	v.SetDefault("storage.prefix", "generations")
	v.SetDefault("db.provider", "memory")
	v.SetDefault("pubsub.provider", "memory")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Host.BaseURL == "" {
		return fmt.Errorf("host.base_url must be set")
	}
	if c.Generator.TimeoutMs <= 0 {
		return fmt.Errorf("generator.timeout_ms must be > 0")
	}
	if c.Generator.MinWordsDefault <= 0 || c.Generator.MaxWordsDefault < c.Generator.MinWordsDefault {
		return fmt.Errorf("generator word-count defaults are inconsistent")
	}
	if c.Insight.Enabled && c.Insight.BaseURL == "" {
		return fmt.Errorf("insight.base_url must be set when insight is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Storage.Provider == "gcs" && c.Storage.GCSBucket == "" {
		return fmt.Errorf("storage.gcs_bucket must be set for the gcs provider")
	}
	if c.DB.Provider == "postgres" && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set for the postgres provider")
	}
	return nil
}

// GenerationTimeout converts the millisecond knob into a duration.
func (c Config) GenerationTimeout() time.Duration {
	return time.Duration(c.Generator.TimeoutMs) * time.Millisecond
}

// InsightPollInterval converts the poll interval knob into a duration.
func (c Config) InsightPollInterval() time.Duration {
	return time.Duration(c.Insight.PollIntervalSec) * time.Second
}
