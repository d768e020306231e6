package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Resolver ResolverConfig `yaml:"resolver" mapstructure:"resolver"`
	Search   SearchConfig   `yaml:"search" mapstructure:"search"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Content  ContentConfig  `yaml:"content" mapstructure:"content"`
	Classify ClassifyConfig `yaml:"classify" mapstructure:"classify"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the durable registry/cache database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ResolverConfig configures fuzzy name resolution.
type ResolverConfig struct {
	// SimilarityThreshold is the minimum similarity (0..1) for two names
	// to be considered the same organization.
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	// MinWordOverlap is the minimum Jaccard overlap of significant tokens.
	MinWordOverlap float64 `yaml:"min_word_overlap" mapstructure:"min_word_overlap"`
	// RulesPath optionally points to a YAML file of conflict-qualifier rules.
	RulesPath string `yaml:"rules_path" mapstructure:"rules_path"`
}

// SearchConfig configures website discovery.
type SearchConfig struct {
	// Backends is the waterfall order; entries are google, duckduckgo, bing.
	Backends    []string `yaml:"backends" mapstructure:"backends"`
	TimeoutSecs int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent   string   `yaml:"user_agent" mapstructure:"user_agent"`
	// MaxResults caps how many result links per backend are considered.
	MaxResults int `yaml:"max_results" mapstructure:"max_results"`
}

// FetchConfig configures content retrieval.
type FetchConfig struct {
	TimeoutSecs    int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts    int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	BackoffBaseMS  int    `yaml:"backoff_base_ms" mapstructure:"backoff_base_ms"`
	MaxBodyBytes   int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	UserAgent      string `yaml:"user_agent" mapstructure:"user_agent"`
	FollowAboutNav bool   `yaml:"follow_about_nav" mapstructure:"follow_about_nav"`
}

// ContentConfig configures the content quality gate.
type ContentConfig struct {
	MinLength int `yaml:"min_length" mapstructure:"min_length"`
	MaxLength int `yaml:"max_length" mapstructure:"max_length"`
}

// ClassifyConfig configures the sector classifier.
type ClassifyConfig struct {
	APIKey          string  `yaml:"api_key" mapstructure:"api_key"`
	Model           string  `yaml:"model" mapstructure:"model"`
	MaxTokens       int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature     float64 `yaml:"temperature" mapstructure:"temperature"`
	RateLimitMS     int     `yaml:"rate_limit_ms" mapstructure:"rate_limit_ms"`
	MaxAttempts     int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	BackoffBaseMS   int     `yaml:"backoff_base_ms" mapstructure:"backoff_base_ms"`
	MinContentRunes int     `yaml:"min_content_runes" mapstructure:"min_content_runes"`
}

// RateInterval returns the minimum interval between classifier calls.
func (c ClassifyConfig) RateInterval() time.Duration {
	return time.Duration(c.RateLimitMS) * time.Millisecond
}

// CacheConfig configures result-cache staleness.
type CacheConfig struct {
	MaxAgeHours int `yaml:"max_age_hours" mapstructure:"max_age_hours"`
}

// MaxAge returns the configured maximum entry age.
func (c CacheConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeHours) * time.Hour
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// ServerConfig configures the dashboard server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ORGCLASSIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.path", "orgclassify.db")
	v.SetDefault("resolver.similarity_threshold", 0.85)
	v.SetDefault("resolver.min_word_overlap", 0.3)
	v.SetDefault("search.backends", []string{"google", "duckduckgo", "bing"})
	v.SetDefault("search.timeout_secs", 15)
	v.SetDefault("search.max_results", 5)
	v.SetDefault("search.user_agent", "Mozilla/5.0 (compatible; OrgClassifyBot/1.0)")
	v.SetDefault("fetch.timeout_secs", 20)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.backoff_base_ms", 500)
	v.SetDefault("fetch.max_body_bytes", 512*1024)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; OrgClassifyBot/1.0)")
	v.SetDefault("fetch.follow_about_nav", true)
	v.SetDefault("content.min_length", 50)
	v.SetDefault("content.max_length", 2000)
	v.SetDefault("classify.model", "claude-haiku-4-5-20251001")
	v.SetDefault("classify.max_tokens", 10)
	v.SetDefault("classify.temperature", 0.1)
	v.SetDefault("classify.rate_limit_ms", 1000)
	v.SetDefault("classify.max_attempts", 3)
	v.SetDefault("classify.backoff_base_ms", 2000)
	v.SetDefault("classify.min_content_runes", 20)
	v.SetDefault("cache.max_age_hours", 720)
	v.SetDefault("batch.workers", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
