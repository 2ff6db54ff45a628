package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	defaultResource        = "atompub"
	defaultRefreshMinutes  = 60
	defaultCachePath       = "atompub.db"
	defaultMaxAttempts     = 3
	defaultSummaryMaxRunes = 500
)

// Config is the full runtime configuration: XMPP credentials, scheduling
// defaults, cache location and the configured feeds. Immutable after Load.
type Config struct {
	JID      string `toml:"jid"`
	Secret   string `toml:"secret"`
	Resource string `toml:"resource"`
	// Address overrides the XMPP server address (host:port); resolved from
	// the JID domain when empty.
	Address string `toml:"address"`

	RefreshMinutes     int    `toml:"refresh_minutes"`
	JitterSeconds      int    `toml:"jitter_seconds"`
	CachePath          string `toml:"cache_path"`
	CacheCapacity      int    `toml:"cache_capacity"`
	MaxPublishAttempts int    `toml:"max_publish_attempts"`
	SummaryMaxRunes    int    `toml:"summary_max_runes"`
	FetchTimeoutSecs   int    `toml:"fetch_timeout_seconds"`
	LogLevel           string `toml:"log_level"`

	Feeds map[string]FeedConfig `toml:"feeds"`
}

// FeedConfig describes one feed and its destination pubsub node.
type FeedConfig struct {
	URL     string `toml:"url"`
	Service string `toml:"service"`
	// Node defaults to the feed's name in the feeds table.
	Node string `toml:"node"`
	// RefreshMinutes overrides the global interval for this feed.
	RefreshMinutes int `toml:"refresh_minutes"`
}

// envOverrides mirrors the environment variables honored on top of the
// config file. Credentials are typically supplied this way.
type envOverrides struct {
	JID            string `envconfig:"XMPP_JID"`
	Secret         string `envconfig:"XMPP_SECRET"`
	Resource       string `envconfig:"XMPP_RESOURCE"`
	RefreshMinutes int    `envconfig:"REFRESH_TIME"`
	LogLevel       string `envconfig:"LOG_LEVEL"`
}

// Load reads the TOML file at path (skipped when empty), applies
// environment overrides, fills defaults and validates. The returned error
// names the first offending field.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	cfg.applyEnv(env)
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(env envOverrides) {
	if env.JID != "" {
		c.JID = env.JID
	}
	if env.Secret != "" {
		c.Secret = env.Secret
	}
	if env.Resource != "" {
		c.Resource = env.Resource
	}
	if env.RefreshMinutes != 0 {
		c.RefreshMinutes = env.RefreshMinutes
	}
	if env.LogLevel != "" {
		c.LogLevel = env.LogLevel
	}
}

func (c *Config) applyDefaults() {
	if c.Resource == "" {
		c.Resource = defaultResource
	}
	if c.RefreshMinutes == 0 {
		c.RefreshMinutes = defaultRefreshMinutes
	}
	if c.CachePath == "" {
		c.CachePath = defaultCachePath
	}
	if c.MaxPublishAttempts == 0 {
		c.MaxPublishAttempts = defaultMaxAttempts
	}
	if c.SummaryMaxRunes == 0 {
		c.SummaryMaxRunes = defaultSummaryMaxRunes
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	for name, feed := range c.Feeds {
		if feed.Node == "" {
			feed.Node = name
			c.Feeds[name] = feed
		}
	}
}

// ValidationError names the configuration field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

func (c *Config) validate() error {
	if c.JID == "" {
		return &ValidationError{Field: "jid", Reason: "required"}
	}
	if !strings.Contains(c.JID, "@") {
		return &ValidationError{Field: "jid", Reason: "must be of the form user@server.tld"}
	}
	if c.Secret == "" {
		return &ValidationError{Field: "secret", Reason: "required"}
	}
	if c.RefreshMinutes < 1 {
		return &ValidationError{Field: "refresh_minutes", Reason: "must be at least 1"}
	}
	if len(c.Feeds) == 0 {
		return &ValidationError{Field: "feeds", Reason: "at least one feed is required"}
	}
	for name, feed := range c.Feeds {
		if feed.URL == "" {
			return &ValidationError{Field: "feeds." + name + ".url", Reason: "required"}
		}
		if feed.Service == "" {
			return &ValidationError{Field: "feeds." + name + ".service", Reason: "required"}
		}
		if feed.RefreshMinutes < 0 {
			return &ValidationError{Field: "feeds." + name + ".refresh_minutes", Reason: "must be at least 1"}
		}
	}
	return nil
}

// Refresh returns the polling interval for the named feed, falling back to
// the global default.
func (c *Config) Refresh(name string) time.Duration {
	if feed, ok := c.Feeds[name]; ok && feed.RefreshMinutes > 0 {
		return time.Duration(feed.RefreshMinutes) * time.Minute
	}
	return time.Duration(c.RefreshMinutes) * time.Minute
}

func (c *Config) Jitter() time.Duration {
	return time.Duration(c.JitterSeconds) * time.Second
}

func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSecs) * time.Second
}
