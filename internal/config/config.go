package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the application's configuration model.
// It captures the tracked account, its credentials, storage and check policy.
type Config struct {
	Account     AccountConfig     `yaml:"account"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Storage     StorageConfig     `yaml:"storage"`
	Check       CheckConfig       `yaml:"check"`
	Notify      NotifyConfig      `yaml:"notify"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type AccountConfig struct {
	// Twitter user id of the tracked account
	ID       string `yaml:"id"`
	Username string `yaml:"username"`
	// Notification language, e.g. "en" or "fr"
	Lang string `yaml:"lang"`
}

type CredentialsConfig struct {
	// OAuth1.0a user-context credentials. Empty fields are read from TWITTER_* env vars.
	ConsumerKey    string `yaml:"consumerKey"`
	ConsumerSecret string `yaml:"consumerSecret"`
	AccessToken    string `yaml:"accessToken"`
	AccessSecret   string `yaml:"accessSecret"`
}

type StorageConfig struct {
	DBPath string `yaml:"dbPath"`
	// Optional Redis address for the username cache, e.g. "localhost:6379"
	RedisAddr string `yaml:"redisAddr"`
}

type CheckConfig struct {
	Interval time.Duration `yaml:"interval"`
	// Timeout of every single API call
	LookupTimeout time.Duration `yaml:"lookupTimeout"`
	// Max concurrent relationship lookups per cycle
	Concurrency int `yaml:"concurrency"`
	// Max cycles per account per hour, 0 for no limit
	MaxPerHour int `yaml:"maxPerHour"`
}

type NotifyConfig struct {
	DefaultLang string `yaml:"defaultLang"`
	// IANA zone used for calendar phrases
	TimeZone string `yaml:"timeZone"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Account:     AccountConfig{Lang: "en"},
		Credentials: CredentialsConfig{},
		Storage:     StorageConfig{DBPath: "./unfollowninja.db"},
		Check:       CheckConfig{Interval: 3 * time.Minute, LookupTimeout: 15 * time.Second, Concurrency: 8, MaxPerHour: 30},
		Notify:      NotifyConfig{DefaultLang: "en", TimeZone: "Europe/Paris"},
		Logging:     LoggingConfig{Level: "info", Format: "json"},
	}
}

// ResolveEnv fills in config fields from environment variables if not set.
func (c *Config) ResolveEnv() {
	if c.Credentials.ConsumerKey == "" {
		c.Credentials.ConsumerKey = os.Getenv("TWITTER_CONSUMER_KEY")
	}
	if c.Credentials.ConsumerSecret == "" {
		c.Credentials.ConsumerSecret = os.Getenv("TWITTER_CONSUMER_SECRET")
	}
	if c.Credentials.AccessToken == "" {
		c.Credentials.AccessToken = os.Getenv("TWITTER_ACCESS_TOKEN")
	}
	if c.Credentials.AccessSecret == "" {
		c.Credentials.AccessSecret = os.Getenv("TWITTER_ACCESS_SECRET")
	}
	if c.Storage.RedisAddr == "" {
		c.Storage.RedisAddr = os.Getenv("REDIS_ADDR")
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = os.Getenv("METRICS_ADDR")
	}
}

// Validate reports settings the checker cannot run with.
func (c Config) Validate() error {
	if c.Account.ID == "" {
		return errors.New("account.id is required")
	}
	if c.Check.Interval <= 0 {
		return fmt.Errorf("check.interval must be positive, got %s", c.Check.Interval)
	}
	if c.Check.LookupTimeout <= 0 {
		return fmt.Errorf("check.lookupTimeout must be positive, got %s", c.Check.LookupTimeout)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location loads the notification time zone, UTC when unset.
func (c Config) Location() (*time.Location, error) {
	if c.Notify.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Notify.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("notify.timeZone: %w", err)
	}
	return loc, nil
}

// Load reads YAML config from path. Missing keys keep their Default value.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.ResolveEnv()
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
