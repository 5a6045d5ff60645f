// Package config loads process configuration from defaults, an optional
// config file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"yt-announcer/internal/hub"
)

// HookPath is where the hub delivers verifications and notifications.
const HookPath = "/youtube/hook"

type Config struct {
	LogLevel string `mapstructure:"log_level"`
	Port     string `mapstructure:"port"`

	DatabaseURL string `mapstructure:"database_url"`
	RedisAddr   string `mapstructure:"redis_addr"`

	BaseURL            string `mapstructure:"base_url"`
	DefaultIdentity    string `mapstructure:"default_identity"`
	YoutubeChannelID   string `mapstructure:"youtube_channel_id"`
	YoutubeVerifyToken string `mapstructure:"youtube_verify_token"`
	HubURL             string `mapstructure:"hub_url"`

	TwitterAPIKey       string `mapstructure:"twitter_api_key"`
	TwitterAPIKeySecret string `mapstructure:"twitter_api_key_secret"`

	AdminToken string  `mapstructure:"admin_token"`
	RateLimit  float64 `mapstructure:"rate_limit"`
	RateBurst  int     `mapstructure:"rate_burst"`

	StalenessThreshold time.Duration `mapstructure:"staleness_threshold"`
	RenewalInterval    time.Duration `mapstructure:"renewal_interval"`
	RenewalMargin      time.Duration `mapstructure:"renewal_margin"`
	PublishTimeout     time.Duration `mapstructure:"publish_timeout"`
	SubscribeTimeout   time.Duration `mapstructure:"subscribe_timeout"`
}

var defaults = map[string]interface{}{
	"log_level":              "info",
	"port":                   "8080",
	"database_url":           "",
	"redis_addr":             "localhost:6379",
	"base_url":               "http://localhost:8080",
	"default_identity":       "default",
	"youtube_channel_id":     "",
	"youtube_verify_token":   "",
	"hub_url":                hub.DefaultURL,
	"twitter_api_key":        "",
	"twitter_api_key_secret": "",
	"admin_token":            "",
	"rate_limit":             1.0,
	"rate_burst":             5,
	"staleness_threshold":    12 * time.Hour,
	"renewal_interval":       24 * time.Hour,
	"renewal_margin":         48 * time.Hour,
	"publish_timeout":        5 * time.Second,
	"subscribe_timeout":      5 * time.Second,
}

// Load reads configuration. configPath may be empty, in which case only
// defaults and environment variables are used.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &cfg, nil
}

// Validate checks the values every process needs.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("database_url is required"))
	}
	if c.YoutubeVerifyToken == "" {
		errs = append(errs, errors.New("youtube_verify_token is required"))
	}
	if c.DefaultIdentity == "" {
		errs = append(errs, errors.New("default_identity is required"))
	}
	for name, d := range map[string]time.Duration{
		"staleness_threshold": c.StalenessThreshold,
		"renewal_interval":    c.RenewalInterval,
		"renewal_margin":      c.RenewalMargin,
		"publish_timeout":     c.PublishTimeout,
		"subscribe_timeout":   c.SubscribeTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	return errors.Join(errs...)
}

// MinRenewalInterval is the shortest sweep period the scheduler accepts.
const MinRenewalInterval = time.Minute

// ValidateScheduler checks the values the scheduler uses. It does not need
// the database or hub settings.
func (c *Config) ValidateScheduler() error {
	var errs []error
	if c.RedisAddr == "" {
		errs = append(errs, errors.New("redis_addr is required"))
	}
	if c.RenewalInterval < MinRenewalInterval {
		errs = append(errs, fmt.Errorf("renewal_interval must be at least %s, got %s", MinRenewalInterval, c.RenewalInterval))
	}
	return errors.Join(errs...)
}

// CallbackURL is the public hook address registered with the hub.
func (c *Config) CallbackURL() string {
	return c.BaseURL + HookPath
}

// DefaultTopic is the feed topic of the configured channel, or empty when
// no channel is configured.
func (c *Config) DefaultTopic() string {
	if c.YoutubeChannelID == "" {
		return ""
	}
	return hub.ChannelTopic(c.YoutubeChannelID)
}

// TwitterCallbackURL is where the OAuth provider redirects after consent.
func (c *Config) TwitterCallbackURL() string {
	return c.BaseURL + "/twitter/callback"
}

// SetupLogging applies log_level to the standard logrus logger.
func (c *Config) SetupLogging() error {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return nil
}
