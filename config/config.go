package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the runtime configuration for the redirect service.
// Every field can be overridden via SHORTLINK_-prefixed environment
// variables (e.g. SHORTLINK_REDIS_ADDR) or an optional config file.
type Config struct {
	Port string `mapstructure:"port"`

	// Redis backs the link cache and webhook endpoint state.
	// Empty addr selects the in-memory implementations.
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	LinksFile     string `mapstructure:"links_file"`
	EndpointsFile string `mapstructure:"endpoints_file"`

	// CaseSensitiveDomains is the fixed allow-list of domains whose keys
	// are not lower-cased.
	CaseSensitiveDomains []string `mapstructure:"case_sensitive_domains"`

	// CountryHeader carries the upstream geo hint.
	CountryHeader string `mapstructure:"country_header"`

	// Denial destinations; empty values fall back to JSON error responses.
	NotFoundURL string `mapstructure:"not_found_url"`
	ExpiredURL  string `mapstructure:"expired_url"`
	PasswordURL string `mapstructure:"password_url"`

	// Analytics ingestion queue.
	AnalyticsCapacity      int           `mapstructure:"analytics_capacity"`
	AnalyticsBatchSize     int           `mapstructure:"analytics_batch_size"`
	AnalyticsFlushInterval time.Duration `mapstructure:"analytics_flush_interval"`
	AnalyticsMaxRetries    int           `mapstructure:"analytics_max_retries"`
	AnalyticsRetryBackoff  time.Duration `mapstructure:"analytics_retry_backoff"`
	SinkURL                string        `mapstructure:"sink_url"`
	SinkToken              string        `mapstructure:"sink_token"`

	// Webhook dispatcher.
	WebhookQueueCapacity int             `mapstructure:"webhook_queue_capacity"`
	WebhookWorkers       int             `mapstructure:"webhook_workers"`
	WebhookBackoff       []time.Duration `mapstructure:"webhook_backoff"`
	WebhookTimeout       time.Duration   `mapstructure:"webhook_timeout"`
}

// GetConfig loads configuration from defaults, an optional shortlink.yaml
// in the working directory, and SHORTLINK_-prefixed environment variables.
func GetConfig() (*Config, error) {
	v := viper.New()

	v.SetDefault("port", "8080")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("links_file", "links.yaml")
	v.SetDefault("endpoints_file", "endpoints.yaml")
	v.SetDefault("case_sensitive_domains", []string{})
	v.SetDefault("country_header", "X-Country-Code")
	v.SetDefault("not_found_url", "")
	v.SetDefault("expired_url", "")
	v.SetDefault("password_url", "")
	v.SetDefault("analytics_capacity", 4096)
	v.SetDefault("analytics_batch_size", 100)
	v.SetDefault("analytics_flush_interval", "2s")
	v.SetDefault("analytics_max_retries", 3)
	v.SetDefault("analytics_retry_backoff", "500ms")
	v.SetDefault("sink_url", "")
	v.SetDefault("sink_token", "")
	v.SetDefault("webhook_queue_capacity", 1024)
	v.SetDefault("webhook_workers", 4)
	v.SetDefault("webhook_backoff", []string{"1s", "5s"})
	v.SetDefault("webhook_timeout", "30s")

	v.SetConfigName("shortlink")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("SHORTLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// The config file is optional, env and defaults may be enough.
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	return &config, nil
}
