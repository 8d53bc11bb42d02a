// Package config loads process configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all process configuration.
type Config struct {
	Env      string
	LogLevel string

	HTTPAddr    string
	DatabaseURL string

	// Redis backs alert cooldowns. Optional: empty host disables throttling.
	RedisAddr     string
	RedisPassword string

	// Notification channels. Empty values disable the channel.
	SlackWebhookURL string
	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string
	MailFrom        string
	MailTo          string

	// Marketplace inventory APIs. A channel without URL and token is
	// local-only: the cascade still ends its listings, nothing is pushed.
	EbayAPIURL   string
	EbayAPIToken string
	JoomAPIURL   string
	JoomAPIToken string

	// ExchangeRateJPYUSD is the JPY-per-USD rate used by the price formula.
	ExchangeRateJPYUSD string

	// Notification feature flags, one per path.
	NotifyOutOfStock  bool
	NotifyPriceChange bool

	// PriceSyncToMarketplace is the default for price sync runs: when false,
	// runs recompute and log prices without calling the channels' APIs.
	PriceSyncToMarketplace bool

	// Worker loop intervals.
	SourceSyncInterval time.Duration
	PriceSyncInterval  time.Duration
}

// Load reads configuration. A missing .env file is not an error; real
// deployments configure through the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		SlackWebhookURL: os.Getenv("SLACK_WEBHOOK_URL"),
		SMTPHost:        os.Getenv("SMTP_HOST"),
		SMTPPort:        getEnvInt("SMTP_PORT", 587),
		SMTPUsername:    os.Getenv("SMTP_USERNAME"),
		SMTPPassword:    os.Getenv("SMTP_PASSWORD"),
		MailFrom:        os.Getenv("MAIL_FROM"),
		MailTo:          os.Getenv("MAIL_TO"),

		EbayAPIURL:   os.Getenv("EBAY_API_URL"),
		EbayAPIToken: os.Getenv("EBAY_API_TOKEN"),
		JoomAPIURL:   os.Getenv("JOOM_API_URL"),
		JoomAPIToken: os.Getenv("JOOM_API_TOKEN"),

		ExchangeRateJPYUSD: getEnv("EXCHANGE_RATE_JPY_USD", "150"),

		NotifyOutOfStock:  getEnvBool("NOTIFY_OUT_OF_STOCK", true),
		NotifyPriceChange: getEnvBool("NOTIFY_PRICE_CHANGE", true),

		PriceSyncToMarketplace: getEnvBool("PRICE_SYNC_TO_MARKETPLACE", true),

		SourceSyncInterval: getEnvDuration("SOURCE_SYNC_INTERVAL", 6*time.Hour),
		PriceSyncInterval:  getEnvDuration("PRICE_SYNC_INTERVAL", time.Hour),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

// Development reports whether the process runs in development mode.
func (c *Config) Development() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
