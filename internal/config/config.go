/**
 * @description
 * This package handles the configuration management for the service. It uses
 * the Viper library to read configuration from environment variables, with an
 * optional .env file for local development.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the remit-orchestrator.
type Config struct {
	ServerPort  string `mapstructure:"SERVER_PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	RedisURL    string `mapstructure:"REDIS_URL"`
	RabbitMQURL string `mapstructure:"RABBITMQ_URL"`

	CollectionAPIBaseURL string `mapstructure:"COLLECTION_API_BASE_URL"`
	CollectionAPIKey     string `mapstructure:"COLLECTION_API_KEY"`
	ConversionAPIBaseURL string `mapstructure:"CONVERSION_API_BASE_URL"`
	ConversionAPIKey     string `mapstructure:"CONVERSION_API_KEY"`
	PayoutAPIBaseURL     string `mapstructure:"PAYOUT_API_BASE_URL"`
	PayoutAPIKey         string `mapstructure:"PAYOUT_API_KEY"`

	WebhookSecret          string `mapstructure:"WEBHOOK_SECRET"`
	WebhookCallbackBaseURL string `mapstructure:"WEBHOOK_CALLBACK_BASE_URL"`
	WebhookDedupTTLMinutes int    `mapstructure:"WEBHOOK_DEDUP_TTL_MINUTES"`
	InternalAPIKey         string `mapstructure:"INTERNAL_API_KEY"`
	CORSAllowedOrigins     string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	PlatformFeeBps     int64  `mapstructure:"PLATFORM_FEE_BPS"`
	QuoteTTLSeconds    int    `mapstructure:"QUOTE_TTL_SECONDS"`
	QuoteSweepSchedule string `mapstructure:"QUOTE_SWEEP_SCHEDULE"`
}

// LoadConfig reads configuration from environment variables from the given
// path. An absent .env file is not an error.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("PLATFORM_FEE_BPS", 50)
	viper.SetDefault("QUOTE_TTL_SECONDS", 300)
	viper.SetDefault("QUOTE_SWEEP_SCHEDULE", "*/5 * * * *")
	viper.SetDefault("WEBHOOK_DEDUP_TTL_MINUTES", 1440)

	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("COLLECTION_API_BASE_URL")
	_ = viper.BindEnv("COLLECTION_API_KEY")
	_ = viper.BindEnv("CONVERSION_API_BASE_URL")
	_ = viper.BindEnv("CONVERSION_API_KEY")
	_ = viper.BindEnv("PAYOUT_API_BASE_URL")
	_ = viper.BindEnv("PAYOUT_API_KEY")
	_ = viper.BindEnv("WEBHOOK_SECRET")
	_ = viper.BindEnv("WEBHOOK_CALLBACK_BASE_URL")
	_ = viper.BindEnv("WEBHOOK_DEDUP_TTL_MINUTES")
	_ = viper.BindEnv("INTERNAL_API_KEY")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")
	_ = viper.BindEnv("PLATFORM_FEE_BPS")
	_ = viper.BindEnv("QUOTE_TTL_SECONDS")
	_ = viper.BindEnv("QUOTE_SWEEP_SCHEDULE")

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if config.PlatformFeeBps < 0 {
		log.Printf("level=warn component=config msg=\"negative platform fee configured; coercing to zero\" fee_bps=%d", config.PlatformFeeBps)
		config.PlatformFeeBps = 0
	}
	if config.QuoteTTLSeconds <= 0 {
		config.QuoteTTLSeconds = 300
	}
	if config.WebhookDedupTTLMinutes <= 0 {
		config.WebhookDedupTTLMinutes = 1440
	}
	config.WebhookSecret = strings.TrimSpace(config.WebhookSecret)
	config.RedisURL = strings.TrimSpace(config.RedisURL)

	return
}

// AllowedOrigins splits the configured CORS origin list.
func (c Config) AllowedOrigins() []string {
	raw := strings.TrimSpace(c.CORSAllowedOrigins)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
