package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime configuration for the service.
// It is built once at startup and never mutated afterwards.
type Config struct {
	Port          string
	SigningSecret string

	SlackWebhookURL   string
	DiscordWebhookURL string

	KafkaBrokers  []string
	KafkaTopic    string
	KafkaUsername string
	KafkaPassword string

	StripeWebhookSecret string

	NotifyTimeout time.Duration
}

// Load reads the configuration from environment variables.
// SIGNING_SECRET is required; every sink is optional and an unset
// destination simply disables that sink.
func Load() (Config, error) {
	secret := strings.TrimSpace(os.Getenv("SIGNING_SECRET"))
	if secret == "" {
		return Config{}, errors.New("SIGNING_SECRET is required")
	}

	cfg := Config{
		Port:                getEnv("PORT", "8080"),
		SigningSecret:       secret,
		SlackWebhookURL:     strings.TrimSpace(os.Getenv("SLACK_WEBHOOK_URL")),
		DiscordWebhookURL:   strings.TrimSpace(os.Getenv("DISCORD_WEBHOOK_URL")),
		KafkaTopic:          strings.TrimSpace(os.Getenv("KAFKA_TOPIC")),
		KafkaUsername:       strings.TrimSpace(os.Getenv("KAFKA_USERNAME")),
		KafkaPassword:       strings.TrimSpace(os.Getenv("KAFKA_PASSWORD")),
		StripeWebhookSecret: strings.TrimSpace(os.Getenv("STRIPE_WEBHOOK_SECRET")),
		NotifyTimeout:       time.Duration(getEnvInt("NOTIFY_TIMEOUT", 10)) * time.Second,
	}

	if brokers := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if cfg.NotifyTimeout < time.Second {
		cfg.NotifyTimeout = time.Second
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
