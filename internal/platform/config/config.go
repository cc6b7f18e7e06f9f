package config

import (
	"os"
	"strings"
	"time"
)

// Config captures process-level configuration so main stays lean.
type Config struct {
	Addr           string
	PostgresURL    string
	RedisURL       string
	KafkaBrokers   []string
	KafkaTopic     string
	NotifyInterval time.Duration
	NotifyConsumer string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:           getenv("REGISTRAR_ADDR", ":8080"),
		PostgresURL:    os.Getenv("REGISTRAR_POSTGRES_URL"),
		RedisURL:       os.Getenv("REGISTRAR_REDIS_URL"),
		KafkaTopic:     getenv("REGISTRAR_KAFKA_TOPIC", "registrar.notifications"),
		NotifyInterval: time.Second,
		NotifyConsumer: getenv("REGISTRAR_NOTIFY_CONSUMER", "session-notifier"),
	}

	if brokers := os.Getenv("REGISTRAR_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if raw := os.Getenv("REGISTRAR_NOTIFY_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.NotifyInterval = d
		}
	}

	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
