package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port           string
	PostgresURL    string
	DBSchema       string
	KafkaBrokers   []string
	OrderTopic     string
	OTLPEndpoint   string
	Version        string
	LogLevel       slog.Level
	RequestTimeout time.Duration

	// StrictTransitions rejects backward order status changes.
	StrictTransitions bool
}

func Load() (Config, error) {
	cfg := Config{
		Port:              getenv("PORT", "8080"),
		PostgresURL:       os.Getenv("POSTGRES_URL"),
		DBSchema:          getenv("DB_SCHEMA", "storefront"),
		KafkaBrokers:      splitCSV(os.Getenv("KAFKA_BROKERS")),
		OrderTopic:        getenv("ORDER_CREATED_TOPIC", "order.created"),
		OTLPEndpoint:      getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		Version:           getenv("SERVICE_VERSION", "0.1.0"),
		LogLevel:          parseLevel(getenv("LOG_LEVEL", "info")),
		RequestTimeout:    parseDuration(getenv("REQUEST_TIMEOUT", "10s"), 10*time.Second),
		StrictTransitions: parseBool(os.Getenv("ORDER_STRICT_TRANSITIONS")),
	}

	if cfg.PostgresURL == "" {
		return cfg, errors.New("POSTGRES_URL environment variable is required")
	}

	return cfg, nil
}

// Notifier configures the order.created consumer.
type Notifier struct {
	KafkaBrokers []string
	OrderTopic   string
	GroupID      string
	MailerURL    string
	OTLPEndpoint string
	Version      string
	LogLevel     slog.Level
	HTTPTimeout  time.Duration
}

func LoadNotifier() (Notifier, error) {
	cfg := Notifier{
		KafkaBrokers: splitCSV(os.Getenv("KAFKA_BROKERS")),
		OrderTopic:   getenv("ORDER_CREATED_TOPIC", "order.created"),
		GroupID:      getenv("NOTIFIER_GROUP_ID", "order-notifier"),
		MailerURL:    strings.TrimRight(os.Getenv("MAILER_URL"), "/"),
		OTLPEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		Version:      getenv("SERVICE_VERSION", "0.1.0"),
		LogLevel:     parseLevel(getenv("LOG_LEVEL", "info")),
		HTTPTimeout:  parseDuration(getenv("REQUEST_TIMEOUT", "10s"), 10*time.Second),
	}

	if len(cfg.KafkaBrokers) == 0 {
		return cfg, errors.New("KAFKA_BROKERS environment variable is required")
	}
	if cfg.MailerURL == "" {
		return cfg, errors.New("MAILER_URL environment variable is required")
	}

	return cfg, nil
}

// Mailer configures the mail sink.
type Mailer struct {
	Port         string
	OTLPEndpoint string
	Version      string
	LogLevel     slog.Level
}

func LoadMailer() Mailer {
	return Mailer{
		Port:         getenv("PORT", "8084"),
		OTLPEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		Version:      getenv("SERVICE_VERSION", "0.1.0"),
		LogLevel:     parseLevel(getenv("LOG_LEVEL", "info")),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func splitCSV(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDuration(v string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}

func parseLevel(v string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return slog.LevelInfo
	}
	return level
}
