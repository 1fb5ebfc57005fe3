package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures all tunable parameters for both the webhook API process
// and the dispatcher. Values are loaded from environment variables with
// sane defaults so either binary can run locally with in-memory stores and
// no external services.
type Config struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// WhatsApp gateway
	WAEndpoint    string
	WAToken       string
	WAPhoneID     string
	WAVerifyToken string
	OperatorID    string

	// LLM backends
	GeminiAPIKey     string
	GeminiModel      string
	SecondaryLLMURL  string
	SecondaryLLMKey  string
	SecondaryLLMName string
	SecondaryModel   string

	GeocodeEndpoint  string
	GeocodeUserAgent string

	RedisAddr     string
	RedisPassword string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroup   string

	PGDSN string

	DispatchInterval time.Duration
	TaskWorkers      int

	LogLevel      string
	RunMigrations bool
}

func defaults() Config {
	return Config{
		HTTPAddr:         ":8080",
		ReadTimeout:      5 * time.Second,
		WriteTimeout:     10 * time.Second,
		IdleTimeout:      120 * time.Second,
		ShutdownTimeout:  15 * time.Second,
		WAEndpoint:       "https://graph.facebook.com/v19.0",
		GeminiModel:      "gemini-2.0-flash",
		SecondaryLLMName: "secondary",
		SecondaryModel:   "llama-3.1-8b-instant",
		GeocodeEndpoint:  "https://nominatim.openstreetmap.org",
		GeocodeUserAgent: "wa-concierge/1.0",
		KafkaTopic:       "booking-events",
		KafkaGroup:       "taxi-dispatcher",
		DispatchInterval: time.Minute,
		TaskWorkers:      8,
		LogLevel:         "info",
	}
}

func Load() (Config, error) {
	cfg := defaults()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	setStringFromEnv(&cfg.WAEndpoint, "WA_ENDPOINT")
	cfg.WAToken = os.Getenv("WA_TOKEN")
	cfg.WAPhoneID = os.Getenv("WA_PHONE_ID")
	cfg.WAVerifyToken = os.Getenv("WA_VERIFY_TOKEN")
	cfg.OperatorID = os.Getenv("OPERATOR_ID")

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	setStringFromEnv(&cfg.GeminiModel, "GEMINI_MODEL")
	cfg.SecondaryLLMURL = strings.TrimSpace(os.Getenv("SECONDARY_LLM_URL"))
	cfg.SecondaryLLMKey = os.Getenv("SECONDARY_LLM_KEY")
	setStringFromEnv(&cfg.SecondaryLLMName, "SECONDARY_LLM_NAME")
	setStringFromEnv(&cfg.SecondaryModel, "SECONDARY_LLM_MODEL")

	setStringFromEnv(&cfg.GeocodeEndpoint, "GEOCODE_ENDPOINT")
	setStringFromEnv(&cfg.GeocodeUserAgent, "GEOCODE_USER_AGENT")

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")

	cfg.PGDSN = os.Getenv("PG_DSN")

	setDurationFromEnv(&cfg.DispatchInterval, "DISPATCH_INTERVAL", &errs)
	setIntFromEnv(&cfg.TaskWorkers, "TASK_WORKERS", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.TaskWorkers <= 0 {
		errs = append(errs, fmt.Errorf("TASK_WORKERS must be > 0"))
	}
	if cfg.DispatchInterval <= 0 {
		errs = append(errs, fmt.Errorf("DISPATCH_INTERVAL must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
