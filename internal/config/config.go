package config

import (
	"errors"
	"time"
)

// Config holds everything cmd/web needs to start
type Config struct {
	Port        string
	Host        string
	Environment string

	LogLevel  string
	LogFormat string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SnapshotTTL   time.Duration

	// MarketAPIURL wins over Consul discovery when both are set.
	MarketAPIURL      string
	MarketAPIService  string
	HTTPClientTimeout time.Duration

	ConsulAddr  string
	ConsulToken string

	KafkaBrokers       string
	SessionEventsTopic string

	AllowedOrigins []string
}

// productionVars have development defaults that must not leak into production
var productionVars = []string{"REDIS_ADDR", "WEB_HOST"}

// Load reads the configuration from the environment
func Load() (*Config, error) {
	var errs []error

	redisDB, err := getEnvInt("REDIS_DB", 0)
	errs = append(errs, err)
	snapshotTTL, err := getEnvDuration("SNAPSHOT_TTL", 720*time.Hour)
	errs = append(errs, err)
	clientTimeout, err := getEnvDuration("HTTP_CLIENT_TIMEOUT", 10*time.Second)
	errs = append(errs, err)

	cfg := &Config{
		Port:        GetEnvOrDefault("WEB_PORT", "8080"),
		Host:        GetEnvOrDefault("WEB_HOST", "localhost"),
		Environment: GetEnvOrDefault("APP_ENV", "development"),

		LogLevel:  GetEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: GetEnvOrDefault("LOG_FORMAT", "json"),

		RedisAddr:     GetEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: GetEnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:       redisDB,
		SnapshotTTL:   snapshotTTL,

		MarketAPIURL:      GetEnvOrDefault("MARKET_API_URL", ""),
		MarketAPIService:  GetEnvOrDefault("MARKET_API_SERVICE", "marketplace-api"),
		HTTPClientTimeout: clientTimeout,

		ConsulAddr:  GetEnvOrDefault("CONSUL_HTTP_ADDR", ""),
		ConsulToken: GetEnvOrDefault("CONSUL_HTTP_TOKEN", ""),

		KafkaBrokers:       GetEnvOrDefault("KAFKA_BROKERS", ""),
		SessionEventsTopic: GetEnvOrDefault("KAFKA_TOPIC_SESSION_EVENTS", "session-events"),

		AllowedOrigins: splitList(GetEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
	}

	if cfg.Production() {
		errs = append(errs, ValidateEnv(productionVars))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks combinations the individual parsers cannot
func (c *Config) Validate() error {
	if c.MarketAPIURL == "" && c.ConsulAddr == "" {
		return errors.New("either MARKET_API_URL or CONSUL_HTTP_ADDR must be set")
	}
	if c.Port == "" {
		return errors.New("WEB_PORT must not be empty")
	}
	return nil
}

// Production reports whether cookies must be marked Secure
func (c *Config) Production() bool {
	return c.Environment == "production"
}

// KafkaEnabled reports whether session events are published
func (c *Config) KafkaEnabled() bool {
	return c.KafkaBrokers != ""
}

// ConsulEnabled reports whether Consul is configured
func (c *Config) ConsulEnabled() bool {
	return c.ConsulAddr != ""
}
