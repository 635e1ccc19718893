package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

type RateLimitBackend string

const (
	RateLimitBackendMemory   RateLimitBackend = "memory"
	RateLimitBackendRedis    RateLimitBackend = "redis"
	RateLimitBackendDisabled RateLimitBackend = "disabled"
)

type Config struct {
	port            string
	sentryDSN       string
	datastoreURL    string
	datastoreAPIKey string
	webhookSecret   string
	adminToken      string

	corsDomainSuffixes []string

	rateLimitBackend RateLimitBackend
	redisAddr        string
	redisPassword    string
	redisDB          int

	settingsCacheTTL     time.Duration
	productsCacheTTL     time.Duration
	statusCacheTTL       time.Duration
	idempotencyRetention time.Duration

	otelEnabled bool
	env         environment
}

func (c *Config) Port() string {
	return c.port
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) DatastoreURL() string {
	return c.datastoreURL
}

func (c *Config) DatastoreAPIKey() string {
	return c.datastoreAPIKey
}

func (c *Config) WebhookSecret() string {
	return c.webhookSecret
}

func (c *Config) AdminToken() string {
	return c.adminToken
}

// Storefront domains allowed to read tenant data from the browser
func (c *Config) CORSDomainSuffixes() []string {
	return c.corsDomainSuffixes
}

func (c *Config) RateLimitBackend() RateLimitBackend {
	return c.rateLimitBackend
}

func (c *Config) RedisAddr() string {
	return c.redisAddr
}

func (c *Config) RedisPassword() string {
	return c.redisPassword
}

func (c *Config) RedisDB() int {
	return c.redisDB
}

func (c *Config) SettingsCacheTTL() time.Duration {
	return c.settingsCacheTTL
}

func (c *Config) ProductsCacheTTL() time.Duration {
	return c.productsCacheTTL
}

func (c *Config) StatusCacheTTL() time.Duration {
	return c.statusCacheTTL
}

func (c *Config) IdempotencyRetention() time.Duration {
	return c.idempotencyRetention
}

func (c *Config) OTelEnabled() bool {
	return c.otelEnabled
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf(
		"Config{env: %s, port: %s, rateLimitBackend: %s, settingsCacheTTL: %s, productsCacheTTL: %s, statusCacheTTL: %s, idempotencyRetention: %s, otelEnabled: %t, ...}",
		string(c.env),
		c.port,
		string(c.rateLimitBackend),
		c.settingsCacheTTL,
		c.productsCacheTTL,
		c.statusCacheTTL,
		c.idempotencyRetention,
		c.otelEnabled,
	)
}

func durationFromEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}

	duration, err := time.ParseDuration(raw)
	if err != nil || duration <= 0 {
		return 0, fmt.Errorf("%w: %s (%s)", ErrInvalidValue, key, raw)
	}

	return duration, nil
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}

	var env environment
	rawEnv, ok := os.LookupEnv("TAVOLO_ENVIRONMENT")
	if !ok {
		return missingKey("TAVOLO_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return Config{}, fmt.Errorf("%w: TAVOLO_ENVIRONMENT (%s)", ErrInvalidValue, rawEnv)
	}
	if string(env) == "" {
		panic("logic error: env is empty")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	sentryDSN := os.Getenv("SENTRY_DSN")
	datastoreURL := os.Getenv("DATASTORE_URL")
	datastoreAPIKey := os.Getenv("DATASTORE_API_KEY")
	webhookSecret := os.Getenv("WEBHOOK_SECRET")
	adminToken := os.Getenv("ADMIN_TOKEN")

	if env == production || env == staging {
		if sentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}
		if datastoreURL == "" {
			return missingKey("DATASTORE_URL")
		}
		if datastoreAPIKey == "" {
			return missingKey("DATASTORE_API_KEY")
		}
		if webhookSecret == "" {
			return missingKey("WEBHOOK_SECRET")
		}
		if adminToken == "" {
			return missingKey("ADMIN_TOKEN")
		}
	}

	var corsDomainSuffixes []string
	for suffix := range strings.SplitSeq(os.Getenv("CORS_DOMAIN_SUFFIXES"), ",") {
		if suffix = strings.TrimSpace(suffix); suffix != "" {
			corsDomainSuffixes = append(corsDomainSuffixes, suffix)
		}
	}

	var rateLimitBackend RateLimitBackend
	switch rawBackend := os.Getenv("RATE_LIMIT_BACKEND"); rawBackend {
	case "", "memory":
		rateLimitBackend = RateLimitBackendMemory
	case "redis":
		rateLimitBackend = RateLimitBackendRedis
	case "disabled":
		rateLimitBackend = RateLimitBackendDisabled
	default:
		return Config{}, fmt.Errorf("%w: RATE_LIMIT_BACKEND (%s)", ErrInvalidValue, rawBackend)
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	redisPassword := os.Getenv("REDIS_PASSWORD")
	if rateLimitBackend == RateLimitBackendRedis && redisAddr == "" {
		return missingKey("REDIS_ADDR")
	}

	redisDB := 0
	if rawDB := os.Getenv("REDIS_DB"); rawDB != "" {
		db, err := strconv.Atoi(rawDB)
		if err != nil || db < 0 {
			return Config{}, fmt.Errorf("%w: REDIS_DB (%s)", ErrInvalidValue, rawDB)
		}
		redisDB = db
	}

	settingsCacheTTL, err := durationFromEnv("SETTINGS_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return Config{}, err
	}
	productsCacheTTL, err := durationFromEnv("PRODUCTS_CACHE_TTL", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	statusCacheTTL, err := durationFromEnv("STATUS_CACHE_TTL", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	idempotencyRetention, err := durationFromEnv("IDEMPOTENCY_RETENTION", 24*time.Hour)
	if err != nil {
		return Config{}, err
	}

	otelEnabled := false
	if rawOTel := os.Getenv("OTEL_ENABLED"); rawOTel != "" {
		otelEnabled, err = strconv.ParseBool(rawOTel)
		if err != nil {
			return Config{}, fmt.Errorf("%w: OTEL_ENABLED (%s)", ErrInvalidValue, rawOTel)
		}
	}

	return Config{
		port:            port,
		sentryDSN:       sentryDSN,
		datastoreURL:    datastoreURL,
		datastoreAPIKey: datastoreAPIKey,
		webhookSecret:   webhookSecret,
		adminToken:      adminToken,

		corsDomainSuffixes: corsDomainSuffixes,

		rateLimitBackend: rateLimitBackend,
		redisAddr:        redisAddr,
		redisPassword:    redisPassword,
		redisDB:          redisDB,

		settingsCacheTTL:     settingsCacheTTL,
		productsCacheTTL:     productsCacheTTL,
		statusCacheTTL:       statusCacheTTL,
		idempotencyRetention: idempotencyRetention,

		otelEnabled: otelEnabled,
		env:         env,
	}, nil
}
