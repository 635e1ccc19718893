package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tavolo/tavolo/internal/config"
)

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

var requiredOutsideDevelopment = []string{"SENTRY_DSN", "DATASTORE_URL", "DATASTORE_API_KEY", "WEBHOOK_SECRET", "ADMIN_TOKEN"}

func TestGetConfig(t *testing.T) {
	compareConfig := func(sentryDSN, datastoreURL, datastoreAPIKey, webhookSecret, adminToken string, env environment, conf config.Config) {
		t.Helper()
		require.Equal(t, sentryDSN, conf.SentryDSN())
		require.Equal(t, datastoreURL, conf.DatastoreURL())
		require.Equal(t, datastoreAPIKey, conf.DatastoreAPIKey())
		require.Equal(t, webhookSecret, conf.WebhookSecret())
		require.Equal(t, adminToken, conf.AdminToken())
		require.Equal(t, env == production, conf.IsProduction())
		require.Equal(t, env == staging, conf.IsStaging())
		require.Equal(t, env == development, conf.IsDevelopment())
	}

	t.Run("ensure base environment is clean", func(t *testing.T) {
		t.Run("environment is missing", func(t *testing.T) {
			// TAVOLO_ENVIRONMENT is required, so this should fail
			_, err := config.ConfigFromEnv()
			require.ErrorIs(t, err, config.ErrMissingRequiredValue)
		})

		t.Run("development environment should be empty", func(t *testing.T) {
			t.Setenv("TAVOLO_ENVIRONMENT", "development")

			conf, err := config.ConfigFromEnv()
			require.NoError(t, err)
			compareConfig("", "", "", "", "", development, conf)
		})

		t.Run("defaults", func(t *testing.T) {
			t.Setenv("TAVOLO_ENVIRONMENT", "development")

			conf, err := config.ConfigFromEnv()
			require.NoError(t, err)
			require.Equal(t, "8080", conf.Port())
			require.Equal(t, config.RateLimitBackendMemory, conf.RateLimitBackend())
			require.Equal(t, 5*time.Minute, conf.SettingsCacheTTL())
			require.Equal(t, 30*time.Second, conf.ProductsCacheTTL())
			require.Equal(t, 10*time.Second, conf.StatusCacheTTL())
			require.Equal(t, 24*time.Hour, conf.IdempotencyRetention())
			require.Equal(t, 0, conf.RedisDB())
			require.False(t, conf.OTelEnabled())
			require.Empty(t, conf.CORSDomainSuffixes())
		})
	})

	t.Run("values are read correctly", func(t *testing.T) {
		for _, variable := range requiredOutsideDevelopment {
			t.Setenv(variable, variable)
		}

		for _, env := range []environment{production, staging, development} {
			t.Run(string(env), func(t *testing.T) {
				t.Setenv("TAVOLO_ENVIRONMENT", string(env))

				conf, err := config.ConfigFromEnv()
				require.NoError(t, err)
				compareConfig("SENTRY_DSN", "DATASTORE_URL", "DATASTORE_API_KEY", "WEBHOOK_SECRET", "ADMIN_TOKEN", env, conf)
			})
		}
	})

	t.Run("optional values are read correctly", func(t *testing.T) {
		t.Setenv("TAVOLO_ENVIRONMENT", "development")
		t.Setenv("PORT", "9090")
		t.Setenv("RATE_LIMIT_BACKEND", "redis")
		t.Setenv("REDIS_ADDR", "localhost:6379")
		t.Setenv("REDIS_PASSWORD", "hunter2")
		t.Setenv("REDIS_DB", "3")
		t.Setenv("SETTINGS_CACHE_TTL", "10m")
		t.Setenv("PRODUCTS_CACHE_TTL", "1m")
		t.Setenv("STATUS_CACHE_TTL", "5s")
		t.Setenv("IDEMPOTENCY_RETENTION", "48h")
		t.Setenv("OTEL_ENABLED", "true")
		t.Setenv("CORS_DOMAIN_SUFFIXES", "trattoria.example, ,orders.example.com ")

		conf, err := config.ConfigFromEnv()
		require.NoError(t, err)
		require.Equal(t, "9090", conf.Port())
		require.Equal(t, config.RateLimitBackendRedis, conf.RateLimitBackend())
		require.Equal(t, "localhost:6379", conf.RedisAddr())
		require.Equal(t, "hunter2", conf.RedisPassword())
		require.Equal(t, 3, conf.RedisDB())
		require.Equal(t, 10*time.Minute, conf.SettingsCacheTTL())
		require.Equal(t, time.Minute, conf.ProductsCacheTTL())
		require.Equal(t, 5*time.Second, conf.StatusCacheTTL())
		require.Equal(t, 48*time.Hour, conf.IdempotencyRetention())
		require.True(t, conf.OTelEnabled())
		require.Equal(t, []string{"trattoria.example", "orders.example.com"}, conf.CORSDomainSuffixes())

		require.NotContains(t, conf.NonSensitiveString(), "hunter2")
	})

	t.Run("production and staging fail when missing variables", func(t *testing.T) {
		// Set all variables
		for _, variable := range requiredOutsideDevelopment {
			t.Setenv(variable, "placeholder_value")
		}

		for _, env := range []environment{production, staging} {
			t.Run(string(env), func(t *testing.T) {
				t.Setenv("TAVOLO_ENVIRONMENT", string(env))

				for _, variable := range requiredOutsideDevelopment {
					t.Run(variable, func(t *testing.T) {
						t.Setenv(variable, "")

						_, err := config.ConfigFromEnv()
						require.ErrorIs(t, err, config.ErrMissingRequiredValue)
					})
				}
			})
		}
	})

	t.Run("redis backend requires an address", func(t *testing.T) {
		t.Setenv("TAVOLO_ENVIRONMENT", "development")
		t.Setenv("RATE_LIMIT_BACKEND", "redis")

		_, err := config.ConfigFromEnv()
		require.ErrorIs(t, err, config.ErrMissingRequiredValue)
	})

	t.Run("invalid values", func(t *testing.T) {
		cases := []struct {
			variable string
			value    string
		}{
			{"RATE_LIMIT_BACKEND", "memcached"},
			{"REDIS_DB", "first"},
			{"REDIS_DB", "-1"},
			{"SETTINGS_CACHE_TTL", "five minutes"},
			{"PRODUCTS_CACHE_TTL", "0s"},
			{"STATUS_CACHE_TTL", "-10s"},
			{"IDEMPOTENCY_RETENTION", "1d"},
			{"OTEL_ENABLED", "sometimes"},
		}
		for _, c := range cases {
			t.Run(c.variable+"="+c.value, func(t *testing.T) {
				t.Setenv("TAVOLO_ENVIRONMENT", "development")
				t.Setenv(c.variable, c.value)

				_, err := config.ConfigFromEnv()
				require.ErrorIs(t, err, config.ErrInvalidValue)
			})
		}
	})

	t.Run("invalid environment", func(t *testing.T) {
		for _, env := range []string{"", "invalid", "my-env"} {
			t.Run(env, func(t *testing.T) {
				t.Setenv("TAVOLO_ENVIRONMENT", env)
				_, err := config.ConfigFromEnv()
				require.ErrorIs(t, err, config.ErrInvalidValue)
			})
		}
	})
}
