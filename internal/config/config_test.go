package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, cfg.Database.WriterDSN, cfg.Database.ReaderDSN)
	assert.Equal(t, "purchase-orders.events", cfg.Messaging.Kafka.Topic)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.False(t, cfg.Notification.EmailEnabled)
	assert.Empty(t, cfg.Notification.SMTP.Host)
	assert.Equal(t, "mandatory", cfg.Notification.SMTP.TLSPolicy)
}

func TestNewLegacyAliases(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "4000")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/po?sslmode=disable")
	t.Setenv("ENABLE_EMAIL_CHECKER", "true")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.HTTP.Port)
	assert.Equal(t, "postgres://u:p@db:5432/po?sslmode=disable", cfg.Database.WriterDSN)
	assert.True(t, cfg.Notification.EmailEnabled)
}

func TestNewExplicitSettingsWinOverAliases(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "4000")
	t.Setenv("HTTP_PORT", "5000")
	t.Setenv("DATABASE_URL", "postgres://alias")
	t.Setenv("DB_WRITER_DSN", "postgres://explicit")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.HTTP.Port)
	assert.Equal(t, "postgres://explicit", cfg.Database.WriterDSN)
}

func TestNewDisabledBackendsFallBackToNoop(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("MESSAGING_ENABLED", "false")
	t.Setenv("AUDIT_ENABLED", "false")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "noop", cfg.Cache.Driver)
	assert.Equal(t, "noop", cfg.Messaging.Driver)
	assert.Equal(t, "noop", cfg.Audit.Driver)
}

func TestNewSMTP(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("SMTP_HOST", " mail.procura.test ")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("SMTP_USERNAME", "bot")
	t.Setenv("SMTP_PASSWORD", "secret")
	t.Setenv("SMTP_TLS_POLICY", "Opportunistic")

	cfg, err := New()
	require.NoError(t, err)

	smtp := cfg.Notification.SMTP
	assert.Equal(t, "mail.procura.test", smtp.Host)
	assert.Equal(t, 2525, smtp.Port)
	assert.Equal(t, "opportunistic", smtp.TLSPolicy)
	assert.Equal(t, 15*time.Second, smtp.Timeout)
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing jwt secret", map[string]string{"JWT_SECRET": ""}},
		{"unsupported cache", map[string]string{"JWT_SECRET": "s", "CACHE_DRIVER": "memcached"}},
		{"unsupported messaging", map[string]string{"JWT_SECRET": "s", "MESSAGING_DRIVER": "nats"}},
		{"unsupported audit", map[string]string{"JWT_SECRET": "s", "AUDIT_DRIVER": "elastic"}},
		{"invalid port", map[string]string{"JWT_SECRET": "s", "HTTP_PORT": "-1"}},
		{"sample rate above one", map[string]string{"JWT_SECRET": "s", "OBS_TRACE_SAMPLE_RATE": "1.5"}},
		{"unsupported smtp tls policy", map[string]string{"JWT_SECRET": "s", "SMTP_TLS_POLICY": "starttls-maybe"}},
		{"smtp username without password", map[string]string{"JWT_SECRET": "s", "SMTP_HOST": "mail.test", "SMTP_USERNAME": "bot"}},
		{"invalid smtp port", map[string]string{"JWT_SECRET": "s", "SMTP_HOST": "mail.test", "SMTP_PORT": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := New()
			assert.Error(t, err)
		})
	}
}

func TestGetEnvAsStringSlice(t *testing.T) {
	t.Setenv("TEST_SLICE", " a, ,b ,c")
	assert.Equal(t, []string{"a", "b", "c"}, getEnvAsStringSlice("TEST_SLICE", nil))

	t.Setenv("TEST_SLICE", " , ")
	assert.Equal(t, []string{"x"}, getEnvAsStringSlice("TEST_SLICE", []string{"x"}))
}

func TestTypedLookupsKeepFallbackOnBadInput(t *testing.T) {
	t.Setenv("TEST_INT", "twelve")
	t.Setenv("TEST_DURATION", " 150ms ")
	t.Setenv("TEST_BOOL", "")

	assert.Equal(t, 3, getEnvAsInt("TEST_INT", 3))
	assert.Equal(t, 150*time.Millisecond, getEnvAsDuration("TEST_DURATION", time.Second))
	assert.True(t, getEnvAsBool("TEST_BOOL", true))
	assert.Equal(t, 0.5, getEnvAsFloat("TEST_MISSING_FLOAT", 0.5))
}
