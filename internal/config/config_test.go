package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, StoragePostgres, cfg.StorageBackend)
	assert.Equal(t, "webstore", cfg.PostgresDB)
	assert.False(t, cfg.KafkaEnabled)
	assert.False(t, cfg.RedisEnabled)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL())
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("IDEMPOTENCY_TTL_HOURS", "2")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, StorageMemory, cfg.StorageBackend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "localhost:6380", cfg.Redis().Addr())
	assert.Equal(t, 2*time.Hour, cfg.IdempotencyTTL())
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"port too high", map[string]string{"HTTP_PORT": "70000"}, "invalid HTTP port"},
		{"port zero", map[string]string{"HTTP_PORT": "0"}, "invalid HTTP port"},
		{"unknown backend", map[string]string{"STORAGE_BACKEND": "sqlite"}, "STORAGE_BACKEND"},
		{"sample rate", map[string]string{"OTEL_SAMPLE_RATE": "1.5"}, "OTEL_SAMPLE_RATE"},
		{"ttl", map[string]string{"IDEMPOTENCY_TTL_HOURS": "0"}, "IDEMPOTENCY_TTL_HOURS"},
		{"request timeout", map[string]string{"HTTP_REQUEST_TIMEOUT_SECONDS": "-1"}, "HTTP_REQUEST_TIMEOUT_SECONDS"},
		{"non-numeric port", map[string]string{"HTTP_PORT": "abc"}, "load webstore config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()

			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_KafkaBrokersRequiredWhenEnabled(t *testing.T) {
	cfg := &Config{
		HTTPPort:              8080,
		HTTPRequestTimeoutSec: 30,
		StorageBackend:        StorageMemory,
		KafkaEnabled:          true,
		IdempotencyTTLHours:   1,
	}

	err := cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")

	cfg.KafkaBrokers = []string{"localhost:9092"}
	assert.NoError(t, cfg.validate())
}

func TestValidate_PostgresRequiredFields(t *testing.T) {
	cfg := &Config{
		HTTPPort:              8080,
		HTTPRequestTimeoutSec: 30,
		StorageBackend:        StoragePostgres,
		PostgresUser:          "webstore",
		IdempotencyTTLHours:   1,
	}
	assert.ErrorContains(t, cfg.validate(), "POSTGRES_HOST")

	cfg.StorageBackend = StorageMemory
	assert.NoError(t, cfg.validate(), "memory backend ignores postgres settings")
}

func TestPostgres(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("DB_MAX_CONN_LIFETIME_MINUTES", "5")

	cfg, err := Load()
	require.NoError(t, err)

	pg := cfg.Postgres()
	assert.Equal(t, "postgres://webstore:webstore_secret@db:5432/webstore?sslmode=disable", pg.DSN())
	assert.Equal(t, 5*time.Minute, pg.MaxConnLifetime)
	assert.Equal(t, int32(25), pg.MaxConns)
}
