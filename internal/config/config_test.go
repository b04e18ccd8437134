package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LOCK_TIMEOUT", "")
	t.Setenv("ORDER_CACHE_TTL", "")
	t.Setenv("COMMISSION_RATE", "")
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092 ")
	t.Setenv("MIGRATIONS_PATH", "")

	cfg, err := Load("8081")

	require.NoError(t, err)
	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.LockTimeout)
	assert.Equal(t, 5*time.Minute, cfg.OrderCacheTTL)
	assert.Equal(t, "0.1", cfg.CommissionRate.String())
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "file://migrations", cfg.MigrationsPath)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("lock timeout", func(t *testing.T) {
		t.Setenv("LOCK_TIMEOUT", "soon")
		_, err := Load("8081")
		assert.ErrorContains(t, err, "LOCK_TIMEOUT")
	})

	t.Run("commission out of range", func(t *testing.T) {
		t.Setenv("COMMISSION_RATE", "1.5")
		_, err := Load("8081")
		assert.ErrorContains(t, err, "COMMISSION_RATE")
	})
}

func TestRequire(t *testing.T) {
	cfg := Config{PostgresURL: "postgres://x", RedisAddr: "r:6379"}

	assert.NoError(t, cfg.Require("POSTGRES_URL", "REDIS_ADDR"))

	err := cfg.Require("POSTGRES_URL", "JWT_SECRET", "KAFKA_BROKERS")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET, KAFKA_BROKERS")
}
