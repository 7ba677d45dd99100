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

	assert.Equal(t, 8000, cfg.HTTP.Port)
	assert.Equal(t, 10, cfg.Model.InfoTopN)
	assert.False(t, cfg.Model.FailFast)
	assert.False(t, cfg.Predict.RequireAllFields)
	assert.False(t, cfg.Predict.RejectUnknownFields)
	assert.False(t, cfg.RateLimit.Enabled())
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.ClickHouse.Enabled())
	assert.False(t, cfg.Kafka.Enabled())
	assert.False(t, cfg.ErrorTracking.Enabled())
	assert.Equal(t, "org-product-logs", cfg.S3.EventsBucket)
	assert.Equal(t, 1000, cfg.Ingest.BatchSize)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("PREDICT_REQUIRE_ALL_FIELDS", "true")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("PREDICTION_CACHE_TTL", "30s")
	t.Setenv("RATE_LIMIT_RPS", "12.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.True(t, cfg.Predict.RequireAllFields)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
	assert.True(t, cfg.RateLimit.Enabled())
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("HTTP_PORT", "70000")
	t.Setenv("INGEST_BATCH_SIZE", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP_PORT")
	assert.Contains(t, err.Error(), "INGEST_BATCH_SIZE")
}
