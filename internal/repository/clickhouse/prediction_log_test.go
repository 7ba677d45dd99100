package clickhouse

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chclient "phishguard/internal/adapters/clickhouse"
	"phishguard/internal/adapters/config"
	"phishguard/internal/domain/phishing"
)

func TestPredictionLogRepository_StoreRejectsNil(t *testing.T) {
	repo := NewPredictionLogRepository(nil, PredictionLogConfig{FlushSize: 10, FlushInterval: time.Second})
	err := repo.Store(context.Background(), nil)
	require.Error(t, err)
	stats := repo.Stats()
	assert.Equal(t, 0, stats.BufferSize)
	assert.False(t, stats.Running)
}

func TestPredictionLogRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	host := os.Getenv("CLICKHOUSE_HOST")
	if host == "" {
		t.Skip("CLICKHOUSE_HOST not set")
	}
	port := 9000
	if p, err := strconv.Atoi(os.Getenv("CLICKHOUSE_PORT")); err == nil {
		port = p
	}

	ctx := context.Background()
	client, err := chclient.NewClient(ctx, config.ClickHouseConfig{
		Host:     host,
		Port:     port,
		User:     "default",
		Password: os.Getenv("CLICKHOUSE_PASSWORD"),
		Database: "default",
	})
	require.NoError(t, err)
	defer client.Close()

	repo := NewPredictionLogRepository(client.Conn(), PredictionLogConfig{FlushSize: 100, FlushInterval: time.Hour})
	require.NoError(t, repo.Migrate(ctx))

	id := uuid.NewString()
	p := &phishing.Prediction{PredictedClass: 1, IsPhishing: true, PhishingProbability: 0.9, LegitimateProbability: 0.1, Confidence: 0.9}
	entry := phishing.NewPredictionLog(id, "req-1", "test", make(phishing.FeatureVector, 18), p, false, 250*time.Microsecond)

	repo.Start(ctx)
	require.NoError(t, repo.Store(ctx, entry))
	require.NoError(t, repo.Stop(ctx))

	var count uint64
	row := client.Conn().QueryRow(ctx, "SELECT count() FROM phishing_predictions WHERE prediction_id = ?", id)
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, uint64(1), count)

	require.NoError(t, client.Exec(ctx, "ALTER TABLE phishing_predictions DELETE WHERE prediction_id = ?", id))
}
