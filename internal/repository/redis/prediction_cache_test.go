package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "phishguard/internal/adapters/redis"
	"phishguard/internal/domain/phishing"
)

func newTestCache(t *testing.T, version string) (*PredictionCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewPredictionCache(redisclient.NewFromClient(rdb), version), mr
}

func TestPredictionCache_RoundTrip(t *testing.T) {
	cache, mr := newTestCache(t, "rf_20240101")
	ctx := context.Background()
	vec := phishing.FeatureVector{72, 3, 1, 5, 0, 0, 0, 0, 21, 44, 0, 0, 0.25, 0, 0, 1, 0, 0}

	_, hit, err := cache.Get(ctx, vec)
	require.NoError(t, err)
	assert.False(t, hit)

	want := &phishing.Prediction{
		PredictedClass:        1,
		IsPhishing:            true,
		PhishingProbability:   0.87,
		LegitimateProbability: 0.13,
		Confidence:            0.87,
	}
	require.NoError(t, cache.Set(ctx, vec, want, time.Minute))

	got, hit, err := cache.Get(ctx, vec)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, want, got)

	mr.FastForward(2 * time.Minute)
	_, hit, err = cache.Get(ctx, vec)
	require.NoError(t, err)
	assert.False(t, hit, "entry expires after ttl")
}

func TestPredictionCache_KeyScopedByVersionAndVector(t *testing.T) {
	a, _ := newTestCache(t, "v1")
	b, _ := newTestCache(t, "v2")

	vec := phishing.FeatureVector{1, 2, 3}
	assert.Equal(t, a.Key(vec), a.Key(phishing.FeatureVector{1, 2, 3}))
	assert.NotEqual(t, a.Key(vec), b.Key(vec))
	assert.NotEqual(t, a.Key(vec), a.Key(phishing.FeatureVector{1, 2, 4}))
}

func TestPredictionCache_BackendDown(t *testing.T) {
	cache, mr := newTestCache(t, "v1")
	mr.Close()

	_, hit, err := cache.Get(context.Background(), phishing.FeatureVector{1})
	assert.Error(t, err)
	assert.False(t, hit)
}

func TestPredictionCache_Size(t *testing.T) {
	cache, mr := newTestCache(t, "v1")
	ctx := context.Background()
	require.NoError(t, mr.Set("unrelated", "x"))

	n, err := cache.Size(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	p := &phishing.Prediction{PredictedClass: 0, LegitimateProbability: 1, Confidence: 1}
	for i := 0; i < 3; i++ {
		require.NoError(t, cache.Set(ctx, phishing.FeatureVector{float64(i)}, p, time.Minute))
	}

	n, err = cache.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
