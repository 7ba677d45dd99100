package prediction

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phishguard/internal/adapters/config"
	redisclient "phishguard/internal/adapters/redis"
	"phishguard/internal/domain/phishing"
	"phishguard/internal/ml"
	redisrepo "phishguard/internal/repository/redis"
	"phishguard/pkg/logger"
)

// constantForest is an unversioned single-leaf forest over the serving schema
func constantForest(legit, phish float64) ml.ForestSpec {
	return ml.ForestSpec{
		NFeatures: 18,
		Trees: []ml.TreeSpec{{
			ChildrenLeft:  []int{-1},
			ChildrenRight: []int{-1},
			Feature:       []int{-2},
			Threshold:     []float64{-2},
			Value:         [][]float64{{legit, phish}},
		}},
	}
}

func overwriteForest(t *testing.T, path string, spec ml.ForestSpec) {
	t.Helper()
	data, err := json.Marshal(spec)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestService_RetrainedModelMissesPreviousCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	client := redisclient.NewFromClient(rdb)
	ctx := context.Background()

	// the same artifact path is overwritten by retraining
	path := writeForest(t, constantForest(90, 10))
	serve := func() (*Engine, *Service) {
		e, err := LoadEngine(ctx, LoaderConfig{Model: config.ModelConfig{Path: path}}, nil, logger.NewNop())
		require.NoError(t, err)
		require.True(t, e.Loaded())
		svc := NewService(e, Deps{
			Cache:    redisrepo.NewPredictionCache(client, e.Version()),
			CacheTTL: time.Hour,
		}, logger.NewNop())
		return e, svc
	}

	oldEngine, oldSvc := serve()
	first, err := oldSvc.Predict(ctx, benignRecord())
	require.NoError(t, err)
	assert.Equal(t, phishing.ClassLegitimate, first.PredictedClass)
	oldEngine.Close()

	overwriteForest(t, path, constantForest(5, 95))

	newEngine, newSvc := serve()
	defer newEngine.Close()
	require.NotEqual(t, oldEngine.Version(), newEngine.Version())

	got, err := newSvc.Predict(ctx, benignRecord())
	require.NoError(t, err)

	want, err := newEngine.PredictOne(phishing.Assemble(benignRecord(), newEngine.Schema()))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, phishing.ClassPhishing, got.PredictedClass)
	assert.InDelta(t, 0.95, got.PhishingProbability, 1e-9)
}
