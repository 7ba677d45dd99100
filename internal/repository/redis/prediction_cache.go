package redis

import (
	"context"
	"encoding/binary"
	"math"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	redisclient "phishguard/internal/adapters/redis"
	"phishguard/internal/domain/phishing"
	"phishguard/internal/metrics"
	"phishguard/pkg/errors"
)

const keyPrefix = "prediction:"

// PredictionCache implements phishing.PredictionCache on Redis. Keys hash the
// assembled vector and the model version, so a new model never serves a
// prediction made by its predecessor.
type PredictionCache struct {
	client  *redisclient.Client
	version string
}

// NewPredictionCache creates a cache scoped to modelVersion
func NewPredictionCache(client *redisclient.Client, modelVersion string) *PredictionCache {
	return &PredictionCache{client: client, version: modelVersion}
}

// Key returns the cache key for vec
func (c *PredictionCache) Key(vec phishing.FeatureVector) string {
	h := xxhash.New()
	_, _ = h.WriteString(c.version)
	var buf [8]byte
	for _, v := range vec {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = h.Write(buf[:])
	}
	return keyPrefix + strconv.FormatUint(h.Sum64(), 16)
}

// Get returns the cached prediction for vec, if any
func (c *PredictionCache) Get(ctx context.Context, vec phishing.FeatureVector) (*phishing.Prediction, bool, error) {
	start := time.Now()
	var p phishing.Prediction
	err := c.client.GetJSON(ctx, c.Key(vec), &p)
	if errors.Is(err, redisclient.ErrCacheMiss) {
		metrics.RecordDBQuery("redis", "get_prediction", time.Since(start), nil)
		return nil, false, nil
	}
	metrics.RecordDBQuery("redis", "get_prediction", time.Since(start), err)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to read cached prediction")
	}
	return &p, true, nil
}

// Set caches p for vec
func (c *PredictionCache) Set(ctx context.Context, vec phishing.FeatureVector, p *phishing.Prediction, ttl time.Duration) error {
	start := time.Now()
	err := c.client.SetJSON(ctx, c.Key(vec), p, ttl)
	metrics.RecordDBQuery("redis", "set_prediction", time.Since(start), err)
	return errors.Wrap(err, "failed to cache prediction")
}

// Size counts cached predictions across all model versions
func (c *PredictionCache) Size(ctx context.Context) (int64, error) {
	return c.client.CountKeys(ctx, keyPrefix+"*")
}
