package phishing

import (
	"context"
	"time"
)

// PredictionCache stores predictions keyed by feature vector
type PredictionCache interface {
	Get(ctx context.Context, vec FeatureVector) (*Prediction, bool, error)
	Set(ctx context.Context, vec FeatureVector, p *Prediction, ttl time.Duration) error
}

// PredictionLogRepository persists served predictions
type PredictionLogRepository interface {
	Store(ctx context.Context, entry *PredictionLog) error
}

// PredictionPublisher announces served predictions to downstream consumers
type PredictionPublisher interface {
	PublishPrediction(ctx context.Context, entry *PredictionLog) error
}

// EventPublisher streams ingested threat events
type EventPublisher interface {
	PublishThreatEvent(ctx context.Context, event *ThreatEvent) error
}
