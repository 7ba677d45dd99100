package events

import (
	"context"

	"phishguard/internal/adapters/kafka"
	"phishguard/internal/domain/phishing"
	"phishguard/pkg/errors"
	"phishguard/pkg/logger"
)

// Producer is what the publisher needs from the Kafka adapter
type Producer interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// Topics names the destination of each event family
type Topics struct {
	Predictions  string
	ThreatEvents string
}

// Publisher publishes domain events to Kafka. It implements
// phishing.PredictionPublisher and phishing.EventPublisher.
type Publisher struct {
	producer Producer
	topics   Topics
	source   string
	log      *logger.Logger
}

// NewPublisher creates a new event publisher. Empty topic names fall back to the defaults.
func NewPublisher(producer Producer, topics Topics, source string, log *logger.Logger) *Publisher {
	if topics.Predictions == "" {
		topics.Predictions = kafka.TopicPredictions
	}
	if topics.ThreatEvents == "" {
		topics.ThreatEvents = kafka.TopicThreatEvents
	}
	return &Publisher{
		producer: producer,
		topics:   topics,
		source:   source,
		log:      log.With("component", "event_publisher"),
	}
}

// PublishPrediction announces a served prediction, keyed by prediction id
func (p *Publisher) PublishPrediction(ctx context.Context, entry *phishing.PredictionLog) error {
	if entry == nil {
		return errors.NewValidationError("entry", "nil prediction log")
	}
	return p.publish(ctx, p.topics.Predictions, entry.PredictionID, NewEnvelope(TypePredictionServed, p.source, entry))
}

// PublishThreatEvent streams an ingested event, keyed by user so one user's
// events stay ordered within a partition
func (p *Publisher) PublishThreatEvent(ctx context.Context, event *phishing.ThreatEvent) error {
	if event == nil {
		return errors.NewValidationError("event", "nil threat event")
	}
	return p.publish(ctx, p.topics.ThreatEvents, event.UserID, NewEnvelope(TypeThreatEvent, p.source, event))
}

func (p *Publisher) publish(ctx context.Context, topic, key string, env *Envelope) error {
	if err := p.producer.Publish(ctx, topic, key, env); err != nil {
		return errors.Wrap(err, "send to kafka")
	}
	p.log.Debugw("Event published", "topic", topic, "type", env.Type, "event_id", env.ID)
	return nil
}
