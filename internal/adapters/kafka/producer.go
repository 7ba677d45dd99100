package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"phishguard/internal/metrics"
	"phishguard/pkg/errors"
	"phishguard/pkg/logger"
)

// MessageWriter is the subset of *kafka.Writer the producer uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer handles Kafka message publishing, one writer per topic
type Producer struct {
	mu        sync.Mutex
	writers   map[string]MessageWriter
	brokers   []string
	async     bool
	newWriter func(topic string) MessageWriter
	log       *logger.Logger
}

// ProducerConfig holds producer configuration
type ProducerConfig struct {
	Brokers []string
	// Async makes writes fire-and-forget; delivery errors are only logged
	Async        bool
	BatchTimeout time.Duration
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig) *Producer {
	p := &Producer{
		writers: make(map[string]MessageWriter),
		brokers: cfg.Brokers,
		async:   cfg.Async,
		log:     logger.Get().With("component", "kafka_producer"),
	}

	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 50 * time.Millisecond
	}

	p.newWriter = func(topic string) MessageWriter {
		return &kafka.Writer{
			Addr:                   kafka.TCP(p.brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			Async:                  p.async,
			BatchTimeout:           batchTimeout,
			AllowAutoTopicCreation: true,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					p.log.Warnw("Async delivery failed", "topic", topic, "messages", len(messages), "error", err)
				}
				metrics.RecordKafkaMessage(topic, err)
			},
		}
	}
	return p
}

// NewProducerWithWriter builds a producer that sends every topic through factory
func NewProducerWithWriter(factory func(topic string) MessageWriter) *Producer {
	return &Producer{
		writers:   make(map[string]MessageWriter),
		newWriter: factory,
		log:       logger.Get().With("component", "kafka_producer"),
	}
}

func (p *Producer) getWriter(topic string) MessageWriter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[topic]; ok {
		return w
	}
	w := p.newWriter(topic)
	p.writers[topic] = w
	return w
}

// Publish sends event as JSON to topic
func (p *Producer) Publish(ctx context.Context, topic string, key string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event")
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}

	if err := p.getWriter(topic).WriteMessages(ctx, msg); err != nil {
		if !p.async {
			metrics.RecordKafkaMessage(topic, err)
		}
		p.log.Errorf("Failed to publish to %s: %v", topic, err)
		return errors.Wrapf(err, "publish to %s", topic)
	}

	if !p.async {
		metrics.RecordKafkaMessage(topic, nil)
	}
	p.log.Debugf("Published to %s: %s", topic, key)
	return nil
}

// Close closes all writers, flushing pending async messages
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs errors.MultiError
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			p.log.Errorf("Failed to close writer for %s: %v", topic, err)
			errs.Add(errors.Wrapf(err, "close writer %s", topic))
		}
	}
	p.writers = make(map[string]MessageWriter)
	return errs.ToError()
}
