package events

import (
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	TypePredictionServed = "prediction.served"
	TypeThreatEvent      = "threat.event"
)

const envelopeVersion = "1.0"

// Envelope wraps every message written to Kafka
type Envelope struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Timestamp time.Time   `json:"timestamp"`
	Version   string      `json:"version"`
	Payload   interface{} `json:"payload"`
}

// NewEnvelope creates an envelope with a fresh id
func NewEnvelope(eventType, source string, payload interface{}) *Envelope {
	return &Envelope{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Version:   envelopeVersion,
		Payload:   payload,
	}
}
