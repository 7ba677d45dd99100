package phishing

import "time"

// Class labels
const (
	ClassLegitimate = 0
	ClassPhishing   = 1
)

// Prediction is the outcome of one classifier call
type Prediction struct {
	PredictedClass        int     `json:"predicted_class"`
	IsPhishing            bool    `json:"is_phishing"`
	PhishingProbability   float64 `json:"phishing_probability"`
	LegitimateProbability float64 `json:"legitimate_probability"`
	Confidence            float64 `json:"confidence"`
}

// PredictionLog is the audit record of a served prediction
type PredictionLog struct {
	PredictionID          string    `ch:"prediction_id" json:"prediction_id"`
	RequestID             string    `ch:"request_id" json:"request_id"`
	Timestamp             time.Time `ch:"timestamp" json:"timestamp"`
	ModelVersion          string    `ch:"model_version" json:"model_version"`
	Features              []float64 `ch:"features" json:"features"`
	PredictedClass        uint8     `ch:"predicted_class" json:"predicted_class"`
	PhishingProbability   float64   `ch:"phishing_probability" json:"phishing_probability"`
	LegitimateProbability float64   `ch:"legitimate_probability" json:"legitimate_probability"`
	Confidence            float64   `ch:"confidence" json:"confidence"`
	Cached                bool      `ch:"cached" json:"cached"`
	LatencyMicros         int64     `ch:"latency_us" json:"latency_us"`
}

// NewPredictionLog builds an audit record for p
func NewPredictionLog(id, requestID, modelVersion string, vec FeatureVector, p *Prediction, cached bool, latency time.Duration) *PredictionLog {
	features := make([]float64, len(vec))
	copy(features, vec)
	return &PredictionLog{
		PredictionID:          id,
		RequestID:             requestID,
		Timestamp:             time.Now().UTC(),
		ModelVersion:          modelVersion,
		Features:              features,
		PredictedClass:        uint8(p.PredictedClass),
		PhishingProbability:   p.PhishingProbability,
		LegitimateProbability: p.LegitimateProbability,
		Confidence:            p.Confidence,
		Cached:                cached,
		LatencyMicros:         latency.Microseconds(),
	}
}
