package kafka

// Default topic names, overridable through KAFKA_*_TOPIC
const (
	// Served predictions, keyed by prediction id
	TopicPredictions = "phishing.predictions"

	// Threat events produced by ingestion, keyed by user id
	TopicThreatEvents = "phishing.events"
)
