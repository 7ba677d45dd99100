package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prediction outcomes
const (
	OutcomeSuccess     = "success"
	OutcomeError       = "error"
	OutcomeUnavailable = "unavailable"
)

// Cache lookup results
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Prediction side-effect sinks
const (
	SinkCache     = "cache"
	SinkAuditLog  = "audit_log"
	SinkPublisher = "publisher"
)

var (
	// Prediction metrics
	Predictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishguard_predictions_total",
			Help: "Total number of prediction requests",
		},
		[]string{"outcome", "class"}, // outcome: success|error|unavailable
	)

	PredictionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "phishguard_prediction_latency_seconds",
			Help:    "Prediction latency in seconds, assembly through classifier",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"outcome"},
	)

	PredictionCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishguard_prediction_cache_lookups_total",
			Help: "Prediction cache lookups",
		},
		[]string{"result"}, // result: hit|miss|error
	)

	SinkFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishguard_prediction_sink_failures_total",
			Help: "Failed prediction side effects",
		},
		[]string{"sink"}, // sink: cache|audit_log|publisher
	)

	ModelLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "phishguard_model_loaded",
			Help: "1 when a classifier is loaded, 0 otherwise",
		},
	)

	// HTTP metrics
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishguard_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "code"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "phishguard_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"method", "route"},
	)

	// Storage metrics
	DBQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishguard_db_queries_total",
			Help: "Total number of database operations",
		},
		[]string{"database", "operation", "status"}, // database: clickhouse|redis
	)

	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "phishguard_db_query_duration_seconds",
			Help:    "Database operation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"database", "operation"},
	)

	// Messaging metrics
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishguard_kafka_messages_total",
			Help: "Total Kafka messages produced",
		},
		[]string{"topic", "status"},
	)

	// Ingestion metrics
	IngestEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishguard_ingest_events_total",
			Help: "Threat events produced by the ingestion job",
		},
		[]string{"event_type"},
	)

	ObjectUploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishguard_object_uploads_total",
			Help: "Object storage uploads",
		},
		[]string{"bucket", "status"},
	)
)

var initOnce sync.Once

// Init registers all metrics with Prometheus. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		// Prediction metrics
		prometheus.MustRegister(Predictions)
		prometheus.MustRegister(PredictionLatency)
		prometheus.MustRegister(PredictionCacheLookups)
		prometheus.MustRegister(SinkFailures)
		prometheus.MustRegister(ModelLoaded)

		// HTTP metrics
		prometheus.MustRegister(HTTPRequests)
		prometheus.MustRegister(HTTPDuration)

		// Storage metrics
		prometheus.MustRegister(DBQueries)
		prometheus.MustRegister(DBQueryDuration)

		// Messaging metrics
		prometheus.MustRegister(KafkaMessages)

		// Ingestion metrics
		prometheus.MustRegister(IngestEvents)
		prometheus.MustRegister(ObjectUploads)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordPrediction records one prediction request
func RecordPrediction(outcome string, class int, latency time.Duration) {
	label := ""
	if outcome == OutcomeSuccess {
		label = strconv.Itoa(class)
	}
	Predictions.WithLabelValues(outcome, label).Inc()
	if outcome != OutcomeUnavailable {
		PredictionLatency.WithLabelValues(outcome).Observe(latency.Seconds())
	}
}

// RecordCacheLookup records a prediction cache lookup
func RecordCacheLookup(result string) {
	PredictionCacheLookups.WithLabelValues(result).Inc()
}

// RecordSinkFailure records a failed prediction side effect
func RecordSinkFailure(sink string) {
	SinkFailures.WithLabelValues(sink).Inc()
}

// SetModelLoaded publishes the engine state
func SetModelLoaded(loaded bool) {
	if loaded {
		ModelLoaded.Set(1)
		return
	}
	ModelLoaded.Set(0)
}

// RecordHTTPRequest records a served HTTP request
func RecordHTTPRequest(method, route string, code int, duration time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordDBQuery records a database query
func RecordDBQuery(database, operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	DBQueries.WithLabelValues(database, operation, status).Inc()
	DBQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}

// RecordKafkaMessage records a produced message
func RecordKafkaMessage(topic string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	KafkaMessages.WithLabelValues(topic, status).Inc()
}

// RecordIngestEvent records a threat event emitted by ingestion
func RecordIngestEvent(eventType string) {
	IngestEvents.WithLabelValues(eventType).Inc()
}

// RecordObjectUpload records an object storage upload
func RecordObjectUpload(bucket string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ObjectUploads.WithLabelValues(bucket, status).Inc()
}
