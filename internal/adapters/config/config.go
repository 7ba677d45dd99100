package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"phishguard/pkg/errors"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	Model         ModelConfig
	Predict       PredictConfig
	RateLimit     RateLimitConfig
	Redis         RedisConfig
	ClickHouse    ClickHouseConfig
	Kafka         KafkaConfig
	S3            S3Config
	Ingest        IngestConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"Threat Intelligence Metrics API"`
	Version  string `envconfig:"APP_VERSION" default:"1.0.0"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

type HTTPConfig struct {
	Port            int           `envconfig:"HTTP_PORT" default:"8000"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
	MaxBodyBytes    int64         `envconfig:"HTTP_MAX_BODY_BYTES" default:"65536"`
}

// ModelConfig locates the classifier artifact. When S3Key is set the artifact is
// downloaded from the model bucket into Path before loading.
type ModelConfig struct {
	Path            string `envconfig:"MODEL_PATH" default:"models/phishing_detection_model_latest.onnx"`
	MetadataPath    string `envconfig:"MODEL_METADATA_PATH"`
	S3Key           string `envconfig:"MODEL_S3_KEY"`
	FailFast        bool   `envconfig:"MODEL_FAIL_FAST" default:"false"`
	InfoTopN        int    `envconfig:"MODEL_INFO_TOP_N" default:"10"`
	ONNXLibraryPath string `envconfig:"ONNXRUNTIME_LIB_PATH"`
	ONNXInputName   string `envconfig:"ONNX_INPUT_NAME" default:"float_input"`
	ONNXLabelName   string `envconfig:"ONNX_LABEL_OUTPUT" default:"output_label"`
	ONNXProbasName  string `envconfig:"ONNX_PROBABILITY_OUTPUT" default:"output_probability"`
}

// PredictConfig toggles request validation. Both flags default to the zero-fill contract.
type PredictConfig struct {
	RequireAllFields    bool `envconfig:"PREDICT_REQUIRE_ALL_FIELDS" default:"false"`
	RejectUnknownFields bool `envconfig:"PREDICT_REJECT_UNKNOWN_FIELDS" default:"false"`
}

type RateLimitConfig struct {
	RPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"0"`
	Burst int     `envconfig:"RATE_LIMIT_BURST" default:"50"`
}

// Enabled reports whether /predict is rate limited
func (c RateLimitConfig) Enabled() bool {
	return c.RPS > 0
}

type RedisConfig struct {
	Host     string        `envconfig:"REDIS_HOST"`
	Port     int           `envconfig:"REDIS_PORT" default:"6379"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	CacheTTL time.Duration `envconfig:"PREDICTION_CACHE_TTL" default:"10m"`
	// OpTimeout bounds each cache read and write
	OpTimeout   time.Duration `envconfig:"REDIS_OP_TIMEOUT" default:"100ms"`
	DialTimeout time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"2s"`
	PoolSize    int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Enabled reports whether the prediction cache is configured
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

type ClickHouseConfig struct {
	Host          string        `envconfig:"CLICKHOUSE_HOST"`
	Port          int           `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User          string        `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password      string        `envconfig:"CLICKHOUSE_PASSWORD"`
	Database      string        `envconfig:"CLICKHOUSE_DB" default:"threat_intel"`
	FlushSize     int           `envconfig:"CLICKHOUSE_FLUSH_SIZE" default:"500"`
	FlushInterval time.Duration `envconfig:"CLICKHOUSE_FLUSH_INTERVAL" default:"5s"`
	DialTimeout   time.Duration `envconfig:"CLICKHOUSE_DIAL_TIMEOUT" default:"5s"`
	MaxOpenConns  int           `envconfig:"CLICKHOUSE_MAX_OPEN_CONNS" default:"5"`
}

// Enabled reports whether the prediction audit log is configured
func (c ClickHouseConfig) Enabled() bool {
	return c.Host != ""
}

type KafkaConfig struct {
	Brokers          []string `envconfig:"KAFKA_BROKERS"`
	PredictionsTopic string   `envconfig:"KAFKA_PREDICTIONS_TOPIC" default:"phishing.predictions"`
	EventsTopic      string   `envconfig:"KAFKA_EVENTS_TOPIC" default:"phishing.events"`
}

// Enabled reports whether event publishing is configured
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type S3Config struct {
	Region       string `envconfig:"AWS_REGION" default:"us-east-1"`
	Endpoint     string `envconfig:"S3_ENDPOINT"`
	UsePathStyle bool   `envconfig:"S3_USE_PATH_STYLE" default:"false"`
	EventsBucket string `envconfig:"S3_EVENTS_BUCKET" default:"org-product-logs"`
	EventsPrefix string `envconfig:"S3_EVENTS_PREFIX" default:"raw"`
	ModelBucket  string `envconfig:"S3_MODEL_BUCKET" default:"org-product-logs-ml-models"`
	MaxRetries   uint64 `envconfig:"S3_UPLOAD_MAX_RETRIES" default:"3"`
}

type IngestConfig struct {
	InputCSV  string `envconfig:"INGEST_INPUT_CSV" default:"Phishing_Legitimate_full.csv"`
	OutputDir string `envconfig:"INGEST_OUTPUT_DIR" default:"ingestion/output"`
	BatchSize int    `envconfig:"INGEST_BATCH_SIZE" default:"1000"`
	Seed      int64  `envconfig:"INGEST_SEED" default:"0"`
	UserPool  int    `envconfig:"INGEST_USER_POOL" default:"500"`
	SpanDays  int    `envconfig:"INGEST_SPAN_DAYS" default:"30"`
}

type ErrorTrackingConfig struct {
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Enabled reports whether errors are sent to Sentry
func (c ErrorTrackingConfig) Enabled() bool {
	return c.SentryDSN != ""
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	var m errors.MultiError
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		m.Add(errors.Newf("HTTP_PORT out of range: %d", c.HTTP.Port))
	}
	if c.Model.InfoTopN <= 0 {
		m.Add(errors.Newf("MODEL_INFO_TOP_N must be positive: %d", c.Model.InfoTopN))
	}
	if c.Ingest.BatchSize <= 0 {
		m.Add(errors.Newf("INGEST_BATCH_SIZE must be positive: %d", c.Ingest.BatchSize))
	}
	if c.Ingest.UserPool <= 0 {
		m.Add(errors.Newf("INGEST_USER_POOL must be positive: %d", c.Ingest.UserPool))
	}
	if c.RateLimit.RPS < 0 {
		m.Add(errors.Newf("RATE_LIMIT_RPS must not be negative: %v", c.RateLimit.RPS))
	}
	return errors.Wrap(m.ToError(), "invalid config")
}
