package clickhouse

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"phishguard/internal/domain/phishing"
	"phishguard/internal/metrics"
	"phishguard/pkg/clickhouse"
	"phishguard/pkg/errors"
)

const predictionsTable = "phishing_predictions"

// CreatePredictionsTable is the DDL of the audit log table
const CreatePredictionsTable = `
	CREATE TABLE IF NOT EXISTS phishing_predictions (
		prediction_id          String,
		request_id             String,
		timestamp              DateTime64(3, 'UTC'),
		model_version          LowCardinality(String),
		features               Array(Float64),
		predicted_class        UInt8,
		phishing_probability   Float64,
		legitimate_probability Float64,
		confidence             Float64,
		cached                 Bool,
		latency_us             Int64
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (timestamp, prediction_id)
	TTL toDateTime(timestamp) + INTERVAL 90 DAY
`

// PredictionLogRepository implements phishing.PredictionLogRepository for ClickHouse.
// Rows are buffered and inserted in batches.
type PredictionLogRepository struct {
	conn        driver.Conn
	batchWriter *clickhouse.BatchWriter[*phishing.PredictionLog]
}

// PredictionLogConfig tunes batching
type PredictionLogConfig struct {
	FlushSize     int
	FlushInterval time.Duration
}

// NewPredictionLogRepository creates a new prediction log repository with batch writer
func NewPredictionLogRepository(conn driver.Conn, cfg PredictionLogConfig) *PredictionLogRepository {
	repo := &PredictionLogRepository{conn: conn}

	repo.batchWriter = clickhouse.NewBatchWriter(clickhouse.BatchWriterConfig[*phishing.PredictionLog]{
		FlushFunc:    repo.flushBatch,
		OnFlush:      observeFlush,
		TableName:    predictionsTable,
		MaxBatchSize: cfg.FlushSize,
		MaxAge:       cfg.FlushInterval,
	})

	return repo
}

func observeFlush(table string, size int, d time.Duration, err error) {
	metrics.RecordDBQuery("clickhouse", "insert_"+table, d, err)
}

// Migrate creates the table if it does not exist
func (r *PredictionLogRepository) Migrate(ctx context.Context) error {
	return errors.Wrap(r.conn.Exec(ctx, CreatePredictionsTable), "failed to create phishing_predictions")
}

// Start begins the background flush loop
func (r *PredictionLogRepository) Start(ctx context.Context) {
	r.batchWriter.Start(ctx)
}

// Stop flushes buffered rows and stops the flush loop
func (r *PredictionLogRepository) Stop(ctx context.Context) error {
	return r.batchWriter.Stop(ctx)
}

// Stats reports rows waiting for the next flush and the time since the last one
func (r *PredictionLogRepository) Stats() clickhouse.BatchWriterStats {
	return r.batchWriter.GetStats()
}

// Store buffers entry; it is written on the next flush
func (r *PredictionLogRepository) Store(ctx context.Context, entry *phishing.PredictionLog) error {
	if entry == nil {
		return errors.NewValidationError("entry", "nil prediction log")
	}
	return r.batchWriter.Add(ctx, entry)
}

func (r *PredictionLogRepository) flushBatch(ctx context.Context, batch []*phishing.PredictionLog) error {
	if len(batch) == 0 {
		return nil
	}

	stmt, err := r.conn.PrepareBatch(ctx, "INSERT INTO "+predictionsTable)
	if err != nil {
		return errors.Wrap(err, "failed to prepare batch")
	}
	defer stmt.Close()

	for _, entry := range batch {
		if err := stmt.AppendStruct(entry); err != nil {
			return errors.Wrapf(err, "failed to append prediction %s", entry.PredictionID)
		}
	}

	if err := stmt.Send(); err != nil {
		return errors.Wrapf(err, "failed to send batch of %d predictions", len(batch))
	}
	return nil
}
