package metrics

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/prometheus/client_golang/prometheus"

	"phishguard/pkg/clickhouse"
	"phishguard/pkg/logger"
)

// AuditBuffer reports the state of the audit log batch writer
type AuditBuffer interface {
	Stats() clickhouse.BatchWriterStats
}

// CacheSizer reports how many predictions are cached
type CacheSizer interface {
	Size(ctx context.Context) (int64, error)
}

// StorageCollector reports audit log and cache state at scrape time. Any of the
// backends may be nil when not configured.
type StorageCollector struct {
	log        *logger.Logger
	clickhouse driver.Conn
	cache      CacheSizer
	writer     AuditBuffer

	predictions24h *prometheus.Desc
	cacheKeys      *prometheus.Desc
	bufferedLogs   *prometheus.Desc
	lastFlushAge   *prometheus.Desc
}

// NewStorageCollector creates a new storage collector
func NewStorageCollector(log *logger.Logger, clickhouse driver.Conn, cache CacheSizer, writer AuditBuffer) *StorageCollector {
	return &StorageCollector{
		log:        log,
		clickhouse: clickhouse,
		cache:      cache,
		writer:     writer,

		predictions24h: prometheus.NewDesc(
			"phishguard_audit_predictions_24h",
			"Predictions stored in the audit log over the last 24h by class",
			[]string{"class"}, nil,
		),
		cacheKeys: prometheus.NewDesc(
			"phishguard_cache_entries",
			"Predictions currently held in the cache",
			nil, nil,
		),
		bufferedLogs: prometheus.NewDesc(
			"phishguard_audit_buffered_records",
			"Prediction logs waiting to be flushed",
			nil, nil,
		),
		lastFlushAge: prometheus.NewDesc(
			"phishguard_audit_last_flush_age_seconds",
			"Seconds since the audit log buffer was last flushed",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *StorageCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.predictions24h
	ch <- c.cacheKeys
	ch <- c.bufferedLogs
	ch <- c.lastFlushAge
}

// Collect implements prometheus.Collector
func (c *StorageCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.collectPredictionCounts(ctx, ch)
	c.collectCacheKeys(ctx, ch)

	if c.writer != nil {
		stats := c.writer.Stats()
		ch <- prometheus.MustNewConstMetric(c.bufferedLogs, prometheus.GaugeValue, float64(stats.BufferSize))
		ch <- prometheus.MustNewConstMetric(c.lastFlushAge, prometheus.GaugeValue, stats.LastFlushAge.Seconds())
	}
}

func (c *StorageCollector) collectPredictionCounts(ctx context.Context, ch chan<- prometheus.Metric) {
	if c.clickhouse == nil {
		return
	}

	rows, err := c.clickhouse.Query(ctx, `
		SELECT toString(predicted_class) AS class, count() AS n
		FROM phishing_predictions
		WHERE timestamp > now() - INTERVAL 24 HOUR
		GROUP BY predicted_class
	`)
	if err != nil {
		c.log.Warnw("Failed to collect prediction counts", "error", err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var (
			class string
			n     uint64
		)
		if err := rows.Scan(&class, &n); err != nil {
			c.log.Warnw("Failed to scan prediction count", "error", err)
			return
		}
		ch <- prometheus.MustNewConstMetric(c.predictions24h, prometheus.GaugeValue, float64(n), class)
	}
}

func (c *StorageCollector) collectCacheKeys(ctx context.Context, ch chan<- prometheus.Metric) {
	if c.cache == nil {
		return
	}

	n, err := c.cache.Size(ctx)
	if err != nil {
		c.log.Warnw("Failed to collect cache size", "error", err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.cacheKeys, prometheus.GaugeValue, float64(n))
}

// RegisterStorageCollector registers the storage collector
func RegisterStorageCollector(collector *StorageCollector) {
	prometheus.MustRegister(collector)
}
