package ingestion

import (
	"context"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"

	"phishguard/internal/metrics"
	"phishguard/pkg/errors"
	"phishguard/pkg/logger"
)

// ObjectStore uploads local files to a bucket
type ObjectStore interface {
	UploadFile(ctx context.Context, bucket, key, path, contentType string) error
}

// UploaderConfig configures batch uploads
type UploaderConfig struct {
	Bucket     string
	Prefix     string
	MaxRetries uint64
	// MaxInterval caps the wait between attempts; zero keeps the backoff default
	MaxInterval time.Duration
}

// UploadSummary reports the outcome of one upload run
type UploadSummary struct {
	Total    int
	Uploaded int
	Failed   []string
}

// Uploader pushes event batch files to object storage under a date partition
type Uploader struct {
	store ObjectStore
	cfg   UploaderConfig
	now   func() time.Time
	log   *logger.Logger
}

// NewUploader creates a new uploader
func NewUploader(store ObjectStore, cfg UploaderConfig, log *logger.Logger) *Uploader {
	if cfg.Prefix == "" {
		cfg.Prefix = "raw"
	}
	return &Uploader{
		store: store,
		cfg:   cfg,
		now:   time.Now,
		log:   log,
	}
}

// Key returns the object key for a local file uploaded at t
func (u *Uploader) Key(file string, t time.Time) string {
	return path.Join(u.cfg.Prefix, t.UTC().Format("2006-01-02"), filepath.Base(file))
}

// UploadDir uploads every *.json file in dir. A file that still fails after
// retries is recorded in the summary and the run moves on.
func (u *Uploader) UploadDir(ctx context.Context, dir string) (*UploadSummary, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to list batch files")
	}
	sort.Strings(files)

	summary := &UploadSummary{Total: len(files)}
	if len(files) == 0 {
		u.log.Warnw("No batch files to upload", "dir", dir)
		return summary, nil
	}

	day := u.now()
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		key := u.Key(file, day)
		err := u.uploadWithRetry(ctx, file, key)
		metrics.RecordObjectUpload(u.cfg.Bucket, err)
		if err != nil {
			summary.Failed = append(summary.Failed, file)
			u.log.Errorw("Failed to upload batch file", "file", file, "key", key, "error", err)
			continue
		}
		summary.Uploaded++
		u.log.Infow("Uploaded batch file", "bucket", u.cfg.Bucket, "key", key)
	}

	return summary, nil
}

func (u *Uploader) uploadWithRetry(ctx context.Context, file, key string) error {
	operation := func() error {
		return u.store.UploadFile(ctx, u.cfg.Bucket, key, file, "application/json")
	}

	strategy := backoff.NewExponentialBackOff()
	if u.cfg.MaxInterval > 0 {
		strategy.InitialInterval = u.cfg.MaxInterval / 4
		strategy.MaxInterval = u.cfg.MaxInterval
	}

	notify := func(err error, wait time.Duration) {
		u.log.Warnw("Upload failed, retrying", "key", key, "wait", wait, "error", err)
	}

	return backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(strategy, u.cfg.MaxRetries), ctx), notify)
}
