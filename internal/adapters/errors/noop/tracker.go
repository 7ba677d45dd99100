package noop

import (
	"context"
	"sync/atomic"

	"phishguard/pkg/errors"
)

// Tracker is used when SENTRY_DSN is empty. Reports are dropped and counted.
type Tracker struct {
	dropped atomic.Int64
}

// New creates a new no-op tracker
func New() *Tracker {
	return &Tracker{}
}

func (t *Tracker) CaptureError(ctx context.Context, err error, tags map[string]string) error {
	t.dropped.Add(1)
	return nil
}

func (t *Tracker) CaptureMessage(ctx context.Context, message string, level errors.Level, tags map[string]string) error {
	t.dropped.Add(1)
	return nil
}

func (t *Tracker) AddBreadcrumb(ctx context.Context, message string, category string, level errors.Level, data map[string]interface{}) {
}

func (t *Tracker) Flush(ctx context.Context) error {
	return nil
}

// Dropped returns the number of errors and messages discarded so far
func (t *Tracker) Dropped() int64 {
	return t.dropped.Load()
}
