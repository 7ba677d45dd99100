package noop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"phishguard/pkg/errors"
)

func TestTracker_CountsDroppedReports(t *testing.T) {
	tr := New()
	ctx := context.Background()

	assert.NoError(t, tr.CaptureError(ctx, errors.ErrInternal, nil))
	assert.NoError(t, tr.CaptureMessage(ctx, "model degraded", errors.LevelWarning, nil))
	tr.AddBreadcrumb(ctx, "predict", "http", errors.LevelInfo, nil)
	assert.NoError(t, tr.Flush(ctx))

	assert.Equal(t, int64(2), tr.Dropped())
}

func TestTracker_ImplementsTracker(t *testing.T) {
	var _ errors.Tracker = New()
}
