package clickhouse

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flushRecorder struct {
	mu      sync.Mutex
	batches [][]string
}

func (r *flushRecorder) flush(ctx context.Context, batch []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, batch)
	return nil
}

func (r *flushRecorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.batches {
		n += len(b)
	}
	return n
}

func (r *flushRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func TestBatchWriter_FlushOnMaxSize(t *testing.T) {
	rec := &flushRecorder{}
	bw := NewBatchWriter(BatchWriterConfig[string]{
		FlushFunc:    rec.flush,
		TableName:    "phishing_predictions",
		MaxBatchSize: 3,
		MaxAge:       10 * time.Second,
	})

	ctx := context.Background()
	require.NoError(t, bw.Add(ctx, "p1"))
	require.NoError(t, bw.Add(ctx, "p2"))
	assert.Equal(t, 2, bw.BufferSize())
	require.NoError(t, bw.Add(ctx, "p3"))

	require.Equal(t, 1, rec.count())
	assert.Equal(t, []string{"p1", "p2", "p3"}, rec.batches[0])
	assert.Equal(t, 0, bw.BufferSize())
}

func TestBatchWriter_FlushOnTimer(t *testing.T) {
	rec := &flushRecorder{}
	bw := NewBatchWriter(BatchWriterConfig[string]{
		FlushFunc:    rec.flush,
		TableName:    "phishing_predictions",
		MaxBatchSize: 100,
		MaxAge:       50 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bw.Start(ctx)

	require.NoError(t, bw.Add(ctx, "p1"))
	require.NoError(t, bw.Add(ctx, "p2"))

	assert.Eventually(t, func() bool { return rec.total() == 2 }, 2*time.Second, 10*time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, bw.Stop(stopCtx))
}

func TestBatchWriter_StopFlushesRemainder(t *testing.T) {
	rec := &flushRecorder{}
	bw := NewBatchWriter(BatchWriterConfig[string]{
		FlushFunc:    rec.flush,
		MaxBatchSize: 100,
		MaxAge:       10 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bw.Start(ctx)

	for _, id := range []string{"p1", "p2", "p3"} {
		require.NoError(t, bw.Add(ctx, id))
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, bw.Stop(stopCtx))

	assert.Equal(t, 3, rec.total())
	assert.False(t, bw.GetStats().Running)
	require.NoError(t, bw.Stop(stopCtx), "second stop is a no-op")
}

func TestBatchWriter_ConcurrentAdds(t *testing.T) {
	var mu sync.Mutex
	total := 0
	bw := NewBatchWriter(BatchWriterConfig[int]{
		FlushFunc: func(ctx context.Context, batch []int) error {
			mu.Lock()
			total += len(batch)
			mu.Unlock()
			return nil
		},
		MaxBatchSize: 10,
		MaxAge:       time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bw.Start(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_ = bw.Add(ctx, idx)
		}(i)
	}
	wg.Wait()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, bw.Stop(stopCtx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 50, total)
}

func TestBatchWriter_ObserverSeesFailures(t *testing.T) {
	boom := errors.New("clickhouse down")
	var observed []error

	bw := NewBatchWriter(BatchWriterConfig[string]{
		FlushFunc: func(ctx context.Context, batch []string) error { return boom },
		OnFlush: func(table string, size int, d time.Duration, err error) {
			assert.Equal(t, "phishing_predictions", table)
			assert.Equal(t, 1, size)
			observed = append(observed, err)
		},
		TableName:    "phishing_predictions",
		MaxBatchSize: 1,
	})

	err := bw.Add(context.Background(), "p1")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []error{boom}, observed)
	assert.Equal(t, 0, bw.BufferSize(), "failed batch is dropped")
}

func TestBatchWriter_StatsTrackLastFlush(t *testing.T) {
	rec := &flushRecorder{}
	bw := NewBatchWriter(BatchWriterConfig[string]{
		FlushFunc:    rec.flush,
		TableName:    "phishing_predictions",
		MaxBatchSize: 10,
		MaxAge:       10 * time.Second,
	})

	ctx := context.Background()
	require.NoError(t, bw.Add(ctx, "p1"))
	time.Sleep(20 * time.Millisecond)

	before := bw.GetStats()
	assert.Equal(t, 1, before.BufferSize)
	assert.GreaterOrEqual(t, before.LastFlushAge, 20*time.Millisecond)

	require.NoError(t, bw.Flush(ctx))
	after := bw.GetStats()
	assert.Equal(t, 0, after.BufferSize)
	assert.Less(t, after.LastFlushAge, before.LastFlushAge)
}
