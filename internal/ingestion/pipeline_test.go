package ingestion

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"phishguard/internal/domain/phishing"
	"phishguard/pkg/errors"
	"phishguard/pkg/logger"
)

type mockEventPublisher struct {
	mock.Mock
}

func (m *mockEventPublisher) PublishThreatEvent(ctx context.Context, event *phishing.ThreatEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// datasetCSV renders n rows with alternating labels. Row ids listed in broken
// get a non-numeric NumDots.
func datasetCSV(n int, broken ...int) string {
	cols := []string{phishing.ColumnID}
	for _, dc := range phishing.ServingColumns {
		cols = append(cols, dc.Column)
	}
	cols = append(cols, "NumDash", phishing.ColumnLabel)

	bad := make(map[int]bool)
	for _, b := range broken {
		bad[b] = true
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(cols, ",") + "\n")
	for i := 1; i <= n; i++ {
		fields := make([]string, 0, len(cols))
		for _, col := range cols {
			switch {
			case col == phishing.ColumnID:
				fields = append(fields, strconv.Itoa(i))
			case col == phishing.ColumnLabel:
				fields = append(fields, strconv.Itoa(i%2))
			case col == "NumDots" && bad[i]:
				fields = append(fields, "n/a")
			default:
				fields = append(fields, "1")
			}
		}
		sb.WriteString(strings.Join(fields, ",") + "\n")
	}
	return sb.String()
}

func newTestPipeline(t *testing.T, batchSize int, pub phishing.EventPublisher) (*Pipeline, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "output")
	tr := NewTransformer(TransformerConfig{Seed: 3, Now: anchor})
	return NewPipeline(PipelineConfig{OutputDir: dir, BatchSize: batchSize}, tr, pub, logger.NewNop()), dir
}

func TestPipeline_WritesBatches(t *testing.T) {
	p, dir := newTestPipeline(t, 2, nil)

	summary, err := p.Process(context.Background(), strings.NewReader(datasetCSV(5)))
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Rows)
	assert.Equal(t, 5, summary.Events)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, 3, summary.Batches)
	assert.Equal(t, 3, summary.Phishing)
	assert.Equal(t, 2, summary.Legitimate)

	require.Equal(t, []string{
		filepath.Join(dir, "events_batch_0000.json"),
		filepath.Join(dir, "events_batch_0001.json"),
		filepath.Join(dir, "events_batch_0002.json"),
	}, summary.Files)

	data, err := os.ReadFile(summary.Files[2])
	require.NoError(t, err)

	var events []phishing.ThreatEvent
	require.NoError(t, json.Unmarshal(data, &events))
	require.Len(t, events, 1)
	assert.Equal(t, "evt_5", events[0].EventID)
	assert.Equal(t, 0.0, events[0].Metadata["has_https"])
}

func TestPipeline_SkipsBadRows(t *testing.T) {
	p, _ := newTestPipeline(t, 10, nil)

	summary, err := p.Process(context.Background(), strings.NewReader(datasetCSV(4, 2)))
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Rows)
	assert.Equal(t, 3, summary.Events)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Batches)
}

func TestPipeline_PublishesEvents(t *testing.T) {
	pub := new(mockEventPublisher)
	pub.On("PublishThreatEvent", mock.Anything, mock.MatchedBy(func(e *phishing.ThreatEvent) bool {
		return e.EventID == "evt_2"
	})).Return(errors.New("broker down")).Once()
	pub.On("PublishThreatEvent", mock.Anything, mock.Anything).Return(nil)

	p, _ := newTestPipeline(t, 10, pub)

	summary, err := p.Process(context.Background(), strings.NewReader(datasetCSV(3)))
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Events)
	assert.Equal(t, 1, summary.PublishFailures)
	pub.AssertNumberOfCalls(t, "PublishThreatEvent", 3)
}

func TestPipeline_EmptyDataset(t *testing.T) {
	p, dir := newTestPipeline(t, 10, nil)

	summary, err := p.Process(context.Background(), strings.NewReader(datasetCSV(0)))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Batches)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPipeline_Cancelled(t *testing.T) {
	p, _ := newTestPipeline(t, 10, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Process(ctx, strings.NewReader(datasetCSV(3)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBatchFileName(t *testing.T) {
	assert.Equal(t, "events_batch_0000.json", BatchFileName(0))
	assert.Equal(t, "events_batch_0012.json", BatchFileName(12))
}
