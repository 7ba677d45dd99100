package ingestion

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"phishguard/internal/domain/phishing"
	"phishguard/internal/metrics"
	"phishguard/pkg/errors"
	"phishguard/pkg/logger"
)

// PipelineConfig configures dataset processing
type PipelineConfig struct {
	OutputDir string
	BatchSize int
}

// Summary reports the outcome of one processing run
type Summary struct {
	Rows            int
	Events          int
	Skipped         int
	Batches         int
	Files           []string
	Phishing        int
	Legitimate      int
	PublishFailures int
}

// Pipeline reads the phishing dataset, transforms each row into a threat event
// and writes the events as numbered JSON batch files.
type Pipeline struct {
	cfg       PipelineConfig
	transform *Transformer
	publisher phishing.EventPublisher
	log       *logger.Logger
}

// NewPipeline creates a new pipeline. publisher may be nil.
func NewPipeline(cfg PipelineConfig, transform *Transformer, publisher phishing.EventPublisher, log *logger.Logger) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	return &Pipeline{
		cfg:       cfg,
		transform: transform,
		publisher: publisher,
		log:       log,
	}
}

// ProcessFile runs the pipeline over the CSV at path
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open dataset")
	}
	defer f.Close()

	return p.Process(ctx, f)
}

// Process runs the pipeline over CSV data. Rows that cannot be transformed are
// skipped and counted; I/O failures abort the run.
func (p *Pipeline) Process(ctx context.Context, in io.Reader) (*Summary, error) {
	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create output directory")
	}

	r := csv.NewReader(in)
	header, err := r.Read()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read dataset header")
	}

	summary := &Summary{}
	batch := make([]*phishing.ThreatEvent, 0, p.cfg.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		name, err := p.writeBatch(summary.Batches, batch)
		if err != nil {
			return err
		}
		summary.Batches++
		summary.Files = append(summary.Files, name)
		p.log.Infow("Wrote event batch", "file", name, "events", len(batch))
		batch = batch[:0]
		return nil
	}

	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		record, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				summary.Skipped++
				p.log.Warnw("Skipping malformed row", "line", line, "error", err)
				continue
			}
			return summary, errors.Wrapf(err, "failed to read line %d", line)
		}
		summary.Rows++

		row := make(Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}

		event, err := p.transform.Transform(row)
		if err != nil {
			summary.Skipped++
			p.log.Warnw("Skipping row", "line", line, "error", err)
			continue
		}

		summary.Events++
		if event.IsPhishing == 1 {
			summary.Phishing++
		} else {
			summary.Legitimate++
		}
		metrics.RecordIngestEvent(event.EventType)

		if p.publisher != nil {
			if err := p.publisher.PublishThreatEvent(ctx, event); err != nil {
				summary.PublishFailures++
				p.log.Warnw("Failed to publish threat event", "event_id", event.EventID, "error", err)
			}
		}

		batch = append(batch, event)
		if len(batch) >= p.cfg.BatchSize {
			if err := flush(); err != nil {
				return summary, err
			}
		}
	}

	if err := flush(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (p *Pipeline) writeBatch(n int, events []*phishing.ThreatEvent) (string, error) {
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to encode event batch")
	}

	name := filepath.Join(p.cfg.OutputDir, BatchFileName(n))
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "failed to write %s", name)
	}
	return name, nil
}

// BatchFileName names the n-th (zero-based) batch file
func BatchFileName(n int) string {
	return fmt.Sprintf("events_batch_%04d.json", n)
}
