package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"

	"phishguard/internal/adapters/config"
	"phishguard/internal/adapters/kafka"
	"phishguard/internal/adapters/s3"
	"phishguard/internal/domain/phishing"
	"phishguard/internal/events"
	"phishguard/internal/ingestion"
	"phishguard/internal/metrics"
	"phishguard/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Parse flags; defaults come from the environment
	input := flag.String("input", cfg.Ingest.InputCSV, "Path to the phishing dataset CSV")
	output := flag.String("output", cfg.Ingest.OutputDir, "Directory for event batch files")
	batchSize := flag.Int("batch-size", cfg.Ingest.BatchSize, "Events per batch file")
	upload := flag.Bool("upload", false, "Upload batch files to S3 after processing")
	uploadOnly := flag.Bool("upload-only", false, "Skip processing and upload existing batch files")
	publish := flag.Bool("publish", false, "Stream events to Kafka while processing")
	flag.Parse()

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !*uploadOnly {
		if err := process(ctx, cfg, *input, *output, *batchSize, *publish, log); err != nil {
			log.Errorf("Processing failed: %v", err)
			os.Exit(1)
		}
	}

	if *upload || *uploadOnly {
		if err := uploadBatches(ctx, cfg, *output, log); err != nil {
			log.Errorf("Upload failed: %v", err)
			os.Exit(1)
		}
	}
}

func process(ctx context.Context, cfg *config.Config, input, output string, batchSize int, publish bool, log *logger.Logger) error {
	log.Infow("Processing dataset", "input", input, "output", output, "batch_size", batchSize)

	var publisher phishing.EventPublisher
	if publish {
		if !cfg.Kafka.Enabled() {
			log.Warn("KAFKA_BROKERS not set, events will not be streamed")
		} else {
			producer := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})
			defer producer.Close()
			publisher = events.NewPublisher(producer, events.Topics{
				Predictions:  cfg.Kafka.PredictionsTopic,
				ThreatEvents: cfg.Kafka.EventsTopic,
			}, "ingestion", log)
		}
	}

	transformer := ingestion.NewTransformer(ingestion.TransformerConfig{
		Seed:     cfg.Ingest.Seed,
		UserPool: cfg.Ingest.UserPool,
		SpanDays: cfg.Ingest.SpanDays,
	})
	pipeline := ingestion.NewPipeline(ingestion.PipelineConfig{
		OutputDir: output,
		BatchSize: batchSize,
	}, transformer, publisher, log)

	summary, err := pipeline.ProcessFile(ctx, input)
	if err != nil {
		return err
	}

	log.Infof("✓ Processed %s rows into %s events (%s phishing, %s legitimate) in %d batch files",
		humanize.Comma(int64(summary.Rows)),
		humanize.Comma(int64(summary.Events)),
		humanize.Comma(int64(summary.Phishing)),
		humanize.Comma(int64(summary.Legitimate)),
		summary.Batches,
	)
	if summary.Skipped > 0 {
		log.Warnf("Skipped %s rows", humanize.Comma(int64(summary.Skipped)))
	}
	if summary.PublishFailures > 0 {
		log.Warnf("%s events failed to publish", humanize.Comma(int64(summary.PublishFailures)))
	}
	return nil
}

func uploadBatches(ctx context.Context, cfg *config.Config, dir string, log *logger.Logger) error {
	client, err := s3.NewClient(ctx, cfg.S3)
	if err != nil {
		return err
	}

	uploader := ingestion.NewUploader(client, ingestion.UploaderConfig{
		Bucket:     cfg.S3.EventsBucket,
		Prefix:     cfg.S3.EventsPrefix,
		MaxRetries: cfg.S3.MaxRetries,
	}, log)

	summary, err := uploader.UploadDir(ctx, dir)
	if err != nil {
		return err
	}

	log.Infof("✓ Uploaded %d/%d batch files to s3://%s/%s", summary.Uploaded, summary.Total, cfg.S3.EventsBucket, cfg.S3.EventsPrefix)
	if len(summary.Failed) > 0 {
		log.Warnw("Some batch files were not uploaded", "files", summary.Failed)
	}
	return nil
}
