package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"golang.org/x/time/rate"

	"phishguard/internal/adapters/clickhouse"
	"phishguard/internal/adapters/config"
	"phishguard/internal/adapters/errors/noop"
	"phishguard/internal/adapters/errors/sentry"
	"phishguard/internal/adapters/kafka"
	"phishguard/internal/adapters/redis"
	"phishguard/internal/adapters/s3"
	"phishguard/internal/api"
	"phishguard/internal/api/health"
	"phishguard/internal/api/insights"
	predictionapi "phishguard/internal/api/prediction"
	"phishguard/internal/events"
	"phishguard/internal/metrics"
	chrepo "phishguard/internal/repository/clickhouse"
	redisrepo "phishguard/internal/repository/redis"
	"phishguard/internal/services/prediction"
	"phishguard/pkg/errors"
	"phishguard/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s %s in %s mode", cfg.App.Name, cfg.App.Version, cfg.App.Env)

	// Initialize error tracker
	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Model
	engine, err := loadModel(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Failed to load model: %v", err)
	}

	infra := initInfrastructure(ctx, cfg, engine, log)

	service := prediction.NewService(engine, infra.deps, log)

	var limiter *rate.Limiter
	if cfg.RateLimit.Enabled() {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst)
		log.Infof("Rate limiting /predict at %.1f req/s (burst %d)", cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}

	server := api.NewServer(api.ServerConfig{
		Port:           cfg.HTTP.Port,
		ServiceName:    cfg.App.Name,
		Version:        cfg.App.Version,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		PredictLimiter: limiter,
	}, api.Handlers{
		Health: health.New(log, engine, infra.pingers, cfg.App.Name, cfg.App.Version),
		Prediction: predictionapi.New(service, engine, predictionapi.Options{
			RequireAllFields:    cfg.Predict.RequireAllFields,
			RejectUnknownFields: cfg.Predict.RejectUnknownFields,
			InfoTopN:            cfg.Model.InfoTopN,
			MaxBodyBytes:        cfg.HTTP.MaxBodyBytes,
		}, log),
		Insights: insights.New(),
	}, log)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	log.Info("System initialized successfully")

	waitForShutdown(serverErr, log)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP shutdown: %v", err)
	}
	infra.close(shutdownCtx, log)
	engine.Close()
	cancel()

	// Flush error tracker
	if err := errorTracker.Flush(shutdownCtx); err != nil {
		log.Warnf("Failed to flush error tracker: %v", err)
	}
	if t, ok := errorTracker.(*noop.Tracker); ok && t.Dropped() > 0 {
		log.Infof("%d errors were not reported (error tracking disabled)", t.Dropped())
	}

	log.Info("Shutdown complete")
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled() {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment, cfg.App.Version)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// loadModel loads the classifier, pulling it from object storage when MODEL_S3_KEY is set
func loadModel(ctx context.Context, cfg *config.Config, log *logger.Logger) (*prediction.Engine, error) {
	var fetcher prediction.ArtifactFetcher
	if cfg.Model.S3Key != "" {
		client, err := s3.NewClient(ctx, cfg.S3)
		if err != nil {
			log.Warnf("Failed to initialize S3 client: %v", err)
		} else {
			fetcher = client
		}
	}

	return prediction.LoadEngine(ctx, prediction.LoaderConfig{
		Model:  cfg.Model,
		Bucket: cfg.S3.ModelBucket,
	}, fetcher, log)
}

// infrastructure holds the optional backends around the prediction service
type infrastructure struct {
	deps     prediction.Deps
	pingers  map[string]health.Pinger
	redis    *redis.Client
	ch       *clickhouse.Client
	auditLog *chrepo.PredictionLogRepository
	producer *kafka.Producer
}

// initInfrastructure connects whatever backends are configured. A backend that
// fails to connect is logged and left out; prediction serving never depends on it.
func initInfrastructure(ctx context.Context, cfg *config.Config, engine *prediction.Engine, log *logger.Logger) *infrastructure {
	infra := &infrastructure{pingers: make(map[string]health.Pinger)}

	var (
		cache  metrics.CacheSizer
		chConn driver.Conn
		buffer metrics.AuditBuffer
	)

	if cfg.Redis.Enabled() {
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Warnf("Prediction cache disabled: %v", err)
		} else {
			infra.redis = client
			infra.pingers["redis"] = client
			switch {
			case !engine.Loaded():
			case engine.Version() == "unknown":
				log.Warn("Prediction cache disabled: model version unknown")
			default:
				predictionCache := redisrepo.NewPredictionCache(client, engine.Version())
				infra.deps.Cache = predictionCache
				infra.deps.CacheTTL = cfg.Redis.CacheTTL
				cache = predictionCache
				log.Infof("Prediction cache enabled (%s, ttl %s)", cfg.Redis.Addr(), cfg.Redis.CacheTTL)
			}
		}
	}

	if cfg.ClickHouse.Enabled() {
		client, err := clickhouse.NewClient(ctx, cfg.ClickHouse)
		if err != nil {
			log.Warnf("Prediction audit log disabled: %v", err)
		} else {
			repo := chrepo.NewPredictionLogRepository(client.Conn(), chrepo.PredictionLogConfig{
				FlushSize:     cfg.ClickHouse.FlushSize,
				FlushInterval: cfg.ClickHouse.FlushInterval,
			})
			if err := repo.Migrate(ctx); err != nil {
				log.Warnf("Failed to migrate prediction audit log: %v", err)
			}
			repo.Start(ctx)

			infra.ch = client
			infra.auditLog = repo
			infra.pingers["clickhouse"] = client
			infra.deps.AuditLog = repo
			chConn = client.Conn()
			buffer = repo
			log.Infof("Prediction audit log enabled (%s/%s)", cfg.ClickHouse.Host, cfg.ClickHouse.Database)
		}
	}

	if cfg.Kafka.Enabled() {
		infra.producer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers: cfg.Kafka.Brokers,
			Async:   true,
		})
		infra.deps.Publisher = events.NewPublisher(infra.producer, events.Topics{
			Predictions:  cfg.Kafka.PredictionsTopic,
			ThreatEvents: cfg.Kafka.EventsTopic,
		}, cfg.App.Name, log)
		log.Infof("Prediction events enabled (topic %s)", cfg.Kafka.PredictionsTopic)
	}

	if cache != nil || chConn != nil {
		metrics.RegisterStorageCollector(metrics.NewStorageCollector(log, chConn, cache, buffer))
	}

	return infra
}

// close stops the backends in dependency order: buffered writes flush before
// their connections go away.
func (i *infrastructure) close(ctx context.Context, log *logger.Logger) {
	if i.auditLog != nil {
		if err := i.auditLog.Stop(ctx); err != nil {
			log.Warnf("Failed to flush prediction audit log: %v", err)
		}
	}
	if i.producer != nil {
		if err := i.producer.Close(); err != nil {
			log.Warnf("Failed to close Kafka producer: %v", err)
		}
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			log.Warnf("Failed to close Redis: %v", err)
		}
	}
	if i.ch != nil {
		if err := i.ch.Close(); err != nil {
			log.Warnf("Failed to close ClickHouse: %v", err)
		}
	}
}

// waitForShutdown blocks until a shutdown signal arrives or the server fails
func waitForShutdown(serverErr <-chan error, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Infof("Received %s, shutting down...", sig)
	case err := <-serverErr:
		if err != nil {
			log.Errorf("HTTP server error: %v", err)
		}
	}
}
