package prediction

import (
	"context"
	"time"

	"github.com/google/uuid"

	"phishguard/internal/domain/phishing"
	"phishguard/internal/metrics"
	"phishguard/pkg/errors"
	"phishguard/pkg/logger"
)

// Deps are the optional sinks around the engine. Nil members are skipped.
type Deps struct {
	Cache     phishing.PredictionCache
	CacheTTL  time.Duration
	AuditLog  phishing.PredictionLogRepository
	Publisher phishing.PredictionPublisher
}

// Service serves predictions from an Engine and fans results out to the cache,
// the audit log and the event stream. Sink failures are logged and counted but
// never change the returned prediction.
type Service struct {
	engine *Engine
	deps   Deps
	log    *logger.Logger
}

// NewService creates a new prediction service
func NewService(engine *Engine, deps Deps, log *logger.Logger) *Service {
	return &Service{
		engine: engine,
		deps:   deps,
		log:    log.With("component", "prediction_service"),
	}
}

// Engine returns the underlying engine
func (s *Service) Engine() *Engine {
	return s.engine
}

// Predict classifies record
func (s *Service) Predict(ctx context.Context, record phishing.FeatureRecord) (*phishing.Prediction, error) {
	if !s.engine.Loaded() {
		metrics.RecordPrediction(metrics.OutcomeUnavailable, 0, 0)
		return nil, s.engine.unavailable()
	}

	start := time.Now()
	vec := phishing.Assemble(record, s.engine.Schema())

	if p, ok := s.fromCache(ctx, vec); ok {
		latency := time.Since(start)
		metrics.RecordPrediction(metrics.OutcomeSuccess, p.PredictedClass, latency)
		s.record(ctx, vec, p, true, latency)
		return p, nil
	}

	p, err := s.engine.PredictOne(vec)
	latency := time.Since(start)
	if err != nil {
		metrics.RecordPrediction(metrics.OutcomeError, 0, latency)
		return nil, err
	}
	metrics.RecordPrediction(metrics.OutcomeSuccess, p.PredictedClass, latency)

	if s.deps.Cache != nil {
		if err := s.deps.Cache.Set(ctx, vec, p, s.deps.CacheTTL); err != nil {
			metrics.RecordSinkFailure(metrics.SinkCache)
			s.log.Warnw("Failed to cache prediction", "error", err)
		}
	}

	s.record(ctx, vec, p, false, latency)
	return p, nil
}

func (s *Service) fromCache(ctx context.Context, vec phishing.FeatureVector) (*phishing.Prediction, bool) {
	if s.deps.Cache == nil {
		return nil, false
	}

	p, hit, err := s.deps.Cache.Get(ctx, vec)
	switch {
	case err != nil:
		metrics.RecordCacheLookup(metrics.CacheError)
		s.log.Warnw("Prediction cache lookup failed", "error", err)
		return nil, false
	case !hit:
		metrics.RecordCacheLookup(metrics.CacheMiss)
		return nil, false
	}
	metrics.RecordCacheLookup(metrics.CacheHit)
	return p, true
}

func (s *Service) record(ctx context.Context, vec phishing.FeatureVector, p *phishing.Prediction, cached bool, latency time.Duration) {
	if s.deps.AuditLog == nil && s.deps.Publisher == nil {
		return
	}

	entry := phishing.NewPredictionLog(uuid.NewString(), errors.RequestID(ctx), s.engine.Version(), vec, p, cached, latency)

	if s.deps.AuditLog != nil {
		if err := s.deps.AuditLog.Store(ctx, entry); err != nil {
			metrics.RecordSinkFailure(metrics.SinkAuditLog)
			s.log.Warnw("Failed to store prediction log", "prediction_id", entry.PredictionID, "error", err)
		}
	}

	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.PublishPrediction(ctx, entry); err != nil {
			metrics.RecordSinkFailure(metrics.SinkPublisher)
			s.log.Warnw("Failed to publish prediction", "prediction_id", entry.PredictionID, "error", err)
		}
	}
}
