package health

import (
	"context"
	"net/http"
	"sort"
	"time"

	"phishguard/internal/api/respond"
	"phishguard/pkg/logger"
)

// ModelState reports whether a classifier is loaded
type ModelState interface {
	Loaded() bool
}

// Pinger is an optional backing service (cache, audit log store)
type Pinger interface {
	Health(ctx context.Context) error
}

// Handler provides health check endpoints
type Handler struct {
	log         *logger.Logger
	model       ModelState
	deps        map[string]Pinger
	startTime   time.Time
	serviceName string
	version     string
}

// New creates a new health check handler. deps holds only the configured services.
func New(log *logger.Logger, model ModelState, deps map[string]Pinger, serviceName, version string) *Handler {
	return &Handler{
		log:         log.With("component", "health"),
		model:       model,
		deps:        deps,
		startTime:   time.Now(),
		serviceName: serviceName,
		version:     version,
	}
}

// HealthStatus is the /health payload
type HealthStatus struct {
	Status      string                     `json:"status"`
	ModelLoaded bool                       `json:"model_loaded"`
	Service     string                     `json:"service"`
	Version     string                     `json:"version"`
	Uptime      string                     `json:"uptime"`
	Timestamp   string                     `json:"timestamp"`
	Checks      map[string]ComponentHealth `json:"checks,omitempty"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// HandleLiveness returns 200 OK if service is running
// Used by Kubernetes liveness probe
func (h *Handler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HandleHealth always answers 200 and says whether a model is loaded. Dependency
// checks are informational; a prediction never depends on them.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	respond.JSON(w, http.StatusOK, h.status(ctx))
}

// HandleReadiness answers 503 until a model is loaded and every configured
// dependency responds. Used by Kubernetes readiness probe
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.status(ctx)
	ready := status.ModelLoaded
	for _, c := range status.Checks {
		if c.Status != "healthy" {
			ready = false
		}
	}

	code := http.StatusOK
	status.Status = "ready"
	if !ready {
		status.Status = "unready"
		code = http.StatusServiceUnavailable
		h.log.Warnw("Readiness check failed", "model_loaded", status.ModelLoaded, "checks", status.Checks)
	}
	respond.JSON(w, code, status)
}

func (h *Handler) status(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:      "healthy",
		ModelLoaded: h.model.Loaded(),
		Service:     h.serviceName,
		Version:     h.version,
		Uptime:      time.Since(h.startTime).Round(time.Second).String(),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	if len(h.deps) == 0 {
		return status
	}

	names := make([]string, 0, len(h.deps))
	for name := range h.deps {
		names = append(names, name)
	}
	sort.Strings(names)

	status.Checks = make(map[string]ComponentHealth, len(names))
	for _, name := range names {
		status.Checks[name] = h.check(ctx, name, h.deps[name])
	}
	return status
}

func (h *Handler) check(ctx context.Context, name string, p Pinger) ComponentHealth {
	start := time.Now()
	err := p.Health(ctx)
	elapsed := time.Since(start)

	if err != nil {
		h.log.Warnw("Dependency health check failed", "dependency", name, "error", err, "elapsed", elapsed)
		return ComponentHealth{
			Status:       "unhealthy",
			ResponseTime: elapsed.String(),
			Error:        err.Error(),
		}
	}

	return ComponentHealth{
		Status:       "healthy",
		ResponseTime: elapsed.String(),
	}
}
