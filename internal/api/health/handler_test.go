package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phishguard/pkg/errors"
	"phishguard/pkg/logger"
)

type modelState bool

func (m modelState) Loaded() bool { return bool(m) }

type pinger struct{ err error }

func (p pinger) Health(context.Context) error { return p.err }

func serve(t *testing.T, h http.HandlerFunc) (*httptest.ResponseRecorder, HealthStatus) {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	return rec, status
}

func TestHandleReadiness(t *testing.T) {
	tests := []struct {
		name   string
		loaded bool
		deps   map[string]Pinger
		code   int
		status string
	}{
		{"loaded without deps", true, nil, http.StatusOK, "ready"},
		{"model missing", false, nil, http.StatusServiceUnavailable, "unready"},
		{"deps healthy", true, map[string]Pinger{"redis": pinger{}, "clickhouse": pinger{}}, http.StatusOK, "ready"},
		{"dep down", true, map[string]Pinger{"redis": pinger{err: errors.ErrUnavailable}}, http.StatusServiceUnavailable, "unready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(logger.NewNop(), modelState(tt.loaded), tt.deps, "phishguard", "1.0.0")
			rec, status := serve(t, h.HandleReadiness)

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.status, status.Status)
			assert.Equal(t, tt.loaded, status.ModelLoaded)
		})
	}
}

func TestHandleHealth_AlwaysOK(t *testing.T) {
	h := New(logger.NewNop(), modelState(false), map[string]Pinger{"redis": pinger{err: errors.New("connection refused")}}, "phishguard", "1.0.0")

	rec, status := serve(t, h.HandleHealth)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", status.Status)
	assert.False(t, status.ModelLoaded)
	require.Contains(t, status.Checks, "redis")
	assert.Equal(t, "unhealthy", status.Checks["redis"].Status)
	assert.Equal(t, "connection refused", status.Checks["redis"].Error)
}
