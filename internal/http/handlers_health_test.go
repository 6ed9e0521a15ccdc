package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler(t *testing.T) {
	t.Run("GET", func(t *testing.T) {
		rec := httptest.NewRecorder()
		healthHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("HEAD has no body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		healthHandler(rec, httptest.NewRequest(http.MethodHead, "/healthz", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Zero(t, rec.Body.Len())
	})
}

func TestReadinessHandler(t *testing.T) {
	ok := func(context.Context) error { return nil }

	tests := []struct {
		name       string
		checks     map[string]ReadinessCheck
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "no checks",
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]string{},
		},
		{
			name:       "all healthy",
			checks:     map[string]ReadinessCheck{"postgres": ok, "redis": ok},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]string{"postgres": "ok", "redis": "ok"},
		},
		{
			name: "one down",
			checks: map[string]ReadinessCheck{
				"postgres": ok,
				"redis":    func(context.Context) error { return errors.New("dial tcp: connection refused") },
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
			wantChecks: map[string]string{"postgres": "ok", "redis": "unavailable"},
		},
		{
			name: "timeout",
			checks: map[string]ReadinessCheck{
				"postgres": func(context.Context) error { return context.DeadlineExceeded },
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
			wantChecks: map[string]string{"postgres": "timeout"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			readinessHandler(tt.checks)(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			require.Equal(t, tt.wantCode, rec.Code)
			var got HealthStatus
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.wantStatus, got.Status)
			if len(tt.wantChecks) == 0 {
				assert.Empty(t, got.Checks)
			} else {
				assert.Equal(t, tt.wantChecks, got.Checks)
			}
			assert.NotContains(t, rec.Body.String(), "connection refused")
		})
	}
}

func TestRouter_Readyz(t *testing.T) {
	h := NewRouter(RouterServices{Readiness: map[string]ReadinessCheck{
		"postgres": func(context.Context) error { return errors.New("down") },
	}})

	w := doRequest(t, h, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
