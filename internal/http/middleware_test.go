package httpx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/innovites/cableaudit/internal/errors"
)

type countingSink struct {
	mu      sync.Mutex
	counts  map[string][]map[string]string
	timings int
}

func (s *countingSink) Count(name string, _ int64, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts == nil {
		s.counts = make(map[string][]map[string]string)
	}
	s.counts[name] = append(s.counts[name], tags)
}

func (s *countingSink) Gauge(string, float64, map[string]string) {}

func (s *countingSink) Timing(string, time.Duration, map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timings++
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	t.Run("propagates caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
	})

	t.Run("mints when missing or oversized", func(t *testing.T) {
		for _, sent := range []string{"", strings.Repeat("x", 129)} {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-Request-ID", sent)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			_, err := uuid.Parse(seen)
			require.NoError(t, err)
			assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
		}
	})

	assert.Empty(t, RequestIDFrom(context.Background()))
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	sink := &countingSink{}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short"))
	})
	h := chain(mux, RequestID, AccessLog(logger, sink))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/1", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/2", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nothing", nil))

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "path=/items/1")
	assert.Contains(t, out, `route="GET /items/{id}"`)
	assert.Contains(t, out, "status=418")
	assert.Contains(t, out, "bytes=5")
	assert.Contains(t, out, "request_id=")

	requests := sink.counts["http.request"]
	require.Len(t, requests, 3)
	assert.Equal(t, map[string]string{"route": "GET /items/{id}", "status": "418"}, requests[0])
	assert.Equal(t, requests[0], requests[1])
	assert.Equal(t, map[string]string{"route": "unmatched", "status": "404"}, requests[2])
	assert.Equal(t, 3, sink.timings)
}

func TestAccessLog_NilSink(t *testing.T) {
	h := AccessLog(slog.New(slog.DiscardHandler), nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	w := httptest.NewRecorder()
	require.NotPanics(t, func() { h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil)) })
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecover(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), AccessLog(logger, nil), Recover(logger))
	w := httptest.NewRecorder()

	require.NotPanics(t, func() {
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal", decodeError(t, w).Code)
	assert.Contains(t, buf.String(), "handler panic")
	assert.Contains(t, buf.String(), "status=500")
}

func TestRecover_ReraisesAbort(t *testing.T) {
	h := Recover(slog.New(slog.DiscardHandler))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestBodyLimit(t *testing.T) {
	h := BodyLimit(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var dst map[string]any
		DecodeJSON(w, r, &dst)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":"0123456789"}`)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestWriteAppError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "validation keeps details",
			err:        apperrors.ValidationField("id", "must be a UUID"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "validation",
			wantMsg:    "must be a UUID",
		},
		{
			name:       "not found",
			err:        apperrors.NotFound("validation job x not found"),
			wantStatus: http.StatusNotFound,
			wantCode:   "not_found",
			wantMsg:    "validation job x not found",
		},
		{
			name:       "unavailable hides cause",
			err:        apperrors.Wrap(errors.New("dial tcp refused"), apperrors.ErrCodeUnavailable, "store unavailable"),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "unavailable",
			wantMsg:    http.StatusText(http.StatusServiceUnavailable),
		},
		{
			name:       "plain error is internal",
			err:        errors.New("something broke"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal",
			wantMsg:    http.StatusText(http.StatusInternalServerError),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)

			WriteAppError(w, r, slog.New(slog.NewTextHandler(io.Discard, nil)), tt.err)

			require.Equal(t, tt.wantStatus, w.Code)
			got := decodeError(t, w)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantMsg, got.Error)
		})
	}
}
