package httpx

import (
	"context"
	"errors"
	"maps"
	"net/http"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

const readinessTimeout = 2 * time.Second

// HealthStatus is the body of /healthz and /readyz.
type HealthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// healthHandler answers liveness probes; it never touches dependencies.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		return
	}
	WriteJSON(w, http.StatusOK, HealthStatus{Status: "ok"})
}

// readinessHandler runs every check concurrently under one deadline and answers 503 when
// any fails. Failure details are reduced to "unavailable" or "timeout".
func readinessHandler(checks map[string]ReadinessCheck) http.HandlerFunc {
	names := slices.Sorted(maps.Keys(checks))

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		var (
			mu      sync.Mutex
			results = make(map[string]string, len(names))
			healthy = true
		)
		var g errgroup.Group
		for _, name := range names {
			check := checks[name]
			g.Go(func() error {
				state := "ok"
				if err := check(ctx); err != nil {
					state = "unavailable"
					if errors.Is(err, context.DeadlineExceeded) {
						state = "timeout"
					}
				}
				mu.Lock()
				defer mu.Unlock()
				results[name] = state
				healthy = healthy && state == "ok"
				return nil
			})
		}
		_ = g.Wait()

		body := HealthStatus{Status: "ok", Checks: results}
		code := http.StatusOK
		if !healthy {
			body.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
		WriteJSON(w, code, body)
	}
}

// Banner is the landing response served at the root path.
type Banner struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
	Message string `json:"message"`
}

func bannerHandler(service, version string) http.HandlerFunc {
	banner := Banner{
		Status:  "healthy",
		Service: service,
		Version: version,
		Message: "Submit designs to POST " + validationsPath + ".",
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, banner)
	}
}

// notFoundHandler answers unmatched paths with the JSON error shape.
func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteError(w, ErrorParams{
		Code:    http.StatusNotFound,
		ErrCode: "not_found",
		Err:     errors.New("no route for " + r.Method + " " + r.URL.Path),
	})
}
