package httpx

import (
	"log/slog"
	"net/http"

	"github.com/innovites/cableaudit/internal/observability/statsd"
	"github.com/innovites/cableaudit/internal/service"
)

const (
	apiPrefix       = "/api/v1/design"
	validationsPath = apiPrefix + "/design-validations"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Jobs *service.JobService
	// Optional: serves GET /metrics when set (Prometheus backend).
	MetricsHandler http.Handler
	// Optional: request count and latency sink.
	Metrics statsd.Sink
	// Optional: dependency probes for GET /readyz, keyed by name.
	Readiness map[string]ReadinessCheck
	// MaxBodyBytes caps submission bodies; zero disables the cap.
	MaxBodyBytes int64
	ServiceName  string
	Version      string
	Logger       *slog.Logger // Logger for request and handler errors (optional)
}

// NewRouter creates and configures a new HTTP router with its middleware chain.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	registerValidationRoutes(mux, &ValidationHandlers{Svc: services.Jobs, Logger: logger})
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("GET /readyz", readinessHandler(services.Readiness))
	if services.MetricsHandler != nil {
		mux.Handle("GET /metrics", services.MetricsHandler)
	}

	name := services.ServiceName
	if name == "" {
		name = "cableaudit"
	}
	mux.Handle("GET /{$}", bannerHandler(name, services.Version))
	mux.HandleFunc("/", notFoundHandler)

	return chain(mux,
		RequestID,
		AccessLog(logger, services.Metrics),
		Recover(logger),
		BodyLimit(services.MaxBodyBytes),
	)
}

func registerValidationRoutes(mux *http.ServeMux, h *ValidationHandlers) {
	mux.HandleFunc("POST "+validationsPath, h.Submit)
	mux.HandleFunc("GET "+validationsPath, h.List)
	mux.HandleFunc("GET "+validationsPath+"/stats", h.Stats)
	mux.HandleFunc("GET "+validationsPath+"/{id}", h.GetStatus)
}
