package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/innovites/cableaudit/config"
	httpx "github.com/innovites/cableaudit/internal/http"
)

// newAPIServer builds the submission API server without binding it. cfg must be sanitized.
func newAPIServer(cfg config.HTTPConfig, services ServiceContainer, version string, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr: cfg.Addr,
		Handler: httpx.NewRouter(httpx.RouterServices{
			Jobs:           services.Jobs,
			MetricsHandler: services.Observability.MetricsHandler,
			Metrics:        services.Observability.MetricsSink,
			Readiness:      services.Readiness,
			MaxBodyBytes:   cfg.MaxBodyBytes,
			Version:        version,
			Logger:         logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
}

// startHTTP binds the listener before returning so a bad address fails startup, then serves
// on g until ctx is done and drains for at most cfg.HTTP.ShutdownTimeout.
func startHTTP(ctx context.Context, g *errgroup.Group, cfg *ServiceOrchestrationConfig, logger *slog.Logger) error {
	httpCfg := cfg.Config.HTTP
	httpCfg.Sanitize()
	server := newAPIServer(httpCfg, cfg.Services, cfg.Version, logger)

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", server.Addr, err)
	}

	g.Go(func() error {
		logger.Info("http server listening", "addr", ln.Addr().String())
		if err := server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), httpCfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		logger.Info("http server stopped")
		return nil
	})
	return nil
}
