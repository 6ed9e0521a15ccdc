package bootstrap

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/innovites/cableaudit/config"
	"github.com/innovites/cableaudit/internal/observability/notify"
	"github.com/innovites/cableaudit/internal/observability/notify/pagerduty"
	"github.com/innovites/cableaudit/internal/observability/notify/slack"
	"github.com/innovites/cableaudit/internal/observability/prom"
	"github.com/innovites/cableaudit/internal/observability/statsd"
	"github.com/innovites/cableaudit/internal/service/failurenotifier"
)

// ObservabilityContainer is the metrics sink and failure notifier shared by every service.
// MetricsSink is nil when metrics are off; MetricsHandler is set only for prometheus.
type ObservabilityContainer struct {
	MetricsSink     statsd.Sink
	MetricsHandler  http.Handler
	FailureNotifier *failurenotifier.Service

	closer io.Closer
}

// Close releases the metrics transport, if any.
func (o ObservabilityContainer) Close() error {
	if o.closer == nil {
		return nil
	}
	return o.closer.Close()
}

func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	if logger == nil {
		logger = slog.Default()
	}
	var obs ObservabilityContainer
	if cfg.Metrics.Enabled {
		obs = buildMetrics(logger, cfg.Metrics)
	}
	obs.FailureNotifier = buildFailureNotifier(logger, cfg.Notifications, obs.MetricsSink)
	return obs
}

// buildMetrics never fails startup: a statsd client that cannot be created leaves metrics off.
func buildMetrics(logger *slog.Logger, cfg config.ObservabilityMetricsConfig) ObservabilityContainer {
	var obs ObservabilityContainer
	if cfg.Backend == config.MetricsBackendStatsd {
		client, err := statsd.NewClient(statsd.Config{
			Enabled:    true,
			Address:    cfg.StatsdAddress,
			Prefix:     cfg.Namespace,
			Logger:     logger,
			GlobalTags: map[string]string{"service": "cableaudit"},
		})
		if err != nil {
			logger.Error("statsd unavailable, metrics disabled", "address", cfg.StatsdAddress, "error", err)
			return obs
		}
		obs.MetricsSink, obs.closer = client, client
	} else {
		sink := prom.NewSink(cfg.Namespace)
		obs.MetricsSink, obs.MetricsHandler = sink, sink.Handler()
	}
	logger.Info("metrics enabled", "backend", cfg.Backend, "namespace", cfg.Namespace)
	return obs
}

// buildFailureNotifier registers the configured alert sinks. A sink whose client cannot be
// built is logged and skipped.
func buildFailureNotifier(
	logger *slog.Logger,
	cfg config.ObservabilityNotificationsConfig,
	metrics statsd.Sink,
) *failurenotifier.Service {
	if logger == nil {
		logger = slog.Default()
	}
	opts := failurenotifier.Options{Logger: logger, Metrics: metrics}
	if !cfg.Enabled {
		return failurenotifier.NewService(opts)
	}

	register := func(name string, sink notify.Sink, err error) {
		if err != nil {
			logger.Error("failure sink disabled", "sink", name, "error", err)
			return
		}
		opts.Sinks = append(opts.Sinks, failurenotifier.SinkRegistration{Name: name, Sink: sink})
	}

	if s := cfg.Slack; s.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL:   s.WebhookURL,
			Channel:      s.Channel,
			Username:     s.Username,
			JobURLPrefix: s.JobURLPrefix,
			Timeout:      cfg.Timeout,
			RetryLimit:   cfg.RetryLimit,
		})
		register("slack", client, err)
	}
	if p := cfg.PagerDuty; p.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: p.RoutingKey,
			Source:     p.Source,
			Component:  p.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		register("pagerduty", client, err)
	}
	return failurenotifier.NewService(opts)
}
