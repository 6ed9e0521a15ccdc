// Package failurenotifier fans terminal design validation failures out to Slack, PagerDuty
// or any other notify.Sink.
package failurenotifier

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/innovites/cableaudit/internal/observability/notify"
	"github.com/innovites/cableaudit/internal/observability/statsd"
)

// SinkRegistration names a sink for logs and metric tags.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the Service.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
	// Metrics, when set, receives notifications.sent and notifications.failed counters.
	Metrics statsd.Sink
}

// Service delivers each failure to every registered sink concurrently.
type Service struct {
	logger  *slog.Logger
	sinks   []SinkRegistration
	metrics statsd.Sink
}

// NewService drops nil sinks and names anonymous ones "sink".
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sinks := make([]SinkRegistration, 0, len(opts.Sinks))
	for _, reg := range opts.Sinks {
		if reg.Sink == nil {
			continue
		}
		reg.Name = notify.Or(reg.Name, "sink")
		sinks = append(sinks, reg)
	}

	return &Service{
		logger:  logger.With("component", "failure_notifier"),
		sinks:   sinks,
		metrics: opts.Metrics,
	}
}

// NotifyJobFailure blocks until every sink has accepted or rejected the payload. Delivery
// errors are logged and counted, never returned: a broken webhook must not affect job state.
func (s *Service) NotifyJobFailure(ctx context.Context, payload notify.JobFailurePayload) {
	if !s.Enabled() {
		return
	}
	payload = payload.Normalized(time.Now())

	var g errgroup.Group
	for _, reg := range s.sinks {
		g.Go(func() error {
			s.deliver(ctx, reg, payload)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Service) deliver(ctx context.Context, reg SinkRegistration, payload notify.JobFailurePayload) {
	start := time.Now()
	err := reg.Sink.SendJobFailure(ctx, payload)
	outcome := "sent"
	if err != nil {
		outcome = "failed"
		s.logger.ErrorContext(ctx, "failure notification not delivered",
			"sink", reg.Name,
			"job_id", payload.JobID,
			"stage", payload.Stage,
			"error", err,
		)
	}
	if s.metrics != nil {
		tags := map[string]string{"sink": reg.Name}
		s.metrics.Count("notifications."+outcome, 1, tags)
		s.metrics.Timing("notifications.duration", time.Since(start), tags)
	}
}

// Enabled reports whether any sink is registered.
func (s *Service) Enabled() bool {
	return s != nil && len(s.sinks) > 0
}
