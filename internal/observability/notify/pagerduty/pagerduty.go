// Package pagerduty raises Events API v2 incidents for failed design validations.
package pagerduty

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/innovites/cableaudit/internal/observability/notify"
)

// APIEndpoint is the Events API v2 ingest URL.
const APIEndpoint = "https://events.pagerduty.com/v2/enqueue"

// Config configures the incident sink.
type Config struct {
	RoutingKey string
	Source     string
	Component  string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	// Endpoint overrides APIEndpoint.
	Endpoint string
}

// Client is a notify.Sink that triggers one incident per failed job.
type Client struct {
	hook       notify.Webhook
	routingKey string
	source     string
	component  string
}

var _ notify.Sink = (*Client)(nil)

type event struct {
	RoutingKey  string       `json:"routing_key"`
	EventAction string       `json:"event_action"`
	DedupKey    string       `json:"dedup_key"`
	Payload     eventPayload `json:"payload"`
}

type eventPayload struct {
	Summary       string         `json:"summary"`
	Severity      string         `json:"severity"`
	Source        string         `json:"source"`
	Component     string         `json:"component"`
	Timestamp     string         `json:"timestamp"`
	CustomDetails map[string]any `json:"custom_details"`
}

// NewClient validates cfg and builds the sink.
func NewClient(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.RoutingKey)
	if key == "" {
		return nil, errors.New("pagerduty routing key is required")
	}

	hc := cfg.Client
	if hc == nil {
		hc = notify.NewHTTPClient(cfg.Timeout)
	}

	return &Client{
		hook: notify.Webhook{
			Name:    "pagerduty",
			URL:     notify.Or(strings.TrimSpace(cfg.Endpoint), APIEndpoint),
			Client:  hc,
			Retries: cfg.RetryLimit,
		},
		routingKey: key,
		source:     notify.Or(strings.TrimSpace(cfg.Source), "cableaudit"),
		component:  notify.Or(strings.TrimSpace(cfg.Component), "engine"),
	}, nil
}

// SendJobFailure triggers (or updates) the incident keyed by the job id.
func (c *Client) SendJobFailure(ctx context.Context, payload notify.JobFailurePayload) error {
	return c.hook.PostJSON(ctx, c.buildEvent(payload))
}

func (c *Client) buildEvent(p notify.JobFailurePayload) event {
	p = p.Normalized(time.Now())
	jobID := notify.Or(p.JobID, "unknown")

	details := make(map[string]any, len(p.Metadata)+8)
	for k, v := range p.Metadata {
		details[k] = v
	}
	// Canonical fields win over metadata with the same key.
	details["job_id"] = p.JobID
	details["input_mode"] = p.InputMode
	details["stage"] = p.Stage
	details["error_kind"] = p.ErrorKind
	details["attempt_count"] = p.AttemptCount
	details["max_attempts"] = p.MaxAttempts
	details["error"] = p.Error
	details["error_class"] = p.ErrorClass

	return event{
		RoutingKey:  c.routingKey,
		EventAction: "trigger",
		DedupKey:    "design-validation:" + jobID,
		Payload: eventPayload{
			Summary:       summary(jobID, p),
			Severity:      p.Severity,
			Source:        c.source,
			Component:     c.component,
			Timestamp:     p.OccurredAt.Format(time.RFC3339),
			CustomDetails: details,
		},
	}
}

func summary(jobID string, p notify.JobFailurePayload) string {
	var b strings.Builder
	b.WriteString("Design validation ")
	b.WriteString(jobID)
	b.WriteString(" failed")
	if p.Stage != "" {
		b.WriteString(" at ")
		b.WriteString(p.Stage)
	}
	if p.InputMode != "" {
		b.WriteString(" (" + p.InputMode + ")")
	}
	return b.String()
}
