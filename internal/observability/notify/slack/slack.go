// Package slack renders failed design validations as Slack incoming-webhook messages.
package slack

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/innovites/cableaudit/internal/observability/notify"
)

// Config configures the webhook sink.
type Config struct {
	WebhookURL string
	Channel    string
	Username   string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	// JobURLPrefix, when set, turns the job id into a link to its status endpoint.
	JobURLPrefix string
}

// Client is a notify.Sink backed by a Slack webhook.
type Client struct {
	hook      notify.Webhook
	channel   string
	username  string
	jobPrefix *url.URL
}

var _ notify.Sink = (*Client)(nil)

type message struct {
	Text     string `json:"text"`
	Username string `json:"username"`
	Channel  string `json:"channel,omitempty"`
}

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// NewClient validates cfg and builds the sink.
func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("slack webhook url is required")
	}

	hc := cfg.Client
	if hc == nil {
		hc = notify.NewHTTPClient(cfg.Timeout)
	}

	c := &Client{
		hook: notify.Webhook{
			Name:    "slack",
			URL:     webhookURL,
			Client:  hc,
			Retries: cfg.RetryLimit,
		},
		channel:  strings.TrimSpace(cfg.Channel),
		username: notify.Or(strings.TrimSpace(cfg.Username), "cableaudit"),
	}
	if u, err := url.Parse(strings.TrimSpace(cfg.JobURLPrefix)); err == nil && u.Scheme != "" && u.Host != "" {
		c.jobPrefix = u
	}
	return c, nil
}

// SendJobFailure posts one message per failed job.
func (c *Client) SendJobFailure(ctx context.Context, payload notify.JobFailurePayload) error {
	return c.hook.PostJSON(ctx, c.formatMessage(payload))
}

func (c *Client) formatMessage(p notify.JobFailurePayload) message {
	p = p.Normalized(time.Now())
	var b strings.Builder

	b.WriteString("*Design validation failed*")
	if p.JobID != "" {
		fmt.Fprintf(&b, " `%s`", p.JobID)
	}
	if p.InputMode != "" {
		fmt.Fprintf(&b, " (%s)", p.InputMode)
	}
	b.WriteByte('\n')

	bullet(&b, "Severity", p.Severity)
	bullet(&b, "Job", c.formatJobValue(p.JobID))
	bullet(&b, "Stage", p.Stage)
	bullet(&b, "Error kind", p.ErrorKind)
	bullet(&b, "Attempts", formatAttempts(p.AttemptCount, p.MaxAttempts))
	bullet(&b, "Error class", p.ErrorClass)
	bullet(&b, "Error", escaper.Replace(p.Error))

	if len(p.Metadata) > 0 {
		b.WriteString("• Metadata:\n")
		for _, k := range slices.Sorted(maps.Keys(p.Metadata)) {
			fmt.Fprintf(&b, "    • %s: %s\n", k, escaper.Replace(p.Metadata[k]))
		}
	}

	b.WriteString("• Timestamp: ")
	b.WriteString(p.OccurredAt.Format(time.RFC3339))

	return message{Text: b.String(), Username: c.username, Channel: c.channel}
}

// formatJobValue renders the job id as a Slack link, or "" without a usable prefix.
func (c *Client) formatJobValue(jobID string) string {
	id := strings.TrimSpace(jobID)
	if id == "" || c.jobPrefix == nil {
		return ""
	}
	return fmt.Sprintf("<%s|%s>", c.jobPrefix.JoinPath(id).String(), escaper.Replace(id))
}

func formatAttempts(attempts, maxAttempts int) string {
	switch {
	case attempts <= 0:
		return ""
	case maxAttempts <= 0:
		return strconv.Itoa(attempts)
	default:
		return strconv.Itoa(attempts) + "/" + strconv.Itoa(maxAttempts)
	}
}

func bullet(b *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(b, "• %s: %s\n", label, value)
}
