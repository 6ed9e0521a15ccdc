package config

import (
	"strings"
	"time"
)

// MetricsBackend selects where metrics go.
type MetricsBackend string

const (
	MetricsBackendStatsd     MetricsBackend = "statsd"     // UDP to a StatsD/DogStatsD agent
	MetricsBackendPrometheus MetricsBackend = "prometheus" // scraped from GET /metrics
)

// ObservabilityConfig covers metrics and failure alerts. Variables are read under the
// METRICS_ and NOTIFY_ prefixes.
type ObservabilityConfig struct {
	Metrics       ObservabilityMetricsConfig       `envPrefix:"METRICS_"`
	Notifications ObservabilityNotificationsConfig `envPrefix:"NOTIFY_"`
}

func (c *ObservabilityConfig) Sanitize() {
	c.Metrics.Sanitize()
	c.Notifications.Sanitize()
}

type ObservabilityMetricsConfig struct {
	Enabled       bool           `env:"ENABLED"        envDefault:"false"`
	Backend       MetricsBackend `env:"BACKEND"        envDefault:"prometheus"`
	StatsdAddress string         `env:"STATSD_ADDRESS" envDefault:"127.0.0.1:8125"`
	// Namespace prefixes every metric name.
	Namespace string `env:"NAMESPACE" envDefault:"cableaudit"`
}

// Sanitize falls back to prometheus for unknown backends and turns statsd off when it has
// no address to send to.
func (c *ObservabilityMetricsConfig) Sanitize() {
	trimAll(&c.StatsdAddress, &c.Namespace)
	c.Namespace = orDefault(c.Namespace, "cableaudit")
	switch c.Backend {
	case MetricsBackendStatsd:
		c.Enabled = c.Enabled && c.StatsdAddress != ""
	case MetricsBackendPrometheus:
	default:
		c.Backend = MetricsBackendPrometheus
	}
}

// ObservabilityNotificationsConfig controls alerts for jobs that end FAILED. Each sink needs
// both its own switch and the master Enabled switch.
type ObservabilityNotificationsConfig struct {
	Enabled bool          `env:"ENABLED" envDefault:"false"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"5s"`
	// RetryLimit is the number of extra delivery attempts per sink.
	RetryLimit int                         `env:"RETRY_LIMIT" envDefault:"2"`
	Slack      SlackNotificationConfig     `envPrefix:"SLACK_"`
	PagerDuty  PagerDutyNotificationConfig `envPrefix:"PAGERDUTY_"`
}

func (c *ObservabilityNotificationsConfig) Sanitize() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	c.RetryLimit = max(c.RetryLimit, 0)

	s, p := &c.Slack, &c.PagerDuty
	trimAll(&s.WebhookURL, &s.Channel, &s.JobURLPrefix, &p.RoutingKey, &p.Source, &p.Component)
	s.Username = orDefault(s.Username, "cableaudit")

	s.Enabled = c.Enabled && s.Enabled && s.WebhookURL != ""
	p.Enabled = c.Enabled && p.Enabled && p.RoutingKey != ""
}

// PagerDutyNotificationConfig targets the Events API v2.
type PagerDutyNotificationConfig struct {
	Enabled    bool   `env:"ENABLED"     envDefault:"false"`
	RoutingKey string `env:"ROUTING_KEY"`
	Source     string `env:"SOURCE"      envDefault:"cableaudit"`
	Component  string `env:"COMPONENT"   envDefault:"engine"`
}

// SlackNotificationConfig targets an incoming webhook.
type SlackNotificationConfig struct {
	Enabled    bool   `env:"ENABLED"     envDefault:"false"`
	WebhookURL string `env:"WEBHOOK_URL"`
	Channel    string `env:"CHANNEL"`
	Username   string `env:"USERNAME"    envDefault:"cableaudit"`
	// JobURLPrefix, when set, is joined with the job id to link the status endpoint.
	JobURLPrefix string `env:"JOB_URL_PREFIX"`
}

func trimAll(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
