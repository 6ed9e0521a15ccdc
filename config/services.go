package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ServiceMode names one runnable component.
type ServiceMode string

const (
	ServiceModeHTTP   ServiceMode = "http"
	ServiceModeEngine ServiceMode = "engine"
	ServiceModeReaper ServiceMode = "reaper"
)

// serviceModes is the canonical order used for logging and startup.
var serviceModes = []ServiceMode{ServiceModeHTTP, ServiceModeEngine, ServiceModeReaper}

// ServiceSet is the set of enabled service modes.
type ServiceSet map[ServiceMode]bool

// Has reports whether mode is in the set. A nil set has nothing.
func (s ServiceSet) Has(mode ServiceMode) bool { return s[mode] }

// Names lists the enabled modes in canonical order.
func (s ServiceSet) Names() []string {
	names := make([]string, 0, len(s))
	for _, mode := range serviceModes {
		if s[mode] {
			names = append(names, string(mode))
		}
	}
	return names
}

// ParseServices reads a comma-separated service list. Blank entries are ignored,
// duplicates collapse and unknown names are an error.
func ParseServices(raw string) (ServiceSet, error) {
	set := ServiceSet{}
	for part := range strings.SplitSeq(raw, ",") {
		name := ServiceMode(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		if !slices.Contains(serviceModes, name) {
			return nil, fmt.Errorf("unknown service %q (want one of http, engine, reaper)", name)
		}
		set[name] = true
	}
	if len(set) == 0 {
		return nil, errors.New("no services listed")
	}
	return set, nil
}

// BackoffKind selects how the delay between attempts grows.
type BackoffKind string

const (
	// BackoffFixed waits BackoffBase between every attempt.
	BackoffFixed BackoffKind = "fixed"
	// BackoffExponential doubles the delay per attempt, capped at BackoffMax.
	BackoffExponential BackoffKind = "exponential"
)

// Valid reports whether k names a known backoff policy.
func (k BackoffKind) Valid() bool { return k == BackoffFixed || k == BackoffExponential }

// EngineConfig contains the job execution engine configuration.
type EngineConfig struct {
	// Workers is the number of concurrent worker goroutines.
	Workers int `env:"ENGINE_WORKERS" envDefault:"4"`

	// MaxAttempts is the total number of tries per job (initial attempt included).
	MaxAttempts int `env:"ENGINE_MAX_ATTEMPTS" envDefault:"4"`

	// Backoff selects the retry delay policy: fixed or exponential.
	Backoff BackoffKind `env:"ENGINE_BACKOFF" envDefault:"fixed"`

	// BackoffBase is the fixed delay, or the first delay for exponential backoff.
	BackoffBase time.Duration `env:"ENGINE_BACKOFF_BASE" envDefault:"60s"`

	// BackoffMax caps exponential backoff.
	BackoffMax time.Duration `env:"ENGINE_BACKOFF_MAX" envDefault:"15m"`

	// LeaseDuration is how long a reserved job stays invisible to other workers.
	// It must exceed the longest expected pipeline run.
	LeaseDuration time.Duration `env:"ENGINE_LEASE_DURATION" envDefault:"3m"`

	// PollInterval is the fallback wait between queue polls when no notification arrives.
	PollInterval time.Duration `env:"ENGINE_POLL_INTERVAL" envDefault:"5s"`
}

// Sanitize applies guardrails to engine configuration values.
func (e *EngineConfig) Sanitize() {
	if e.Workers < 1 {
		e.Workers = 1
	}
	if e.MaxAttempts < 1 {
		e.MaxAttempts = 1
	}
	e.Backoff = BackoffKind(strings.ToLower(strings.TrimSpace(string(e.Backoff))))
	if e.Backoff == "" {
		e.Backoff = BackoffFixed
	}
	if e.BackoffBase < 0 {
		e.BackoffBase = 0
	}
	if e.BackoffMax < e.BackoffBase {
		e.BackoffMax = e.BackoffBase
	}
	if e.LeaseDuration < 10*time.Second {
		e.LeaseDuration = 10 * time.Second
	}
	if e.PollInterval < 100*time.Millisecond {
		e.PollInterval = 100 * time.Millisecond
	}
}

// Validate rejects an unknown backoff policy.
func (e *EngineConfig) Validate() error {
	if !e.Backoff.Valid() {
		return fmt.Errorf("ENGINE_BACKOFF: unknown %q (want fixed or exponential)", e.Backoff)
	}
	return nil
}

// ReaperConfig contains job reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// PendingMaxAge is the maximum age for pending jobs before they are marked as failed.
	PendingMaxAge time.Duration `env:"REAPER_PENDING_MAX_AGE" envDefault:"24h"`

	// SucceededMaxAge is the retention for successful jobs.
	SucceededMaxAge time.Duration `env:"REAPER_SUCCEEDED_MAX_AGE" envDefault:"720h"` // 30 days

	// FailedMaxAge is the retention for failed jobs.
	FailedMaxAge time.Duration `env:"REAPER_FAILED_MAX_AGE" envDefault:"720h"` // 30 days

	// BatchSize is the maximum number of rows to process per operation.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimum intervals to prevent excessive database load
	if r.Interval < 1*time.Minute {
		r.Interval = 1 * time.Minute
	}
	if r.PendingMaxAge < 5*time.Minute {
		r.PendingMaxAge = 5 * time.Minute
	}
	if r.SucceededMaxAge < 1*time.Hour {
		r.SucceededMaxAge = 1 * time.Hour
	}
	if r.FailedMaxAge < 1*time.Hour {
		r.FailedMaxAge = 1 * time.Hour
	}

	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
