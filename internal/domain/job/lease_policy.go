// Package job holds the engine policies that do not depend on storage:
// lease sizing, retry scheduling and wakeup fan-out.
package job

import (
	"errors"
	"time"
)

// ErrInvalidLease indicates the configured lease duration is not positive.
var ErrInvalidLease = errors.New("lease must be positive")

// minHeartbeat keeps very short test leases from spinning.
const minHeartbeat = 100 * time.Millisecond

// LeasePolicy sizes reservations and the heartbeat that keeps them alive.
type LeasePolicy struct {
	lease time.Duration
}

// NewLeasePolicy constructs a LeasePolicy for the given lease duration.
func NewLeasePolicy(lease time.Duration) (*LeasePolicy, error) {
	if lease <= 0 {
		return nil, ErrInvalidLease
	}
	return &LeasePolicy{lease: lease}, nil
}

// Lease returns the duration granted on reservation and on each heartbeat.
func (p *LeasePolicy) Lease() time.Duration {
	return p.lease
}

// HeartbeatInterval renews three times per lease so one missed beat does not lose the job.
func (p *LeasePolicy) HeartbeatInterval() time.Duration {
	iv := p.lease / 3
	if iv < minHeartbeat {
		return minHeartbeat
	}
	return iv
}
