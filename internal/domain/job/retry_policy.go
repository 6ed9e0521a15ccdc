package job

import (
	"math"
	"time"
)

// BackoffKind selects how the delay between attempts grows.
type BackoffKind string

const (
	// BackoffFixed waits Base before every retry.
	BackoffFixed BackoffKind = "fixed"
	// BackoffExponential waits Base*2^(n-1) before retry n, capped at Max.
	BackoffExponential BackoffKind = "exponential"
)

// RetryPolicy computes when a failed attempt may run again.
type RetryPolicy struct {
	Kind BackoffKind
	Base time.Duration
	Max  time.Duration
}

// Delay returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if p.Base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	if p.Kind != BackoffExponential {
		return p.Base
	}

	d := p.Base
	for i := 1; i < attempt; i++ {
		// Stop doubling before overflow or once past the cap.
		if p.Max > 0 && d >= p.Max {
			break
		}
		if d > math.MaxInt64/2 {
			break
		}
		d *= 2
	}
	if p.Max > 0 && d > p.Max {
		return p.Max
	}
	return d
}

// NextAttemptAt is now plus the delay for the given failed attempt.
func (p RetryPolicy) NextAttemptAt(now time.Time, attempt int) time.Time {
	return now.Add(p.Delay(attempt))
}
