package resilience

import (
	"math"
	"time"
)

// Default reconnect backoff parameters.
const (
	DefaultBaseDelay = time.Second
	DefaultMaxDelay  = 20 * time.Second
)

// Backoff computes capped exponential retry delays.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff returns the reconnect policy used by the HTTP transport.
func DefaultBackoff() Backoff {
	return Backoff{Base: DefaultBaseDelay, Max: DefaultMaxDelay}
}

// Delay returns min(Base * 2^attempt, Max). Negative attempts are treated as 0.
func (b Backoff) Delay(attempt int) time.Duration {
	base, limit := b.Base, b.Max
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if limit <= 0 {
		limit = DefaultMaxDelay
	}
	if attempt < 0 {
		attempt = 0
	}

	factor := math.Pow(2, float64(attempt))
	if factor*float64(base) >= float64(limit) {
		return limit
	}
	return time.Duration(factor) * base
}

// ExponentialDelay is the package-level shortcut for DefaultBackoff().Delay.
func ExponentialDelay(attempt int) time.Duration {
	return DefaultBackoff().Delay(attempt)
}
