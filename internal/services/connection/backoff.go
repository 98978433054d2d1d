package connection

import "time"

// Backoff computes reconnect delays as min(Base * 2^attempt, Max).
type Backoff struct {
	Base time.Duration
	Max  time.Duration
	// MaxRetries bounds consecutive reconnect attempts. Zero retries forever.
	MaxRetries int
}

// DefaultBackoff starts at one second, caps at thirty and never gives up.
var DefaultBackoff = Backoff{Base: time.Second, Max: 30 * time.Second}

// Delay returns the wait before reconnect attempt n (zero-based).
func (b Backoff) Delay(attempt int) time.Duration {
	base, max := b.Base, b.Max
	if base <= 0 {
		base = DefaultBackoff.Base
	}
	if max <= 0 {
		max = DefaultBackoff.Max
	}
	d := base
	for i := 0; i < attempt; i++ {
		if d >= max/2 {
			return max
		}
		d *= 2
	}
	if d > max {
		return max
	}
	return d
}

// Exhausted reports whether attempt has reached a configured ceiling.
func (b Backoff) Exhausted(attempt int) bool {
	return b.MaxRetries > 0 && attempt >= b.MaxRetries
}
