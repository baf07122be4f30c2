package app

import "time"

// Default backoff configuration values.
const (
	DefaultFaultRetryDelay   = time.Second
	DefaultFaultRetries      = 3
	DefaultRecoveryBaseDelay = 30 * time.Second
	DefaultRecoveryAttempts  = 5
)

// backoff computes doubling delays: initial, 2×initial, 4×initial, ...
// capped at max when max > 0. It does not sleep; callers schedule a task
// with the returned delay.
type backoff struct {
	initial time.Duration
	max     time.Duration
	attempt int
}

// newBackoff creates a new backoff with the given initial and max durations.
func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{
		initial: initial,
		max:     max,
	}
}

// Delay returns the delay before the next attempt without consuming it.
func (b *backoff) Delay() time.Duration {
	d := b.initial
	for i := 0; i < b.attempt; i++ {
		d *= 2
		if b.max > 0 && d >= b.max {
			return b.max
		}
	}
	return d
}

// Advance consumes one attempt.
func (b *backoff) Advance() {
	b.attempt++
}

// Attempt returns the number of consumed attempts.
func (b *backoff) Attempt() int {
	return b.attempt
}

// Reset resets the backoff to the initial duration.
func (b *backoff) Reset() {
	b.attempt = 0
}
