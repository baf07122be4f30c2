package app

import (
	"time"

	"github.com/bft-labs/rollcam/internal/ports"
)

// RecoveryConfig configures the auto-recovery scheduler.
type RecoveryConfig struct {
	// BaseDelay is the delay before the first attempt; each later attempt
	// doubles it. Default: 30s
	BaseDelay time.Duration

	// MaxAttempts is the number of restart attempts before giving up.
	// Default: 5
	MaxAttempts int
}

// DefaultRecoveryConfig returns a RecoveryConfig with sensible defaults.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		BaseDelay:   DefaultRecoveryBaseDelay,
		MaxAttempts: DefaultRecoveryAttempts,
	}
}

// recoveryHooks connects the scheduler to the controller.
type recoveryHooks struct {
	// check validates preconditions; a non-nil error defers the attempt.
	check func() error
	// restart performs one restart attempt.
	restart func() error
	// recovered is called after a successful restart.
	recovered func()
	// exhausted is called once the last attempt has failed.
	exhausted func(last error)
}

// AutoRecovery restarts recording with exponential backoff after a
// terminal failure. It owns a single pending-attempt slot.
type AutoRecovery struct {
	cfg     RecoveryConfig
	clock   Clock
	post    dispatcher
	logger  ports.Logger
	hooks   recoveryHooks
	backoff *backoff

	timer  *task
	delay  time.Duration
	reason error
}

func newAutoRecovery(cfg RecoveryConfig, clock Clock, post dispatcher, logger ports.Logger, hooks recoveryHooks) *AutoRecovery {
	return &AutoRecovery{
		cfg:     cfg,
		clock:   clock,
		post:    post,
		logger:  logger,
		hooks:   hooks,
		backoff: newBackoff(cfg.BaseDelay, 0),
	}
}

// Schedule arms the next attempt for reason. It is a no-op while an attempt
// is pending or once the attempt budget is spent, and reports whether an
// attempt is pending afterwards.
func (r *AutoRecovery) Schedule(reason error) bool {
	if r.timer.pending() {
		return true
	}
	if r.backoff.Attempt() >= r.cfg.MaxAttempts {
		return false
	}
	r.reason = reason
	r.arm(r.backoff.Delay())
	return true
}

// Pending reports whether an attempt is scheduled.
func (r *AutoRecovery) Pending() bool {
	return r.timer.pending()
}

// Attempts returns the number of restart attempts made since the last reset.
func (r *AutoRecovery) Attempts() int {
	return r.backoff.Attempt()
}

// NextDelay returns the delay of the pending attempt.
func (r *AutoRecovery) NextDelay() time.Duration {
	return r.delay
}

// Nudge runs a pending attempt now. Used when permission is granted again or
// disk space is freed.
func (r *AutoRecovery) Nudge() {
	if !r.timer.pending() {
		return
	}
	r.timer.cancel()
	r.timer = nil
	r.logger.Info("auto-recovery nudged")
	r.attempt()
}

// Cancel drops the pending attempt and resets the attempt counter.
func (r *AutoRecovery) Cancel() {
	r.timer.cancel()
	r.timer = nil
	r.backoff.Reset()
}

func (r *AutoRecovery) arm(d time.Duration) {
	r.delay = d
	r.timer = schedule(r.clock, r.post, d, func() {
		r.timer = nil
		r.attempt()
	})
	r.logger.Info("auto-recovery scheduled",
		ports.Duration("delay", d),
		ports.Int("attempt", r.backoff.Attempt()+1),
		ports.Int("max_attempts", r.cfg.MaxAttempts),
		ports.Err(r.reason),
	)
}

func (r *AutoRecovery) attempt() {
	if err := r.hooks.check(); err != nil {
		// Preconditions unmet: try again at the same delay without
		// consuming an attempt.
		r.logger.Info("auto-recovery deferred", ports.Err(err))
		r.arm(r.delay)
		return
	}

	r.backoff.Advance()
	n := r.backoff.Attempt()
	err := r.hooks.restart()
	if err == nil {
		r.logger.Info("auto-recovery succeeded", ports.Int("attempt", n))
		r.backoff.Reset()
		r.reason = nil
		r.hooks.recovered()
		return
	}

	r.logger.Warn("auto-recovery attempt failed",
		ports.Int("attempt", n),
		ports.Err(err),
	)
	r.reason = err
	if n >= r.cfg.MaxAttempts {
		r.backoff.Reset()
		r.hooks.exhausted(err)
		return
	}
	r.arm(r.backoff.Delay())
}
