package app

import (
	"errors"
	"fmt"
	"io"

	"github.com/bft-labs/rollcam/internal/domain"
	"github.com/bft-labs/rollcam/internal/ports"
)

// forward moves stream events onto the coordinator. Samples are dropped
// when the queue is full; the terminal error is always delivered.
func (c *Controller) forward(gen uint64, s ports.Stream) {
	for ev := range s.Events() {
		if ev.Err != nil {
			err := ev.Err
			c.post(func() { c.onStreamFault(gen, err) })
			return
		}
		sample := ev.Sample
		select {
		case c.events <- func() { c.onSample(gen, sample) }:
		case <-c.done:
			return
		default:
			c.forwardDropped.Add(1)
		}
	}
	c.post(func() { c.onStreamFault(gen, io.ErrUnexpectedEOF) })
}

func (c *Controller) onSample(gen uint64, s ports.Sample) {
	if gen != c.streamGen || c.pipeline == nil {
		return
	}
	c.pipeline.Write(s)
}

// onStreamFault classifies a stream error: a lost source clears the buffer
// and moves to a fallback source, anything else is retried with backoff.
func (c *Controller) onStreamFault(gen uint64, err error) {
	if gen != c.streamGen || c.stream == nil || c.lc.State() != StateRecording {
		return
	}
	c.logger.Warn("capture stream fault",
		ports.String("source", c.source.ID),
		ports.Bool("disconnect", errors.Is(err, domain.ErrSourceDisconnected)),
		ports.Err(err),
	)
	if errors.Is(err, domain.ErrSourceDisconnected) {
		c.handleDisconnect(err)
		return
	}

	c.teardown("stream fault")
	c.recovering = true
	c.scheduleFaultRetry(err)
	c.publish()
}

// handleDisconnect restarts on another source. Segments from the lost
// source are discarded so the buffer never mixes sources.
func (c *Controller) handleDisconnect(cause error) {
	lost := c.source.ID
	c.teardown("source disconnected")
	if err := c.store.ClearBuffer(); err != nil {
		c.logger.Warn("failed to remove some segments after disconnect", ports.Err(err))
	}

	fallback, ok := c.fallbackSource(lost)
	if !ok {
		c.fail(fmt.Errorf("%w: %w", domain.ErrNoSourceAvailable, cause),
			domain.Alert{Kind: domain.AlertRecordingStopped, Reason: cause})
		return
	}
	c.sourceOverride = fallback.ID
	c.logger.Info("switching to fallback source",
		ports.String("lost", lost),
		ports.String("fallback", fallback.ID),
	)
	if err := c.start(); err != nil {
		c.recovering = true
		c.scheduleFaultRetry(err)
	}
	c.publish()
}

func (c *Controller) fallbackSource(lost string) (ports.SourceDescriptor, bool) {
	sources, err := c.deps.Capture.ListSources(c.runCtx)
	if err != nil {
		c.logger.Warn("failed to list sources", ports.Err(err))
		return ports.SourceDescriptor{}, false
	}
	for _, s := range sources {
		if s.ID != lost {
			return s, true
		}
	}
	return ports.SourceDescriptor{}, false
}

// scheduleFaultRetry retries start with doubling delays. Once the budget
// is spent recording is stopped and auto-recovery takes over.
func (c *Controller) scheduleFaultRetry(cause error) {
	if c.faultBackoff.Attempt() >= c.cfg.FaultRetries {
		c.faultBackoff.Reset()
		reason := fmt.Errorf("%w: %w", domain.ErrMaximumRetriesExceeded, cause)
		c.fail(reason, domain.Alert{Kind: domain.AlertRecordingStopped, Reason: reason})
		return
	}
	d := c.faultBackoff.Delay()
	c.faultBackoff.Advance()
	c.logger.Info("retrying capture",
		ports.Duration("delay", d),
		ports.Int("attempt", c.faultBackoff.Attempt()),
		ports.Int("max_attempts", c.cfg.FaultRetries),
	)
	c.faultRetry = schedule(c.clock, c.post, d, c.onFaultRetry)
}

func (c *Controller) onFaultRetry() {
	c.faultRetry = nil
	if c.lc.State() != StateIdle {
		return
	}
	if err := c.start(); err != nil {
		c.logger.Warn("capture retry failed", ports.Err(err))
		c.scheduleFaultRetry(err)
		c.publish()
		return
	}
	// The backoff is only reset by a successful rotation.
	c.recovering = c.recovery.Pending()
	c.publish()
}

func (c *Controller) cancelFaultRetry() {
	c.faultRetry.cancel()
	c.faultRetry = nil
	c.faultBackoff.Reset()
}

// checkPreconditions verifies permission and disk space.
func (c *Controller) checkPreconditions() error {
	if !c.deps.Permission.HasPermission(c.runCtx) {
		return domain.ErrPermissionDenied
	}
	if space := c.store.CheckDiskSpace(); !space.HasSpace {
		return fmt.Errorf("%w: %d MB available", domain.ErrDiskSpaceLow, space.AvailableMB())
	}
	return nil
}

func (c *Controller) recoveryRestart() error {
	if c.lc.State() == StateRecording {
		return nil
	}
	return c.start()
}

func (c *Controller) onRecovered() {
	c.recovering = false
	c.quality.Reset()
	if removed := c.store.ValidateBuffer(); removed > 0 {
		c.logger.Warn("post-recovery validation removed segments", ports.Int("removed", removed))
	}
	c.notify(domain.Alert{Kind: domain.AlertRecordingRecovered})
	c.applyPolicies()
	c.publish()
}

func (c *Controller) onRecoveryExhausted(last error) {
	c.recovering = false
	c.permPoll.cancel()
	c.permPoll = nil
	reason := fmt.Errorf("%w: %w", domain.ErrRecoveryExhausted, last)
	c.lastErr = reason
	c.logger.Error("auto-recovery exhausted, recording stays stopped", ports.Err(last))
	c.notify(domain.Alert{Kind: domain.AlertRecordingStopped, Reason: reason})
	c.publish()
}

func (c *Controller) schedulePermissionPoll() {
	c.permPoll.cancel()
	c.permPoll = schedule(c.clock, c.post, c.cfg.PermissionPollInterval, c.onPermissionPoll)
}

// onPermissionPoll detects revocation while recording and a new grant
// while recovery is pending.
func (c *Controller) onPermissionPoll() {
	c.permPoll = nil
	granted := c.deps.Permission.HasPermission(c.runCtx)

	switch {
	case !granted && c.lc.State() == StateRecording:
		c.permissionLost = true
		c.logger.Warn("screen capture permission revoked")
		c.lastErr = domain.ErrPermissionDenied
		c.teardown("permission revoked")
		c.recovering = c.recovery.Schedule(domain.ErrPermissionDenied)
		c.notify(domain.Alert{Kind: domain.AlertPermissionRevoked, Reason: domain.ErrPermissionDenied, Recovering: c.recovering})
	case !granted:
		c.permissionLost = true
	case c.permissionLost:
		c.permissionLost = false
		c.logger.Info("screen capture permission granted")
		c.recovery.Nudge()
	}

	if c.lc.State() == StateRecording || c.recovery.Pending() {
		if !c.permPoll.pending() {
			c.schedulePermissionPoll()
		}
	}
	c.publish()
}

func (c *Controller) onBatteryChange(snap domain.BatterySnapshot) {
	c.logger.Debug("battery state changed",
		ports.Bool("available", snap.Available),
		ports.Bool("on_battery", snap.OnBattery),
		ports.Float64("level", snap.Level),
	)
	s := c.deps.Settings.Settings()
	c.applyBatteryPolicy(s, snap)
	c.applyLoadPolicy(s, c.load.High())
	c.publish()
}

func (c *Controller) onLoadChange(high bool) {
	c.applyLoadPolicy(c.deps.Settings.Settings(), high)
	c.publish()
}

func (c *Controller) loadThresholds() (high, low float64) {
	s := c.deps.Settings.Settings()
	return s.LoadHighThreshold, s.LoadLowThreshold
}

// applyPolicies re-evaluates both resource policies against the latest
// observations.
func (c *Controller) applyPolicies() {
	s := c.deps.Settings.Settings()
	c.quality.SetUserQuality(s.Quality)
	c.applyBatteryPolicy(s, c.battery.Last())
	c.applyLoadPolicy(s, c.load.High())
}

func (c *Controller) applyBatteryPolicy(s domain.Settings, snap domain.BatterySnapshot) {
	onBattery := snap.Available && snap.OnBattery

	switch s.BatteryPolicy {
	case domain.BatteryReduceQuality:
		if onBattery {
			c.degrade(ReasonBattery)
		} else {
			c.restore(ReasonBattery)
		}
	case domain.BatteryPause:
		c.restore(ReasonBattery)
		low := onBattery && snap.Level < s.BatteryThreshold
		switch {
		case low && c.lc.State() == StateRecording:
			c.logger.Info("battery low, pausing recording", ports.Float64("level", snap.Level))
			if err := c.pause("battery low"); err == nil {
				c.pausedByBattery = true
			}
		case !low && c.pausedByBattery && c.lc.State() == StatePaused:
			c.pausedByBattery = false
			c.logger.Info("battery recovered, resuming recording", ports.Float64("level", snap.Level))
			if err := c.start(); err != nil {
				c.logger.Warn("failed to resume after battery pause", ports.Err(err))
			}
		}
	default:
		c.restore(ReasonBattery)
	}
}

func (c *Controller) applyLoadPolicy(s domain.Settings, high bool) {
	if high && s.AdaptiveQuality {
		c.degrade(ReasonLoad)
		return
	}
	c.restore(ReasonLoad)
}

func (c *Controller) degrade(reason DegradeReason) {
	from, to, changed := c.quality.Degrade(reason)
	if !changed {
		return
	}
	c.logger.Info("quality degraded",
		ports.String("reason", reason.String()),
		ports.String("from", from.String()),
		ports.String("to", to.String()),
	)
	if from != to {
		c.notify(domain.Alert{Kind: domain.AlertQualityDegraded, From: from, To: to})
	}
}

func (c *Controller) restore(reason DegradeReason) {
	if c.quality.Restore(reason) {
		c.logger.Info("quality restored",
			ports.String("reason", reason.String()),
			ports.String("quality", c.quality.Effective().String()),
		)
	}
}
