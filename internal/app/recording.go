package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/rollcam/internal/buffer"
	"github.com/bft-labs/rollcam/internal/domain"
	"github.com/bft-labs/rollcam/internal/ports"
)

// userStart is StartRecording: a successful manual start supersedes any
// pending retry or recovery.
func (c *Controller) userStart() error {
	if err := c.start(); err != nil {
		return err
	}
	c.cancelFaultRetry()
	c.recovery.Cancel()
	c.recovering = false
	c.pausedByBattery = false
	c.publish()
	return nil
}

func (c *Controller) userStop() error {
	wasRecovering := c.recovering || c.recovery.Pending() || c.faultRetry.pending()
	c.recovery.Cancel()
	c.cancelFaultRetry()
	c.recovering = false
	c.pausedByBattery = false
	c.permPoll.cancel()

	if !c.lc.Active() {
		c.publish()
		if wasRecovering {
			return nil
		}
		return domain.ErrNotRecording
	}
	c.teardown("user stop")
	c.publish()
	return nil
}

// start acquires capture, opens the first segment and arms the timers.
// Preconditions are checked before any state changes.
func (c *Controller) start() error {
	switch c.lc.State() {
	case StateRecording, StateStarting:
		return domain.ErrAlreadyRecording
	case StateStopping:
		return fmt.Errorf("%w: stop in progress", ErrInvalidTransition)
	}
	if err := c.checkPreconditions(); err != nil {
		return err
	}

	settings := c.deps.Settings.Settings()
	if err := c.lc.TransitionTo(StateStarting, "start requested"); err != nil {
		return err
	}
	c.settings = settings
	c.quality.SetUserQuality(settings.Quality)

	if err := c.acquire(settings); err != nil {
		c.release()
		c.lastErr = err
		_ = c.lc.TransitionTo(StateIdle, "start failed")
		c.logger.Error("failed to start recording", ports.Err(err))
		c.publish()
		return err
	}

	c.session = uuid.NewString()
	c.retries = 0
	c.lastErr = nil
	c.lowSpace = false
	c.diskCritical = false
	c.permissionLost = false
	c.scheduleRotation()
	c.watchdog.SetInterval(c.watchdogInterval())
	c.watchdog.Arm()
	c.schedulePermissionPoll()

	_ = c.lc.TransitionTo(StateRecording, "capture started")
	c.logger.Info("recording started",
		ports.String("session", c.session),
		ports.String("source", c.source.ID),
		ports.String("quality", c.quality.Effective().String()),
		ports.Duration("segment_length", c.segmentLength()),
	)
	c.publish()
	return nil
}

// acquire resolves the source, opens the stream and the first pipeline.
func (c *Controller) acquire(settings domain.Settings) error {
	src, err := c.resolveSource(settings)
	if err != nil {
		return err
	}

	input := ports.StreamConfig{
		Width:       settings.Width,
		Height:      settings.Height,
		FrameRate:   settings.FrameRate,
		PixelFormat: c.cfg.PixelFormat,
		Audio:       settings.Audio,
	}
	if src.Width > 0 && src.Height > 0 {
		input.Width, input.Height = src.Width, src.Height
	}

	stream, err := c.deps.Capture.OpenStream(c.runCtx, src, input)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStreamSetupFailed, err)
	}
	c.source = src
	c.input = input
	c.stream = stream
	c.streamGen++
	go c.forward(c.streamGen, stream)

	return c.openSegment()
}

// resolveSource picks the selected source, falling back to the first
// listed one.
func (c *Controller) resolveSource(settings domain.Settings) (ports.SourceDescriptor, error) {
	sources, err := c.deps.Capture.ListSources(c.runCtx)
	if err != nil {
		return ports.SourceDescriptor{}, fmt.Errorf("%w: %v", domain.ErrNoSourceAvailable, err)
	}
	if len(sources) == 0 {
		return ports.SourceDescriptor{}, domain.ErrNoSourceAvailable
	}

	want := c.sourceOverride
	if want == "" {
		want = settings.Source
	}
	if want == "" {
		return sources[0], nil
	}
	for _, s := range sources {
		if s.ID == want {
			return s, nil
		}
	}
	c.logger.Warn("selected source unavailable, using fallback",
		ports.String("selected", want),
		ports.String("fallback", sources[0].ID),
	)
	return sources[0], nil
}

// release closes the stream and aborts any open pipeline.
func (c *Controller) release() {
	if c.pipeline != nil {
		c.pipeline.Abort()
		c.removeOutput(c.segPath)
		c.pipeline = nil
	}
	if c.stream != nil {
		// Bump the generation so late events from this stream are ignored.
		c.streamGen++
		if err := c.stream.Close(); err != nil {
			c.logger.Warn("failed to close capture stream", ports.Err(err))
		}
		c.stream = nil
	}
}

// teardown stops recording: timers cancelled, in-flight segment
// finalized, capture released, state back to Idle.
func (c *Controller) teardown(reason string) {
	c.cancelRecordingTimers()
	if err := c.finalizeSegment(); err != nil {
		c.logger.Error("failed to finalize segment on stop", ports.Err(err))
	}
	c.release()
	c.segStart = time.Time{}

	switch c.lc.State() {
	case StateRecording, StatePaused:
		_ = c.lc.TransitionTo(StateStopping, reason)
		_ = c.lc.TransitionTo(StateIdle, reason)
	}
	c.logger.Info("recording stopped", ports.String("reason", reason), ports.String("session", c.session))
}

// pause finalizes the current segment and releases capture.
func (c *Controller) pause(reason string) error {
	if c.lc.State() != StateRecording {
		return domain.ErrNotRecording
	}
	c.cancelRecordingTimers()
	if err := c.finalizeSegment(); err != nil {
		c.logger.Error("failed to finalize segment on pause", ports.Err(err))
	}
	c.release()
	c.segStart = time.Time{}
	_ = c.lc.TransitionTo(StatePaused, reason)
	c.publish()
	return nil
}

func (c *Controller) cancelRecordingTimers() {
	c.rotation.cancel()
	c.rotation = nil
	c.watchdog.Disarm()
	if !c.recovery.Pending() {
		c.permPoll.cancel()
		c.permPoll = nil
	}
}

func (c *Controller) segmentLength() time.Duration {
	return c.store.Config().SegmentLength
}

func (c *Controller) watchdogInterval() time.Duration {
	if c.cfg.WatchdogInterval > 0 {
		return c.cfg.WatchdogInterval
	}
	return c.segmentLength() * 3 / 2
}

func (c *Controller) scheduleRotation() {
	c.rotation.cancel()
	c.rotation = schedule(c.clock, c.post, c.segmentLength(), c.onRotationTick)
}

// openSegment starts the next pipeline eagerly. Start times are whole
// seconds and strictly increase so file names never collide.
func (c *Controller) openSegment() error {
	start := c.clock.Now().Truncate(time.Second)
	if !start.After(c.lastStart) {
		start = c.lastStart.Add(time.Second)
	}
	if tail, ok := c.store.Tail(); ok && !start.After(tail.Start) {
		start = tail.Start.Add(time.Second)
	}

	q := c.quality.Effective()
	w, h := q.Dimensions(c.input.Width, c.input.Height)
	spec := ports.SegmentSpec{
		Path:      c.store.SegmentPath(start),
		Start:     start,
		Width:     w,
		Height:    h,
		FrameRate: c.input.FrameRate,
		BitRate:   q.BitRate(c.input.Width, c.input.Height, c.input.FrameRate),
		Quality:   q,
		Input:     c.input,
	}
	p, err := c.deps.Encoder.Open(c.runCtx, spec)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrEncoderSetupFailed, err)
	}
	c.pipeline = p
	c.segStart = start
	c.segPath = spec.Path
	c.lastStart = start
	c.logger.Debug("segment opened",
		ports.String("path", spec.Path),
		ports.String("quality", q.String()),
		ports.Int("bitrate", spec.BitRate),
	)
	return nil
}

// finalizeSegment flushes the open pipeline and appends its output to the
// buffer. Empty output is removed and reported as a failure.
func (c *Controller) finalizeSegment() error {
	p := c.pipeline
	if p == nil {
		return nil
	}
	c.pipeline = nil
	path, start := c.segPath, c.segStart

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.FinalizeTimeout)
	defer cancel()
	size, err := p.Finalize(ctx)

	if dropped := p.Dropped(); dropped > 0 {
		c.encoderDropped += dropped
		c.logger.Warn("encoder dropped samples",
			ports.String("path", path),
			ports.Uint64("dropped", dropped),
		)
	}
	if err != nil {
		p.Abort()
		c.removeOutput(path)
		return fmt.Errorf("%w: %v", domain.ErrSegmentFinalizationFailed, err)
	}
	if size <= 0 {
		c.logger.Error("encoder produced an empty segment", ports.String("path", path))
		c.removeOutput(path)
		return fmt.Errorf("%w: %w", domain.ErrSegmentFinalizationFailed, domain.ErrEmptySegment)
	}

	if err := c.store.AddSegment(path, start, c.segmentLength()); err != nil {
		c.removeOutput(path)
		return fmt.Errorf("%w: %w", domain.ErrSegmentFinalizationFailed, err)
	}
	c.logger.Debug("segment finalized",
		ports.String("path", path),
		ports.Int64("size", size),
		ports.Int("segments", c.store.Len()),
	)
	return nil
}

func (c *Controller) removeOutput(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.logger.Warn("failed to remove segment output", ports.String("path", path), ports.Err(err))
	}
}

func (c *Controller) onRotationTick() {
	c.rotation = nil
	if c.lc.State() != StateRecording {
		return
	}
	// Policies are re-read once per segment so live settings changes apply.
	c.applyPolicies()
	if c.lc.State() != StateRecording {
		return
	}

	err := c.rotate()
	switch {
	case err == nil, errors.Is(err, domain.ErrDiskSpaceCritical):
	default:
		c.rotationFailed(err, domain.ErrMaximumRetriesExceeded)
	}
	c.publish()
}

// rotate finalizes the current segment and opens the next one.
// A critical disk stops recording before anything is finalized into a new
// segment and returns ErrDiskSpaceCritical.
func (c *Controller) rotate() error {
	space := c.store.CheckDiskSpace()
	if !space.HasSpace {
		c.stopForDiskSpace(space)
		return domain.ErrDiskSpaceCritical
	}
	if space.IsLowSpace {
		if !c.lowSpace {
			c.lowSpace = true
			c.logger.Warn("disk space low", ports.Uint64("available_mb", space.AvailableMB()))
			c.notify(domain.Alert{Kind: domain.AlertDiskSpaceLow, AvailableMB: space.AvailableMB()})
		}
	} else {
		c.lowSpace = false
	}

	if err := c.finalizeSegment(); err != nil {
		// The failed pipeline is gone; keep capturing into a fresh one.
		if oerr := c.openSegment(); oerr != nil {
			c.logger.Error("failed to reopen segment", ports.Err(oerr))
		}
		return err
	}
	if err := c.openSegment(); err != nil {
		return err
	}

	c.retries = 0
	c.faultBackoff.Reset()
	c.watchdog.Arm()
	c.scheduleRotation()
	return nil
}

// rotationFailed counts a failed rotation. At the limit recording stops
// with limitReason and auto-recovery takes over.
func (c *Controller) rotationFailed(err, limitReason error) {
	c.retries++
	c.logger.Warn("segment rotation failed",
		ports.Int("retries", c.retries),
		ports.Int("max_retries", c.cfg.MaxRetries),
		ports.Err(err),
	)
	if c.retries >= c.cfg.MaxRetries {
		reason := fmt.Errorf("%w: %w", limitReason, err)
		c.fail(reason, domain.Alert{Kind: domain.AlertRecordingStopped, Reason: reason})
		return
	}
	c.scheduleRotation()
}

func (c *Controller) stopForDiskSpace(space buffer.DiskSpace) {
	c.logger.Error("disk space critical, stopping recording",
		ports.Uint64("available_mb", space.AvailableMB()),
	)
	c.diskCritical = true
	reason := fmt.Errorf("%w: %d MB available", domain.ErrDiskSpaceCritical, space.AvailableMB())
	c.fail(reason, domain.Alert{
		Kind:        domain.AlertDiskSpaceCritical,
		Reason:      reason,
		AvailableMB: space.AvailableMB(),
	})
}

func (c *Controller) onWatchdogStall() {
	if c.lc.State() != StateRecording {
		return
	}
	c.logger.Warn("segment rotation stalled",
		ports.Duration("window", c.watchdogInterval()),
		ports.Time("segment_start", c.segStart),
	)
	if removed := c.store.ValidateBuffer(); removed > 0 {
		c.logger.Warn("watchdog validation removed segments", ports.Int("removed", removed))
	}

	err := c.rotate()
	switch {
	case err == nil, errors.Is(err, domain.ErrDiskSpaceCritical):
	default:
		c.rotationFailed(err, domain.ErrWatchdogTimeout)
		if c.lc.State() == StateRecording {
			c.watchdog.Arm()
		}
	}
	c.publish()
}

// fail stops recording after a terminal error, emits exactly one alert and
// hands off to auto-recovery.
func (c *Controller) fail(reason error, alert domain.Alert) {
	c.lastErr = reason
	c.cancelFaultRetry()
	if c.lc.Active() {
		c.teardown(reason.Error())
	}
	c.retries = 0
	c.recovering = c.recovery.Schedule(reason)
	if c.recovering {
		c.schedulePermissionPoll()
	}
	alert.Recovering = c.recovering
	c.notify(alert)
	c.publish()
}

func (c *Controller) switchSource(id string) error {
	wasRecording := c.lc.State() == StateRecording
	if wasRecording {
		c.teardown("source switch")
	}
	if err := c.store.ClearBuffer(); err != nil {
		c.logger.Warn("failed to remove some segments on source switch", ports.Err(err))
	}
	c.sourceOverride = id
	c.source = ports.SourceDescriptor{ID: id}
	c.logger.Info("capture source switched", ports.String("source", id))
	c.publish()
	if wasRecording {
		return c.start()
	}
	return nil
}
