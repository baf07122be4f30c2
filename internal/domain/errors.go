package domain

import "errors"

// Domain errors represent error conditions in the rollcam domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrPermissionDenied is returned when capture permission is not granted.
	ErrPermissionDenied = errors.New("rollcam: capture permission denied")

	// ErrNoSourceAvailable is returned when no capture source can be resolved.
	ErrNoSourceAvailable = errors.New("rollcam: no capture source available")

	// ErrStreamSetupFailed is returned when the capture stream cannot be opened.
	ErrStreamSetupFailed = errors.New("rollcam: stream setup failed")

	// ErrEncoderSetupFailed is returned when a segment pipeline cannot be opened.
	ErrEncoderSetupFailed = errors.New("rollcam: encoder setup failed")

	// ErrSegmentFinalizationFailed is returned when a segment cannot be flushed to disk.
	ErrSegmentFinalizationFailed = errors.New("rollcam: segment finalization failed")

	// ErrMaximumRetriesExceeded is the stop reason once the rotation retry budget is spent.
	ErrMaximumRetriesExceeded = errors.New("rollcam: maximum retries exceeded")

	// ErrDiskSpaceLow is returned by start when the buffer volume has no usable space.
	ErrDiskSpaceLow = errors.New("rollcam: disk space low")

	// ErrDiskSpaceCritical is the stop reason when space drops below the critical threshold.
	ErrDiskSpaceCritical = errors.New("rollcam: disk space critical")

	// ErrWatchdogTimeout is the stop reason when rotation stalls and forced rotation fails.
	ErrWatchdogTimeout = errors.New("rollcam: watchdog timeout")

	// ErrSourceDisconnected is reported by capture streams when the source goes away.
	ErrSourceDisconnected = errors.New("rollcam: source disconnected")

	// ErrRecoveryExhausted is the terminal stop reason after all auto-recovery attempts fail.
	ErrRecoveryExhausted = errors.New("rollcam: auto-recovery attempts exhausted")

	// ErrEmptySegment is wrapped into ErrSegmentFinalizationFailed for zero-byte output.
	ErrEmptySegment = errors.New("rollcam: empty segment")

	// ErrOutOfOrder is returned when a segment would break chronological order.
	ErrOutOfOrder = errors.New("rollcam: segment out of chronological order")

	// ErrAlreadyRecording is returned when StartRecording is called while recording.
	ErrAlreadyRecording = errors.New("rollcam: already recording")

	// ErrNotRecording is returned when Pause or Stop is called with nothing to stop.
	ErrNotRecording = errors.New("rollcam: not recording")

	// ErrNotRunning is returned when the coordinator loop is not running.
	ErrNotRunning = errors.New("rollcam: not running")

	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("rollcam: already running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("rollcam: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("rollcam: invalid configuration")
)
