package rollcam

import (
	"fmt"
	"time"

	"github.com/bft-labs/rollcam/internal/app"
	"github.com/bft-labs/rollcam/internal/domain"
)

// Settings are the recording knobs read at every decision point.
type Settings = domain.Settings

// Quality is a rung on the capture quality ladder.
type Quality = domain.Quality

const (
	QualityLow    = domain.QualityLow
	QualityMedium = domain.QualityMedium
	QualityHigh   = domain.QualityHigh
)

// BatteryPolicy selects what happens on low battery.
type BatteryPolicy = domain.BatteryPolicy

const (
	BatteryIgnore        = domain.BatteryIgnore
	BatteryReduceQuality = domain.BatteryReduceQuality
	BatteryPause         = domain.BatteryPause
)

// DefaultShutdownTimeout bounds Stop.
const DefaultShutdownTimeout = 30 * time.Second

// Config holds the configuration of a Recorder.
type Config struct {
	// BufferDir holds segment files and the buffer index. Required.
	BufferDir string

	// Capacity is the number of segments kept. Default: 15
	Capacity int

	// LowSpaceBytes and CriticalSpaceBytes are the free space thresholds of
	// the buffer volume. Defaults: 2 GiB, 500 MiB
	LowSpaceBytes      uint64
	CriticalSpaceBytes uint64

	// Settings are the initial recording settings.
	// Settings.SegmentLength is fixed once the Recorder is created.
	Settings Settings

	// RecoveryBaseDelay and RecoveryAttempts drive auto-recovery after a
	// fatal recording error. Defaults: 30s, 5 (30s, 60s, 120s, 240s, 480s)
	RecoveryBaseDelay time.Duration
	RecoveryAttempts  int

	// AutoStart begins recording when Start completes.
	AutoStart bool

	// ShutdownTimeout bounds Stop. Default: 30s
	ShutdownTimeout time.Duration

	// Controller overrides the controller tunables (watchdog, retry limits,
	// poll intervals). Zero fields take defaults.
	Controller app.Config
}

// DefaultConfig returns a Config with defaults; BufferDir is left empty.
func DefaultConfig() Config {
	rec := app.DefaultRecoveryConfig()
	return Config{
		Capacity:           15,
		LowSpaceBytes:      2 << 30,
		CriticalSpaceBytes: 500 << 20,
		Settings:           domain.DefaultSettings(),
		RecoveryBaseDelay:  rec.BaseDelay,
		RecoveryAttempts:   rec.MaxAttempts,
		ShutdownTimeout:    DefaultShutdownTimeout,
	}
}

// SetDefaults fills zero values from DefaultConfig.
func (c *Config) SetDefaults() {
	def := DefaultConfig()
	if c.Capacity <= 0 {
		c.Capacity = def.Capacity
	}
	if c.LowSpaceBytes == 0 {
		c.LowSpaceBytes = def.LowSpaceBytes
	}
	if c.CriticalSpaceBytes == 0 {
		c.CriticalSpaceBytes = def.CriticalSpaceBytes
	}
	if c.Settings.SegmentLength <= 0 {
		c.Settings.SegmentLength = def.Settings.SegmentLength
	}
	if c.Settings.Width <= 0 || c.Settings.Height <= 0 {
		c.Settings.Width, c.Settings.Height = def.Settings.Width, def.Settings.Height
	}
	if c.Settings.FrameRate <= 0 {
		c.Settings.FrameRate = def.Settings.FrameRate
	}
	if c.Settings.LoadHighThreshold <= 0 {
		c.Settings.LoadHighThreshold = def.Settings.LoadHighThreshold
	}
	if c.Settings.LoadLowThreshold <= 0 {
		c.Settings.LoadLowThreshold = def.Settings.LoadLowThreshold
	}
	if c.RecoveryBaseDelay <= 0 {
		c.RecoveryBaseDelay = def.RecoveryBaseDelay
	}
	if c.RecoveryAttempts <= 0 {
		c.RecoveryAttempts = def.RecoveryAttempts
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.BufferDir == "" {
		return fmt.Errorf("%w: BufferDir is required", domain.ErrInvalidConfig)
	}
	if c.CriticalSpaceBytes > c.LowSpaceBytes {
		return fmt.Errorf("%w: critical space threshold above low threshold", domain.ErrInvalidConfig)
	}
	s := c.Settings
	if s.LoadLowThreshold >= s.LoadHighThreshold || s.LoadHighThreshold > 1 {
		return fmt.Errorf("%w: load thresholds must satisfy low < high <= 1", domain.ErrInvalidConfig)
	}
	if s.BatteryThreshold < 0 || s.BatteryThreshold > 1 {
		return fmt.Errorf("%w: battery threshold must be within 0..1", domain.ErrInvalidConfig)
	}
	return nil
}
