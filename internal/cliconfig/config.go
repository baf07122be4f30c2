package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bft-labs/rollcam/internal/domain"
)

// Capture backends.
const (
	CaptureX11Grab   = "x11grab"
	CaptureSynthetic = "synthetic"
)

// Segment encoders.
const (
	EncoderRaw    = "raw"
	EncoderFFmpeg = "ffmpeg"
)

// Alert sinks.
const (
	NotifyLog     = "log"
	NotifyDesktop = "desktop"
	NotifyBoth    = "both"
)

// Config holds CLI configuration for rollcam.
type Config struct {
	// BufferDir holds segments and the buffer index.
	// Derived from $HOME/.rollcam/buffer during Validate when empty.
	BufferDir     string
	Capacity      int
	SegmentLength time.Duration

	Capture string
	Encoder string
	Display string
	FFmpeg  string
	Source  string

	Quality   string
	Width     int
	Height    int
	FrameRate int
	Audio     bool

	BatteryPolicy     string
	BatteryThreshold  float64
	LoadHighThreshold float64
	LoadLowThreshold  float64
	AdaptiveQuality   bool

	LowSpaceMB      int
	CriticalSpaceMB int

	RecoveryBaseDelay time.Duration
	RecoveryAttempts  int

	Notify      string
	AutoStart   bool
	WatchConfig bool

	LogLevel string
	LogFile  string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	s := domain.DefaultSettings()
	return Config{
		Capacity:          15,
		SegmentLength:     s.SegmentLength,
		Capture:           CaptureX11Grab,
		Encoder:           EncoderFFmpeg,
		FFmpeg:            "ffmpeg",
		Quality:           s.Quality.String(),
		Width:             s.Width,
		Height:            s.Height,
		FrameRate:         s.FrameRate,
		BatteryPolicy:     s.BatteryPolicy.String(),
		BatteryThreshold:  s.BatteryThreshold,
		LoadHighThreshold: s.LoadHighThreshold,
		LoadLowThreshold:  s.LoadLowThreshold,
		AdaptiveQuality:   s.AdaptiveQuality,
		LowSpaceMB:        2048,
		CriticalSpaceMB:   500,
		RecoveryBaseDelay: 30 * time.Second,
		RecoveryAttempts:  5,
		Notify:            NotifyLog,
		AutoStart:         true,
		WatchConfig:       true,
		LogLevel:          "info",
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.BufferDir == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("buffer-dir is required (no home directory: %v)", err)
		}
		c.BufferDir = filepath.Join(h, ".rollcam", "buffer")
	}

	if c.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive")
	}
	if c.SegmentLength < time.Second {
		return fmt.Errorf("segment length must be at least 1s")
	}

	switch c.Capture {
	case CaptureX11Grab, CaptureSynthetic:
	default:
		return fmt.Errorf("unknown capture backend %q", c.Capture)
	}
	switch c.Encoder {
	case EncoderRaw, EncoderFFmpeg:
	default:
		return fmt.Errorf("unknown encoder %q", c.Encoder)
	}
	switch c.Notify {
	case NotifyLog, NotifyDesktop, NotifyBoth:
	default:
		return fmt.Errorf("unknown notify sink %q", c.Notify)
	}

	if c.CriticalSpaceMB <= 0 || c.LowSpaceMB < c.CriticalSpaceMB {
		return fmt.Errorf("disk thresholds must satisfy 0 < critical (%d MB) <= low (%d MB)", c.CriticalSpaceMB, c.LowSpaceMB)
	}
	if c.RecoveryBaseDelay <= 0 || c.RecoveryAttempts <= 0 {
		return fmt.Errorf("recovery delay and attempts must be positive")
	}

	if _, err := c.Settings(); err != nil {
		return err
	}
	return nil
}

// Settings converts the recording knobs to domain settings.
func (c Config) Settings() (domain.Settings, error) {
	q, err := domain.ParseQuality(c.Quality)
	if err != nil {
		return domain.Settings{}, err
	}
	policy, err := domain.ParseBatteryPolicy(c.BatteryPolicy)
	if err != nil {
		return domain.Settings{}, err
	}
	if c.Width <= 0 || c.Height <= 0 || c.FrameRate <= 0 {
		return domain.Settings{}, fmt.Errorf("%w: capture size and frame rate must be positive", domain.ErrInvalidConfig)
	}
	if c.LoadLowThreshold <= 0 || c.LoadHighThreshold > 1 || c.LoadLowThreshold >= c.LoadHighThreshold {
		return domain.Settings{}, fmt.Errorf("%w: load thresholds must satisfy 0 < low < high <= 1", domain.ErrInvalidConfig)
	}
	if c.BatteryThreshold < 0 || c.BatteryThreshold > 1 {
		return domain.Settings{}, fmt.Errorf("%w: battery threshold must be within 0..1", domain.ErrInvalidConfig)
	}

	return domain.Settings{
		SegmentLength:     c.SegmentLength,
		Quality:           q,
		Width:             c.Width,
		Height:            c.Height,
		FrameRate:         c.FrameRate,
		Audio:             c.Audio,
		Source:            c.Source,
		BatteryPolicy:     policy,
		BatteryThreshold:  c.BatteryThreshold,
		LoadHighThreshold: c.LoadHighThreshold,
		LoadLowThreshold:  c.LoadLowThreshold,
		AdaptiveQuality:   c.AdaptiveQuality,
	}, nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setFloat sets a float64 value if positive and flag not changed.
func (s *configSetter) setFloat(flag string, value float64, dst *float64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setFloatFromString parses a string to float64 and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if f <= 0 {
		return nil
	}
	*dst = f
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
