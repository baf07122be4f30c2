package domain

import (
	"fmt"
	"strings"
	"time"
)

// BatteryPolicy selects how the recorder reacts to running on battery.
type BatteryPolicy int

const (
	BatteryIgnore BatteryPolicy = iota
	BatteryReduceQuality
	BatteryPause
)

// String returns the config spelling of the policy.
func (p BatteryPolicy) String() string {
	switch p {
	case BatteryReduceQuality:
		return "reduce"
	case BatteryPause:
		return "pause"
	default:
		return "ignore"
	}
}

// ParseBatteryPolicy parses "ignore", "reduce" or "pause".
func ParseBatteryPolicy(s string) (BatteryPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ignore":
		return BatteryIgnore, nil
	case "reduce", "reduce-quality":
		return BatteryReduceQuality, nil
	case "pause":
		return BatteryPause, nil
	default:
		return BatteryIgnore, fmt.Errorf("%w: unknown battery policy %q", ErrInvalidConfig, s)
	}
}

// Settings are the user-configured knobs the core reads at decision points.
// The core never mutates them.
type Settings struct {
	SegmentLength time.Duration
	Quality       Quality

	// Native capture resolution and rate before quality scaling.
	Width     int
	Height    int
	FrameRate int
	Audio     bool

	// Source is the selected capture source id. Empty selects the first available.
	Source string

	BatteryPolicy    BatteryPolicy
	BatteryThreshold float64

	// LoadHighThreshold and LoadLowThreshold bound the load hysteresis band (0.0-1.0).
	LoadHighThreshold float64
	LoadLowThreshold  float64
	AdaptiveQuality   bool
}

// DefaultSettings returns Settings with sensible defaults.
func DefaultSettings() Settings {
	return Settings{
		SegmentLength:     60 * time.Second,
		Quality:           QualityHigh,
		Width:             1920,
		Height:            1080,
		FrameRate:         30,
		BatteryPolicy:     BatteryIgnore,
		BatteryThreshold:  0.20,
		LoadHighThreshold: 0.85,
		LoadLowThreshold:  0.60,
		AdaptiveQuality:   true,
	}
}

// BatterySnapshot is the latest observed power state.
type BatterySnapshot struct {
	// Available is false on machines without a battery.
	Available bool
	OnBattery bool

	// Level is the charge fraction (0.0-1.0).
	Level float64
}
