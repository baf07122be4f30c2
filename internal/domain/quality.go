package domain

import (
	"fmt"
	"strings"
)

// Quality is a rung on the capture quality ladder.
type Quality int

const (
	QualityLow Quality = iota
	QualityMedium
	QualityHigh
)

// bitsPerPixel is the target encoder density used to derive bitrate.
const bitsPerPixel = 0.15

// String returns a human-readable representation of the quality.
func (q Quality) String() string {
	switch q {
	case QualityLow:
		return "low"
	case QualityMedium:
		return "medium"
	case QualityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Scale returns the capture resolution scale factor for the quality.
func (q Quality) Scale() float64 {
	switch q {
	case QualityLow:
		return 0.5
	case QualityMedium:
		return 0.75
	default:
		return 1.0
	}
}

// Lower returns the next rung down the ladder. Low stays Low.
func (q Quality) Lower() Quality {
	if q <= QualityLow {
		return QualityLow
	}
	return q - 1
}

// Dimensions scales a native resolution, rounding down to even values
// as most encoders require.
func (q Quality) Dimensions(width, height int) (int, int) {
	s := q.Scale()
	w := int(float64(width)*s) &^ 1
	h := int(float64(height)*s) &^ 1
	return w, h
}

// BitRate returns the encoder target bitrate in bits per second for a native
// resolution and frame rate at this quality.
func (q Quality) BitRate(width, height, frameRate int) int {
	w, h := q.Dimensions(width, height)
	return int(float64(w*h) * bitsPerPixel * float64(frameRate))
}

// ParseQuality parses "low", "medium" or "high".
func ParseQuality(s string) (Quality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return QualityLow, nil
	case "medium", "med":
		return QualityMedium, nil
	case "high":
		return QualityHigh, nil
	default:
		return QualityHigh, fmt.Errorf("%w: unknown quality %q", ErrInvalidConfig, s)
	}
}
