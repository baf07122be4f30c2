package ports

import "github.com/bft-labs/rollcam/internal/domain"

// BatteryProbe reads the current power state.
type BatteryProbe interface {
	// Battery returns the latest snapshot. Errors are treated as "no battery".
	Battery() (domain.BatterySnapshot, error)
}

// LoadProbe reads the current system load.
type LoadProbe interface {
	// Load returns an approximate CPU utilization fraction (0.0-1.0).
	Load() (float64, error)
}
