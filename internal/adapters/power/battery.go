// Package power implements the battery and system load probes.
package power

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bft-labs/rollcam/internal/domain"
)

// DefaultPowerSupplyDir is where Linux exposes power supplies.
const DefaultPowerSupplyDir = "/sys/class/power_supply"

// SysfsBattery implements ports.BatteryProbe from /sys/class/power_supply.
type SysfsBattery struct {
	dir string
}

// NewSysfsBattery creates a probe reading supplies under dir
// (DefaultPowerSupplyDir when empty).
func NewSysfsBattery(dir string) *SysfsBattery {
	if dir == "" {
		dir = DefaultPowerSupplyDir
	}
	return &SysfsBattery{dir: dir}
}

// Battery aggregates all supplies. A machine with no battery reports an
// unavailable snapshot and no error. Running on battery means no mains
// supply is online, or, without a mains entry, a discharging battery.
func (b *SysfsBattery) Battery() (domain.BatterySnapshot, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.BatterySnapshot{}, nil
		}
		return domain.BatterySnapshot{}, err
	}

	var (
		batteries   int
		level       float64
		discharging bool
		mains       bool
		mainsOnline bool
	)
	for _, e := range entries {
		dir := filepath.Join(b.dir, e.Name())
		switch readString(dir, "type") {
		case "Battery":
			if readString(dir, "present") == "0" {
				continue
			}
			capacity, err := strconv.Atoi(readString(dir, "capacity"))
			if err != nil {
				continue
			}
			batteries++
			level += float64(capacity) / 100
			if readString(dir, "status") == "Discharging" {
				discharging = true
			}
		case "Mains", "USB":
			mains = true
			if readString(dir, "online") == "1" {
				mainsOnline = true
			}
		}
	}

	if batteries == 0 {
		return domain.BatterySnapshot{}, nil
	}
	snap := domain.BatterySnapshot{
		Available: true,
		Level:     level / float64(batteries),
	}
	if mains {
		snap.OnBattery = !mainsOnline
	} else {
		snap.OnBattery = discharging
	}
	return snap, nil
}

func readString(dir, name string) string {
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
