package power

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type supply map[string]string

func writeSupplies(t *testing.T, supplies map[string]supply) string {
	t.Helper()
	root := t.TempDir()
	for name, files := range supplies {
		dir := filepath.Join(root, name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		for f, v := range files {
			if err := os.WriteFile(filepath.Join(dir, f), []byte(v+"\n"), 0o644); err != nil {
				t.Fatal(err)
			}
		}
	}
	return root
}

func TestSysfsBattery(t *testing.T) {
	tests := []struct {
		name      string
		supplies  map[string]supply
		available bool
		onBattery bool
		level     float64
	}{
		{
			name:     "desktop",
			supplies: map[string]supply{"AC": {"type": "Mains", "online": "1"}},
		},
		{
			name: "laptop on mains",
			supplies: map[string]supply{
				"AC":   {"type": "Mains", "online": "1"},
				"BAT0": {"type": "Battery", "capacity": "80", "status": "Charging"},
			},
			available: true,
			level:     0.8,
		},
		{
			name: "laptop unplugged",
			supplies: map[string]supply{
				"AC":   {"type": "Mains", "online": "0"},
				"BAT0": {"type": "Battery", "capacity": "15", "status": "Discharging"},
			},
			available: true,
			onBattery: true,
			level:     0.15,
		},
		{
			name: "two batteries no mains entry",
			supplies: map[string]supply{
				"BAT0": {"type": "Battery", "capacity": "40", "status": "Discharging"},
				"BAT1": {"type": "Battery", "capacity": "60", "status": "Discharging"},
			},
			available: true,
			onBattery: true,
			level:     0.5,
		},
		{
			name: "absent battery",
			supplies: map[string]supply{
				"BAT0": {"type": "Battery", "present": "0", "capacity": "0"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewSysfsBattery(writeSupplies(t, tt.supplies))
			snap, err := b.Battery()
			if err != nil {
				t.Fatalf("Battery() error = %v", err)
			}
			if snap.Available != tt.available || snap.OnBattery != tt.onBattery {
				t.Errorf("snapshot = %+v", snap)
			}
			if diff := snap.Level - tt.level; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("level = %v, want %v", snap.Level, tt.level)
			}
		})
	}
}

func TestSysfsBattery_MissingDir(t *testing.T) {
	b := NewSysfsBattery(filepath.Join(t.TempDir(), "none"))
	snap, err := b.Battery()
	if err != nil || snap.Available {
		t.Errorf("Battery() = %+v, %v, want unavailable and nil", snap, err)
	}
}

func TestLoadAverage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loadavg")
	os.WriteFile(path, []byte("3.00 2.50 2.00 4/512 12345\n"), 0o644)

	l := NewLoadAverage(path)
	l.numCPU = func() int { return 4 }
	got, err := l.Load()
	if err != nil || got != 0.75 {
		t.Errorf("Load() = %v, %v, want 0.75", got, err)
	}

	l.numCPU = func() int { return 2 }
	if got, _ := l.Load(); got != 1 {
		t.Errorf("Load() = %v, want capped at 1", got)
	}
}

func TestLoadAverage_Fallbacks(t *testing.T) {
	l := NewLoadAverage(filepath.Join(t.TempDir(), "missing"))
	l.numCPU = func() int { return 2 }

	l.sysinfo = func() (float64, error) { return 1.0, nil }
	if got, _ := l.Load(); got != 0.5 {
		t.Errorf("Load() via sysinfo = %v, want 0.5", got)
	}

	l.sysinfo = func() (float64, error) { return 0, errors.New("unsupported") }
	got, err := l.Load()
	if err != nil || got < 0 || got > 1 {
		t.Errorf("Load() via goroutine heuristic = %v, %v", got, err)
	}
}

func TestGoroutineLoad(t *testing.T) {
	if got := goroutineLoad(20, 4); got != 0.5 {
		t.Errorf("goroutineLoad(20, 4) = %v, want 0.5", got)
	}
	if got := goroutineLoad(500, 4); got != 1 {
		t.Errorf("goroutineLoad(500, 4) = %v, want 1", got)
	}
}
