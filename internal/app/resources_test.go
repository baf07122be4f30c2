package app

import (
	"errors"
	"testing"
	"time"

	"github.com/bft-labs/rollcam/internal/domain"
)

type loadSeries struct {
	values []float64
	err    error
}

func (s *loadSeries) Load() (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	v := s.values[0]
	if len(s.values) > 1 {
		s.values = s.values[1:]
	}
	return v, nil
}

func TestLoadMonitor_Hysteresis(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
		want    []bool
	}{
		{"short spike ignored", []float64{0.9, 0.9, 0.5, 0.9, 0.9, 0.5}, nil},
		{"sustained high", []float64{0.9, 0.9, 0.9}, []bool{true}},
		{"band keeps high", []float64{0.9, 0.9, 0.9, 0.7, 0.65, 0.6}, []bool{true}},
		{"drop below low restores", []float64{0.9, 0.9, 0.9, 0.7, 0.59}, []bool{true, false}},
		{"second episode", []float64{0.9, 0.9, 0.9, 0.1, 0.95, 0.95, 0.95}, []bool{true, false, true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []bool
			clock := newFakeClock(epoch)
			m := newLoadMonitor(&loadSeries{values: tt.samples}, 10*time.Second, 3,
				func() (float64, float64) { return 0.85, 0.60 },
				clock, direct, mockLogger{}, func(high bool) { got = append(got, high) })

			m.Start()
			clock.Advance(time.Duration(len(tt.samples)-1) * 10 * time.Second)
			m.Stop()

			if len(got) != len(tt.want) {
				t.Fatalf("events = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("event %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestLoadMonitor_ProbeErrorKeepsPolling(t *testing.T) {
	clock := newFakeClock(epoch)
	probe := &loadSeries{err: errors.New("no /proc")}
	calls := 0
	m := newLoadMonitor(probe, 10*time.Second, 3, func() (float64, float64) { return 0.85, 0.6 },
		clock, direct, mockLogger{}, func(bool) { calls++ })

	m.Start()
	probe.err = nil
	probe.values = []float64{0.9}
	clock.Advance(30 * time.Second)

	if calls != 1 || !m.High() {
		t.Errorf("calls = %d high = %v, want monitor to recover after probe errors", calls, m.High())
	}
}

type batterySeries struct{ snaps []domain.BatterySnapshot }

func (s *batterySeries) Battery() (domain.BatterySnapshot, error) {
	v := s.snaps[0]
	if len(s.snaps) > 1 {
		s.snaps = s.snaps[1:]
	}
	return v, nil
}

func TestBatteryMonitor_ReportsChangesOnly(t *testing.T) {
	ac := domain.BatterySnapshot{Available: true, Level: 0.9}
	bat := domain.BatterySnapshot{Available: true, OnBattery: true, Level: 0.9}

	var got []domain.BatterySnapshot
	clock := newFakeClock(epoch)
	m := newBatteryMonitor(&batterySeries{snaps: []domain.BatterySnapshot{ac, ac, bat, bat, ac}},
		30*time.Second, clock, direct, mockLogger{}, func(s domain.BatterySnapshot) { got = append(got, s) })

	m.Start()
	clock.Advance(2 * time.Minute)
	m.Stop()

	want := []domain.BatterySnapshot{ac, bat, ac}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if m.Last() != ac {
		t.Errorf("Last() = %+v", m.Last())
	}
}
