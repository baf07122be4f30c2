package app

import (
	"time"

	"github.com/bft-labs/rollcam/internal/domain"
	"github.com/bft-labs/rollcam/internal/ports"
)

// Default resource monitor intervals.
const (
	DefaultBatteryPollInterval = 30 * time.Second
	DefaultLoadPollInterval    = 10 * time.Second
	DefaultLoadSustainSamples  = 3
)

// BatteryMonitor polls a BatteryProbe on the coordinator and reports
// snapshot changes.
type BatteryMonitor struct {
	probe    ports.BatteryProbe
	interval time.Duration
	clock    Clock
	post     dispatcher
	logger   ports.Logger
	onChange func(domain.BatterySnapshot)

	last domain.BatterySnapshot
	seen bool
	poll *task
}

func newBatteryMonitor(probe ports.BatteryProbe, interval time.Duration, clock Clock, post dispatcher, logger ports.Logger, onChange func(domain.BatterySnapshot)) *BatteryMonitor {
	return &BatteryMonitor{
		probe:    probe,
		interval: interval,
		clock:    clock,
		post:     post,
		logger:   logger,
		onChange: onChange,
	}
}

// Start samples immediately and then every interval.
func (m *BatteryMonitor) Start() {
	m.sample()
}

// Stop cancels the pending poll.
func (m *BatteryMonitor) Stop() {
	m.poll.cancel()
	m.poll = nil
}

// Last returns the latest snapshot.
func (m *BatteryMonitor) Last() domain.BatterySnapshot {
	return m.last
}

func (m *BatteryMonitor) sample() {
	m.poll = schedule(m.clock, m.post, m.interval, m.sample)

	snap, err := m.probe.Battery()
	if err != nil {
		m.logger.Debug("battery probe failed", ports.Err(err))
		snap = domain.BatterySnapshot{}
	}
	if !m.seen || snap != m.last {
		m.last = snap
		m.seen = true
		m.onChange(snap)
	}
}

// LoadThresholds returns the current high and low load thresholds.
type LoadThresholds func() (high, low float64)

// LoadMonitor polls a LoadProbe and reports high/normal crossings with
// hysteresis: high after sustain consecutive samples at or above the high
// threshold, normal on the first sample below the low threshold.
type LoadMonitor struct {
	probe      ports.LoadProbe
	interval   time.Duration
	sustain    int
	thresholds LoadThresholds
	clock      Clock
	post       dispatcher
	logger     ports.Logger
	onChange   func(high bool)

	high   bool
	streak int
	poll   *task
}

func newLoadMonitor(probe ports.LoadProbe, interval time.Duration, sustain int, thresholds LoadThresholds, clock Clock, post dispatcher, logger ports.Logger, onChange func(bool)) *LoadMonitor {
	if sustain < 1 {
		sustain = 1
	}
	return &LoadMonitor{
		probe:      probe,
		interval:   interval,
		sustain:    sustain,
		thresholds: thresholds,
		clock:      clock,
		post:       post,
		logger:     logger,
		onChange:   onChange,
	}
}

// Start samples immediately and then every interval.
func (m *LoadMonitor) Start() {
	m.sample()
}

// Stop cancels the pending poll.
func (m *LoadMonitor) Stop() {
	m.poll.cancel()
	m.poll = nil
}

// High reports whether load is currently considered high.
func (m *LoadMonitor) High() bool {
	return m.high
}

func (m *LoadMonitor) sample() {
	m.poll = schedule(m.clock, m.post, m.interval, m.sample)

	load, err := m.probe.Load()
	if err != nil {
		m.logger.Debug("load probe failed", ports.Err(err))
		return
	}
	m.observe(load)
}

func (m *LoadMonitor) observe(load float64) {
	high, low := m.thresholds()
	if !m.high {
		if load < high {
			m.streak = 0
			return
		}
		m.streak++
		if m.streak >= m.sustain {
			m.high = true
			m.streak = 0
			m.logger.Info("sustained high system load", ports.Float64("load", load))
			m.onChange(true)
		}
		return
	}
	if load < low {
		m.high = false
		m.logger.Info("system load normal", ports.Float64("load", load))
		m.onChange(false)
	}
}
