package power

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// DefaultLoadAvgPath is the kernel's load average file.
const DefaultLoadAvgPath = "/proc/loadavg"

// LoadAverage implements ports.LoadProbe as the one-minute load average
// divided by the CPU count, capped at 1. When neither /proc/loadavg nor
// sysinfo(2) is readable it falls back to the goroutine-per-CPU heuristic.
type LoadAverage struct {
	path   string
	numCPU func() int

	// sysinfo returns the one-minute load average; nil where unsupported.
	sysinfo func() (float64, error)
}

// NewLoadAverage creates a load probe reading path
// (DefaultLoadAvgPath when empty).
func NewLoadAverage(path string) *LoadAverage {
	if path == "" {
		path = DefaultLoadAvgPath
	}
	return &LoadAverage{path: path, numCPU: runtime.NumCPU, sysinfo: sysinfoLoad}
}

func (l *LoadAverage) Load() (float64, error) {
	cpus := l.numCPU()
	if cpus < 1 {
		cpus = 1
	}

	avg, err := readLoadAvg(l.path)
	if err != nil && l.sysinfo != nil {
		avg, err = l.sysinfo()
	}
	if err != nil {
		return goroutineLoad(runtime.NumGoroutine(), cpus), nil
	}
	return clamp(avg / float64(cpus)), nil
}

func readLoadAvg(path string) (float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(b))
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty %s", path)
	}
	return strconv.ParseFloat(fields[0], 64)
}

// goroutineLoad treats ten goroutines per CPU as full load.
func goroutineLoad(goroutines, cpus int) float64 {
	return clamp(float64(goroutines) / float64(cpus*10))
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
