package power

import "golang.org/x/sys/unix"

// loadShift is the fixed-point shift of sysinfo load averages.
const loadShift = 16

func sysinfoLoad() (float64, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, err
	}
	return float64(info.Loads[0]) / float64(1<<loadShift), nil
}
