//go:build !linux

package power

import "errors"

func sysinfoLoad() (float64, error) {
	return 0, errors.New("sysinfo not supported")
}
