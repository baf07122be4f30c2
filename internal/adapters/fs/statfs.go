package fs

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// StatfsProbe implements ports.DiskProbe with statfs(2).
type StatfsProbe struct{}

// NewStatfsProbe creates a disk probe for the local file system.
func NewStatfsProbe() StatfsProbe {
	return StatfsProbe{}
}

// Available returns the bytes available to unprivileged users on the
// volume holding dir.
func (StatfsProbe) Available(dir string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", dir, err)
	}
	return uint64(st.Bavail) * uint64(st.Bsize), nil
}
