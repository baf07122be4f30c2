package ports

import "github.com/bft-labs/rollcam/internal/domain"

// DiskProbe reports free space on the volume holding a directory.
type DiskProbe interface {
	// Available returns the bytes available to an unprivileged writer.
	Available(dir string) (uint64, error)
}

// IndexRepository persists rolling buffer metadata for crash recovery.
// Implementations persist the index atomically.
type IndexRepository interface {
	// Load retrieves the last saved index.
	// Returns an empty index and nil error if no index exists.
	Load() (domain.BufferIndex, error)

	// Save persists the index atomically.
	Save(idx domain.BufferIndex) error
}
