// Package fs implements file-system backed ports: the persistent buffer
// index and the statfs disk probe.
package fs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bft-labs/rollcam/internal/domain"
)

// IndexFileName is the name of the buffer index inside the buffer directory.
const IndexFileName = "buffer-index.json"

// IndexFileRepository implements ports.IndexRepository using a JSON file.
type IndexFileRepository struct {
	dir string
}

// NewIndexFileRepository creates a repository storing its index in dir.
func NewIndexFileRepository(dir string) *IndexFileRepository {
	return &IndexFileRepository{dir: dir}
}

// Load retrieves the last saved index from disk.
// Returns an empty index and nil error if no index file exists.
func (r *IndexFileRepository) Load() (domain.BufferIndex, error) {
	data, err := os.ReadFile(r.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return domain.BufferIndex{}, nil
		}
		return domain.BufferIndex{}, err
	}

	var idx domain.BufferIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return domain.BufferIndex{}, fmt.Errorf("decode %s: %w", IndexFileName, err)
	}
	return idx, nil
}

// Save writes the index to a temp file and renames it into place.
func (r *IndexFileRepository) Save(idx domain.BufferIndex) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return err
	}

	path := r.Path()
	tmp := path + ".tmp"

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Path returns the full path to the index file.
func (r *IndexFileRepository) Path() string {
	return filepath.Join(r.dir, IndexFileName)
}
