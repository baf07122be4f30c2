// Package buffer implements the rolling segment buffer: an ordered,
// capacity-bounded set of segment files with disk-space checks, validation,
// oldest-first eviction and startup crash recovery.
package buffer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bft-labs/rollcam/internal/domain"
	"github.com/bft-labs/rollcam/internal/ports"
)

// Config holds the rolling buffer limits and thresholds.
type Config struct {
	// Dir is the buffer directory holding segment files and the index.
	Dir string

	// Capacity is the maximum number of segments kept. Default: 15
	Capacity int

	// SegmentLength is the fixed duration of each segment. Default: 60s
	SegmentLength time.Duration

	// Extension is the segment file extension without the dot. Default: "mp4"
	Extension string

	// LowSpaceBytes is the free space at or below which space is reported low.
	// Default: 2 GiB
	LowSpaceBytes uint64

	// CriticalSpaceBytes is the free space at or below which recording must stop.
	// Default: 500 MiB
	CriticalSpaceBytes uint64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:           15,
		SegmentLength:      60 * time.Second,
		Extension:          "mp4",
		LowSpaceBytes:      2 << 30,
		CriticalSpaceBytes: 500 << 20,
	}
}

// MaxDuration returns the total duration the buffer may cover.
func (c Config) MaxDuration() time.Duration {
	return time.Duration(c.Capacity) * c.SegmentLength
}

// DiskSpace is the result of a disk space check.
type DiskSpace struct {
	HasSpace       bool
	IsLowSpace     bool
	AvailableBytes uint64
}

// AvailableMB returns the available space in mebibytes.
func (d DiskSpace) AvailableMB() uint64 {
	return d.AvailableBytes >> 20
}

// Store is the rolling buffer. Segments are kept oldest-first.
// Mutations come from the recording controller (and the recovery scanner at
// startup); readers may take snapshots concurrently.
type Store struct {
	mu       sync.RWMutex
	cfg      Config
	disk     ports.DiskProbe
	index    ports.IndexRepository
	logger   ports.Logger
	segments []domain.Segment
}

// New creates the buffer directory if needed and reloads the persisted index.
// Index records whose files no longer exist are dropped.
func New(cfg Config, disk ports.DiskProbe, index ports.IndexRepository, logger ports.Logger) (*Store, error) {
	def := DefaultConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.SegmentLength <= 0 {
		cfg.SegmentLength = def.SegmentLength
	}
	if cfg.Extension == "" {
		cfg.Extension = def.Extension
	}
	if cfg.CriticalSpaceBytes == 0 {
		cfg.CriticalSpaceBytes = def.CriticalSpaceBytes
	}
	if cfg.LowSpaceBytes == 0 {
		cfg.LowSpaceBytes = def.LowSpaceBytes
	}
	if cfg.LowSpaceBytes < cfg.CriticalSpaceBytes {
		cfg.LowSpaceBytes = cfg.CriticalSpaceBytes
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("%w: buffer directory is required", domain.ErrInvalidConfig)
	}
	if disk == nil || index == nil || logger == nil {
		return nil, fmt.Errorf("%w: buffer store requires disk probe, index and logger", domain.ErrInvalidConfig)
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create buffer directory: %w", err)
	}

	s := &Store{cfg: cfg, disk: disk, index: index, logger: logger}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadIndex() error {
	idx, err := s.index.Load()
	if err != nil {
		// The crash recovery scan re-adopts the files an unreadable index
		// referenced.
		s.logger.Warn("buffer index unreadable, starting empty", ports.Err(err))
		return nil
	}

	records := append([]domain.SegmentRecord(nil), idx.Segments...)
	sort.SliceStable(records, func(i, j int) bool { return records[i].Start.Before(records[j].Start) })

	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for _, rec := range records {
		path := filepath.Join(s.cfg.Dir, rec.File)
		info, err := os.Stat(path)
		if err != nil {
			dropped++
			continue
		}
		if n := len(s.segments); n > 0 && !rec.Start.After(s.segments[n-1].Start) {
			dropped++
			continue
		}
		s.segments = append(s.segments, domain.Segment{
			Path:     path,
			Start:    rec.Start,
			Duration: rec.Duration,
			Size:     info.Size(),
			Valid:    info.Size() > 0,
		})
	}
	s.evictLocked()

	if dropped > 0 {
		s.logger.Warn("buffer index referenced missing segments",
			ports.Int("dropped", dropped),
			ports.Int("kept", len(s.segments)),
		)
		s.persistLocked()
	}
	return nil
}

// AddSegment appends a finalized segment to the tail and evicts from the head
// while the buffer exceeds its count or duration bound.
// Returns ErrOutOfOrder if start does not follow the current tail.
func (s *Store) AddSegment(path string, start time.Time, duration time.Duration) error {
	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.appendLocked(domain.Segment{
		Path:     path,
		Start:    start,
		Duration: duration,
		Size:     size,
		Valid:    size > 0,
	}); err != nil {
		return err
	}
	s.evictLocked()
	s.persistLocked()
	return nil
}

func (s *Store) appendLocked(seg domain.Segment) error {
	if n := len(s.segments); n > 0 && !seg.Start.After(s.segments[n-1].Start) {
		return fmt.Errorf("%w: %s starts at %s, tail starts at %s",
			domain.ErrOutOfOrder, seg.Name(), seg.Start.Format(time.RFC3339), s.segments[n-1].Start.Format(time.RFC3339))
	}
	s.segments = append(s.segments, seg)
	return nil
}

// evictLocked drops the oldest segments until both bounds hold.
func (s *Store) evictLocked() int {
	limit := s.cfg.MaxDuration()
	evicted := 0
	for len(s.segments) > 0 && (len(s.segments) > s.cfg.Capacity || s.durationLocked() > limit) {
		head := s.segments[0]
		s.segments = s.segments[1:]
		s.removeFile(head.Path)
		evicted++
		s.logger.Debug("evicted segment",
			ports.String("segment", head.Name()),
			ports.Time("start", head.Start),
		)
	}
	return evicted
}

func (s *Store) durationLocked() time.Duration {
	var total time.Duration
	for _, seg := range s.segments {
		total += seg.Duration
	}
	return total
}

// removeFile deletes a segment file. Failures are logged, not fatal.
func (s *Store) removeFile(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("failed to remove segment file",
			ports.String("path", path),
			ports.Err(err),
		)
	}
}

// CheckDiskSpace reports free space against the low and critical thresholds.
// A probe failure is reported as no space.
func (s *Store) CheckDiskSpace() DiskSpace {
	avail, err := s.disk.Available(s.cfg.Dir)
	if err != nil {
		s.logger.Error("disk space check failed", ports.Err(err))
		return DiskSpace{HasSpace: false, IsLowSpace: true}
	}
	return DiskSpace{
		HasSpace:       avail > s.cfg.CriticalSpaceBytes,
		IsLowSpace:     avail <= s.cfg.LowSpaceBytes,
		AvailableBytes: avail,
	}
}

// ValidateBuffer removes segments whose file is missing or empty.
// Returns the number of segments removed.
func (s *Store) ValidateBuffer() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.segments[:0]
	removed := 0
	for _, seg := range s.segments {
		info, err := os.Stat(seg.Path)
		if err != nil || info.Size() == 0 {
			if err == nil {
				s.removeFile(seg.Path)
			}
			removed++
			s.logger.Warn("removed invalid segment",
				ports.String("segment", seg.Name()),
				ports.Bool("missing", err != nil),
			)
			continue
		}
		seg.Size = info.Size()
		seg.Valid = true
		kept = append(kept, seg)
	}
	s.segments = kept

	if removed > 0 {
		s.persistLocked()
	}
	return removed
}

// ClearBuffer deletes every segment file and empties the buffer.
// Records are dropped even when a file cannot be removed.
func (s *Store) ClearBuffer() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, seg := range s.segments {
		if err := os.Remove(seg.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	count := len(s.segments)
	s.segments = nil
	s.persistLocked()

	s.logger.Info("buffer cleared", ports.Int("segments", count))
	return errors.Join(errs...)
}

// CurrentBufferDuration returns the total duration covered by the buffer.
func (s *Store) CurrentBufferDuration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.durationLocked()
}

// Segments returns a snapshot of the buffer, oldest first.
func (s *Store) Segments() []domain.Segment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Segment(nil), s.segments...)
}

// Len returns the number of segments in the buffer.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.segments)
}

// Tail returns the newest segment.
func (s *Store) Tail() (domain.Segment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.segments) == 0 {
		return domain.Segment{}, false
	}
	return s.segments[len(s.segments)-1], true
}

// Dir returns the buffer directory.
func (s *Store) Dir() string {
	return s.cfg.Dir
}

// Config returns the effective buffer configuration.
func (s *Store) Config() Config {
	return s.cfg
}

// SegmentPath returns the file path for a segment starting at start.
func (s *Store) SegmentPath(start time.Time) string {
	return filepath.Join(s.cfg.Dir, domain.SegmentFileName(start, s.cfg.Extension))
}

func (s *Store) persistLocked() {
	idx := domain.BufferIndex{
		Segments:  make([]domain.SegmentRecord, 0, len(s.segments)),
		UpdatedAt: time.Now().UTC(),
	}
	for _, seg := range s.segments {
		idx.Segments = append(idx.Segments, domain.SegmentRecord{
			File:     seg.Name(),
			Start:    seg.Start,
			Duration: seg.Duration,
			Size:     seg.Size,
		})
	}
	if err := s.index.Save(idx); err != nil {
		s.logger.Error("failed to save buffer index", ports.Err(err))
	}
}
