package buffer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bft-labs/rollcam/internal/domain"
	"github.com/bft-labs/rollcam/internal/ports"
)

// mediaExtensions are the extensions treated as segment-like during recovery,
// in addition to the configured one.
var mediaExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".mkv":  true,
	".ts":   true,
	".rcam": true,
}

// RecoveryReport summarizes one crash recovery scan.
type RecoveryReport struct {
	// Recovered is the number of orphaned files adopted into the buffer.
	Recovered int

	// Deleted is the number of zero-byte crash artifacts removed.
	Deleted int

	// Skipped is the number of orphans left alone because another segment
	// already starts at the same time.
	Skipped int

	// Invalid is the number of segments dropped by the post-scan validation.
	Invalid int
}

// RecoveryScanner reconciles segment files on disk with the buffer metadata
// after an unclean shutdown. It must run before recording starts.
type RecoveryScanner struct {
	store  *Store
	logger ports.Logger
	now    func() time.Time
}

// NewRecoveryScanner creates a scanner for the given store.
// now supplies the fallback start time for files with no usable timestamp.
func NewRecoveryScanner(store *Store, logger ports.Logger, now func() time.Time) *RecoveryScanner {
	if now == nil {
		now = time.Now
	}
	return &RecoveryScanner{store: store, logger: logger, now: now}
}

// Scan adopts orphaned segment files, deletes zero-byte ones and validates
// the resulting buffer.
func (r *RecoveryScanner) Scan() (RecoveryReport, error) {
	var report RecoveryReport
	cfg := r.store.Config()

	entries, err := os.ReadDir(cfg.Dir)
	if err != nil {
		return report, fmt.Errorf("scan buffer directory: %w", err)
	}

	referenced := make(map[string]bool)
	for _, seg := range r.store.Segments() {
		referenced[seg.Name()] = true
	}

	var orphans []domain.Segment
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || referenced[name] || !isSegmentFile(name, cfg.Extension) {
			continue
		}
		path := filepath.Join(cfg.Dir, name)

		info, err := e.Info()
		if err != nil {
			r.logger.Warn("crash recovery: stat failed", ports.String("file", name), ports.Err(err))
			continue
		}
		if info.Size() == 0 {
			if err := os.Remove(path); err != nil {
				r.logger.Warn("crash recovery: failed to delete empty segment", ports.String("file", name), ports.Err(err))
				continue
			}
			report.Deleted++
			continue
		}

		orphans = append(orphans, domain.Segment{
			Path:     path,
			Start:    r.recoverStart(name, info),
			Duration: cfg.SegmentLength,
			Size:     info.Size(),
			Valid:    true,
		})
	}

	if len(orphans) > 0 {
		report.Recovered, report.Skipped = r.adopt(orphans)
	}
	report.Invalid = r.store.ValidateBuffer()

	r.logger.Info("crash recovery complete",
		ports.Int("recovered", report.Recovered),
		ports.Int("deleted", report.Deleted),
		ports.Int("skipped", report.Skipped),
		ports.Int("invalid", report.Invalid),
		ports.Int("segments", r.store.Len()),
	)
	return report, nil
}

// recoverStart picks the start time from the file name, then the
// modification time, then the clock.
func (r *RecoveryScanner) recoverStart(name string, info os.FileInfo) time.Time {
	if t, ok := domain.ParseSegmentFileName(name); ok {
		return t
	}
	if mt := info.ModTime(); !mt.IsZero() {
		// mtime marks the last write, roughly one segment after the start.
		return mt.Add(-r.store.Config().SegmentLength).Truncate(time.Second)
	}
	return r.now().Truncate(time.Second)
}

// adopt merges orphans with the known segments in chronological order and
// re-inserts everything so the capacity bounds apply. Orphans that cannot
// be inserted are deleted.
func (r *RecoveryScanner) adopt(orphans []domain.Segment) (recovered, skipped int) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	known := make(map[string]bool, len(s.segments))
	all := append([]domain.Segment(nil), s.segments...)
	for _, seg := range s.segments {
		known[seg.Path] = true
	}
	all = append(all, orphans...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Start.Before(all[j].Start) })

	s.segments = nil
	for _, seg := range all {
		if err := s.appendLocked(seg); err != nil {
			r.logger.Warn("crash recovery: skipped segment",
				ports.String("segment", seg.Name()),
				ports.Err(err),
			)
			if !known[seg.Path] {
				// Untracked files would sit outside the capacity bounds.
				skipped++
				s.removeFile(seg.Path)
			}
			continue
		}
		if !known[seg.Path] {
			recovered++
		}
		s.evictLocked()
	}
	s.persistLocked()
	return recovered, skipped
}

func isSegmentFile(name, ext string) bool {
	if !strings.HasPrefix(name, domain.SegmentPrefix) || strings.HasSuffix(name, ".tmp") {
		return false
	}
	e := strings.ToLower(filepath.Ext(name))
	return e == "."+strings.TrimPrefix(ext, ".") || mediaExtensions[e]
}
