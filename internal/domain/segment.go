package domain

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// SegmentPrefix is the file name prefix of every segment in the buffer directory.
const SegmentPrefix = "segment_"

// Segment is one fixed-duration slice of the continuous recording.
type Segment struct {
	// Path is the absolute file path and the unique locator of the segment.
	Path string

	// Start is the wall-clock time the segment began.
	Start time.Time

	// Duration is the configured segment length at the time it was recorded.
	Duration time.Duration

	// Size is the file size in bytes when the segment was added.
	Size int64

	// Valid is false when the file was empty or missing at insertion.
	Valid bool
}

// End returns the time the segment covers up to.
func (s Segment) End() time.Time {
	return s.Start.Add(s.Duration)
}

// Name returns the segment file name without its directory.
func (s Segment) Name() string {
	return filepath.Base(s.Path)
}

// SegmentFileName returns the deterministic file name for a segment starting at start.
// The extension is given without the leading dot.
func SegmentFileName(start time.Time, ext string) string {
	return fmt.Sprintf("%s%d.%s", SegmentPrefix, start.Unix(), strings.TrimPrefix(ext, "."))
}

// ParseSegmentFileName recovers the start time embedded in a segment file name.
// Returns false if the name does not follow the segment_<unixSeconds>.<ext> layout.
func ParseSegmentFileName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, SegmentPrefix) {
		return time.Time{}, false
	}
	stem := strings.TrimPrefix(name, SegmentPrefix)
	if ext := filepath.Ext(stem); ext != "" {
		stem = strings.TrimSuffix(stem, ext)
	}
	secs, err := strconv.ParseInt(stem, 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}, false
	}
	return time.Unix(secs, 0), true
}

// SegmentRecord is the persisted form of a Segment inside a BufferIndex.
// File is relative to the buffer directory.
type SegmentRecord struct {
	File     string        `json:"file"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
	Size     int64         `json:"size"`
}

// BufferIndex is the persistent metadata of the rolling buffer.
// It is saved after every mutation so segments survive a restart.
type BufferIndex struct {
	Segments  []SegmentRecord `json:"segments"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// IsEmpty returns true if the index references no segments.
func (i BufferIndex) IsEmpty() bool {
	return len(i.Segments) == 0
}
