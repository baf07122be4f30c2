package ports

import (
	"context"
	"time"

	"github.com/bft-labs/rollcam/internal/domain"
)

// SegmentSpec describes the output of one segment pipeline.
type SegmentSpec struct {
	// Path is where the segment file is written.
	Path  string
	Start time.Time

	// Width and Height are the quality-scaled output dimensions.
	Width     int
	Height    int
	FrameRate int
	BitRate   int
	Quality   domain.Quality

	// Input describes the raw samples fed through Write.
	Input StreamConfig
}

// SegmentEncoder opens per-segment encoding pipelines.
type SegmentEncoder interface {
	// Open starts a pipeline eagerly: the output file exists when Open returns.
	Open(ctx context.Context, spec SegmentSpec) (Pipeline, error)
}

// Pipeline encodes the samples of one time slice into one file.
type Pipeline interface {
	// Write enqueues a sample without blocking.
	// Returns false when the sample was dropped.
	Write(s Sample) bool

	// Finalize marks input done, waits for the flush and returns the file size.
	Finalize(ctx context.Context) (int64, error)

	// Abort discards the pipeline, leaving any partial output in place.
	Abort()

	// Dropped returns the number of samples dropped by Write.
	Dropped() uint64
}
