package ports

import (
	"context"
	"time"
)

// SampleKind distinguishes video frames, audio samples and control frames.
type SampleKind int

const (
	SampleVideo SampleKind = iota
	SampleAudio

	// SampleControl carries no payload (idle or status frames from the source).
	SampleControl
)

// Sample is one timestamped unit delivered by a capture stream.
type Sample struct {
	Kind SampleKind
	PTS  time.Time
	Data []byte
}

// SourceDescriptor identifies a capturable display, window or device.
type SourceDescriptor struct {
	ID     string
	Name   string
	Width  int
	Height int
}

// StreamConfig carries the capture parameters for OpenStream.
type StreamConfig struct {
	Width       int
	Height      int
	FrameRate   int
	PixelFormat string
	Audio       bool
}

// StreamEvent is either a sample or the terminal error of a stream.
// Exactly one of Sample or Err is meaningful; Err != nil ends the stream.
type StreamEvent struct {
	Sample Sample
	Err    error
}

// Stream is a live capture stream.
type Stream interface {
	// Events delivers samples and at most one terminal error.
	// The channel is closed when the stream ends.
	Events() <-chan StreamEvent

	// Close stops capture and releases the source.
	Close() error
}

// CaptureSource abstracts the screen/window/audio capture backend.
type CaptureSource interface {
	// ListSources returns the currently capturable sources.
	ListSources(ctx context.Context) ([]SourceDescriptor, error)

	// OpenStream starts capture on the given source.
	// Stream faults after a successful open are reported through Events.
	// A lost source must be reported with an error wrapping domain.ErrSourceDisconnected.
	OpenStream(ctx context.Context, source SourceDescriptor, cfg StreamConfig) (Stream, error)
}
