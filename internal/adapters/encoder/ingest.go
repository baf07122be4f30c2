// Package encoder implements ports.SegmentEncoder: a self-contained raw
// container and an ffmpeg-backed H.264 encoder.
package encoder

import (
	"sync"
	"sync/atomic"

	"github.com/bft-labs/rollcam/internal/ports"
)

// DefaultIngestQueue is the number of samples a pipeline buffers before Write drops.
const DefaultIngestQueue = 64

// ingest is the non-blocking input side of a pipeline. A single worker
// goroutine drains it; closing it ends the worker's input.
type ingest struct {
	mu      sync.Mutex
	ch      chan ports.Sample
	closed  bool
	dropped atomic.Uint64
}

func newIngest(size int) *ingest {
	if size <= 0 {
		size = DefaultIngestQueue
	}
	return &ingest{ch: make(chan ports.Sample, size)}
}

func (q *ingest) Write(s ports.Sample) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.dropped.Add(1)
		return false
	}
	select {
	case q.ch <- s:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// close ends input. Safe to call more than once.
func (q *ingest) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

func (q *ingest) Dropped() uint64 {
	return q.dropped.Load()
}

// bytesPerPixel returns the packed pixel size of a raw pixel format, or 0
// when unknown.
func bytesPerPixel(format string) int {
	switch format {
	case "bgra", "rgba", "bgr0", "rgb0", "argb", "abgr":
		return 4
	case "rgb24", "bgr24":
		return 3
	case "gray", "gray8":
		return 1
	default:
		return 0
	}
}

// scaleNearest resamples a packed frame to w x h. Frames whose size does not
// match the input geometry are returned unchanged.
func scaleNearest(data []byte, inW, inH, bpp, w, h int) []byte {
	if bpp == 0 || inW <= 0 || inH <= 0 || w <= 0 || h <= 0 {
		return data
	}
	if len(data) != inW*inH*bpp || (w == inW && h == inH) {
		return data
	}
	out := make([]byte, w*h*bpp)
	for y := 0; y < h; y++ {
		sy := y * inH / h
		for x := 0; x < w; x++ {
			sx := x * inW / w
			copy(out[(y*w+x)*bpp:(y*w+x+1)*bpp], data[(sy*inW+sx)*bpp:(sy*inW+sx+1)*bpp])
		}
	}
	return out
}
