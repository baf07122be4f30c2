// Package capture implements ports.CaptureSource: an ffmpeg x11grab
// backend and a synthetic source for demos and tests.
package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/rollcam/internal/domain"
	"github.com/bft-labs/rollcam/internal/ports"
)

// DefaultSyntheticSource is the source a Synthetic capture starts with.
var DefaultSyntheticSource = ports.SourceDescriptor{
	ID:     "synthetic:0",
	Name:   "Synthetic display",
	Width:  320,
	Height: 180,
}

// Synthetic generates frames at the requested rate without touching any
// display. Sources can be detached and faults injected at runtime.
type Synthetic struct {
	mu      sync.Mutex
	sources []ports.SourceDescriptor
	streams map[string][]*syntheticStream
}

// NewSynthetic creates a synthetic capture with the given sources, or
// DefaultSyntheticSource when none are given.
func NewSynthetic(sources ...ports.SourceDescriptor) *Synthetic {
	if len(sources) == 0 {
		sources = []ports.SourceDescriptor{DefaultSyntheticSource}
	}
	return &Synthetic{
		sources: append([]ports.SourceDescriptor(nil), sources...),
		streams: make(map[string][]*syntheticStream),
	}
}

func (s *Synthetic) ListSources(ctx context.Context) ([]ports.SourceDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.SourceDescriptor(nil), s.sources...), nil
}

func (s *Synthetic) OpenStream(ctx context.Context, source ports.SourceDescriptor, cfg ports.StreamConfig) (ports.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasLocked(source.ID) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSourceDisconnected, source.ID)
	}

	fps := cfg.FrameRate
	if fps <= 0 {
		fps = 30
	}
	bpp := 4
	if cfg.PixelFormat == "rgb24" || cfg.PixelFormat == "bgr24" {
		bpp = 3
	}
	st := &syntheticStream{
		events: make(chan ports.StreamEvent, fps),
		fault:  make(chan error, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go st.run(ctx, time.Second/time.Duration(fps), cfg.Width*cfg.Height*bpp, cfg.Audio)

	live := s.streams[source.ID][:0]
	for _, old := range s.streams[source.ID] {
		if !old.closed() {
			live = append(live, old)
		}
	}
	s.streams[source.ID] = append(live, st)
	return st, nil
}

// Detach removes a source and reports a disconnect on its open streams.
func (s *Synthetic) Detach(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.sources[:0]
	for _, src := range s.sources {
		if src.ID != id {
			kept = append(kept, src)
		}
	}
	s.sources = kept
	for _, st := range s.streams[id] {
		st.inject(fmt.Errorf("%w: %s", domain.ErrSourceDisconnected, id))
	}
	delete(s.streams, id)
}

// Attach adds a source, replacing one with the same id.
func (s *Synthetic) Attach(src ports.SourceDescriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.sources {
		if s.sources[i].ID == src.ID {
			s.sources[i] = src
			return
		}
	}
	s.sources = append(s.sources, src)
}

// Fail ends the open streams of a source with err.
func (s *Synthetic) Fail(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.streams[id] {
		st.inject(err)
	}
}

func (s *Synthetic) hasLocked(id string) bool {
	for _, src := range s.sources {
		if src.ID == id {
			return true
		}
	}
	return false
}

type syntheticStream struct {
	events chan ports.StreamEvent
	fault  chan error
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func (st *syntheticStream) Events() <-chan ports.StreamEvent { return st.events }

func (st *syntheticStream) Close() error {
	st.once.Do(func() { close(st.stop) })
	<-st.done
	return nil
}

func (st *syntheticStream) closed() bool {
	select {
	case <-st.done:
		return true
	default:
		return false
	}
}

func (st *syntheticStream) inject(err error) {
	select {
	case st.fault <- err:
	default:
	}
}

func (st *syntheticStream) run(ctx context.Context, interval time.Duration, frameSize int, audio bool) {
	defer close(st.done)
	defer close(st.events)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var seq byte
	for {
		select {
		case <-st.stop:
			return
		case <-ctx.Done():
			return
		case err := <-st.fault:
			select {
			case st.events <- ports.StreamEvent{Err: err}:
			case <-st.stop:
			}
			return
		case now := <-ticker.C:
			seq++
			st.send(ports.Sample{Kind: ports.SampleVideo, PTS: now, Data: frame(frameSize, seq)})
			if audio {
				st.send(ports.Sample{Kind: ports.SampleAudio, PTS: now, Data: make([]byte, 64)})
			}
		}
	}
}

// send drops the sample when the consumer is behind.
func (st *syntheticStream) send(s ports.Sample) {
	select {
	case st.events <- ports.StreamEvent{Sample: s}:
	default:
	}
}

func frame(size int, seq byte) []byte {
	if size <= 0 {
		return []byte{seq}
	}
	b := make([]byte, size)
	for i := range b {
		b[i] = seq + byte(i)
	}
	return b
}
