package encoder

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/bft-labs/rollcam/internal/ports"
)

// RawExtension is the file extension of raw container segments.
const RawExtension = "rcam"

const (
	rawMagic   = "RCAM"
	rawVersion = 1

	// maxRecordSize bounds a single record when reading a container back.
	maxRecordSize = 256 << 20
)

var (
	// ErrNotRaw is returned by ReadRaw for files that are not raw containers.
	ErrNotRaw = errors.New("not a raw segment container")

	errAborted = errors.New("pipeline aborted")
)

// RawHeader is the first record of a raw container.
type RawHeader struct {
	Version     int       `msgpack:"v"`
	Start       time.Time `msgpack:"start"`
	Width       int       `msgpack:"w"`
	Height      int       `msgpack:"h"`
	FrameRate   int       `msgpack:"fps"`
	BitRate     int       `msgpack:"bitrate"`
	Quality     string    `msgpack:"quality"`
	PixelFormat string    `msgpack:"pix_fmt"`
	InputWidth  int       `msgpack:"in_w"`
	InputHeight int       `msgpack:"in_h"`
}

type rawRecord struct {
	Kind uint8  `msgpack:"k"`
	PTS  int64  `msgpack:"t"`
	Data []byte `msgpack:"d"`
}

// RawEncoder writes segments as a magic string followed by length-prefixed
// msgpack records: one RawHeader, then one record per sample. Video frames
// are resampled to the segment's quality-scaled size.
type RawEncoder struct {
	queue  int
	logger ports.Logger
}

// NewRawEncoder creates a raw encoder whose pipelines buffer queue samples.
func NewRawEncoder(logger ports.Logger, queue int) *RawEncoder {
	return &RawEncoder{queue: queue, logger: logger}
}

// Open creates the segment file and writes its header before returning.
func (e *RawEncoder) Open(ctx context.Context, spec ports.SegmentSpec) (ports.Pipeline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(spec.Path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create segment: %w", err)
	}

	w := bufio.NewWriterSize(f, 1<<20)
	hdr := RawHeader{
		Version:     rawVersion,
		Start:       spec.Start,
		Width:       spec.Width,
		Height:      spec.Height,
		FrameRate:   spec.FrameRate,
		BitRate:     spec.BitRate,
		Quality:     spec.Quality.String(),
		PixelFormat: spec.Input.PixelFormat,
		InputWidth:  spec.Input.Width,
		InputHeight: spec.Input.Height,
	}
	if _, err := w.WriteString(rawMagic); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeRecord(w, hdr); err != nil {
		f.Close()
		return nil, fmt.Errorf("write segment header: %w", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return nil, err
	}

	p := &rawPipeline{
		ingest: newIngest(e.queue),
		f:      f,
		w:      w,
		spec:   spec,
		bpp:    bytesPerPixel(spec.Input.PixelFormat),
		abort:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	go p.run()

	e.logger.Debug("raw segment opened",
		ports.String("path", spec.Path),
		ports.Int("width", spec.Width),
		ports.Int("height", spec.Height),
	)
	return p, nil
}

type rawPipeline struct {
	*ingest
	f    *os.File
	w    *bufio.Writer
	spec ports.SegmentSpec
	bpp  int

	abortOnce sync.Once
	abort     chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	err       error
}

func (p *rawPipeline) run() {
	defer close(p.done)
	for s := range p.ch {
		select {
		case <-p.abort:
			return
		default:
		}
		data := s.Data
		if s.Kind == ports.SampleVideo {
			data = scaleNearest(data, p.spec.Input.Width, p.spec.Input.Height, p.bpp, p.spec.Width, p.spec.Height)
		}
		rec := rawRecord{Kind: uint8(s.Kind), PTS: s.PTS.UnixNano(), Data: data}
		if err := writeRecord(p.w, rec); err != nil {
			p.err = err
			return
		}
	}
}

func (p *rawPipeline) Finalize(ctx context.Context) (int64, error) {
	p.close()
	select {
	case <-p.done:
	case <-ctx.Done():
		p.Abort()
		return 0, ctx.Err()
	}
	select {
	case <-p.abort:
		return 0, errAborted
	default:
	}

	var err error
	p.closeOnce.Do(func() {
		err = p.err
		if err == nil {
			err = p.w.Flush()
		}
		if err == nil {
			err = p.f.Sync()
		}
		if cerr := p.f.Close(); err == nil {
			err = cerr
		}
	})
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(p.spec.Path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (p *rawPipeline) Abort() {
	p.abortOnce.Do(func() { close(p.abort) })
	p.close()
	<-p.done
	p.closeOnce.Do(func() { p.f.Close() })
}

func writeRecord(w io.Writer, v interface{}) error {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return err
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(b)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// RawInfo summarizes a raw container.
type RawInfo struct {
	Header  RawHeader
	Video   int
	Audio   int
	Control int

	// First and Last are the timestamps of the first and last samples.
	First time.Time
	Last  time.Time

	// Truncated is true when the file ends inside a record.
	Truncated bool
}

// ReadRaw scans a raw container and counts its samples.
func ReadRaw(path string) (RawInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return RawInfo{}, err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	magic := make([]byte, len(rawMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != rawMagic {
		return RawInfo{}, ErrNotRaw
	}

	var info RawInfo
	b, err := readRecord(r)
	if err != nil {
		return RawInfo{}, fmt.Errorf("read header: %w", err)
	}
	if err := msgpack.Unmarshal(b, &info.Header); err != nil {
		return RawInfo{}, fmt.Errorf("decode header: %w", err)
	}

	for {
		b, err := readRecord(r)
		if err == io.EOF {
			return info, nil
		}
		if err != nil {
			info.Truncated = true
			return info, nil
		}
		var rec rawRecord
		if err := msgpack.Unmarshal(b, &rec); err != nil {
			return info, fmt.Errorf("decode record: %w", err)
		}
		switch ports.SampleKind(rec.Kind) {
		case ports.SampleVideo:
			info.Video++
		case ports.SampleAudio:
			info.Audio++
		default:
			info.Control++
		}
		pts := time.Unix(0, rec.PTS)
		if info.First.IsZero() {
			info.First = pts
		}
		info.Last = pts
	}
}

func readRecord(r io.Reader) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n > maxRecordSize {
		return nil, fmt.Errorf("record of %d bytes exceeds limit", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, io.ErrUnexpectedEOF
	}
	return b, nil
}
