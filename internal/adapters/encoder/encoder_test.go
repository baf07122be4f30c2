package encoder

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bft-labs/rollcam/internal/adapters/log"
	"github.com/bft-labs/rollcam/internal/domain"
	"github.com/bft-labs/rollcam/internal/ports"
)

var epoch = time.Unix(1_700_000_000, 0)

func rawSpec(dir string) ports.SegmentSpec {
	return ports.SegmentSpec{
		Path:      filepath.Join(dir, domain.SegmentFileName(epoch, RawExtension)),
		Start:     epoch,
		Width:     2,
		Height:    2,
		FrameRate: 10,
		BitRate:   1000,
		Quality:   domain.QualityLow,
		Input:     ports.StreamConfig{Width: 4, Height: 4, FrameRate: 10, PixelFormat: "gray"},
	}
}

func TestRawEncoder_OpenIsEager(t *testing.T) {
	spec := rawSpec(t.TempDir())
	e := NewRawEncoder(log.NewNoopLogger(), 8)

	p, err := e.Open(context.Background(), spec)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer p.Abort()

	info, err := ReadRaw(spec.Path)
	if err != nil {
		t.Fatalf("ReadRaw() right after Open: %v", err)
	}
	if info.Header.Width != 2 || info.Header.InputWidth != 4 || info.Header.Quality != "low" {
		t.Errorf("header = %+v", info.Header)
	}
	if !info.Header.Start.Equal(epoch) {
		t.Errorf("header start = %v, want %v", info.Header.Start, epoch)
	}
}

func TestRawEncoder_Finalize(t *testing.T) {
	spec := rawSpec(t.TempDir())
	e := NewRawEncoder(log.NewNoopLogger(), 8)

	p, err := e.Open(context.Background(), spec)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	frame := bytes.Repeat([]byte{9}, 16)
	for i := 0; i < 3; i++ {
		if !p.Write(ports.Sample{Kind: ports.SampleVideo, PTS: epoch.Add(time.Duration(i) * 100 * time.Millisecond), Data: frame}) {
			t.Fatalf("Write(%d) dropped", i)
		}
	}
	p.Write(ports.Sample{Kind: ports.SampleAudio, PTS: epoch.Add(time.Second), Data: []byte{1, 2}})

	size, err := p.Finalize(context.Background())
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	st, _ := os.Stat(spec.Path)
	if size <= 0 || size != st.Size() {
		t.Errorf("Finalize() size = %d, file size = %d", size, st.Size())
	}

	info, err := ReadRaw(spec.Path)
	if err != nil {
		t.Fatalf("ReadRaw() error = %v", err)
	}
	if info.Video != 3 || info.Audio != 1 || info.Truncated {
		t.Errorf("info = %+v, want 3 video, 1 audio", info)
	}
	if !info.First.Equal(epoch) || !info.Last.Equal(epoch.Add(time.Second)) {
		t.Errorf("first/last = %v/%v", info.First, info.Last)
	}

	if p.Write(ports.Sample{Kind: ports.SampleVideo, Data: frame}) {
		t.Error("Write() after Finalize accepted a sample")
	}
	if p.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", p.Dropped())
	}
}

func TestRawEncoder_AbortLeavesPartialOutput(t *testing.T) {
	spec := rawSpec(t.TempDir())
	p, err := NewRawEncoder(log.NewNoopLogger(), 8).Open(context.Background(), spec)
	if err != nil {
		t.Fatal(err)
	}
	p.Abort()
	p.Abort()

	if _, err := os.Stat(spec.Path); err != nil {
		t.Errorf("output removed by Abort: %v", err)
	}
	if _, err := p.Finalize(context.Background()); err == nil {
		t.Error("Finalize() after Abort returned nil error")
	}
}

func TestRawEncoder_OpenFailure(t *testing.T) {
	spec := rawSpec(filepath.Join(t.TempDir(), "missing", "dir"))
	if _, err := NewRawEncoder(log.NewNoopLogger(), 8).Open(context.Background(), spec); err == nil {
		t.Error("Open() into a missing directory returned nil error")
	}
}

func TestReadRaw_NotRaw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segment_1.mp4")
	os.WriteFile(path, []byte("ftypisom"), 0o644)

	if _, err := ReadRaw(path); !errors.Is(err, ErrNotRaw) {
		t.Errorf("ReadRaw() error = %v, want ErrNotRaw", err)
	}
}

func TestScaleNearest(t *testing.T) {
	// 4x2 gray frame: left half 1, right half 2.
	in := []byte{1, 1, 2, 2, 1, 1, 2, 2}

	got := scaleNearest(in, 4, 2, 1, 2, 1)
	if !bytes.Equal(got, []byte{1, 2}) {
		t.Errorf("scaleNearest() = %v, want [1 2]", got)
	}

	odd := []byte{1, 2, 3}
	if got := scaleNearest(odd, 4, 2, 1, 2, 1); !bytes.Equal(got, odd) {
		t.Errorf("mismatched frame was resampled: %v", got)
	}
}

func TestIngest_DropsWhenFull(t *testing.T) {
	q := newIngest(2)
	for i := 0; i < 2; i++ {
		if !q.Write(ports.Sample{}) {
			t.Fatalf("Write(%d) dropped with room in queue", i)
		}
	}
	if q.Write(ports.Sample{}) {
		t.Error("Write() to a full queue succeeded")
	}
	q.close()
	q.close()
	if q.Write(ports.Sample{}) {
		t.Error("Write() after close succeeded")
	}
	if q.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", q.Dropped())
	}
}

func TestFFmpegEncoder_Args(t *testing.T) {
	e := NewFFmpegEncoder(FFmpegConfig{}, log.NewNoopLogger())
	spec := ports.SegmentSpec{
		Path:      "/buf/segment_1.mp4",
		Width:     1440,
		Height:    810,
		FrameRate: 30,
		BitRate:   5_000_000,
		Input:     ports.StreamConfig{Width: 1920, Height: 1080, FrameRate: 30, PixelFormat: "bgra"},
	}

	got := strings.Join(e.args(spec), " ")
	for _, want := range []string{
		"-f rawvideo -pix_fmt bgra -video_size 1920x1080 -framerate 30 -i pipe:0",
		"-vf scale=1440:810",
		"-c:v libx264 -preset veryfast",
		"-b:v 5000000 -maxrate 7500000 -bufsize 10000000",
		"-f mp4 -y /buf/segment_1.mp4",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("args missing %q:\n%s", want, got)
		}
	}

	spec.Width, spec.Height = 1920, 1080
	if got := strings.Join(e.args(spec), " "); strings.Contains(got, "scale=") {
		t.Errorf("native size must not add a scale filter: %s", got)
	}
}

func TestFFmpegEncoder_MissingBinary(t *testing.T) {
	dir := t.TempDir()
	e := NewFFmpegEncoder(FFmpegConfig{Binary: filepath.Join(dir, "no-such-ffmpeg")}, log.NewNoopLogger())
	if err := e.CheckBinary(); err == nil {
		t.Error("CheckBinary() = nil for a missing binary")
	}

	spec := ports.SegmentSpec{
		Path:  filepath.Join(dir, "segment_1.mp4"),
		Input: ports.StreamConfig{Width: 4, Height: 4, PixelFormat: "bgra"},
	}
	if _, err := e.Open(context.Background(), spec); err == nil {
		t.Fatal("Open() with a missing binary returned nil error")
	}
	if _, err := os.Stat(spec.Path); !os.IsNotExist(err) {
		t.Errorf("failed Open left output behind: %v", err)
	}
}

func TestTail(t *testing.T) {
	tl := newTail(5)
	tl.Write([]byte("abc"))
	tl.Write([]byte("defg"))
	if got := tl.String(); got != "cdefg" {
		t.Errorf("tail = %q, want %q", got, "cdefg")
	}
}
