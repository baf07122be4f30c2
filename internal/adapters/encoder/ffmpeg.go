package encoder

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/bft-labs/rollcam/internal/ports"
)

// FFmpegConfig configures the ffmpeg segment encoder.
type FFmpegConfig struct {
	// Binary is the ffmpeg executable. Default: "ffmpeg"
	Binary string

	// Codec is the video codec. Default: "libx264"
	Codec string

	// Preset is the codec speed preset. Default: "veryfast"
	Preset string

	// Queue is the number of frames buffered per pipeline.
	Queue int
}

// FFmpegEncoder encodes each segment with its own ffmpeg process fed raw
// frames on stdin. Output is fragmented MP4 so a killed process still
// leaves a playable file.
type FFmpegEncoder struct {
	cfg    FFmpegConfig
	logger ports.Logger
}

// NewFFmpegEncoder creates an ffmpeg-backed encoder.
func NewFFmpegEncoder(cfg FFmpegConfig, logger ports.Logger) *FFmpegEncoder {
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.Codec == "" {
		cfg.Codec = "libx264"
	}
	if cfg.Preset == "" {
		cfg.Preset = "veryfast"
	}
	return &FFmpegEncoder{cfg: cfg, logger: logger}
}

// CheckBinary reports whether the ffmpeg executable can be found.
func (e *FFmpegEncoder) CheckBinary() error {
	if _, err := exec.LookPath(e.cfg.Binary); err != nil {
		return fmt.Errorf("%s not found: %w", e.cfg.Binary, err)
	}
	return nil
}

func (e *FFmpegEncoder) args(spec ports.SegmentSpec) []string {
	in := spec.Input
	pix := in.PixelFormat
	if pix == "" {
		pix = "bgra"
	}
	fps := spec.FrameRate
	if fps <= 0 {
		fps = in.FrameRate
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", pix,
		"-video_size", fmt.Sprintf("%dx%d", in.Width, in.Height),
		"-framerate", strconv.Itoa(fps),
		"-i", "pipe:0",
	}
	if spec.Width > 0 && spec.Height > 0 && (spec.Width != in.Width || spec.Height != in.Height) {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:%d", spec.Width, spec.Height))
	}
	args = append(args, "-c:v", e.cfg.Codec, "-preset", e.cfg.Preset)
	if spec.BitRate > 0 {
		args = append(args,
			"-b:v", strconv.Itoa(spec.BitRate),
			"-maxrate", strconv.Itoa(spec.BitRate*3/2),
			"-bufsize", strconv.Itoa(spec.BitRate*2),
		)
	}
	args = append(args,
		"-pix_fmt", "yuv420p",
		"-movflags", "+frag_keyframe+empty_moov+default_base_moof",
		"-f", "mp4",
		"-y", spec.Path,
	)
	return args
}

// Open creates the output file and starts ffmpeg.
func (e *FFmpegEncoder) Open(ctx context.Context, spec ports.SegmentSpec) (ports.Pipeline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bpp := bytesPerPixel(spec.Input.PixelFormat)
	if spec.Input.PixelFormat == "" {
		bpp = 4
	}
	if bpp == 0 || spec.Input.Width <= 0 || spec.Input.Height <= 0 {
		return nil, fmt.Errorf("unsupported input %dx%d %q", spec.Input.Width, spec.Input.Height, spec.Input.PixelFormat)
	}
	if err := os.WriteFile(spec.Path, nil, 0o644); err != nil {
		return nil, fmt.Errorf("create segment: %w", err)
	}

	cmd := exec.Command(e.cfg.Binary, e.args(spec)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		os.Remove(spec.Path)
		return nil, err
	}
	stderr := newTail(4096)
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		os.Remove(spec.Path)
		return nil, fmt.Errorf("start %s: %w", e.cfg.Binary, err)
	}

	p := &ffmpegPipeline{
		ingest:    newIngest(e.cfg.Queue),
		cmd:       cmd,
		stdin:     stdin,
		stderr:    stderr,
		path:      spec.Path,
		frameSize: spec.Input.Width * spec.Input.Height * bpp,
		done:      make(chan struct{}),
	}
	go p.run()

	e.logger.Debug("ffmpeg segment opened",
		ports.String("path", spec.Path),
		ports.Int("pid", cmd.Process.Pid),
	)
	return p, nil
}

type ffmpegPipeline struct {
	*ingest
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stderr    *tail
	path      string
	frameSize int

	killOnce sync.Once
	done     chan struct{}
	writeErr error
	waitErr  error
}

func (p *ffmpegPipeline) run() {
	defer close(p.done)
	for s := range p.ch {
		if p.writeErr != nil || s.Kind != ports.SampleVideo {
			continue
		}
		if len(s.Data) != p.frameSize {
			p.dropped.Add(1)
			continue
		}
		if _, err := p.stdin.Write(s.Data); err != nil {
			p.writeErr = err
		}
	}
	p.stdin.Close()
	p.waitErr = p.cmd.Wait()
}

func (p *ffmpegPipeline) Finalize(ctx context.Context) (int64, error) {
	p.close()
	select {
	case <-p.done:
	case <-ctx.Done():
		p.Abort()
		return 0, ctx.Err()
	}

	if err := p.waitErr; err != nil {
		return 0, fmt.Errorf("ffmpeg: %w: %s", err, p.stderr.String())
	}
	if err := p.writeErr; err != nil {
		return 0, fmt.Errorf("ffmpeg input: %w", err)
	}
	info, err := os.Stat(p.path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (p *ffmpegPipeline) Abort() {
	p.killOnce.Do(func() {
		if p.cmd.Process != nil {
			p.cmd.Process.Kill()
		}
	})
	p.close()
	<-p.done
}

// tail keeps the last max bytes written to it.
type tail struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTail(max int) *tail {
	return &tail{max: max}
}

func (t *tail) Write(b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, b...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(b), nil
}

func (t *tail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
