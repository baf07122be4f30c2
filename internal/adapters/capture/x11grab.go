package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bft-labs/rollcam/internal/domain"
	"github.com/bft-labs/rollcam/internal/ports"
)

// X11GrabConfig configures the ffmpeg x11grab capture source.
type X11GrabConfig struct {
	// Binary is the ffmpeg executable. Default: "ffmpeg"
	Binary string

	// Display is the X display to grab. Default: $DISPLAY
	Display string

	// Width and Height are the display size reported by ListSources.
	// Used when xdpyinfo is unavailable.
	Width  int
	Height int
}

// X11Grab captures an X11 display by reading raw frames from an ffmpeg
// x11grab process. Audio is not captured.
type X11Grab struct {
	cfg    X11GrabConfig
	logger ports.Logger

	// probe returns the display geometry; replaced in tests.
	probe func(ctx context.Context, display string) (int, int, error)
}

// NewX11Grab creates an x11grab capture source.
func NewX11Grab(cfg X11GrabConfig, logger ports.Logger) *X11Grab {
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.Display == "" {
		cfg.Display = os.Getenv("DISPLAY")
	}
	return &X11Grab{cfg: cfg, logger: logger, probe: xdpyinfoGeometry}
}

// ListSources reports the configured display, or nothing when no display
// is set.
func (x *X11Grab) ListSources(ctx context.Context) ([]ports.SourceDescriptor, error) {
	if x.cfg.Display == "" {
		return nil, nil
	}
	if _, err := exec.LookPath(x.cfg.Binary); err != nil {
		return nil, fmt.Errorf("%s not found: %w", x.cfg.Binary, err)
	}
	w, h := x.cfg.Width, x.cfg.Height
	if pw, ph, err := x.probe(ctx, x.cfg.Display); err == nil {
		w, h = pw, ph
	} else {
		x.logger.Debug("display geometry probe failed", ports.Err(err))
	}
	return []ports.SourceDescriptor{{
		ID:     x.cfg.Display,
		Name:   "X11 display " + x.cfg.Display,
		Width:  w,
		Height: h,
	}}, nil
}

func (x *X11Grab) args(source ports.SourceDescriptor, cfg ports.StreamConfig) []string {
	fps := cfg.FrameRate
	if fps <= 0 {
		fps = 30
	}
	pix := cfg.PixelFormat
	if pix == "" {
		pix = "bgra"
	}
	return []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-f", "x11grab",
		"-framerate", strconv.Itoa(fps),
		"-video_size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"-i", source.ID,
		"-f", "rawvideo",
		"-pix_fmt", pix,
		"pipe:1",
	}
}

// OpenStream starts ffmpeg and streams its raw frames.
func (x *X11Grab) OpenStream(ctx context.Context, source ports.SourceDescriptor, cfg ports.StreamConfig) (ports.Stream, error) {
	bpp := 4
	switch cfg.PixelFormat {
	case "rgb24", "bgr24":
		bpp = 3
	case "gray":
		bpp = 1
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid capture size %dx%d", cfg.Width, cfg.Height)
	}

	cmd := exec.CommandContext(ctx, x.cfg.Binary, x.args(source, cfg)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = &lockedWriter{w: stderr}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", x.cfg.Binary, err)
	}

	fps := cfg.FrameRate
	if fps <= 0 {
		fps = 30
	}
	st := &processStream{
		cmd:    cmd,
		stdout: stdout,
		stderr: cmd.Stderr.(*lockedWriter),
		events: make(chan ports.StreamEvent, fps),
		done:   make(chan struct{}),
		source: source.ID,
	}
	go st.run(cfg.Width * cfg.Height * bpp)

	x.logger.Info("x11grab capture started",
		ports.String("display", source.ID),
		ports.Int("pid", cmd.Process.Pid),
		ports.Int("width", cfg.Width),
		ports.Int("height", cfg.Height),
	)
	return st, nil
}

type processStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *lockedWriter
	events chan ports.StreamEvent
	done   chan struct{}
	source string

	mu      sync.Mutex
	closing bool
}

func (st *processStream) Events() <-chan ports.StreamEvent { return st.events }

func (st *processStream) Close() error {
	st.mu.Lock()
	if st.closing {
		st.mu.Unlock()
		<-st.done
		return nil
	}
	st.closing = true
	st.mu.Unlock()

	if st.cmd.Process != nil {
		st.cmd.Process.Signal(os.Interrupt)
	}
	select {
	case <-st.done:
	case <-time.After(2 * time.Second):
		st.cmd.Process.Kill()
		<-st.done
	}
	return nil
}

func (st *processStream) isClosing() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.closing
}

func (st *processStream) run(frameSize int) {
	defer close(st.done)
	defer close(st.events)

	var readErr error
	for {
		buf := make([]byte, frameSize)
		if _, err := io.ReadFull(st.stdout, buf); err != nil {
			readErr = err
			break
		}
		select {
		case st.events <- ports.StreamEvent{Sample: ports.Sample{Kind: ports.SampleVideo, PTS: time.Now(), Data: buf}}:
		default:
		}
	}
	waitErr := st.cmd.Wait()
	if st.isClosing() {
		return
	}
	st.events <- ports.StreamEvent{Err: classifyExit(st.source, readErr, waitErr, st.stderr.String())}
}

// disconnectHints are ffmpeg/Xlib messages that mean the display went away.
var disconnectHints = []string{
	"cannot open display",
	"can't open display",
	"broken pipe",
	"xio",
	"connection refused",
	"connection reset",
	"no such file or directory",
}

// classifyExit maps an ended capture process to a stream error. Lost
// displays wrap ErrSourceDisconnected; everything else is a transient fault.
func classifyExit(source string, readErr, waitErr error, stderr string) error {
	msg := strings.ToLower(stderr)
	for _, hint := range disconnectHints {
		if strings.Contains(msg, hint) {
			return fmt.Errorf("%w: %s: %s", domain.ErrSourceDisconnected, source, strings.TrimSpace(stderr))
		}
	}
	err := waitErr
	if err == nil {
		err = readErr
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	if s := strings.TrimSpace(stderr); s != "" {
		return fmt.Errorf("capture process ended: %w: %s", err, s)
	}
	return fmt.Errorf("capture process ended: %w", err)
}

// xdpyinfoGeometry reads the screen size from xdpyinfo.
func xdpyinfoGeometry(ctx context.Context, display string) (int, int, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "xdpyinfo", "-display", display).Output()
	if err != nil {
		return 0, 0, err
	}
	return parseDimensions(string(out))
}

// parseDimensions extracts "dimensions: WxH pixels" from xdpyinfo output.
func parseDimensions(out string) (int, int, error) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "dimensions:") {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, "dimensions:"))
		if len(fields) == 0 {
			break
		}
		wh := strings.SplitN(fields[0], "x", 2)
		if len(wh) != 2 {
			break
		}
		w, werr := strconv.Atoi(wh[0])
		h, herr := strconv.Atoi(wh[1])
		if werr != nil || herr != nil {
			break
		}
		return w, h, nil
	}
	return 0, 0, errors.New("no dimensions in xdpyinfo output")
}

type lockedWriter struct {
	mu sync.Mutex
	w  *bytes.Buffer
}

func (l *lockedWriter) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w.Len() > 8192 {
		return len(b), nil
	}
	return l.w.Write(b)
}

func (l *lockedWriter) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.String()
}
