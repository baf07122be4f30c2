package app

import (
	"context"
	"errors"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bft-labs/rollcam/internal/buffer"
	"github.com/bft-labs/rollcam/internal/domain"
	"github.com/bft-labs/rollcam/internal/ports"
)

var epoch = time.Unix(1_700_000_000, 0)

// fakeClock fires timers only when advanced.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward, firing due timers in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.fired = true
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()
		next.f()
	}
}

// fakeStream is a capture stream driven by the test.
type fakeStream struct {
	source ports.SourceDescriptor
	mu     sync.Mutex
	ch     chan ports.StreamEvent
	closed bool
}

func newFakeStream(src ports.SourceDescriptor) *fakeStream {
	return &fakeStream{source: src, ch: make(chan ports.StreamEvent, 16)}
}

func (s *fakeStream) Events() <-chan ports.StreamEvent { return s.ch }

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

func (s *fakeStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeStream) emit(ev ports.StreamEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.ch <- ev
	}
}

func (s *fakeStream) fail(err error) { s.emit(ports.StreamEvent{Err: err}) }

type fakeCapture struct {
	mu       sync.Mutex
	sources  []ports.SourceDescriptor
	openErr  error
	attempts int
	streams  []*fakeStream
}

func (c *fakeCapture) ListSources(ctx context.Context) ([]ports.SourceDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ports.SourceDescriptor(nil), c.sources...), nil
}

func (c *fakeCapture) OpenStream(ctx context.Context, src ports.SourceDescriptor, cfg ports.StreamConfig) (ports.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	if c.openErr != nil {
		return nil, c.openErr
	}
	s := newFakeStream(src)
	c.streams = append(c.streams, s)
	return s, nil
}

func (c *fakeCapture) setOpenErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openErr = err
}

func (c *fakeCapture) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func (c *fakeCapture) Last() *fakeStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.streams) == 0 {
		return nil
	}
	return c.streams[len(c.streams)-1]
}

// fakeEncoder writes a small header at open and one byte per sample.
type fakeEncoder struct {
	mu          sync.Mutex
	opens       int
	specs       []ports.SegmentSpec
	failFinal   bool
	emptyOutput bool
}

func (e *fakeEncoder) Open(ctx context.Context, spec ports.SegmentSpec) (ports.Pipeline, error) {
	if err := os.WriteFile(spec.Path, []byte("RCAM"), 0o644); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opens++
	e.specs = append(e.specs, spec)
	return &fakePipeline{enc: e, path: spec.Path}, nil
}

func (e *fakeEncoder) set(failFinal, emptyOutput bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failFinal = failFinal
	e.emptyOutput = emptyOutput
}

func (e *fakeEncoder) Opens() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opens
}

func (e *fakeEncoder) LastSpec() ports.SegmentSpec {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.specs[len(e.specs)-1]
}

type fakePipeline struct {
	enc     *fakeEncoder
	path    string
	samples int
}

func (p *fakePipeline) Write(s ports.Sample) bool {
	p.samples++
	return true
}

func (p *fakePipeline) Finalize(ctx context.Context) (int64, error) {
	p.enc.mu.Lock()
	failFinal, empty := p.enc.failFinal, p.enc.emptyOutput
	p.enc.mu.Unlock()

	if failFinal {
		return 0, errors.New("flush timed out")
	}
	if empty {
		if err := os.Truncate(p.path, 0); err != nil {
			return 0, err
		}
		return 0, nil
	}
	info, err := os.Stat(p.path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (p *fakePipeline) Abort()          {}
func (p *fakePipeline) Dropped() uint64 { return 0 }

type fakePermission struct{ granted atomic.Bool }

func (p *fakePermission) HasPermission(context.Context) bool { return p.granted.Load() }

type fakeDisk struct{ avail atomic.Uint64 }

func (d *fakeDisk) Available(string) (uint64, error) { return d.avail.Load(), nil }

type fakeSettings struct {
	mu sync.Mutex
	s  domain.Settings
}

func (f *fakeSettings) Settings() domain.Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s
}

func (f *fakeSettings) update(fn func(*domain.Settings)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.s)
}

type fakeBattery struct {
	mu   sync.Mutex
	snap domain.BatterySnapshot
}

func (b *fakeBattery) Battery() (domain.BatterySnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snap, nil
}

func (b *fakeBattery) set(snap domain.BatterySnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snap = snap
}

type fakeLoad struct {
	mu   sync.Mutex
	load float64
}

func (l *fakeLoad) Load() (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load, nil
}

func (l *fakeLoad) set(v float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.load = v
}

// recordingNotifier collects alerts.
type recordingNotifier struct {
	mu     sync.Mutex
	alerts []domain.Alert
}

func (n *recordingNotifier) Notify(a domain.Alert) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a)
}

func (n *recordingNotifier) Alerts() []domain.Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Alert(nil), n.alerts...)
}

func (n *recordingNotifier) Count(kind domain.AlertKind) int {
	count := 0
	for _, a := range n.Alerts() {
		if a.Kind == kind {
			count++
		}
	}
	return count
}

func (n *recordingNotifier) Last(kind domain.AlertKind) (domain.Alert, bool) {
	alerts := n.Alerts()
	for i := len(alerts) - 1; i >= 0; i-- {
		if alerts[i].Kind == kind {
			return alerts[i], true
		}
	}
	return domain.Alert{}, false
}

type memIndex struct {
	mu  sync.Mutex
	idx domain.BufferIndex
}

func (m *memIndex) Load() (domain.BufferIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idx, nil
}

func (m *memIndex) Save(idx domain.BufferIndex) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idx = idx
	return nil
}

// harness runs a controller against fakes on a fake clock.
type harness struct {
	t        *testing.T
	clock    *fakeClock
	ctrl     *Controller
	store    *buffer.Store
	capture  *fakeCapture
	encoder  *fakeEncoder
	perm     *fakePermission
	disk     *fakeDisk
	settings *fakeSettings
	battery  *fakeBattery
	load     *fakeLoad
	notes    *recordingNotifier
	emitter  *mockEmitter
}

const plentyOfSpace = 50 << 30

func newHarness(t *testing.T, configure func(*Config, *domain.Settings)) *harness {
	t.Helper()

	h := &harness{
		t:     t,
		clock: newFakeClock(epoch),
		capture: &fakeCapture{sources: []ports.SourceDescriptor{
			{ID: "display-1", Name: "Built-in", Width: 1920, Height: 1080},
			{ID: "display-2", Name: "External", Width: 2560, Height: 1440},
		}},
		encoder:  &fakeEncoder{},
		perm:     &fakePermission{},
		disk:     &fakeDisk{},
		battery:  &fakeBattery{},
		load:     &fakeLoad{},
		notes:    &recordingNotifier{},
		emitter:  &mockEmitter{},
		settings: &fakeSettings{s: domain.DefaultSettings()},
	}
	h.perm.granted.Store(true)
	h.disk.avail.Store(plentyOfSpace)

	cfg := DefaultConfig()
	if configure != nil {
		h.settings.update(func(s *domain.Settings) { configure(&cfg, s) })
	}

	store, err := buffer.New(buffer.Config{
		Dir:           t.TempDir(),
		Capacity:      15,
		SegmentLength: time.Minute,
		Extension:     "rcam",
	}, h.disk, &memIndex{}, mockLogger{})
	if err != nil {
		t.Fatalf("buffer.New: %v", err)
	}
	h.store = store

	ctrl, err := NewController(cfg, Deps{
		Store:      store,
		Capture:    h.capture,
		Encoder:    h.encoder,
		Permission: h.perm,
		Notifier:   h.notes,
		Settings:   h.settings,
		Battery:    h.battery,
		Load:       h.load,
		Logger:     mockLogger{},
		Emitter:    h.emitter,
		Clock:      h.clock,
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	h.ctrl = ctrl

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- ctrl.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-runErr:
		case <-time.After(5 * time.Second):
			t.Errorf("controller did not stop")
		}
	})
	h.sync()
	return h
}

func (h *harness) ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	h.t.Cleanup(cancel)
	return ctx
}

// sync waits until every event queued so far has been handled.
func (h *harness) sync() {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.ctrl.call(ctx, func() error { return nil }); err != nil {
		h.t.Fatalf("sync: %v", err)
	}
}

// advance steps the clock one second at a time so every timer is handled
// at its due time.
func (h *harness) advance(d time.Duration) {
	h.t.Helper()
	for elapsed := time.Duration(0); elapsed < d; elapsed += time.Second {
		h.clock.Advance(time.Second)
		h.sync()
	}
}

// eventually polls cond while letting the coordinator drain.
func (h *harness) eventually(what string, cond func() bool) {
	h.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		h.sync()
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	h.t.Fatalf("timed out waiting for %s (status %+v)", what, h.ctrl.Status())
}

func (h *harness) start() {
	h.t.Helper()
	if err := h.ctrl.StartRecording(h.ctx()); err != nil {
		h.t.Fatalf("StartRecording: %v", err)
	}
}

func (h *harness) state() State { return h.ctrl.Status().State }

// segmentStarts returns the buffer start times in order.
func (h *harness) segmentStarts() []time.Time {
	var out []time.Time
	for _, s := range h.store.Segments() {
		out = append(out, s.Start)
	}
	return out
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isSorted(ts []time.Time) bool {
	return sort.SliceIsSorted(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
}
