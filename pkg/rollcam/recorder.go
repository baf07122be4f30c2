package rollcam

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/bft-labs/rollcam/internal/adapters/capture"
	"github.com/bft-labs/rollcam/internal/adapters/encoder"
	"github.com/bft-labs/rollcam/internal/adapters/fs"
	logAdapter "github.com/bft-labs/rollcam/internal/adapters/log"
	"github.com/bft-labs/rollcam/internal/adapters/notify"
	"github.com/bft-labs/rollcam/internal/adapters/permission"
	"github.com/bft-labs/rollcam/internal/adapters/power"
	"github.com/bft-labs/rollcam/internal/app"
	"github.com/bft-labs/rollcam/internal/buffer"
	"github.com/bft-labs/rollcam/internal/domain"
	"github.com/bft-labs/rollcam/internal/ports"
)

// State is the recording state reported in Status.
type State = app.State

const (
	StateIdle      = app.StateIdle
	StateStarting  = app.StateStarting
	StateRecording = app.StateRecording
	StatePaused    = app.StatePaused
	StateStopping  = app.StateStopping
)

// Status is a snapshot of the recording controller.
type Status = app.Status

// Segment is one finalized file in the buffer.
type Segment = domain.Segment

// RecoveryReport summarizes the crash recovery scan run by Start.
type RecoveryReport = buffer.RecoveryReport

// StateChangeEvent describes one recording state transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// EventHandler observes recording state changes.
type EventHandler interface {
	OnStateChange(StateChangeEvent)
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(StateChangeEvent)

func (f EventHandlerFunc) OnStateChange(e StateChangeEvent) { f(e) }

type emitter struct{ handler EventHandler }

func (e emitter) OnStateChange(previous, current app.State, reason string) {
	e.handler.OnStateChange(StateChangeEvent{Previous: previous, Current: current, Reason: reason})
}

// Recorder is a rolling screen recorder. Use New to create one, then Start.
type Recorder struct {
	id       string
	config   Config
	opts     options
	svc      *service
	settings *LiveSettings
	logger   ports.Logger

	mu     sync.RWMutex
	ctrl   *app.Controller
	store  *buffer.Store
	report RecoveryReport
	cancel context.CancelFunc
}

// New creates a Recorder in ServiceStopped. Collaborators not supplied by
// options get their defaults.
func New(cfg Config, opts ...Option) (*Recorder, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logAdapter.NewNoopLogger()
	}
	if o.notifier == nil {
		o.notifier = notify.NewLogNotifier(o.logger)
	}
	if o.capture == nil {
		x11 := capture.NewX11Grab(capture.X11GrabConfig{
			Width:  cfg.Settings.Width,
			Height: cfg.Settings.Height,
		}, o.logger)
		o.capture = x11
		if o.permission == nil {
			o.permission = permission.NewDisplay(os.Getenv("DISPLAY"))
		}
	}
	if o.permission == nil {
		o.permission = permission.NewStatic(true)
	}
	if o.encoder == nil {
		o.encoder = encoder.NewFFmpegEncoder(encoder.FFmpegConfig{}, o.logger)
		o.extension = "mp4"
	}
	if o.battery == nil {
		o.battery = power.NewSysfsBattery("")
	}
	if o.load == nil {
		o.load = power.NewLoadAverage("")
	}
	if o.disk == nil {
		o.disk = fs.NewStatfsProbe()
	}
	if o.clock == nil {
		o.clock = app.RealClock()
	}

	r := &Recorder{
		id:       uuid.NewString(),
		config:   cfg,
		opts:     o,
		svc:      newService(o.logger),
		settings: NewLiveSettings(cfg.Settings),
		logger:   o.logger,
	}
	r.settings.OnChange(r.onSettingsChange)
	return r, nil
}

// Start loads the buffer, runs crash recovery, initializes plugins and
// starts the recording controller. It returns once the controller is
// running. With Config.AutoStart, recording is started too; a failed
// automatic start is logged and leaves the recorder idle.
func (r *Recorder) Start(ctx context.Context) error {
	if !r.svc.canStart() {
		return domain.ErrAlreadyRunning
	}
	if err := r.svc.transition(ServiceStarting, "Start() called"); err != nil {
		return domain.ErrAlreadyRunning
	}
	crash := func(err error) error {
		_ = r.svc.transition(ServiceCrashed, err.Error())
		return err
	}

	store, err := buffer.New(buffer.Config{
		Dir:                r.config.BufferDir,
		Capacity:           r.config.Capacity,
		SegmentLength:      r.config.Settings.SegmentLength,
		Extension:          r.opts.extension,
		LowSpaceBytes:      r.config.LowSpaceBytes,
		CriticalSpaceBytes: r.config.CriticalSpaceBytes,
	}, r.opts.disk, fs.NewIndexFileRepository(r.config.BufferDir), r.logger)
	if err != nil {
		return crash(err)
	}

	report, err := buffer.NewRecoveryScanner(store, r.logger, r.opts.clock.Now).Scan()
	if err != nil {
		return crash(fmt.Errorf("crash recovery: %w", err))
	}
	if report.Recovered+report.Deleted+report.Invalid > 0 {
		r.logger.Info("buffer recovered",
			ports.Int("recovered", report.Recovered),
			ports.Int("deleted", report.Deleted),
			ports.Int("skipped", report.Skipped),
			ports.Int("invalid", report.Invalid),
		)
	}

	ctrlCfg := r.config.Controller
	ctrlCfg.Recovery.BaseDelay = r.config.RecoveryBaseDelay
	ctrlCfg.Recovery.MaxAttempts = r.config.RecoveryAttempts
	deps := app.Deps{
		Store:      store,
		Capture:    r.opts.capture,
		Encoder:    r.opts.encoder,
		Permission: r.opts.permission,
		Notifier:   r.opts.notifier,
		Settings:   r.settings,
		Battery:    r.opts.battery,
		Load:       r.opts.load,
		Logger:     r.logger,
		Clock:      r.opts.clock,
	}
	if r.opts.eventHandler != nil {
		deps.Emitter = emitter{handler: r.opts.eventHandler}
	}
	ctrl, err := app.NewController(ctrlCfg, deps)
	if err != nil {
		return crash(err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.store, r.ctrl, r.report, r.cancel = store, ctrl, report, cancel
	r.mu.Unlock()

	pluginCfg := PluginConfig{
		BufferDir: r.config.BufferDir,
		Logger:    r.logger,
		Settings:  r.settings,
		Recorder:  r,
	}
	for i, p := range r.opts.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			r.logger.Error("plugin initialization failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
			r.shutdownPlugins(r.opts.plugins[:i])
			cancel()
			return crash(fmt.Errorf("plugin %s: %w", p.Name(), err))
		}
		r.logger.Info("plugin initialized", ports.String("plugin", p.Name()))
	}

	r.svc.spawn(func() {
		if err := ctrl.Run(runCtx); err != nil {
			r.logger.Error("controller stopped", ports.Err(err))
		}
	})
	// Plugins may have updated the settings during Initialize.
	ctrl.ApplySettings()

	if err := r.svc.transition(ServiceRunning, "controller running"); err != nil {
		return err
	}
	r.logger.Info("recorder started",
		ports.String("recorder", r.id),
		ports.String("buffer_dir", r.config.BufferDir),
		ports.Int("segments", store.Len()),
	)

	if r.config.AutoStart {
		if err := ctrl.StartRecording(ctx); err != nil {
			r.logger.Warn("automatic start failed", ports.Err(err))
		}
	}
	return nil
}

// Stop stops recording, finalizing the current segment, then shuts down
// plugins. It returns ErrShutdownTimeout if the controller does not stop
// within Config.ShutdownTimeout.
func (r *Recorder) Stop() error {
	if !r.svc.canStop() {
		return domain.ErrNotRunning
	}
	if err := r.svc.transition(ServiceStopping, "Stop() called"); err != nil {
		return domain.ErrNotRunning
	}
	r.mu.RLock()
	cancel := r.cancel
	r.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	err := r.svc.wait(r.config.ShutdownTimeout)
	r.shutdownPlugins(r.opts.plugins)

	if err != nil {
		_ = r.svc.transition(ServiceCrashed, "shutdown timeout")
		return err
	}
	_ = r.svc.transition(ServiceStopped, "graceful shutdown")
	r.logger.Info("recorder stopped", ports.String("recorder", r.id))
	return nil
}

func (r *Recorder) shutdownPlugins(plugins []Plugin) {
	ctx := context.Background()
	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		if err := p.Shutdown(ctx); err != nil {
			r.logger.Error("plugin shutdown failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
		}
	}
}

// onSettingsChange forwards a settings update to the controller. A new
// source selection is a source switch, which empties the buffer.
func (r *Recorder) onSettingsChange(old, new Settings) {
	ctrl := r.controller()
	if ctrl == nil || r.svc.State() != ServiceRunning {
		return
	}
	if new.Source != "" && new.Source != old.Source {
		ctx, cancel := context.WithTimeout(context.Background(), r.config.ShutdownTimeout)
		defer cancel()
		if err := ctrl.SwitchSource(ctx, new.Source); err != nil {
			r.logger.Warn("source switch from settings failed",
				ports.String("source", new.Source),
				ports.Err(err))
		}
	}
	ctrl.ApplySettings()
}

func (r *Recorder) controller() *app.Controller {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ctrl
}

func (r *Recorder) running() (*app.Controller, error) {
	ctrl := r.controller()
	if ctrl == nil || r.svc.State() != ServiceRunning {
		return nil, domain.ErrNotRunning
	}
	return ctrl, nil
}

// StartRecording starts recording from Idle or Paused.
func (r *Recorder) StartRecording(ctx context.Context) error {
	ctrl, err := r.running()
	if err != nil {
		return err
	}
	return ctrl.StartRecording(ctx)
}

// StopRecording finalizes the current segment and stops recording. The
// buffer is kept.
func (r *Recorder) StopRecording(ctx context.Context) error {
	ctrl, err := r.running()
	if err != nil {
		return err
	}
	return ctrl.StopRecording(ctx)
}

func (r *Recorder) Pause(ctx context.Context) error {
	ctrl, err := r.running()
	if err != nil {
		return err
	}
	return ctrl.Pause(ctx)
}

func (r *Recorder) Resume(ctx context.Context) error {
	ctrl, err := r.running()
	if err != nil {
		return err
	}
	return ctrl.Resume(ctx)
}

// SwitchSource selects another capture source. The buffer is emptied so
// it never mixes sources.
func (r *Recorder) SwitchSource(ctx context.Context, sourceID string) error {
	ctrl, err := r.running()
	if err != nil {
		return err
	}
	return ctrl.SwitchSource(ctx, sourceID)
}

// Sources lists the capture sources currently available.
func (r *Recorder) Sources(ctx context.Context) ([]ports.SourceDescriptor, error) {
	return r.opts.capture.ListSources(ctx)
}

// Status returns the latest controller snapshot. Before Start it reports
// an idle recorder.
func (r *Recorder) Status() Status {
	ctrl := r.controller()
	if ctrl == nil {
		s := r.settings.Settings()
		return Status{State: StateIdle, Quality: s.Quality, Source: s.Source}
	}
	return ctrl.Status()
}

// ServiceState reports the lifecycle state of the Recorder itself.
func (r *Recorder) ServiceState() ServiceState {
	return r.svc.State()
}

// Segments returns the finalized segments, oldest first.
func (r *Recorder) Segments() []Segment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.store == nil {
		return nil
	}
	return r.store.Segments()
}

// Recovery returns the report of the crash recovery scan run by Start.
func (r *Recorder) Recovery() RecoveryReport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.report
}

func (r *Recorder) BufferDir() string { return r.config.BufferDir }

// Settings returns the live settings holder.
func (r *Recorder) Settings() *LiveSettings { return r.settings }

// ID identifies this Recorder instance in logs.
func (r *Recorder) ID() string { return r.id }

// IsNotRunning reports whether err means the Recorder was not started.
func IsNotRunning(err error) bool {
	return errors.Is(err, domain.ErrNotRunning)
}
