// Package app contains the recording controller: a single coordinator that
// drives capture, per-segment encoding and the rolling buffer, together with
// the monitors that feed it (watchdog, auto-recovery, battery, load,
// permission) and the quality governor.
//
// Every state change happens on the goroutine running Controller.Run. Public
// methods, timers and capture events post closures onto one queue.
package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/rollcam/internal/buffer"
	"github.com/bft-labs/rollcam/internal/domain"
	"github.com/bft-labs/rollcam/internal/ports"
)

// Default controller configuration values.
const (
	DefaultMaxRetries             = 3
	DefaultFinalizeTimeout        = 10 * time.Second
	DefaultPermissionPollInterval = 10 * time.Second
	DefaultValidateInterval       = 5 * time.Minute
	DefaultPixelFormat            = "bgra"
	DefaultQueueSize              = 256
	alertQueueSize                = 64
)

// Config contains configuration for the recording controller.
type Config struct {
	// WatchdogInterval is the stall window. Zero means 1.5 × segment length.
	WatchdogInterval time.Duration

	// MaxRetries bounds consecutive rotation failures. Default: 3
	MaxRetries int

	// FinalizeTimeout bounds one segment flush. Default: 10s
	FinalizeTimeout time.Duration

	// FaultRetryDelay and FaultRetries drive the transient stream fault
	// retries. Defaults: 1s, 3 (1s, 2s, 4s)
	FaultRetryDelay time.Duration
	FaultRetries    int

	Recovery RecoveryConfig

	PermissionPollInterval time.Duration
	ValidateInterval       time.Duration
	BatteryPollInterval    time.Duration
	LoadPollInterval       time.Duration
	LoadSustainSamples     int

	// PixelFormat is requested from the capture source. Default: "bgra"
	PixelFormat string

	// QueueSize is the coordinator queue capacity. Default: 256
	QueueSize int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:             DefaultMaxRetries,
		FinalizeTimeout:        DefaultFinalizeTimeout,
		FaultRetryDelay:        DefaultFaultRetryDelay,
		FaultRetries:           DefaultFaultRetries,
		Recovery:               DefaultRecoveryConfig(),
		PermissionPollInterval: DefaultPermissionPollInterval,
		ValidateInterval:       DefaultValidateInterval,
		BatteryPollInterval:    DefaultBatteryPollInterval,
		LoadPollInterval:       DefaultLoadPollInterval,
		LoadSustainSamples:     DefaultLoadSustainSamples,
		PixelFormat:            DefaultPixelFormat,
		QueueSize:              DefaultQueueSize,
	}
}

// withDefaults fills zero values from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.FinalizeTimeout <= 0 {
		c.FinalizeTimeout = def.FinalizeTimeout
	}
	if c.FaultRetryDelay <= 0 {
		c.FaultRetryDelay = def.FaultRetryDelay
	}
	if c.FaultRetries <= 0 {
		c.FaultRetries = def.FaultRetries
	}
	if c.Recovery.BaseDelay <= 0 {
		c.Recovery.BaseDelay = def.Recovery.BaseDelay
	}
	if c.Recovery.MaxAttempts <= 0 {
		c.Recovery.MaxAttempts = def.Recovery.MaxAttempts
	}
	if c.PermissionPollInterval <= 0 {
		c.PermissionPollInterval = def.PermissionPollInterval
	}
	if c.ValidateInterval <= 0 {
		c.ValidateInterval = def.ValidateInterval
	}
	if c.BatteryPollInterval <= 0 {
		c.BatteryPollInterval = def.BatteryPollInterval
	}
	if c.LoadPollInterval <= 0 {
		c.LoadPollInterval = def.LoadPollInterval
	}
	if c.LoadSustainSamples <= 0 {
		c.LoadSustainSamples = def.LoadSustainSamples
	}
	if c.PixelFormat == "" {
		c.PixelFormat = def.PixelFormat
	}
	if c.QueueSize <= 0 {
		c.QueueSize = def.QueueSize
	}
	return c
}

// Deps are the collaborators of the controller. All are required except
// Emitter and Clock.
type Deps struct {
	Store      *buffer.Store
	Capture    ports.CaptureSource
	Encoder    ports.SegmentEncoder
	Permission ports.PermissionChecker
	Notifier   ports.Notifier
	Settings   ports.SettingsProvider
	Battery    ports.BatteryProbe
	Load       ports.LoadProbe
	Logger     ports.Logger

	// Emitter observes state transitions. Optional.
	Emitter EventEmitter

	// Clock defaults to the wall clock.
	Clock Clock
}

func (d Deps) validate() error {
	missing := ""
	switch {
	case d.Store == nil:
		missing = "store"
	case d.Capture == nil:
		missing = "capture source"
	case d.Encoder == nil:
		missing = "encoder"
	case d.Permission == nil:
		missing = "permission checker"
	case d.Notifier == nil:
		missing = "notifier"
	case d.Settings == nil:
		missing = "settings provider"
	case d.Battery == nil:
		missing = "battery probe"
	case d.Load == nil:
		missing = "load probe"
	case d.Logger == nil:
		missing = "logger"
	}
	if missing != "" {
		return fmt.Errorf("%w: controller requires a %s", domain.ErrInvalidConfig, missing)
	}
	return nil
}

// Status is an immutable snapshot of the controller.
type Status struct {
	State      State
	Recovering bool
	Degraded   bool
	Quality    domain.Quality
	Source     string
	Session    string

	// Retries is the current consecutive rotation failure count.
	Retries          int
	RecoveryAttempts int
	RecoveryPending  bool
	LastError        error

	Segments       int
	BufferDuration time.Duration
	SegmentStart   time.Time

	Battery         domain.BatterySnapshot
	HighLoad        bool
	PausedByBattery bool
	WatchdogStalls  int
	DroppedSamples  uint64
}

// Controller is the recording coordinator.
type Controller struct {
	cfg    Config
	store  *buffer.Store
	deps   Deps
	clock  Clock
	logger ports.Logger

	lc       *Lifecycle
	quality  *QualityGovernor
	watchdog *Watchdog
	recovery *AutoRecovery
	battery  *BatteryMonitor
	load     *LoadMonitor

	events  chan func()
	alerts  chan domain.Alert
	done    chan struct{}
	running atomic.Bool

	// runCtx outlives the caller contexts of individual API calls and is
	// cancelled only when Run returns.
	runCtx    context.Context
	runCancel context.CancelFunc

	// Coordinator-owned recording state.
	settings       domain.Settings
	session        string
	source         ports.SourceDescriptor
	sourceOverride string
	input          ports.StreamConfig
	stream         ports.Stream
	streamGen      uint64
	pipeline       ports.Pipeline
	segStart       time.Time
	segPath        string
	lastStart      time.Time

	rotation   *task
	permPoll   *task
	validation *task
	faultRetry *task

	retries         int
	faultBackoff    *backoff
	recovering      bool
	lowSpace        bool
	diskCritical    bool
	permissionLost  bool
	pausedByBattery bool
	lastErr         error

	forwardDropped atomic.Uint64
	encoderDropped uint64

	statusMu sync.RWMutex
	status   Status
}

// NewController creates a controller. It fails if a required dependency
// is missing.
func NewController(cfg Config, deps Deps) (*Controller, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	if deps.Clock == nil {
		deps.Clock = RealClock()
	}

	c := &Controller{
		cfg:          cfg,
		store:        deps.Store,
		deps:         deps,
		clock:        deps.Clock,
		logger:       deps.Logger,
		events:       make(chan func(), cfg.QueueSize),
		alerts:       make(chan domain.Alert, alertQueueSize),
		done:         make(chan struct{}),
		faultBackoff: newBackoff(cfg.FaultRetryDelay, 0),
	}
	c.runCtx, c.runCancel = context.WithCancel(context.Background())

	settings := deps.Settings.Settings()
	c.lc = NewLifecycle(deps.Logger, deps.Emitter)
	c.quality = NewQualityGovernor(settings.Quality)
	c.watchdog = newWatchdog(c.clock, c.post, c.onWatchdogStall)
	c.recovery = newAutoRecovery(cfg.Recovery, c.clock, c.post, deps.Logger, recoveryHooks{
		check:     c.checkPreconditions,
		restart:   c.recoveryRestart,
		recovered: c.onRecovered,
		exhausted: c.onRecoveryExhausted,
	})
	c.battery = newBatteryMonitor(deps.Battery, cfg.BatteryPollInterval, c.clock, c.post, deps.Logger, c.onBatteryChange)
	c.load = newLoadMonitor(deps.Load, cfg.LoadPollInterval, cfg.LoadSustainSamples, c.loadThresholds, c.clock, c.post, deps.Logger, c.onLoadChange)
	c.publish()
	return c, nil
}

// Run drains the coordinator queue until ctx is cancelled, then stops any
// active recording and returns. It may be called once.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return domain.ErrAlreadyRunning
	}
	defer c.runCancel()

	alertsDone := make(chan struct{})
	go c.deliverAlerts(alertsDone)
	defer func() { <-alertsDone }()
	defer close(c.done)

	c.battery.Start()
	c.load.Start()
	c.validation = schedule(c.clock, c.post, c.cfg.ValidateInterval, c.onValidateTick)
	c.publish()

	c.logger.Info("recording controller running")
	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return nil
		case fn := <-c.events:
			fn()
		}
	}
}

// shutdown stops everything owned by the coordinator.
func (c *Controller) shutdown() {
	c.recovery.Cancel()
	c.cancelFaultRetry()
	c.recovering = false
	if c.lc.Active() {
		c.teardown("shutdown")
	}
	c.validation.cancel()
	c.battery.Stop()
	c.load.Stop()
	c.publish()
	c.logger.Info("recording controller stopped")
}

// post queues fn on the coordinator. It is dropped once Run has returned.
func (c *Controller) post(fn func()) {
	select {
	case c.events <- fn:
	case <-c.done:
	}
}

// call runs fn on the coordinator and waits for its result.
func (c *Controller) call(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	select {
	case c.events <- func() { reply <- fn() }:
	case <-c.done:
		return domain.ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		select {
		case err := <-reply:
			return err
		default:
			return domain.ErrNotRunning
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartRecording starts recording from Idle or Paused.
func (c *Controller) StartRecording(ctx context.Context) error {
	return c.call(ctx, c.userStart)
}

// StopRecording stops recording and cancels any pending recovery.
func (c *Controller) StopRecording(ctx context.Context) error {
	return c.call(ctx, c.userStop)
}

// Pause finalizes the current segment and releases capture, keeping the
// buffer.
func (c *Controller) Pause(ctx context.Context) error {
	return c.call(ctx, func() error {
		c.pausedByBattery = false
		return c.pause("user pause")
	})
}

// Resume restarts recording after Pause.
func (c *Controller) Resume(ctx context.Context) error {
	return c.call(ctx, func() error {
		if c.lc.State() != StatePaused {
			return domain.ErrNotRecording
		}
		c.pausedByBattery = false
		return c.userStart()
	})
}

// SwitchSource clears the buffer and selects a new capture source,
// restarting capture if recording.
func (c *Controller) SwitchSource(ctx context.Context, sourceID string) error {
	return c.call(ctx, func() error { return c.switchSource(sourceID) })
}

// ApplySettings re-reads the settings provider and re-evaluates the quality
// and resource policies. It does not wait for the coordinator.
func (c *Controller) ApplySettings() {
	c.post(func() {
		c.applyPolicies()
		c.publish()
	})
}

// Status returns the latest published snapshot. It never blocks on the
// coordinator.
func (c *Controller) Status() Status {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status
}

// Segments returns the finalized segments, oldest first.
func (c *Controller) Segments() []domain.Segment {
	return c.store.Segments()
}

// publish refreshes the status snapshot.
func (c *Controller) publish() {
	st := Status{
		State:            c.lc.State(),
		Recovering:       c.recovering,
		Degraded:         c.quality.Degraded(),
		Quality:          c.quality.Effective(),
		Source:           c.source.ID,
		Session:          c.session,
		Retries:          c.retries,
		RecoveryAttempts: c.recovery.Attempts(),
		RecoveryPending:  c.recovery.Pending(),
		LastError:        c.lastErr,
		Segments:         c.store.Len(),
		BufferDuration:   c.store.CurrentBufferDuration(),
		SegmentStart:     c.segStart,
		Battery:          c.battery.Last(),
		HighLoad:         c.load.High(),
		PausedByBattery:  c.pausedByBattery,
		WatchdogStalls:   c.watchdog.Fired(),
		DroppedSamples:   c.encoderDropped + c.forwardDropped.Load(),
	}
	if st.Source == "" {
		st.Source = c.sourceOverride
	}
	c.statusMu.Lock()
	c.status = st
	c.statusMu.Unlock()
}

// notify queues an alert for delivery without blocking the coordinator.
func (c *Controller) notify(a domain.Alert) {
	a.At = c.clock.Now()
	select {
	case c.alerts <- a:
	default:
		c.logger.Warn("alert queue full, dropping alert", ports.String("alert", a.Kind.String()))
	}
}

func (c *Controller) deliverAlerts(finished chan<- struct{}) {
	defer close(finished)
	for {
		select {
		case a := <-c.alerts:
			c.deliver(a)
		case <-c.done:
			for {
				select {
				case a := <-c.alerts:
					c.deliver(a)
				default:
					return
				}
			}
		}
	}
}

func (c *Controller) deliver(a domain.Alert) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("notifier panicked",
				ports.String("alert", a.Kind.String()),
				ports.Any("panic", r),
			)
		}
	}()
	c.deps.Notifier.Notify(a)
}

func (c *Controller) onValidateTick() {
	c.validation = schedule(c.clock, c.post, c.cfg.ValidateInterval, c.onValidateTick)

	if removed := c.store.ValidateBuffer(); removed > 0 {
		c.logger.Warn("periodic validation removed segments", ports.Int("removed", removed))
	}
	if c.diskCritical {
		if space := c.store.CheckDiskSpace(); space.HasSpace {
			c.diskCritical = false
			c.logger.Info("disk space freed", ports.Uint64("available_mb", space.AvailableMB()))
			c.recovery.Nudge()
		}
	}
	c.publish()
}
