package rollcam

import (
	"github.com/bft-labs/rollcam/internal/app"
	"github.com/bft-labs/rollcam/internal/ports"
)

// Collaborator interfaces a Recorder can be given.
type (
	Logger            = ports.Logger
	Notifier          = ports.Notifier
	CaptureSource     = ports.CaptureSource
	SegmentEncoder    = ports.SegmentEncoder
	PermissionChecker = ports.PermissionChecker
	BatteryProbe      = ports.BatteryProbe
	LoadProbe         = ports.LoadProbe
	DiskProbe         = ports.DiskProbe
	Clock             = app.Clock
)

// Option configures optional behavior of a Recorder.
type Option func(*options)

type options struct {
	logger       ports.Logger
	notifier     ports.Notifier
	capture      ports.CaptureSource
	encoder      ports.SegmentEncoder
	extension    string
	permission   ports.PermissionChecker
	battery      ports.BatteryProbe
	load         ports.LoadProbe
	disk         ports.DiskProbe
	clock        app.Clock
	eventHandler EventHandler
	plugins      []Plugin
}

// WithLogger sets the logger. Default: no output.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithNotifier sets where alerts go. Default: the logger.
func WithNotifier(n Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithCaptureSource replaces the x11grab capture. Unless WithPermissionChecker
// is also given, capture permission is then always granted.
func WithCaptureSource(c CaptureSource) Option {
	return func(o *options) {
		o.capture = c
	}
}

// WithEncoder replaces the ffmpeg encoder. extension is the file extension
// of its segments, without the dot.
func WithEncoder(e SegmentEncoder, extension string) Option {
	return func(o *options) {
		o.encoder = e
		o.extension = extension
	}
}

func WithPermissionChecker(p PermissionChecker) Option {
	return func(o *options) {
		o.permission = p
	}
}

func WithBatteryProbe(p BatteryProbe) Option {
	return func(o *options) {
		o.battery = p
	}
}

func WithLoadProbe(p LoadProbe) Option {
	return func(o *options) {
		o.load = p
	}
}

func WithDiskProbe(p DiskProbe) Option {
	return func(o *options) {
		o.disk = p
	}
}

// WithClock replaces the wall clock driving segment rotation and monitors.
func WithClock(c Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithEventHandler observes recording state changes. Handlers are called
// on the coordinator goroutine and must return quickly.
func WithEventHandler(h EventHandler) Option {
	return func(o *options) {
		o.eventHandler = h
	}
}

// WithPlugin registers a plugin. Plugins are initialized in registration
// order and shut down in reverse order.
func WithPlugin(p Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, p)
	}
}
