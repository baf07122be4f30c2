package rollcam

import "context"

// Plugin extends a Recorder with optional behaviour.
type Plugin interface {
	// Name identifies the plugin in logs.
	Name() string

	// Initialize is called by Start. ctx is cancelled by Stop. A returned
	// error aborts Start.
	Initialize(ctx context.Context, cfg PluginConfig) error

	// Shutdown is called by Stop, in reverse registration order.
	Shutdown(ctx context.Context) error
}

// PluginConfig is what a plugin gets to work with.
type PluginConfig struct {
	BufferDir string
	Logger    Logger

	// Settings is the live settings holder of the Recorder.
	Settings *LiveSettings

	// Recorder gives access to status and recording controls.
	Recorder *Recorder
}
