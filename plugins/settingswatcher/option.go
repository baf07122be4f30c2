package settingswatcher

import "github.com/bft-labs/rollcam/pkg/rollcam"

// WithSettingsWatcher returns a rollcam Option that reloads settings when
// the config file changes.
//
// Usage:
//
//	rec, err := rollcam.New(cfg,
//	    settingswatcher.WithSettingsWatcher(settingswatcher.Config{
//	        Path:          "/etc/rollcam/config.toml",
//	        DebounceDelay: 500 * time.Millisecond,
//	    }),
//	)
func WithSettingsWatcher(cfg Config) rollcam.Option {
	return rollcam.WithPlugin(New(cfg))
}

// WithDefaultSettingsWatcher watches ~/.rollcam/config.toml.
func WithDefaultSettingsWatcher() rollcam.Option {
	return WithSettingsWatcher(DefaultConfig())
}
