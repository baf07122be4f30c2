// Package settingswatcher reloads recorder settings when the config file
// changes. Quality, battery and load policies and the selected source take
// effect without a restart.
package settingswatcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/rollcam/internal/cliconfig"
	"github.com/bft-labs/rollcam/pkg/log"
	"github.com/bft-labs/rollcam/pkg/rollcam"
)

// LoadFunc reads settings from the config file at path.
type LoadFunc func(path string) (rollcam.Settings, error)

// Config holds configuration options for the settings watcher plugin.
type Config struct {
	// Path is the config file to watch. Default: ~/.rollcam/config.toml
	Path string

	// DebounceDelay is the delay after the last change before reloading.
	// Editors often write a file in several steps.
	// Default: 250 milliseconds
	DebounceDelay time.Duration

	// Load parses the file. Default: the file on top of the default
	// configuration.
	Load LoadFunc
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Path:          cliconfig.DefaultConfigPath(),
		DebounceDelay: 250 * time.Millisecond,
	}
}

// Plugin watches the config file and pushes reloaded settings into the
// recorder's LiveSettings.
type Plugin struct {
	mu sync.Mutex

	path          string
	debounceDelay time.Duration
	load          LoadFunc

	settings *rollcam.LiveSettings
	logger   log.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
	reloads  int
}

// New creates a settings watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	def := DefaultConfig()
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = def.DebounceDelay
	}
	if cfg.Load == nil {
		cfg.Load = func(path string) (rollcam.Settings, error) {
			return cliconfig.ReloadSettings(path, cliconfig.DefaultConfig(), nil)
		}
	}
	return &Plugin{
		path:          cfg.Path,
		debounceDelay: cfg.DebounceDelay,
		load:          cfg.Load,
	}
}

func (p *Plugin) Name() string {
	return "settingswatcher"
}

// Initialize starts watching the directory holding the config file. A
// missing directory disables the watcher without failing the recorder.
func (p *Plugin) Initialize(ctx context.Context, cfg rollcam.PluginConfig) error {
	p.settings = cfg.Settings
	p.logger = cfg.Logger
	if p.logger == nil {
		p.logger = log.NewNoop()
	}

	if p.path == "" {
		p.logger.Warn("settings watcher disabled: no config path")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		p.logger.Warn("settings watcher disabled: cannot watch config directory",
			log.String("path", p.path),
			log.Err(err))
		return nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	p.logger.Info("settings watcher started", log.String("path", p.path))
	return nil
}

// Shutdown stops the watcher and any pending reload.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()
	return nil
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	name := filepath.Base(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			// Rename covers editors that save through a temp file.
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			p.scheduleReload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn("settings watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) scheduleReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		p.reload()
	})
}

// reload applies the file. An invalid file keeps the current settings.
func (p *Plugin) reload() {
	s, err := p.load(p.path)
	if err != nil {
		p.logger.Warn("config reload rejected, keeping current settings",
			log.String("path", p.path),
			log.Err(err))
		return
	}
	p.settings.Update(s)

	p.mu.Lock()
	p.reloads++
	p.mu.Unlock()

	p.logger.Info("settings reloaded",
		log.String("quality", s.Quality.String()),
		log.String("battery_policy", s.BatteryPolicy.String()),
		log.String("source", s.Source),
	)
}

// Reloads returns how many times settings were applied from the file.
func (p *Plugin) Reloads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloads
}

var _ rollcam.Plugin = (*Plugin)(nil)
