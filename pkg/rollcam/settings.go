package rollcam

import (
	"sync"

	"github.com/bft-labs/rollcam/internal/ports"
)

// LiveSettings holds the current Settings. It is safe for concurrent use.
type LiveSettings struct {
	mu      sync.RWMutex
	current Settings
	hooks   []func(old, new Settings)
}

// NewLiveSettings creates a holder with the given initial settings.
func NewLiveSettings(s Settings) *LiveSettings {
	return &LiveSettings{current: s}
}

// Settings returns a copy of the current settings.
func (l *LiveSettings) Settings() Settings {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Update replaces the settings. SegmentLength keeps its original value.
// Subscribers run on the caller's goroutine after the swap.
func (l *LiveSettings) Update(s Settings) {
	l.mu.Lock()
	old := l.current
	s.SegmentLength = old.SegmentLength
	l.current = s
	hooks := append(([]func(old, new Settings))(nil), l.hooks...)
	l.mu.Unlock()

	for _, h := range hooks {
		h(old, s)
	}
}

// OnChange registers fn to be called after every Update.
func (l *LiveSettings) OnChange(fn func(old, new Settings)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, fn)
}

var _ ports.SettingsProvider = (*LiveSettings)(nil)
