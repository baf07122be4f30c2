// Package permission implements ports.PermissionChecker.
package permission

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// Static is a permission flag toggled by the host application.
type Static struct {
	granted atomic.Bool
}

// NewStatic creates a checker with the given initial state.
func NewStatic(granted bool) *Static {
	s := &Static{}
	s.granted.Store(granted)
	return s
}

func (s *Static) HasPermission(context.Context) bool { return s.granted.Load() }

// Set grants or revokes permission.
func (s *Static) Set(granted bool) { s.granted.Store(granted) }

// DefaultX11SocketDir is where X servers create their local sockets.
const DefaultX11SocketDir = "/tmp/.X11-unix"

// Display grants capture while the X display is reachable: the display
// name is set and, for a local display, its socket exists.
type Display struct {
	display   string
	socketDir string
}

// NewDisplay creates a checker for display ($DISPLAY when empty).
func NewDisplay(display string) *Display {
	if display == "" {
		display = os.Getenv("DISPLAY")
	}
	return &Display{display: display, socketDir: DefaultX11SocketDir}
}

func (d *Display) HasPermission(ctx context.Context) bool {
	if d.display == "" {
		return false
	}
	host, num, ok := strings.Cut(d.display, ":")
	if !ok {
		return false
	}
	if host != "" && host != "unix" {
		// Remote displays cannot be checked locally.
		return true
	}
	num, _, _ = strings.Cut(num, ".")
	if num == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(d.socketDir, "X"+num))
	return err == nil
}
