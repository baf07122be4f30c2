package ports

import (
	"context"

	"github.com/bft-labs/rollcam/internal/domain"
)

// PermissionChecker reports whether screen capture is currently permitted.
type PermissionChecker interface {
	HasPermission(ctx context.Context) bool
}

// Notifier delivers alerts to the user. Delivery is fire-and-forget;
// failures must never affect recording.
type Notifier interface {
	Notify(alert domain.Alert)
}

// SettingsProvider supplies the current user settings.
type SettingsProvider interface {
	Settings() domain.Settings
}
