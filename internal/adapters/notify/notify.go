// Package notify implements ports.Notifier.
package notify

import (
	"context"
	"os/exec"
	"time"

	"github.com/bft-labs/rollcam/internal/domain"
	"github.com/bft-labs/rollcam/internal/ports"
)

// LogNotifier writes alerts to a logger.
type LogNotifier struct {
	logger ports.Logger
}

// NewLogNotifier creates a notifier that logs every alert.
func NewLogNotifier(logger ports.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(a domain.Alert) {
	fields := []ports.Field{
		ports.String("kind", a.Kind.String()),
		ports.Bool("recovering", a.Recovering),
	}
	if a.Reason != nil {
		fields = append(fields, ports.Err(a.Reason))
	}
	switch a.Kind {
	case domain.AlertRecordingRecovered:
		n.logger.Info(a.Message(), fields...)
	case domain.AlertRecordingStopped, domain.AlertDiskSpaceCritical, domain.AlertExportFailed:
		n.logger.Error(a.Message(), fields...)
	default:
		n.logger.Warn(a.Message(), fields...)
	}
}

// DesktopNotifier shows alerts through notify-send.
type DesktopNotifier struct {
	binary  string
	timeout time.Duration
	logger  ports.Logger

	// run executes the command; replaced in tests.
	run func(ctx context.Context, name string, args ...string) error
}

// NewDesktopNotifier creates a notify-send notifier.
func NewDesktopNotifier(logger ports.Logger) *DesktopNotifier {
	return &DesktopNotifier{
		binary:  "notify-send",
		timeout: 5 * time.Second,
		logger:  logger,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

// Available reports whether notify-send is installed.
func (n *DesktopNotifier) Available() bool {
	_, err := exec.LookPath(n.binary)
	return err == nil
}

func (n *DesktopNotifier) Notify(a domain.Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	if err := n.run(ctx, n.binary, "--app-name=rollcam", "--urgency="+urgency(a.Kind), "rollcam", a.Message()); err != nil {
		n.logger.Debug("desktop notification failed", ports.Err(err))
	}
}

func urgency(k domain.AlertKind) string {
	switch k {
	case domain.AlertRecordingStopped, domain.AlertDiskSpaceCritical, domain.AlertPermissionRevoked:
		return "critical"
	case domain.AlertRecordingRecovered:
		return "low"
	default:
		return "normal"
	}
}

// Multi fans an alert out to several notifiers in order.
type Multi []ports.Notifier

func (m Multi) Notify(a domain.Alert) {
	for _, n := range m {
		n.Notify(a)
	}
}
