package main

import (
	"github.com/rs/zerolog"

	"github.com/bft-labs/rollcam/internal/adapters/capture"
	"github.com/bft-labs/rollcam/internal/adapters/encoder"
	logAdapter "github.com/bft-labs/rollcam/internal/adapters/log"
	"github.com/bft-labs/rollcam/internal/adapters/notify"
	"github.com/bft-labs/rollcam/internal/adapters/permission"
	"github.com/bft-labs/rollcam/internal/cliconfig"
	"github.com/bft-labs/rollcam/internal/ports"
	"github.com/bft-labs/rollcam/pkg/rollcam"
)

// newRecorder wires the adapters selected by cfg into a Recorder.
func newRecorder(cfg cliconfig.Config, log zerolog.Logger, extra ...rollcam.Option) (*rollcam.Recorder, error) {
	settings, err := cfg.Settings()
	if err != nil {
		return nil, err
	}
	logger := logAdapter.NewZerologAdapterWithLogger(log)

	libCfg := rollcam.DefaultConfig()
	libCfg.BufferDir = cfg.BufferDir
	libCfg.Capacity = cfg.Capacity
	libCfg.LowSpaceBytes = uint64(cfg.LowSpaceMB) << 20
	libCfg.CriticalSpaceBytes = uint64(cfg.CriticalSpaceMB) << 20
	libCfg.Settings = settings
	libCfg.RecoveryBaseDelay = cfg.RecoveryBaseDelay
	libCfg.RecoveryAttempts = cfg.RecoveryAttempts
	libCfg.AutoStart = cfg.AutoStart

	opts := []rollcam.Option{
		rollcam.WithLogger(logger),
		rollcam.WithCaptureSource(captureSource(cfg, logger)),
		rollcam.WithPermissionChecker(permissionChecker(cfg)),
		rollcam.WithNotifier(notifier(cfg, logger)),
	}
	switch cfg.Encoder {
	case cliconfig.EncoderRaw:
		opts = append(opts, rollcam.WithEncoder(encoder.NewRawEncoder(logger, 0), encoder.RawExtension))
	default:
		ff := encoder.NewFFmpegEncoder(encoder.FFmpegConfig{Binary: cfg.FFmpeg}, logger)
		if err := ff.CheckBinary(); err != nil {
			logger.Warn("ffmpeg not found, recording will fail until it is installed", ports.Err(err))
		}
		opts = append(opts, rollcam.WithEncoder(ff, "mp4"))
	}

	return rollcam.New(libCfg, append(opts, extra...)...)
}

func captureSource(cfg cliconfig.Config, logger ports.Logger) rollcam.CaptureSource {
	if cfg.Capture == cliconfig.CaptureSynthetic {
		return capture.NewSynthetic()
	}
	return capture.NewX11Grab(capture.X11GrabConfig{
		Binary:  cfg.FFmpeg,
		Display: cfg.Display,
		Width:   cfg.Width,
		Height:  cfg.Height,
	}, logger)
}

func permissionChecker(cfg cliconfig.Config) rollcam.PermissionChecker {
	if cfg.Capture == cliconfig.CaptureSynthetic {
		return permission.NewStatic(true)
	}
	return permission.NewDisplay(cfg.Display)
}

func notifier(cfg cliconfig.Config, logger ports.Logger) rollcam.Notifier {
	logged := notify.NewLogNotifier(logger)
	if cfg.Notify == cliconfig.NotifyLog {
		return logged
	}
	desktop := notify.NewDesktopNotifier(logger)
	if !desktop.Available() {
		logger.Warn("notify-send not found, alerts go to the log only")
		return logged
	}
	if cfg.Notify == cliconfig.NotifyDesktop {
		return desktop
	}
	return notify.Multi{logged, desktop}
}
