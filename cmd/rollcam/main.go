package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	logAdapter "github.com/bft-labs/rollcam/internal/adapters/log"
	"github.com/bft-labs/rollcam/internal/cliconfig"
	"github.com/bft-labs/rollcam/pkg/rollcam"
	"github.com/bft-labs/rollcam/plugins/settingswatcher"
)

const helpDescription = `
Keep the last minutes of your screen on disk, always.

rollcam records the screen into fixed-length segments and keeps only the
newest ones, so the buffer never grows past its capacity.

Highlights:
  - Survives crashes: orphaned segments are adopted on the next start.
  - Backs off on battery and under sustained CPU load.
  - Restarts itself after capture failures with exponential backoff.
  - Configure via file, env (ROLLCAM_*), or flags. The config file is
    reloaded on change.
`

var exampleUsage = strings.TrimSpace(`
  rollcam --capacity 10 --segment-length 30s
  rollcam --capture synthetic --encoder raw --buffer-dir /tmp/rollcam
  rollcam segments --inspect
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// cli holds the parsed configuration shared by all commands.
type cli struct {
	cfg     cliconfig.Config
	cfgPath string
	changed map[string]bool
	log     zerolog.Logger
	closer  io.Closer
}

// load applies file, env and flags in that order of increasing precedence,
// validates, and builds the logger.
func (c *cli) load(cmd *cobra.Command) error {
	cfgFile := c.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}
	c.cfgPath = cfgFile

	c.changed = map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { c.changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&c.cfg, fc, c.changed); err != nil {
			return err
		}
	}
	if err := cliconfig.ApplyEnvConfig(&c.cfg, c.changed); err != nil {
		return err
	}
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	logger, closer, err := cliconfig.Logger(c.cfg.LogLevel, c.cfg.LogFile)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	c.log, c.closer = logger, closer
	return nil
}

func (c *cli) close() {
	if c.closer != nil {
		c.closer.Close()
	}
}

func main() {
	c := &cli{cfg: cliconfig.DefaultConfig()}
	cfg := &c.cfg

	root := &cobra.Command{
		Use:           "rollcam",
		Short:         "Rolling screen recorder that keeps the last minutes on disk",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			c.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run()
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&c.cfgPath, "config", "", "path to config file (default: $HOME/.rollcam/config.toml)")
	f.StringVar(&cfg.BufferDir, "buffer-dir", cfg.BufferDir, "segment directory (default: $HOME/.rollcam/buffer)")
	f.IntVar(&cfg.Capacity, "capacity", cfg.Capacity, "number of segments kept")
	f.DurationVar(&cfg.SegmentLength, "segment-length", cfg.SegmentLength, "duration of one segment")

	f.StringVar(&cfg.Capture, "capture", cfg.Capture, "capture backend: x11grab or synthetic")
	f.StringVar(&cfg.Encoder, "encoder", cfg.Encoder, "segment encoder: ffmpeg or raw")
	f.StringVar(&cfg.Display, "display", cfg.Display, "X display to capture (default: $DISPLAY)")
	f.StringVar(&cfg.FFmpeg, "ffmpeg", cfg.FFmpeg, "ffmpeg executable")
	f.StringVar(&cfg.Source, "source", cfg.Source, "capture source id (default: first available)")

	f.StringVar(&cfg.Quality, "quality", cfg.Quality, "capture quality: low, medium or high")
	f.IntVar(&cfg.Width, "width", cfg.Width, "native capture width when the source does not report one")
	f.IntVar(&cfg.Height, "height", cfg.Height, "native capture height when the source does not report one")
	f.IntVar(&cfg.FrameRate, "frame-rate", cfg.FrameRate, "frames per second")
	f.BoolVar(&cfg.Audio, "audio", cfg.Audio, "capture audio when the backend supports it")

	f.StringVar(&cfg.BatteryPolicy, "battery-policy", cfg.BatteryPolicy, "on battery: ignore, reduce or pause")
	f.Float64Var(&cfg.BatteryThreshold, "battery-threshold", cfg.BatteryThreshold, "battery level below which the pause policy applies")
	f.Float64Var(&cfg.LoadHighThreshold, "load-high", cfg.LoadHighThreshold, "CPU load fraction that counts as high")
	f.Float64Var(&cfg.LoadLowThreshold, "load-low", cfg.LoadLowThreshold, "CPU load fraction at which high load ends")
	f.BoolVar(&cfg.AdaptiveQuality, "adaptive-quality", cfg.AdaptiveQuality, "lower quality under sustained high load")

	f.IntVar(&cfg.LowSpaceMB, "low-space-mb", cfg.LowSpaceMB, "free space in MB that triggers a low disk alert")
	f.IntVar(&cfg.CriticalSpaceMB, "critical-space-mb", cfg.CriticalSpaceMB, "free space in MB at which recording stops")
	f.DurationVar(&cfg.RecoveryBaseDelay, "recovery-delay", cfg.RecoveryBaseDelay, "first auto-recovery delay, doubled per attempt")
	f.IntVar(&cfg.RecoveryAttempts, "recovery-attempts", cfg.RecoveryAttempts, "auto-recovery attempts before giving up")

	f.StringVar(&cfg.Notify, "notify", cfg.Notify, "alert sink: log, desktop or both")
	f.BoolVar(&cfg.AutoStart, "auto-start", cfg.AutoStart, "start recording immediately")
	f.BoolVar(&cfg.WatchConfig, "watch-config", cfg.WatchConfig, "reload settings when the config file changes")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	f.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "also write JSON logs to this file, rotated")

	root.AddCommand(newSourcesCmd(c), newSegmentsCmd(c))

	if err := root.Execute(); err != nil {
		errLog := zerolog.New(logAdapter.ConsoleWriter(os.Stderr)).With().Timestamp().Logger()
		errLog.Error().Err(err).Msg("rollcam")
		os.Exit(1)
	}
}

// run records until SIGINT or SIGTERM.
func (c *cli) run() error {
	log := c.log
	log.Info().Interface("config", c.cfg).Str("config_file", c.cfgPath).Msg("configuration")

	var extra []rollcam.Option
	if c.cfg.WatchConfig && c.cfgPath != "" {
		base, changed := c.cfg, c.changed
		extra = append(extra, settingswatcher.WithSettingsWatcher(settingswatcher.Config{
			Path: c.cfgPath,
			Load: func(path string) (rollcam.Settings, error) {
				return cliconfig.ReloadSettings(path, base, changed)
			},
		}))
	}

	rec, err := newRecorder(c.cfg, log, extra...)
	if err != nil {
		return fmt.Errorf("create recorder: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rec.Start(ctx); err != nil {
		return fmt.Errorf("start recorder: %w", err)
	}

	<-ctx.Done()
	log.Info().Msg("received signal, stopping...")

	if err := rec.Stop(); err != nil {
		return fmt.Errorf("stop recorder: %w", err)
	}
	st := rec.Status()
	log.Info().
		Int("segments", st.Segments).
		Dur("buffered", st.BufferDuration).
		Msg("buffer kept")
	return nil
}
