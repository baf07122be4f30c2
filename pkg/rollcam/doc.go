// Package rollcam provides an embeddable rolling screen recorder.
//
// A Recorder keeps the most recent minutes of screen capture on disk as a
// ring of fixed-length segments. It can run as the rollcam CLI or be
// embedded in another Go program.
//
// # Basic Usage
//
//	cfg := rollcam.DefaultConfig()
//	cfg.BufferDir = "/var/lib/rollcam"
//
//	rec, err := rollcam.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := rec.Start(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//	defer rec.Stop()
//
// With AutoStart set, Start begins recording once crash recovery has run.
// Otherwise call StartRecording.
//
// # Dependency Injection
//
// Every collaborator can be replaced:
//
//	rec, err := rollcam.New(cfg,
//	    rollcam.WithCaptureSource(mySource),
//	    rollcam.WithEncoder(myEncoder, "mkv"),
//	    rollcam.WithNotifier(myNotifier),
//	    rollcam.WithLogger(log.NewZerolog(zl)),
//	)
//
// Defaults are an ffmpeg x11grab capture of $DISPLAY, an ffmpeg H.264
// encoder writing fragmented MP4, sysfs battery and /proc load probes and
// alerts written to the logger.
//
// # Live Settings
//
// Recorder.Settings returns the LiveSettings the controller reads at each
// decision point. Updating it changes quality, battery and load policies
// and the selected source without restarting. Segment length and buffer
// capacity are fixed for the lifetime of a Recorder.
//
// # Plugins
//
// Plugins are initialized in registration order after the buffer has been
// recovered and shut down in reverse order by Stop:
//
//	import "github.com/bft-labs/rollcam/plugins/settingswatcher"
//
//	rec, err := rollcam.New(cfg, settingswatcher.WithSettingsWatcher(watchCfg))
package rollcam
