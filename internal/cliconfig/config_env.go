package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (ROLLCAM_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("buffer-dir", os.Getenv("ROLLCAM_BUFFER_DIR"), &cfg.BufferDir)
	s.setString("capture", os.Getenv("ROLLCAM_CAPTURE"), &cfg.Capture)
	s.setString("encoder", os.Getenv("ROLLCAM_ENCODER"), &cfg.Encoder)
	s.setString("display", os.Getenv("ROLLCAM_DISPLAY"), &cfg.Display)
	s.setString("ffmpeg", os.Getenv("ROLLCAM_FFMPEG"), &cfg.FFmpeg)
	s.setString("source", os.Getenv("ROLLCAM_SOURCE"), &cfg.Source)
	s.setString("quality", os.Getenv("ROLLCAM_QUALITY"), &cfg.Quality)
	s.setString("battery-policy", os.Getenv("ROLLCAM_BATTERY_POLICY"), &cfg.BatteryPolicy)
	s.setString("notify", os.Getenv("ROLLCAM_NOTIFY"), &cfg.Notify)
	s.setString("log-level", os.Getenv("ROLLCAM_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-file", os.Getenv("ROLLCAM_LOG_FILE"), &cfg.LogFile)

	if err := s.setDuration("segment-length", os.Getenv("ROLLCAM_SEGMENT_LENGTH"), &cfg.SegmentLength); err != nil {
		return err
	}
	if err := s.setDuration("recovery-delay", os.Getenv("ROLLCAM_RECOVERY_BASE_DELAY"), &cfg.RecoveryBaseDelay); err != nil {
		return err
	}

	ints := []struct {
		flag, env string
		dst       *int
	}{
		{"capacity", "ROLLCAM_CAPACITY", &cfg.Capacity},
		{"width", "ROLLCAM_WIDTH", &cfg.Width},
		{"height", "ROLLCAM_HEIGHT", &cfg.Height},
		{"frame-rate", "ROLLCAM_FRAME_RATE", &cfg.FrameRate},
		{"low-space-mb", "ROLLCAM_LOW_SPACE_MB", &cfg.LowSpaceMB},
		{"critical-space-mb", "ROLLCAM_CRITICAL_SPACE_MB", &cfg.CriticalSpaceMB},
		{"recovery-attempts", "ROLLCAM_RECOVERY_ATTEMPTS", &cfg.RecoveryAttempts},
	}
	for _, v := range ints {
		if err := s.setIntFromString(v.flag, os.Getenv(v.env), v.dst); err != nil {
			return err
		}
	}

	floats := []struct {
		flag, env string
		dst       *float64
	}{
		{"battery-threshold", "ROLLCAM_BATTERY_THRESHOLD", &cfg.BatteryThreshold},
		{"load-high", "ROLLCAM_LOAD_HIGH_THRESHOLD", &cfg.LoadHighThreshold},
		{"load-low", "ROLLCAM_LOAD_LOW_THRESHOLD", &cfg.LoadLowThreshold},
	}
	for _, v := range floats {
		if err := s.setFloatFromString(v.flag, os.Getenv(v.env), v.dst); err != nil {
			return err
		}
	}

	s.setBoolFromString("audio", os.Getenv("ROLLCAM_AUDIO"), &cfg.Audio)
	s.setBoolFromString("adaptive-quality", os.Getenv("ROLLCAM_ADAPTIVE_QUALITY"), &cfg.AdaptiveQuality)
	s.setBoolFromString("auto-start", os.Getenv("ROLLCAM_AUTO_START"), &cfg.AutoStart)
	s.setBoolFromString("watch-config", os.Getenv("ROLLCAM_WATCH_CONFIG"), &cfg.WatchConfig)

	return nil
}
