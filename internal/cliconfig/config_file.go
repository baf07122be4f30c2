package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/bft-labs/rollcam/internal/domain"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	BufferDir     string `toml:"buffer_dir"`
	Capacity      int    `toml:"capacity"`
	SegmentLength string `toml:"segment_length"`

	Capture string `toml:"capture"`
	Encoder string `toml:"encoder"`
	Display string `toml:"display"`
	FFmpeg  string `toml:"ffmpeg"`
	Source  string `toml:"source"`

	Quality   string `toml:"quality"`
	Width     int    `toml:"width"`
	Height    int    `toml:"height"`
	FrameRate int    `toml:"frame_rate"`
	Audio     *bool  `toml:"audio"`

	BatteryPolicy     string  `toml:"battery_policy"`
	BatteryThreshold  float64 `toml:"battery_threshold"`
	LoadHighThreshold float64 `toml:"load_high_threshold"`
	LoadLowThreshold  float64 `toml:"load_low_threshold"`
	AdaptiveQuality   *bool   `toml:"adaptive_quality"`

	LowSpaceMB      int `toml:"low_space_mb"`
	CriticalSpaceMB int `toml:"critical_space_mb"`

	RecoveryBaseDelay string `toml:"recovery_base_delay"`
	RecoveryAttempts  int    `toml:"recovery_attempts"`

	Notify      string `toml:"notify"`
	AutoStart   *bool  `toml:"auto_start"`
	WatchConfig *bool  `toml:"watch_config"`

	LogLevel string `toml:"log_level"`
	LogFile  string `toml:"log_file"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.rollcam/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".rollcam", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("buffer-dir", fc.BufferDir, &cfg.BufferDir)
	s.setString("capture", fc.Capture, &cfg.Capture)
	s.setString("encoder", fc.Encoder, &cfg.Encoder)
	s.setString("display", fc.Display, &cfg.Display)
	s.setString("ffmpeg", fc.FFmpeg, &cfg.FFmpeg)
	s.setString("source", fc.Source, &cfg.Source)
	s.setString("quality", fc.Quality, &cfg.Quality)
	s.setString("battery-policy", fc.BatteryPolicy, &cfg.BatteryPolicy)
	s.setString("notify", fc.Notify, &cfg.Notify)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-file", fc.LogFile, &cfg.LogFile)

	if err := s.setDuration("segment-length", fc.SegmentLength, &cfg.SegmentLength); err != nil {
		return err
	}
	if err := s.setDuration("recovery-delay", fc.RecoveryBaseDelay, &cfg.RecoveryBaseDelay); err != nil {
		return err
	}

	s.setInt("capacity", fc.Capacity, &cfg.Capacity)
	s.setInt("width", fc.Width, &cfg.Width)
	s.setInt("height", fc.Height, &cfg.Height)
	s.setInt("frame-rate", fc.FrameRate, &cfg.FrameRate)
	s.setInt("low-space-mb", fc.LowSpaceMB, &cfg.LowSpaceMB)
	s.setInt("critical-space-mb", fc.CriticalSpaceMB, &cfg.CriticalSpaceMB)
	s.setInt("recovery-attempts", fc.RecoveryAttempts, &cfg.RecoveryAttempts)

	s.setFloat("battery-threshold", fc.BatteryThreshold, &cfg.BatteryThreshold)
	s.setFloat("load-high", fc.LoadHighThreshold, &cfg.LoadHighThreshold)
	s.setFloat("load-low", fc.LoadLowThreshold, &cfg.LoadLowThreshold)

	s.setBool("audio", fc.Audio, &cfg.Audio)
	s.setBool("adaptive-quality", fc.AdaptiveQuality, &cfg.AdaptiveQuality)
	s.setBool("auto-start", fc.AutoStart, &cfg.AutoStart)
	s.setBool("watch-config", fc.WatchConfig, &cfg.WatchConfig)

	return nil
}

// ReloadSettings re-reads the config file on top of base and returns the
// resulting recording settings. Flags and environment still win over the
// file, as at startup.
func ReloadSettings(path string, base Config, changed map[string]bool) (domain.Settings, error) {
	fc, err := LoadFileConfig(path)
	if err != nil {
		return domain.Settings{}, err
	}
	cfg := base
	if err := ApplyFileConfig(&cfg, fc, changed); err != nil {
		return domain.Settings{}, err
	}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		return domain.Settings{}, err
	}
	return cfg.Settings()
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
