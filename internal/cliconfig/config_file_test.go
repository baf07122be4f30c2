package cliconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bft-labs/rollcam/internal/domain"
)

func TestApplyFileConfig(t *testing.T) {
	trueVal := true
	falseVal := false

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all valid config values",
			fileConfig: FileConfig{
				BufferDir:         "/data/buffer",
				Capacity:          10,
				SegmentLength:     "30s",
				Capture:           "synthetic",
				Quality:           "low",
				BatteryThreshold:  0.3,
				RecoveryBaseDelay: "10s",
				Audio:             &trueVal,
				AutoStart:         &falseVal,
			},
			changed: map[string]bool{},
			initial: Config{AutoStart: true},
			expected: Config{
				BufferDir:         "/data/buffer",
				Capacity:          10,
				SegmentLength:     30 * time.Second,
				Capture:           "synthetic",
				Quality:           "low",
				BatteryThreshold:  0.3,
				RecoveryBaseDelay: 10 * time.Second,
				Audio:             true,
				AutoStart:         false,
			},
		},
		{
			name: "respects changed flags",
			fileConfig: FileConfig{
				Quality:  "low",
				Capacity: 5,
			},
			changed: map[string]bool{"quality": true},
			initial: Config{Quality: "high", Capacity: 15},
			expected: Config{
				Quality:  "high", // unchanged because flag was set
				Capacity: 5,
			},
		},
		{
			name:       "zero values keep defaults",
			fileConfig: FileConfig{},
			changed:    map[string]bool{},
			initial:    Config{Capacity: 15, AdaptiveQuality: true},
			expected:   Config{Capacity: 15, AdaptiveQuality: true},
		},
		{
			name:       "invalid segment length",
			fileConfig: FileConfig{SegmentLength: "a minute"},
			changed:    map[string]bool{},
			wantErr:    true,
		},
		{
			name:       "invalid recovery delay",
			fileConfig: FileConfig{RecoveryBaseDelay: "soon"},
			changed:    map[string]bool{},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyFileConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if cfg != tt.expected {
				t.Errorf("ApplyFileConfig() =\n%+v\nwant\n%+v", cfg, tt.expected)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
buffer_dir = "/var/lib/rollcam"
capacity = 20
segment_length = "45s"
capture = "synthetic"
encoder = "raw"
quality = "medium"
battery_policy = "pause"
battery_threshold = 0.25
load_high_threshold = 0.9
adaptive_quality = false
log_file = "/var/log/rollcam.log"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	fc, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}
	if fc.BufferDir != "/var/lib/rollcam" || fc.Capacity != 20 || fc.SegmentLength != "45s" {
		t.Errorf("buffer fields = %q, %d, %q", fc.BufferDir, fc.Capacity, fc.SegmentLength)
	}
	if fc.Encoder != "raw" || fc.BatteryPolicy != "pause" || fc.LoadHighThreshold != 0.9 {
		t.Errorf("fields = %+v", fc)
	}
	if fc.AdaptiveQuality == nil || *fc.AdaptiveQuality {
		t.Errorf("AdaptiveQuality = %v, want explicit false", fc.AdaptiveQuality)
	}
	if fc.Audio != nil {
		t.Errorf("Audio = %v, want unset", *fc.Audio)
	}
}

func TestLoadFileConfig_InvalidFile(t *testing.T) {
	if _, err := LoadFileConfig("/nonexistent/config.toml"); err == nil {
		t.Error("LoadFileConfig() should fail for a missing file")
	}
}

func TestLoadFileConfig_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	os.WriteFile(path, []byte("capacity = [unclosed"), 0o644)

	if _, err := LoadFileConfig(path); err == nil {
		t.Error("LoadFileConfig() should fail for invalid TOML")
	}
}

func TestReloadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	os.WriteFile(path, []byte("quality = \"low\"\nsource = \":2\"\nbattery_policy = \"reduce\"\n"), 0o644)

	base := DefaultConfig()
	base.Source = ":0"
	s, err := ReloadSettings(path, base, map[string]bool{"source": true})
	if err != nil {
		t.Fatalf("ReloadSettings() error = %v", err)
	}
	if s.Quality != domain.QualityLow || s.BatteryPolicy != domain.BatteryReduceQuality {
		t.Errorf("quality/policy = %v/%v", s.Quality, s.BatteryPolicy)
	}
	if s.Source != ":0" {
		t.Errorf("Source = %q, want flag value :0", s.Source)
	}

	os.WriteFile(path, []byte("quality = \"ultra\"\n"), 0o644)
	if _, err := ReloadSettings(path, base, nil); err == nil {
		t.Error("ReloadSettings() accepted an unknown quality")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := DefaultConfigPath()
	if path != filepath.Join(home, ".rollcam", "config.toml") {
		t.Errorf("DefaultConfigPath() = %v", path)
	}
	if !strings.HasSuffix(path, "config.toml") {
		t.Errorf("DefaultConfigPath() = %v, want suffix config.toml", path)
	}
}

func TestFileExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exists.toml")
	os.WriteFile(path, nil, 0o644)

	if !FileExists(path) {
		t.Error("FileExists() = false for an existing file")
	}
	if FileExists(path + ".missing") {
		t.Error("FileExists() = true for a missing file")
	}
}
