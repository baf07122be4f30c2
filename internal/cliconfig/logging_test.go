package cliconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLogger_RotatingFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "rollcam.log")

	logger, closer, err := Logger("warn", file)
	if err != nil {
		t.Fatalf("Logger() error = %v", err)
	}
	if logger.GetLevel() != zerolog.WarnLevel {
		t.Errorf("level = %v, want warn", logger.GetLevel())
	}
	logger.Info().Msg("hidden")
	logger.Warn().Str("segment", "segment_1.mp4").Msg("low disk space")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	b, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	out := string(b)
	if !strings.Contains(out, `"message":"low disk space"`) || !strings.Contains(out, `"segment":"segment_1.mp4"`) {
		t.Errorf("log file = %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warn level: %s", out)
	}
}

func TestLogger_ConsoleOnly(t *testing.T) {
	logger, closer, err := Logger("bogus", "")
	if err != nil {
		t.Fatalf("Logger() error = %v", err)
	}
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Errorf("level = %v, want info fallback", logger.GetLevel())
	}
	if err := closer.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
