package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/rollcam/internal/adapters/encoder"
	"github.com/bft-labs/rollcam/internal/adapters/fs"
	"github.com/bft-labs/rollcam/internal/adapters/notify"
	"github.com/bft-labs/rollcam/internal/adapters/permission"
	"github.com/bft-labs/rollcam/internal/cliconfig"
	"github.com/bft-labs/rollcam/internal/domain"
	"github.com/bft-labs/rollcam/pkg/rollcam"
)

func syntheticConfig(t *testing.T) cliconfig.Config {
	cfg := cliconfig.DefaultConfig()
	cfg.BufferDir = t.TempDir()
	cfg.Capture = cliconfig.CaptureSynthetic
	cfg.Encoder = cliconfig.EncoderRaw
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestNewRecorder_Synthetic(t *testing.T) {
	cfg := syntheticConfig(t)
	cfg.Quality = "medium"

	rec, err := newRecorder(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("newRecorder() error = %v", err)
	}
	if rec.BufferDir() != cfg.BufferDir {
		t.Errorf("BufferDir() = %s", rec.BufferDir())
	}
	if q := rec.Settings().Settings().Quality; q != rollcam.QualityMedium {
		t.Errorf("Quality = %v, want medium", q)
	}
	sources, err := rec.Sources(context.Background())
	if err != nil || len(sources) != 1 {
		t.Errorf("Sources() = %+v, %v", sources, err)
	}
}

func TestPermissionChecker(t *testing.T) {
	cfg := syntheticConfig(t)
	if _, ok := permissionChecker(cfg).(*permission.Static); !ok {
		t.Error("synthetic capture should use a static checker")
	}
	cfg.Capture = cliconfig.CaptureX11Grab
	if _, ok := permissionChecker(cfg).(*permission.Display); !ok {
		t.Error("x11grab capture should check the display")
	}
}

func TestNotifier_LogOnly(t *testing.T) {
	cfg := syntheticConfig(t)
	if _, ok := notifier(cfg, nil).(*notify.LogNotifier); !ok {
		t.Error("notify=log should return the log notifier")
	}
}

func TestSegmentsCommand(t *testing.T) {
	c := &cli{cfg: syntheticConfig(t)}
	dir := c.cfg.BufferDir

	start := time.Unix(1_700_000_000, 0)
	name := domain.SegmentFileName(start, encoder.RawExtension)
	os.WriteFile(filepath.Join(dir, name), []byte("not raw"), 0o644)
	idx := domain.BufferIndex{
		Segments: []domain.SegmentRecord{
			{File: name, Start: start, Duration: time.Minute, Size: 7},
			{File: "segment_1700000060.rcam", Start: start.Add(time.Minute), Duration: time.Minute, Size: 9},
		},
		UpdatedAt: start.Add(2 * time.Minute),
	}
	if err := fs.NewIndexFileRepository(dir).Save(idx); err != nil {
		t.Fatal(err)
	}

	cmd := newSegmentsCmd(c)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--inspect"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("segments error = %v", err)
	}

	got := out.String()
	for _, want := range []string{name, "encoded", "missing", "2 segments, 2m0s buffered"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestSegmentsCommand_Empty(t *testing.T) {
	c := &cli{cfg: syntheticConfig(t)}
	cmd := newSegmentsCmd(c)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(nil)
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "is empty") {
		t.Errorf("output = %s", out.String())
	}
}
