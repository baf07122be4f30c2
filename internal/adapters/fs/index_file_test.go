package fs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bft-labs/rollcam/internal/domain"
)

func TestIndexFileRepository_LoadMissing(t *testing.T) {
	r := NewIndexFileRepository(t.TempDir())

	idx, err := r.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !idx.IsEmpty() {
		t.Errorf("Load() = %+v, want empty index", idx)
	}
}

func TestIndexFileRepository_SaveLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "buffer")
	r := NewIndexFileRepository(dir)

	start := time.Unix(1_700_000_000, 0).UTC()
	want := domain.BufferIndex{
		Segments: []domain.SegmentRecord{
			{File: "segment_1700000000.mp4", Start: start, Duration: time.Minute, Size: 4096},
			{File: "segment_1700000060.mp4", Start: start.Add(time.Minute), Duration: time.Minute, Size: 8192},
		},
		UpdatedAt: start.Add(2 * time.Minute),
	}

	if err := r.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(r.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}

	got, err := r.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(got.Segments))
	}
	for i := range want.Segments {
		g, w := got.Segments[i], want.Segments[i]
		if g.File != w.File || !g.Start.Equal(w.Start) || g.Duration != w.Duration || g.Size != w.Size {
			t.Errorf("segment %d = %+v, want %+v", i, g, w)
		}
	}
	if !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, want.UpdatedAt)
	}
}

func TestIndexFileRepository_Corrupt(t *testing.T) {
	dir := t.TempDir()
	r := NewIndexFileRepository(dir)
	if err := os.WriteFile(r.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := r.Load(); err == nil {
		t.Error("Load() of a corrupt index returned nil error")
	}
}

func TestStatfsProbe(t *testing.T) {
	p := NewStatfsProbe()

	avail, err := p.Available(t.TempDir())
	if err != nil {
		t.Fatalf("Available() error = %v", err)
	}
	if avail == 0 {
		t.Error("Available() = 0 on a writable temp dir")
	}

	if _, err := p.Available(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Available() on a missing path returned nil error")
	}
}
