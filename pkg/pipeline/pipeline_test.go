package pipeline

import (
	"path/filepath"
	"testing"

	"mosaicgen/pkg/config"
	"mosaicgen/pkg/discovery"
)

func testConfig() *config.Config {
	return &config.Config{
		Width:                   1200,
		Density:                 "M",
		Format:                  "jpeg",
		CompressionQuality:      0.85,
		MaxConcurrentOperations: 4,
		MosaicAspectRatio:       16.0 / 9.0,
		ThDir:                   ".mosaics",
		FFmpegBin:               "ffmpeg",
		FFprobeBin:              "ffprobe",
	}
}

func TestCreatePlaylist_Standard(t *testing.T) {
	p := New(testConfig())
	dir := t.TempDir()
	pairs := []discovery.FilePair{
		{SourcePath: "/videos/a.mp4"},
		{SourcePath: "/videos/b.mp4"},
	}
	path, err := p.CreatePlaylist(dir, "movies", pairs)
	if err != nil {
		t.Fatalf("CreatePlaylist: %v", err)
	}
	if filepath.Base(path) != "movies.m3u8" {
		t.Errorf("unexpected filename: %s", path)
	}
}

func TestUpdateMaxConcurrency(t *testing.T) {
	p := New(testConfig())
	p.UpdateMaxConcurrency(8)
	if got := p.snapshot().MaxConcurrentOperations; got != 8 {
		t.Errorf("expected max tasks 8, got %d", got)
	}
}

func TestCancelAndReset(t *testing.T) {
	p := New(testConfig())
	p.CancelFile("x")
	if !p.ledger.IsFileCancelled("x") {
		t.Error("expected file cancelled")
	}
	p.Cancel()
	if !p.ledger.IsGlobalCancelled() {
		t.Error("expected global cancelled")
	}
	p.Reset()
	if p.ledger.IsGlobalCancelled() || p.ledger.IsFileCancelled("x") {
		t.Error("expected ledger cleared after reset")
	}
}
