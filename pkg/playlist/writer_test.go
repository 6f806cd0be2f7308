package playlist

import (
	"path/filepath"
	"testing"
	"time"

	"mosaicgen/pkg/density"
)

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	entries := []Entry{
		{Path: "/videos/a.mp4", DisplayName: "a.mp4"},
		{Path: "/videos/b.mp4", DisplayName: "b.mp4"},
	}
	path, err := WriteStandard(dir, "movies", entries)
	if err != nil {
		t.Fatalf("WriteStandard: %v", err)
	}
	if filepath.Base(path) != "movies.m3u8" {
		t.Errorf("unexpected filename: %s", path)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 2 || got[0] != "/videos/a.mp4" || got[1] != "/videos/b.mp4" {
		t.Errorf("round trip mismatch: %v", got)
	}
}

func TestWriteStandard_Overwrites(t *testing.T) {
	dir := t.TempDir()
	if _, err := WriteStandard(dir, "movies", []Entry{{Path: "/videos/a.mp4"}}); err != nil {
		t.Fatal(err)
	}
	path, err := WriteStandard(dir, "movies", []Entry{{Path: "/videos/b.mp4"}})
	if err != nil {
		t.Fatal(err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "/videos/b.mp4" {
		t.Errorf("expected overwrite, got %v", got)
	}
}

func TestWriteDurationBucketed(t *testing.T) {
	dir := t.TempDir()
	byClass := map[density.Class][]Entry{
		density.ClassXS: {{Path: "/v/short.mp4"}},
		density.ClassL:  {{Path: "/v/long.mp4"}},
	}
	written, err := WriteDurationBucketed(dir, "movies", byClass)
	if err != nil {
		t.Fatalf("WriteDurationBucketed: %v", err)
	}
	if len(written) != 2 {
		t.Fatalf("expected 2 bucket files, got %d", len(written))
	}
	if filepath.Base(written[density.ClassXS]) != "XS-movies.m3u8" {
		t.Errorf("unexpected bucket filename: %s", written[density.ClassXS])
	}
}

func TestWriteToday(t *testing.T) {
	dir := t.TempDir()
	date := time.Date(2024, 11, 7, 0, 0, 0, 0, time.UTC)
	path, err := WriteToday(dir, date, []Entry{{Path: "/v/a.mp4"}})
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "20241107.m3u8" {
		t.Errorf("unexpected filename: %s", path)
	}
}

func TestWriteDateRange(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 11, 7, 0, 0, 0, 0, time.UTC)
	path, err := WriteDateRange(dir, start, end, []Entry{{Path: "/v/a.mp4"}})
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "20241101-20241107.m3u8" {
		t.Errorf("unexpected filename: %s", path)
	}
}
