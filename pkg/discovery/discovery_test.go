package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestIsVideoFile(t *testing.T) {
	cases := map[string]bool{
		"clip.mp4":        true,
		"clip.MOV":        true,
		"clip.mkv":        true,
		"notes.txt":       false,
		"clip-amprv.mp4":  true, // extension filter only; tag exclusion is separate
	}
	for name, want := range cases {
		if got := IsVideoFile(name); got != want {
			t.Errorf("IsVideoFile(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestIsPreviewOutput(t *testing.T) {
	if !isPreviewOutput("clip-AMPRV-M-12.mp4") {
		t.Error("expected case-insensitive amprv match")
	}
	if isPreviewOutput("clip.mp4") {
		t.Error("unexpected match")
	}
}

func TestOutputDir_SaveAtRoot(t *testing.T) {
	cfg := OutputConfig{ThDir: "thumbs", Width: 1200, AspectTag: "16x9", SaveAtRoot: true}
	got := OutputDir("/library/movies/clip.mp4", "/library", cfg, "")
	want := filepath.Join("/library", "thumbs", "1200_16x9")
	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestOutputDir_NextToSource(t *testing.T) {
	cfg := OutputConfig{ThDir: "thumbs", Width: 800, AspectTag: "1x1"}
	got := OutputDir("/library/movies/clip.mp4", "/library", cfg, "")
	want := filepath.Join("/library/movies", "thumbs", "800_1x1")
	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestOutputDir_SeparateFolders(t *testing.T) {
	cfg := OutputConfig{ThDir: "thumbs", Width: 800, AspectTag: "1x1", SeparateFolders: true}
	got := OutputDir("/library/movies/clip.mp4", "/library", cfg, "M")
	want := filepath.Join("/library/movies", "thumbs", "800_1x1", "M")
	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestExpandPlaylist(t *testing.T) {
	dir := t.TempDir()
	playlistPath := filepath.Join(dir, "favorites.m3u8")
	content := "#EXTM3U\n#EXTINF:-1,clip1\n/videos/clip1.mp4\n\n# comment\n/videos/clip2.mp4\n"
	if err := os.WriteFile(playlistPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := OutputConfig{ThDir: "thumbs", Width: 800, AspectTag: "16x9"}
	pairs, err := ExpandPlaylist(playlistPath, dir, cfg)
	if err != nil {
		t.Fatalf("ExpandPlaylist: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	if pairs[0].SourcePath != "/videos/clip1.mp4" {
		t.Errorf("unexpected first source: %q", pairs[0].SourcePath)
	}
}

func TestWalk_DeterministicAndFiltered(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.mp4"), []byte{}, 0o644)
	os.WriteFile(filepath.Join(dir, "b.txt"), []byte{}, 0o644)
	os.WriteFile(filepath.Join(dir, "a-amprv-M-4.mp4"), []byte{}, 0o644)

	d := New(nil, nil)
	cfg := OutputConfig{ThDir: "thumbs", Width: 800, AspectTag: "16x9", SaveAtRoot: true}
	pairs, err := d.Walk(context.Background(), dir, cfg, nil)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair (amprv excluded), got %d: %+v", len(pairs), pairs)
	}
}
