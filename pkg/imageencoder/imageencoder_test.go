package imageencoder

import (
	"strings"
	"testing"

	"mosaicgen/pkg/density"
)

func TestBuildFilename_Basic(t *testing.T) {
	got := BuildFilename("/videos/clip.mp4", density.M, density.ClassXS, "jpeg", false)
	want := "clip-M-XS.jpeg"
	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestBuildFilename_FullPath(t *testing.T) {
	got := BuildFilename("/videos/sub/clip.mp4", density.L, density.ClassM, "png", true)
	if !strings.HasSuffix(got, "-L-M.png") {
		t.Errorf("unexpected suffix: %q", got)
	}
	if strings.ContainsRune(strings.TrimSuffix(got, "-L-M.png"), '/') {
		t.Errorf("separators not replaced: %q", got)
	}
}

func TestBuildFilename_Truncates(t *testing.T) {
	longName := strings.Repeat("a", 300) + ".mp4"
	got := BuildFilename(longName, density.XXL, density.ClassXL, "heic", false)
	if len(got) > maxFilenameLen {
		t.Errorf("filename length %d exceeds %d: %q", len(got), maxFilenameLen, got)
	}
	if !strings.HasSuffix(got, "-XXL-XL.heic") {
		t.Errorf("unexpected suffix: %q", got)
	}
}

func TestQualityMapping(t *testing.T) {
	if qualityToJPEG(0) != 1 {
		t.Errorf("qualityToJPEG(0) = %d, want 1", qualityToJPEG(0))
	}
	if qualityToJPEG(1) != 100 {
		t.Errorf("qualityToJPEG(1) = %d, want 100", qualityToJPEG(1))
	}
	if qualityToCRF(1) >= qualityToCRF(0) {
		t.Errorf("higher quality should yield lower CRF: %d vs %d", qualityToCRF(1), qualityToCRF(0))
	}
}
