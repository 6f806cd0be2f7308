package compositor

import (
	"image"
	"image/color"
	"testing"

	"mosaicgen/pkg/layout"
	"mosaicgen/pkg/mediaprobe"
	"mosaicgen/pkg/sampler"
)

func solidFrame(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{200, 100, 50, 255})
		}
	}
	return img
}

func TestCompose_Size(t *testing.T) {
	l := layout.Plan(16.0/9.0, 60, 800, "M", 16.0/9.0, false)
	frames := make([]sampler.Frame, l.Count)
	for i := range frames {
		frames[i] = sampler.Frame{Image: solidFrame(64, 36), Timestamp: "00:00:10"}
	}
	meta := mediaprobe.VideoMetadata{SourcePath: "clip.mp4", Width: 1920, Height: 1080, Codec: "video/h264"}
	img, err := Compose(l, frames, meta, Metadata{
		Path:       "clip.mp4",
		Codec:      "video/h264",
		Resolution: "1920x1080",
		Duration:   "00:01:00",
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != l.MosaicWidth {
		t.Errorf("width = %d, want %d", b.Dx(), l.MosaicWidth)
	}
	wantHeight := l.MosaicHeight + int(float64(l.MosaicHeight)*0.10)
	if b.Dy() != wantHeight {
		t.Errorf("height = %d, want %d", b.Dy(), wantHeight)
	}
}

func TestCompose_MismatchedFrameCount(t *testing.T) {
	l := layout.Plan(16.0/9.0, 60, 800, "M", 16.0/9.0, false)
	_, err := Compose(l, []sampler.Frame{}, mediaprobe.VideoMetadata{}, Metadata{})
	if err == nil {
		t.Fatal("expected error on frame/placement count mismatch")
	}
}
