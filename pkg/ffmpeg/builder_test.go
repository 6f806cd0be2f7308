package ffmpeg

import "testing"

func TestFilterChain_String(t *testing.T) {
	fc := NewFilterChain().
		ScaleToHeight(720).
		FPS(30)
	got := fc.String()
	want := "scale=-2:720,fps=30"
	if got != want {
		t.Fatalf("unexpected filter chain: got %q want %q", got, want)
	}
}

func TestFilterChain_Scale(t *testing.T) {
	fc := NewFilterChain().Scale(480, -2)
	got := fc.String()
	want := "scale=480:-2"
	if got != want {
		t.Fatalf("unexpected filter chain: got %q want %q", got, want)
	}
}
