package mediaprobe

import (
	"math"
	"testing"

	"mosaicgen/pkg/density"
)

const sampleJSON = `{
	"streams": [
		{"codec_type":"video","codec_name":"h264","width":1920,"height":1080,"tags":{"creation_time":"2024-03-01T12:00:00Z"}},
		{"codec_type":"audio","codec_name":"aac"}
	],
	"format": {"duration":"125.5"}
}`

func TestParseProbeJSON(t *testing.T) {
	m, err := parseProbeJSON("clip.mp4", []byte(sampleJSON))
	if err != nil {
		t.Fatalf("parseProbeJSON: %v", err)
	}
	if m.Width != 1920 || m.Height != 1080 {
		t.Errorf("unexpected resolution: %dx%d", m.Width, m.Height)
	}
	if m.Codec != "video/h264,audio/aac" {
		t.Errorf("unexpected codec descriptor: %q", m.Codec)
	}
	if m.Duration != 125.5 {
		t.Errorf("unexpected duration: %v", m.Duration)
	}
	if m.Created == nil || m.Created.Year() != 2024 {
		t.Errorf("unexpected created: %v", m.Created)
	}
	if m.DurationClass() != density.ClassS {
		t.Errorf("unexpected duration class: %v", m.DurationClass())
	}
}

func TestParseProbeJSON_NoVideoTrack(t *testing.T) {
	j := `{"streams":[{"codec_type":"audio","codec_name":"aac"}],"format":{"duration":"10"}}`
	_, err := parseProbeJSON("audio-only.mp3", []byte(j))
	if err == nil {
		t.Fatal("expected ErrNoVideoTrack")
	}
}

func TestParseProbeJSON_NoStreams(t *testing.T) {
	j := `{"streams":[],"format":{"duration":"0"}}`
	_, err := parseProbeJSON("empty.bin", []byte(j))
	if err == nil {
		t.Fatal("expected ErrNotAVideoFile")
	}
}

func TestParseProbeJSON_UnparsableDuration(t *testing.T) {
	j := `{"streams":[{"codec_type":"video","codec_name":"h264","width":100,"height":100}],"format":{"duration":"N/A"}}`
	m, err := parseProbeJSON("weird.mp4", []byte(j))
	if err != nil {
		t.Fatalf("parseProbeJSON: %v", err)
	}
	if !math.IsNaN(m.Duration) {
		t.Errorf("expected NaN duration, got %v", m.Duration)
	}
	if m.DurationClass() != density.ClassUnknown {
		t.Errorf("expected unknown duration class, got %v", m.DurationClass())
	}
}

func TestAspect(t *testing.T) {
	m := VideoMetadata{Width: 1920, Height: 1080}
	if math.Abs(m.Aspect()-16.0/9.0) > 1e-9 {
		t.Errorf("unexpected aspect: %v", m.Aspect())
	}
	m2 := VideoMetadata{Width: 100, Height: 0}
	if m2.Aspect() != 0 {
		t.Errorf("expected 0 aspect for unknown height, got %v", m2.Aspect())
	}
}
