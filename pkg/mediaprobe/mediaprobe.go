// Package mediaprobe opens a video via ffprobe and exposes duration,
// resolution, codec, and creation-date metadata.
package mediaprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"mosaicgen/pkg/density"
)

// Errors surfaced by Probe. NotAVideoFile and NoVideoTrack are fatal for the
// file they concern but never bubble past the coordinator.
var (
	ErrNotAVideoFile = errors.New("not a video file")
	ErrNoVideoTrack  = errors.New("no video track")
)

// VideoMetadata is an immutable record describing a probed source video.
type VideoMetadata struct {
	SourcePath string
	Duration   float64 // seconds; NaN/negative means unknown
	Width      int
	Height     int
	Codec      string // "type/subtype[,type/subtype...]"
	Created    *time.Time
}

// Aspect returns width/height, or 0 if the resolution is unknown.
func (m VideoMetadata) Aspect() float64 {
	if m.Height <= 0 {
		return 0
	}
	return float64(m.Width) / float64(m.Height)
}

// DurationClass derives the coarse duration class from Duration.
func (m VideoMetadata) DurationClass() density.Class {
	return density.ClassOf(m.Duration)
}

// Prober opens videos on the local filesystem using ffprobe.
type Prober struct {
	ffprobePath string
}

// New returns a Prober invoking the given ffprobe binary, or "ffprobe" on
// PATH when empty.
func New(ffprobePath string) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Prober{ffprobePath: ffprobePath}
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType     string `json:"codec_type"`
		CodecName     string `json:"codec_name"`
		Width         int    `json:"width"`
		Height        int    `json:"height"`
		Tags          struct {
			CreationTime string `json:"creation_time"`
		} `json:"tags"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		Tags     struct {
			CreationTime string `json:"creation_time"`
		} `json:"tags"`
	} `json:"format"`
}

// Probe inspects the file at path and returns its VideoMetadata.
func (p *Prober) Probe(ctx context.Context, path string) (VideoMetadata, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "stream=codec_type,codec_name,width,height:stream_tags=creation_time:format=duration:format_tags=creation_time",
		"-of", "json",
		path,
	}
	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	out, err := cmd.Output()
	if err != nil {
		return VideoMetadata{}, fmt.Errorf("%w: %s: %v", ErrNotAVideoFile, path, err)
	}
	return parseProbeJSON(path, out)
}

// parseProbeJSON turns raw ffprobe JSON output into a VideoMetadata. Split
// out from Probe so the parsing logic is testable without shelling out.
func parseProbeJSON(path string, out []byte) (VideoMetadata, error) {
	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return VideoMetadata{}, fmt.Errorf("%w: parse ffprobe json: %v", ErrNotAVideoFile, err)
	}
	if len(parsed.Streams) == 0 {
		return VideoMetadata{}, fmt.Errorf("%w: %s", ErrNotAVideoFile, path)
	}

	var codecs []string
	var videoWidth, videoHeight int
	haveVideo := false
	var createdTag string
	for _, s := range parsed.Streams {
		if s.CodecType == "" || s.CodecName == "" {
			continue
		}
		codecs = append(codecs, s.CodecType+"/"+s.CodecName)
		if s.CodecType == "video" {
			haveVideo = true
			videoWidth, videoHeight = s.Width, s.Height
			if s.Tags.CreationTime != "" {
				createdTag = s.Tags.CreationTime
			}
		}
	}
	if !haveVideo {
		return VideoMetadata{}, fmt.Errorf("%w: %s", ErrNoVideoTrack, path)
	}
	if createdTag == "" {
		createdTag = parsed.Format.Tags.CreationTime
	}

	duration := math.NaN()
	if d, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
		duration = d
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
		duration = math.NaN()
	}

	var created *time.Time
	if createdTag != "" {
		if t, err := time.Parse(time.RFC3339, createdTag); err == nil {
			created = &t
		}
	}

	return VideoMetadata{
		SourcePath: path,
		Duration:   duration,
		Width:      videoWidth,
		Height:     videoHeight,
		Codec:      strings.Join(codecs, ","),
		Created:    created,
	}, nil
}
