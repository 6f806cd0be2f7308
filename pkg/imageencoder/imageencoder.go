// Package imageencoder implements ImageEncoder: turning a raster image into
// a named file on disk in HEIC, JPEG, or PNG.
package imageencoder

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"mosaicgen/pkg/density"
	"mosaicgen/pkg/ffmpeg"
)

// Format is an output image format identifier.
type Format string

const (
	HEIC Format = "heic"
	JPEG Format = "jpeg"
	PNG  Format = "png"
)

// ErrUnsupportedOutputFormat is fatal for the whole job per the coordinator's
// error taxonomy: a bad format is a configuration mistake, not a per-file
// fault.
var ErrUnsupportedOutputFormat = errors.New("unsupported output format")

// ValidFormat reports whether f is one Encode actually dispatches.
// config.Load uses this to fail closed on a bad MOSAIC_FORMAT before any
// file is ever processed, rather than letting it surface per file.
func ValidFormat(f Format) bool {
	switch f {
	case HEIC, JPEG, PNG:
		return true
	default:
		return false
	}
}

const maxFilenameLen = 128

// Encoder writes raster images to disk under a deterministic filename.
type Encoder struct {
	ffmpegBin string
	AddFullPath bool
}

// New returns an Encoder. When addFullPath is true, BuildFilename uses the
// full source path (separators replaced by hyphens) as the base instead of
// the bare file stem.
func New(ffmpegBin string, addFullPath bool) *Encoder {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	return &Encoder{ffmpegBin: ffmpegBin, AddFullPath: addFullPath}
}

// BuildFilename derives the deterministic output filename:
// {truncatedBase}-{density}-{durationClass}.{ext}, left-truncating the base
// so the whole name stays within 128 characters.
func BuildFilename(sourcePath string, d density.Density, class density.Class, ext string, addFullPath bool) string {
	var base string
	if addFullPath {
		trimmed := strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath))
		base = strings.ReplaceAll(strings.Trim(trimmed, string(filepath.Separator)), string(filepath.Separator), "-")
	} else {
		base = strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	}

	suffix := fmt.Sprintf("-%s-%s.%s", d.RawValue(), string(class), ext)
	maxBaseLen := maxFilenameLen - len(suffix)
	if maxBaseLen < 0 {
		maxBaseLen = 0
	}
	if len(base) > maxBaseLen {
		base = base[len(base)-maxBaseLen:]
	}
	return base + suffix
}

// Encode writes img to dir/filename in the given format. dir is created if
// absent. quality is in [0,1] and honoured by HEIC and JPEG; PNG is lossless.
func (e *Encoder) Encode(ctx context.Context, img image.Image, dir, filename string, format Format, quality float64) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	outPath := filepath.Join(dir, filename)

	switch format {
	case JPEG:
		return outPath, e.encodeJPEG(outPath, img, quality)
	case PNG:
		return outPath, e.encodePNG(outPath, img)
	case HEIC:
		return outPath, e.encodeHEIC(ctx, outPath, img, quality)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedOutputFormat, format)
	}
}

func (e *Encoder) encodeJPEG(path string, img image.Image, quality float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return jpeg.Encode(f, img, &jpeg.Options{Quality: qualityToJPEG(quality)})
}

func (e *Encoder) encodePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

// encodeHEIC has no pure-Go encoder in the ecosystem, so it shells to ffmpeg
// like every other codec operation in this module: write a PNG intermediate,
// then transcode it to HEIC with libx265's still-image profile.
func (e *Encoder) encodeHEIC(ctx context.Context, path string, img image.Image, quality float64) error {
	tmp, err := os.CreateTemp("", "mosaicgen-heic-src-*.png")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return err
	}
	tmp.Close()

	crf := qualityToCRF(quality)
	cmd := ffmpeg.New(e.ffmpegBin).
		Overwrite(true).
		Input(tmpPath).
		VideoCodec("libx265").
		CRF(crf).
		Arg("-frames:v", "1").
		Output(path)
	return cmd.Run(ctx)
}

// qualityToJPEG maps [0,1] to libjpeg's 1..100 scale.
func qualityToJPEG(q float64) int {
	if q < 0 {
		q = 0
	}
	if q > 1 {
		q = 1
	}
	v := int(q*99) + 1
	return v
}

// qualityToCRF maps [0,1] (1=best) to x265's CRF range, inverted since lower
// CRF means higher quality.
func qualityToCRF(q float64) int {
	if q < 0 {
		q = 0
	}
	if q > 1 {
		q = 1
	}
	return 51 - int(q*41)
}
