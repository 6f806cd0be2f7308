// Package sampler implements the ThumbnailSampler: picking sample
// timestamps across a video's duration and extracting frames at them.
package sampler

import (
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"math"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"mosaicgen/pkg/ffmpeg"
)

// Tolerance selects the seek strategy used for each extraction.
type Tolerance int

const (
	// Loose requests input-side seeking (-ss before -i): fast, ±2s tolerance.
	Loose Tolerance = iota
	// Accurate requests output-side seeking (-ss after -i): slow, exact.
	Accurate
)

// Frame pairs a decoded image with the timestamp it was extracted at,
// formatted HH:MM:SS.
type Frame struct {
	Image     image.Image
	Timestamp string
}

// PartialFailure is raised when every extraction in a batch failed.
type PartialFailure struct {
	Success int
	Failed  int
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("partial failure: success=%d failed=%d", e.Success, e.Failed)
}

// Timestamps builds the thirds-weighted timestamp set for a mosaic of n
// frames over a video of duration d seconds, per the layout planner's count
// and the edge-dense sampling window.
func Timestamps(d float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	windowStart := 0.05 * d
	e := 0.90 * d

	n1 := int(math.Floor(0.20 * float64(n)))
	n2 := int(math.Floor(0.60 * float64(n)))
	n3 := n - n1 - n2

	out := make([]float64, 0, n)
	out = append(out, evenlySpaced(windowStart, e, 0.00, 0.33, n1)...)
	out = append(out, evenlySpaced(windowStart, e, 0.33, 0.67, n2)...)
	out = append(out, evenlySpaced(windowStart, e, 0.67, 1.00, n3)...)
	return out
}

// evenlySpaced emits count points evenly spaced within [loFrac,hiFrac] of the
// effective window [start, start+e].
func evenlySpaced(start, e, loFrac, hiFrac float64, count int) []float64 {
	if count <= 0 {
		return nil
	}
	lo := start + loFrac*e
	hi := start + hiFrac*e
	out := make([]float64, count)
	if count == 1 {
		out[0] = (lo + hi) / 2
		return out
	}
	step := (hi - lo) / float64(count-1)
	for i := 0; i < count; i++ {
		out[i] = lo + step*float64(i)
	}
	return out
}

// FormatHHMMSS renders seconds as HH:MM:SS, truncating to whole seconds.
func FormatHHMMSS(s float64) string {
	if s < 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		s = 0
	}
	total := int64(s)
	h := total / 3600
	m := (total % 3600) / 60
	sec := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}

// Sampler extracts frames from a video at target timestamps by shelling to
// ffmpeg, one process per timestamp, under bounded concurrency.
type Sampler struct {
	ffmpegBin   string
	concurrency int
}

// New returns a Sampler invoking the given ffmpeg binary (or "ffmpeg" when
// empty) with at most concurrency simultaneous extraction processes.
func New(ffmpegBin string, concurrency int) *Sampler {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Sampler{ffmpegBin: ffmpegBin, concurrency: concurrency}
}

// Sample extracts one frame per timestamp, preserving input order. Any
// per-timestamp failure is filled with a blank transparent frame of
// maxSize x maxSize and timestamp "00:00:00"; if every extraction fails,
// Sample still returns the blank-filled slice alongside a *PartialFailure.
func (s *Sampler) Sample(ctx context.Context, path string, timestamps []float64, maxSize int, tol Tolerance) ([]Frame, error) {
	frames := make([]Frame, len(timestamps))
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	var failedCount int32
	var mu sync.Mutex

	for i, ts := range timestamps {
		wg.Add(1)
		go func(i int, ts float64) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			img, actual, err := s.extractOne(ctx, path, ts, maxSize, tol)
			if err != nil {
				log.Warn("thumbnail extraction failed", "path", path, "timestamp", ts, "err", err)
				mu.Lock()
				failedCount++
				mu.Unlock()
				frames[i] = Frame{Image: blankFrame(maxSize), Timestamp: "00:00:00"}
				return
			}
			frames[i] = Frame{Image: img, Timestamp: actual}
		}(i, ts)
	}
	wg.Wait()

	if int(failedCount) == len(timestamps) && len(timestamps) > 0 {
		return frames, &PartialFailure{Success: 0, Failed: len(timestamps)}
	}
	return frames, nil
}

func (s *Sampler) extractOne(ctx context.Context, path string, ts float64, maxSize int, tol Tolerance) (image.Image, string, error) {
	tmp, err := os.CreateTemp("", "mosaicgen-frame-*.png")
	if err != nil {
		return nil, "", err
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	at := time.Duration(ts * float64(time.Second))
	fc := ffmpeg.NewFilterChain().ScaleToHeight(maxSize)

	cmd := ffmpeg.New(s.ffmpegBin).Overwrite(true)
	if tol == Loose {
		cmd = cmd.StartAt(at).Input(path)
	} else {
		cmd = cmd.Input(path).StartAt(at)
	}
	cmd = cmd.Arg("-vframes", "1").FilterChain(fc).Output(tmpPath)

	if err := cmd.Run(ctx); err != nil {
		return nil, "", err
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, "", err
	}
	return img, FormatHHMMSS(ts), nil
}

func blankFrame(size int) image.Image {
	if size <= 0 {
		size = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	transparent := color.RGBA{0, 0, 0, 0}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, transparent)
		}
	}
	return img
}
