// Package preview implements PreviewAssembler: building a short spliced
// preview video from K evenly spaced, time-scaled extracts of a source.
package preview

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"mosaicgen/pkg/density"
	"mosaicgen/pkg/ffmpeg"
)

// Plan is the derived extract count/length for a preview export.
type Plan struct {
	Count       int
	ExtractSecs float64
	TotalSecs   float64
}

// DerivePlan computes K (extract count) and ℓ (extract length) from the
// source duration D, requested preview length P, minimum per-extract length
// m, and density. rate(D) decays monotonically with duration; rate floor is
// 12/min when D<=0.
func DerivePlan(durationSec, previewSec, minExtractSec float64, d density.Density) Plan {
	rate := 12.0
	if durationSec > 0 {
		rate = 12.0 / (1.0 + 0.2*(durationSec/60.0))
	}
	rate /= d.ExtractsMultiplier()

	k := int(math.Ceil((durationSec / 60.0) * rate))
	if k < 1 {
		k = 1
	}
	extractLen := previewSec / float64(k)
	if extractLen < minExtractSec {
		extractLen = minExtractSec
	}
	return Plan{Count: k, ExtractSecs: extractLen, TotalSecs: extractLen * float64(k)}
}

// StartPoints returns k evenly spaced clip start times across [0, D-extractLen].
func StartPoints(durationSec, extractLen float64, k int) []float64 {
	if k <= 0 {
		return nil
	}
	span := durationSec - extractLen
	if span < 0 {
		span = 0
	}
	out := make([]float64, k)
	if k == 1 {
		out[0] = 0
		return out
	}
	step := span / float64(k-1)
	for i := 0; i < k; i++ {
		out[i] = step * float64(i)
	}
	return out
}

// OutputFilename derives "{stem}-amprv-{density}-{K}.mp4".
func OutputFilename(stem string, d density.Density, k int) string {
	return fmt.Sprintf("%s-amprv-%s-%d.mp4", stem, d.RawValue(), k)
}

// Progress reports periodic export progress; called at most ~2Hz.
type Progress func(percent float64, position, speed string)

// Assembler exports spliced preview videos by shelling to ffmpeg's
// trim/concat filter graph.
type Assembler struct {
	ffmpegBin string
}

// New returns an Assembler invoking the given ffmpeg binary (or "ffmpeg").
func New(ffmpegBin string) *Assembler {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	return &Assembler{ffmpegBin: ffmpegBin}
}

// Export splices Plan.Count clips of length Plan.ExtractSecs from sourcePath
// into outputPath, each time-scaled by 1/speed (speed=1.0 is a no-op,
// design-preserved for future acceleration). preset is an opaque encoder
// preset string passed through verbatim. On ctx cancellation the export is
// aborted and any partial output file is removed.
func (a *Assembler) Export(ctx context.Context, sourcePath, outputPath string, durationSec float64, plan Plan, speed float64, preset string, onProgress Progress) error {
	if speed <= 0 {
		speed = 1.0
	}
	starts := StartPoints(durationSec, plan.ExtractSecs, plan.Count)

	var filters []string
	var refs []string
	for i, st := range starts {
		end := st + plan.ExtractSecs
		vLabel := fmt.Sprintf("v%d", i)
		aLabel := fmt.Sprintf("a%d", i)
		filters = append(filters, fmt.Sprintf(
			"[0:v]trim=start=%.3f:end=%.3f,setpts=(PTS-STARTPTS)/%.4f[%s]",
			st, end, speed, vLabel,
		))
		filters = append(filters, fmt.Sprintf(
			"[0:a]atrim=start=%.3f:end=%.3f,asetpts=(PTS-STARTPTS)/%.4f[%s]",
			st, end, speed, aLabel,
		))
		refs = append(refs, fmt.Sprintf("[%s][%s]", vLabel, aLabel))
	}
	filters = append(filters, fmt.Sprintf(
		"%sconcat=n=%d:v=1:a=1[outv][outa]", strings.Join(refs, ""), len(starts),
	))
	graph := strings.Join(filters, ";")

	cmd := ffmpeg.New(a.ffmpegBin).
		Overwrite(true).
		Input(sourcePath).
		Arg("-filter_complex", graph, "-map", "[outv]", "-map", "[outa]").
		Preset(preset).
		Output(outputPath)

	if onProgress != nil {
		cmd = cmd.WithProgress(plan.TotalSecs, onProgress)
	}

	if err := cmd.Run(ctx); err != nil {
		if ctx.Err() != nil {
			os.Remove(outputPath)
		}
		return fmt.Errorf("preview export: %w", err)
	}

	if ctx.Err() != nil {
		os.Remove(outputPath)
		return ctx.Err()
	}
	return nil
}
