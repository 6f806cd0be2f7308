// Package compositor implements the MosaicCompositor: painting sampled
// thumbnails, per-cell timestamp overlays, and a metadata strip into one
// raster image.
package compositor

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"mosaicgen/pkg/layout"
	"mosaicgen/pkg/mediaprobe"
	"mosaicgen/pkg/sampler"
)

const phi = 1.618

var parsedFont *truetype.Font

func init() {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		panic(fmt.Sprintf("compositor: parse embedded font: %v", err))
	}
	parsedFont = f
}

func faceAt(size float64) font.Face {
	return truetype.NewFace(parsedFont, &truetype.Options{Size: size})
}

// Metadata describes the source video, rendered into the bottom strip.
type Metadata struct {
	Path       string
	Codec      string
	Resolution string
	Duration   string
}

// Compose paints frames (ordered per layout.Placements) onto a single raster
// image sized layout.MosaicWidth x layout.MosaicHeight, plus a metadata
// strip added below the grid whose height is 10% of layout.MosaicHeight.
func Compose(l layout.MosaicLayout, frames []sampler.Frame, meta mediaprobe.VideoMetadata, stripMeta Metadata) (image.Image, error) {
	if len(frames) != len(l.Placements) {
		return nil, fmt.Errorf("compositor: frame count %d != placement count %d", len(frames), len(l.Placements))
	}

	stripHeight := int(float64(l.MosaicHeight) * 0.10)
	totalHeight := l.MosaicHeight + stripHeight

	dc := gg.NewContext(l.MosaicWidth, totalHeight)
	dc.SetRGBA(0.1, 0.1, 0.1, 1.0)
	dc.Clear()

	for i, p := range l.Placements {
		drawCell(dc, frames[i], p, l.MosaicHeight)
	}

	drawMetadataStrip(dc, l.MosaicWidth, l.MosaicHeight, stripHeight, stripMeta)

	return dc.Image(), nil
}

// drawCell places one resized frame at p, applying the bottom-left-origin
// inversion, then overlays its timestamp label.
func drawCell(dc *gg.Context, f sampler.Frame, p layout.Placement, mosaicHeight int) {
	resized := imaging.Resize(f.Image, p.W, p.H, imaging.Lanczos)
	y := mosaicHeight - p.H - p.Y
	dc.DrawImage(resized, p.X, y)

	fontSize := float64(p.H) / 6.0 / phi
	if fontSize < 6 {
		fontSize = 6
	}
	dc.SetFontFace(faceAt(fontSize))

	label := f.Timestamp
	tw, th := dc.MeasureString(label)
	pad := fontSize * 0.3
	bandW := tw + pad*2
	bandH := th + pad*2
	bandX := float64(p.X+p.W) - bandW
	bandY := float64(y+p.H) - bandH

	dc.SetRGBA(0, 0, 0, 0.55)
	dc.DrawRectangle(bandX, bandY, bandW, bandH)
	dc.Fill()

	dc.SetRGBA(1, 1, 1, 1)
	dc.DrawStringAnchored(label, bandX+pad, bandY+bandH/2, 0, 0.35)
}

// drawMetadataStrip paints the translucent blue band with four text lines.
func drawMetadataStrip(dc *gg.Context, width, mosaicHeight, stripHeight int, m Metadata) {
	if stripHeight <= 0 {
		return
	}
	y0 := float64(mosaicHeight)
	dc.SetRGBA(0.1, 0.3, 0.7, 0.65)
	dc.DrawRectangle(0, y0, float64(width), float64(stripHeight))
	dc.Fill()

	fontSize := float64(stripHeight) / 5.0
	if fontSize < 8 {
		fontSize = 8
	}
	dc.SetFontFace(faceAt(fontSize))
	dc.SetRGBA(1, 1, 1, 1)

	lines := []string{m.Path, m.Codec, m.Resolution, m.Duration}
	lineHeight := float64(stripHeight) / float64(len(lines)+1)
	for i, line := range lines {
		ly := y0 + lineHeight*float64(i+1)
		dc.DrawStringAnchored(line, 8, ly, 0, 0.35)
	}
}
