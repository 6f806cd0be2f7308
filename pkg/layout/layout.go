// Package layout implements the LayoutPlanner: deciding thumbnail count and
// packing thumbnails into a target-aspect mosaic grid.
package layout

import (
	"math"

	"mosaicgen/pkg/density"
)

// Placement is one thumbnail's position and size within the mosaic, in a
// top-left-origin layout space. MosaicCompositor applies the bottom-left
// coordinate inversion when it paints.
type Placement struct {
	X, Y int
	W, H int
}

// MosaicLayout is an immutable, fully planned grid.
type MosaicLayout struct {
	Rows, Cols    int
	BaseThumbW    int
	BaseThumbH    int
	Placements    []Placement
	Count         int
	MosaicWidth   int
	MosaicHeight  int
}

// AspectTag names the output directory aspect bucket for a target aspect ratio.
func AspectTag(targetAspect float64) string {
	switch {
	case targetAspect == 1.0:
		return "1x1"
	case targetAspect > 1.0:
		return "16x9"
	default:
		return "9x16"
	}
}

// ThumbnailCount: if duration < 5s, always 4; otherwise scale with
// log(duration) and target width, divided by the density's sampling
// factor, capped at 800.
func ThumbnailCount(durationSec float64, targetWidth int, d density.Density) int {
	if durationSec < 5 {
		return 4
	}
	raw := (float64(targetWidth)/200.0 + 10.0*math.Log(durationSec)) / d.Factor()
	n := int(math.Floor(raw))
	if n > 800 {
		n = 800
	}
	if n < 4 {
		n = 4
	}
	return n
}

// Plan chooses thumbnail count then dispatches to the classic or custom
// geometry planner.
func Plan(videoAspect float64, durationSec float64, targetWidth int, d density.Density, targetMosaicAspect float64, custom bool) MosaicLayout {
	n := ThumbnailCount(durationSec, targetWidth, d)
	if videoAspect <= 0 {
		videoAspect = 16.0 / 9.0
	}
	if custom {
		return planCustom(videoAspect, targetWidth, d, targetMosaicAspect, n)
	}
	return planClassic(videoAspect, targetWidth, targetMosaicAspect, n)
}

// planClassic searches row counts 1..N, scoring each by a blend of vertical
// fill-ratio deviation from the target mosaic height and absolute deviation
// from the requested thumbnail count, stopping early once a candidate's
// height exceeds the target height. Cells are equal size; placement is
// row-major.
func planClassic(videoAspect float64, targetWidth int, targetMosaicAspect float64, n int) MosaicLayout {
	if targetMosaicAspect <= 0 {
		targetMosaicAspect = 16.0 / 9.0
	}
	targetHeight := float64(targetWidth) / targetMosaicAspect

	bestRows := 1
	bestScore := math.Inf(1)
	for rows := 1; rows <= n; rows++ {
		cols := ceilDiv(n, rows)
		cellW := float64(targetWidth) / float64(cols)
		cellH := cellW / videoAspect
		height := cellH * float64(rows)
		placed := rows * cols
		deviation := math.Abs(float64(placed-n)) / float64(n)
		fillErr := math.Abs(height-targetHeight) / targetHeight
		score := fillErr + deviation
		if score < bestScore {
			bestScore = score
			bestRows = rows
		}
		if height > targetHeight {
			break
		}
	}

	rows := bestRows
	cols := ceilDiv(n, rows)
	cellW := targetWidth / cols
	cellH := int(math.Round(float64(cellW) / videoAspect))

	placements := make([]Placement, 0, n)
	placed := 0
	for r := 0; r < rows && placed < n; r++ {
		for c := 0; c < cols && placed < n; c++ {
			placements = append(placements, Placement{
				X: c * cellW,
				Y: r * cellH,
				W: cellW,
				H: cellH,
			})
			placed++
		}
	}

	return MosaicLayout{
		Rows:         rows,
		Cols:         cols,
		BaseThumbW:   cellW,
		BaseThumbH:   cellH,
		Placements:   placements,
		Count:        len(placements),
		MosaicWidth:  targetWidth,
		MosaicHeight: rows * cellH,
	}
}

type customTemplate struct {
	largeCols, largeRows int
	smallCols, smallRows int
}

// templates is density-indexed. M and XXL are fixed to known-good worked
// examples; the rest interpolate with largeCols == smallCols/2 so large-
// and small-row widths reconcile.
var templates = map[density.Density]customTemplate{
	density.XXS: {largeCols: 10, largeRows: 5, smallCols: 20, smallRows: 10},
	density.XS:  {largeCols: 8, largeRows: 4, smallCols: 16, smallRows: 8},
	density.S:   {largeCols: 6, largeRows: 3, smallCols: 12, smallRows: 6},
	density.M:   {largeCols: 4, largeRows: 2, smallCols: 8, smallRows: 4},
	density.L:   {largeCols: 3, largeRows: 2, smallCols: 6, smallRows: 3},
	density.XL:  {largeCols: 2, largeRows: 1, smallCols: 4, smallRows: 2},
	density.XXL: {largeCols: 2, largeRows: 1, smallCols: 4, smallRows: 2},
}

// planCustom builds the density-indexed template geometry, including
// portrait/landscape adjustment and top/middle/bottom row packing.
func planCustom(videoAspect float64, targetWidth int, d density.Density, targetMosaicAspect float64, n int) MosaicLayout {
	t, ok := templates[d]
	if !ok {
		t = templates[density.M]
	}
	if targetMosaicAspect <= 0 {
		targetMosaicAspect = 16.0 / 9.0
	}

	portrait := videoAspect < 1.0
	if portrait {
		t.smallCols *= 2
		t.largeCols *= 2
		if t.smallRows >= 2 {
			t.smallRows /= 2
		}
	}

	smallCellW := float64(targetWidth) / float64(t.smallCols)
	smallCellH := smallCellW / videoAspect
	largeCellW := 2 * smallCellW
	largeCellH := largeCellW / videoAspect

	totalCells := func() int {
		return t.smallRows*t.smallCols + t.largeRows*t.largeCols
	}

	if portrait {
		// Grow columns in matched steps until the assembled mosaic aspect
		// reaches the target AND there are enough cells for n thumbnails —
		// the shape target alone can undershoot n for sparse templates.
		for i := 0; i < 512; i++ {
			height := float64(t.smallRows)*smallCellH + float64(t.largeRows)*largeCellH
			aspect := float64(targetWidth) / height
			if (aspect >= targetMosaicAspect && totalCells() >= n) || t.smallCols >= 1000 {
				break
			}
			t.smallCols += 2
			t.largeCols += 1
			smallCellW = float64(targetWidth) / float64(t.smallCols)
			smallCellH = smallCellW / videoAspect
			largeCellW = 2 * smallCellW
			largeCellH = largeCellW / videoAspect
		}
	} else {
		// Landscape: grow row counts until the vertical budget (derived from
		// target height) is consumed AND there are enough cells for n
		// thumbnails. Large rows count double in height.
		targetHeight := float64(targetWidth) / targetMosaicAspect
		for i := 0; i < 1024; i++ {
			height := float64(t.smallRows)*smallCellH + float64(t.largeRows)*largeCellH
			if (height >= targetHeight && totalCells() >= n) || (t.smallRows+t.largeRows) >= 1000 {
				break
			}
			t.largeRows++
		}
	}

	smallCellWi := int(math.Round(smallCellW))
	smallCellHi := int(math.Round(smallCellH))
	largeCellWi := int(math.Round(largeCellW))
	largeCellHi := int(math.Round(largeCellH))

	topSmallRows := t.smallRows / 2
	bottomSmallRows := t.smallRows - topSmallRows

	type rowSpec struct {
		cols   int
		cellW  int
		cellH  int
	}
	var rows []rowSpec
	for i := 0; i < topSmallRows; i++ {
		rows = append(rows, rowSpec{cols: t.smallCols, cellW: smallCellWi, cellH: smallCellHi})
	}
	for i := 0; i < t.largeRows; i++ {
		rows = append(rows, rowSpec{cols: t.largeCols, cellW: largeCellWi, cellH: largeCellHi})
	}
	for i := 0; i < bottomSmallRows; i++ {
		rows = append(rows, rowSpec{cols: t.smallCols, cellW: smallCellWi, cellH: smallCellHi})
	}

	var placements []Placement
	y := 0
	for _, row := range rows {
		for c := 0; c < row.cols; c++ {
			placements = append(placements, Placement{
				X: c * row.cellW,
				Y: y,
				W: row.cellW,
				H: row.cellH,
			})
		}
		y += row.cellH
	}

	// The growth loops above already guarantee len(placements) >= n except
	// in degenerate inputs; trim any surplus from the tail rather than
	// distort the template's visual shape.
	placements = fitCount(placements, n)

	return MosaicLayout{
		Rows:         len(rows),
		Cols:         t.smallCols,
		BaseThumbW:   smallCellWi,
		BaseThumbH:   smallCellHi,
		Placements:   placements,
		Count:        len(placements),
		MosaicWidth:  targetWidth,
		MosaicHeight: y,
	}
}

// fitCount trims a template's placements to exactly n cells. It never pads:
// if the template still has fewer than n cells, the caller's Count is
// derived from len(placements) rather than the requested n, so duplicate,
// overlapping placements are never produced.
func fitCount(p []Placement, n int) []Placement {
	if len(p) > n {
		return p[:n]
	}
	return p
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}
