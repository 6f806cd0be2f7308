package layout

import (
	"testing"

	"mosaicgen/pkg/density"
)

func TestThumbnailCount_ShortClip(t *testing.T) {
	if n := ThumbnailCount(3, 1200, density.M); n != 4 {
		t.Errorf("short clip should always yield 4, got %d", n)
	}
}

func TestThumbnailCount_Monotonic(t *testing.T) {
	sparse := ThumbnailCount(600, 1200, density.XXL)
	dense := ThumbnailCount(600, 1200, density.XXS)
	if dense <= sparse {
		t.Errorf("XXS should yield more thumbnails than XXL: %d <= %d", dense, sparse)
	}
}

func TestThumbnailCount_Capped(t *testing.T) {
	n := ThumbnailCount(1e9, 4000, density.XXS)
	if n > 800 {
		t.Errorf("count must cap at 800, got %d", n)
	}
}

func TestPlanClassic_Invariants(t *testing.T) {
	layout := Plan(16.0/9.0, 600, 1200, density.M, 16.0/9.0, false)
	if len(layout.Placements) != layout.Count {
		t.Fatalf("placements len %d != count %d", len(layout.Placements), layout.Count)
	}
	if layout.Count == 0 {
		t.Fatal("expected nonzero thumbnail count")
	}
	seen := map[[2]int]bool{}
	for _, p := range layout.Placements {
		if p.W <= 0 || p.H <= 0 {
			t.Fatalf("non-positive cell size: %+v", p)
		}
		key := [2]int{p.X, p.Y}
		if seen[key] {
			t.Fatalf("duplicate position: %+v", p)
		}
		seen[key] = true
	}
}

func TestPlanCustom_Invariants(t *testing.T) {
	for _, d := range density.Ordered {
		layout := Plan(16.0/9.0, 600, 1200, d, 16.0/9.0, true)
		if len(layout.Placements) != layout.Count {
			t.Fatalf("density %v: placements len %d != count %d", d, len(layout.Placements), layout.Count)
		}
		seen := map[[2]int]bool{}
		for _, p := range layout.Placements {
			if p.W <= 0 || p.H <= 0 {
				t.Fatalf("density %v: non-positive cell size: %+v", d, p)
			}
			key := [2]int{p.X, p.Y}
			if seen[key] {
				t.Fatalf("density %v: duplicate position: %+v", d, p)
			}
			seen[key] = true
		}
	}
}

func TestPlanCustom_MeetsThumbnailCount(t *testing.T) {
	// Regression: the M template alone only packs 40 cells at this input,
	// short of the computed N=69; the grid must grow instead of padding
	// with duplicate positions.
	n := ThumbnailCount(600, 1200, density.M)
	layout := Plan(16.0/9.0, 600, 1200, density.M, 16.0/9.0, true)
	if layout.Count != n {
		t.Fatalf("expected layout to meet computed thumbnail count %d, got %d", n, layout.Count)
	}
}

func TestPlanCustom_Portrait(t *testing.T) {
	layout := Plan(9.0/16.0, 600, 1200, density.M, 9.0/16.0, true)
	if layout.Count == 0 {
		t.Fatal("expected nonzero thumbnail count for portrait custom layout")
	}
}

func TestAspectTag(t *testing.T) {
	cases := map[float64]string{
		1.0:      "1x1",
		16.0 / 9: "16x9",
		9.0 / 16: "9x16",
	}
	for in, want := range cases {
		if got := AspectTag(in); got != want {
			t.Errorf("AspectTag(%v) = %q, want %q", in, got, want)
		}
	}
}
