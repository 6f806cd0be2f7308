package preview

import (
	"math"
	"testing"

	"mosaicgen/pkg/density"
)

func TestDerivePlan_Basic(t *testing.T) {
	p := DerivePlan(600, 30, 1.0, density.M)
	if p.Count < 1 {
		t.Fatalf("expected at least 1 extract, got %d", p.Count)
	}
	if p.ExtractSecs < 1.0 {
		t.Errorf("extract length below minimum: %v", p.ExtractSecs)
	}
	if math.Abs(p.TotalSecs-p.ExtractSecs*float64(p.Count)) > 1e-9 {
		t.Errorf("total length inconsistent with count*extractSecs")
	}
}

func TestDerivePlan_DensityAffectsCount(t *testing.T) {
	few := DerivePlan(600, 30, 1.0, density.XXS)
	many := DerivePlan(600, 30, 1.0, density.XXL)
	if many.Count <= few.Count {
		t.Errorf("XXL should yield more extracts than XXS: %d <= %d", many.Count, few.Count)
	}
}

func TestDerivePlan_ZeroDuration(t *testing.T) {
	p := DerivePlan(0, 30, 1.0, density.M)
	if p.Count < 1 {
		t.Errorf("expected floor of 1 extract even at zero duration, got %d", p.Count)
	}
}

func TestStartPoints_Spacing(t *testing.T) {
	pts := StartPoints(100, 5, 5)
	if len(pts) != 5 {
		t.Fatalf("expected 5 points, got %d", len(pts))
	}
	if pts[0] != 0 {
		t.Errorf("expected first point at 0, got %v", pts[0])
	}
	if math.Abs(pts[len(pts)-1]-(100-5)) > 1e-9 {
		t.Errorf("expected last point near D-extractLen, got %v", pts[len(pts)-1])
	}
}

func TestOutputFilename(t *testing.T) {
	got := OutputFilename("clip", density.S, 12)
	want := "clip-amprv-S-12.mp4"
	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}
