package density

import (
	"math"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	for _, d := range Ordered {
		got, err := From(d.RawValue())
		if err != nil {
			t.Fatalf("From(%q): %v", d.RawValue(), err)
		}
		if got.RawValue() != d.RawValue() {
			t.Errorf("round trip mismatch: %q -> %q", d, got)
		}
	}
}

func TestFromUnknown(t *testing.T) {
	if _, err := From("bogus"); err == nil {
		t.Fatal("expected error for unknown density")
	}
}

func TestClassOf(t *testing.T) {
	cases := []struct {
		d    float64
		want Class
	}{
		{30, ClassXS},
		{59.9, ClassXS},
		{60, ClassS},
		{299, ClassS},
		{300, ClassM},
		{899, ClassM},
		{900, ClassL},
		{1799, ClassL},
		{1800, ClassXL},
		{3600, ClassXL},
		{-1, ClassUnknown},
		{math.NaN(), ClassUnknown},
		{math.Inf(1), ClassUnknown},
	}
	for _, c := range cases {
		if got := ClassOf(c.d); got != c.want {
			t.Errorf("ClassOf(%v) = %v, want %v", c.d, got, c.want)
		}
	}
}

func TestFactorsMonotonic(t *testing.T) {
	prev := 0.0
	for _, d := range Ordered {
		if d.Factor() <= prev {
			t.Errorf("factor not increasing at %v: %v <= %v", d, d.Factor(), prev)
		}
		prev = d.Factor()
	}
}
