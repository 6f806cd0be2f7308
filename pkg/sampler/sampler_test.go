package sampler

import (
	"regexp"
	"strconv"
	"testing"
)

func TestTimestamps_Count(t *testing.T) {
	got := Timestamps(600, 34)
	if len(got) != 34 {
		t.Fatalf("expected 34 timestamps, got %d", len(got))
	}
	for _, ts := range got {
		if ts < 0 || ts > 600 {
			t.Errorf("timestamp %v out of [0,600]", ts)
		}
	}
}

func TestTimestamps_WithinWindow(t *testing.T) {
	d := 100.0
	got := Timestamps(d, 20)
	lo, hi := 0.05*d, 0.95*d
	for _, ts := range got {
		if ts < lo-1e-9 || ts > hi+1e-9 {
			t.Errorf("timestamp %v outside working window [%v,%v]", ts, lo, hi)
		}
	}
}

func TestTimestamps_Monotonic(t *testing.T) {
	got := Timestamps(300, 15)
	for i := 1; i < len(got); i++ {
		if got[i] < got[i-1] {
			t.Errorf("timestamps not ascending at %d: %v < %v", i, got[i], got[i-1])
		}
	}
}

func TestFormatHHMMSS(t *testing.T) {
	re := regexp.MustCompile(`^\d{2}:\d{2}:\d{2}$`)
	cases := []float64{0, 5, 59, 60, 3599, 3600, 86399.9}
	for _, s := range cases {
		got := FormatHHMMSS(s)
		if !re.MatchString(got) {
			t.Errorf("FormatHHMMSS(%v) = %q, does not match pattern", s, got)
		}
		h, _ := strconv.Atoi(got[0:2])
		m, _ := strconv.Atoi(got[3:5])
		sec, _ := strconv.Atoi(got[6:8])
		total := h*3600 + m*60 + sec
		if total != int(s) {
			t.Errorf("FormatHHMMSS(%v) round trip mismatch: got total %d", s, total)
		}
	}
}

func TestFormatHHMMSS_NegativeOrNonFinite(t *testing.T) {
	if got := FormatHHMMSS(-5); got != "00:00:00" {
		t.Errorf("expected 00:00:00 for negative input, got %q", got)
	}
}
