package util

import (
	"math"
	"testing"
)

func TestRound2(t *testing.T) {
	if got := Round2(36.36363636); got != 36.36 {
		t.Fatalf("unexpected %v", got)
	}
	if got := Round2(68.571428); got != 68.57 {
		t.Fatalf("unexpected %v", got)
	}
}

func TestMeanEmpty(t *testing.T) {
	if got := Mean(nil); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestSampleStdDev(t *testing.T) {
	if got := SampleStdDev([]float64{1.0}); got != 0 {
		t.Fatalf("expected 0 for single value, got %v", got)
	}
	got := SampleStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if math.Abs(got-2.13809) > 0.0001 {
		t.Fatalf("unexpected stddev %v", got)
	}
}
