package selector

import (
	"reflect"
	"testing"

	"github.com/OneInX/Manifest-InX/internal/scoring"
	"github.com/OneInX/Manifest-InX/internal/signals"
)

func withScore(d signals.Dimension, score int) signals.Signals {
	s := signals.Signals{Scores: map[signals.Dimension]int{}}
	for _, dim := range signals.Dimensions() {
		s.Scores[dim] = 0
	}
	s.Scores[d] = score
	return s
}

func TestSelect_Primary(t *testing.T) {
	tests := []struct {
		dim  signals.Dimension
		want string
	}{
		{signals.Drift, "T01"},
		{signals.Avoidance, "T03"},
		{signals.Drive, "T06"},
		{signals.Loop, "T08"},
		{signals.Fracture, "T10"},
	}
	for _, tt := range tests {
		got := Select(scoring.Vectors{Dominant: tt.dim}, withScore(tt.dim, 3))
		if got != tt.want {
			t.Errorf("Select(%s) = %s, want %s", tt.dim, got, tt.want)
		}
	}
}

func TestSelect_LowSignalAlwaysT02(t *testing.T) {
	for _, d := range signals.Dimensions() {
		for _, score := range []int{0, 1, 2} {
			got := Select(scoring.Vectors{Dominant: d}, withScore(d, score))
			if got != LowSignalTemplate {
				t.Errorf("Select(%s, score %d) = %s, want %s", d, score, got, LowSignalTemplate)
			}
		}
	}
}

func TestSelect_CompositeOverrides(t *testing.T) {
	tests := []struct {
		c    scoring.Composite
		want string
	}{
		{scoring.DriftLoop, "T11"},
		{scoring.AvoidanceLoop, "T12"},
		{scoring.DriveFracture, "T13"},
		{scoring.DriftAvoidance, "T14"},
		{scoring.DriveLoop, "T15"},
	}
	for _, tt := range tests {
		// A composite wins even over a low dominant score.
		got := Select(scoring.Vectors{Dominant: signals.Drift, Composite: tt.c}, withScore(signals.Drift, 0))
		if got != tt.want {
			t.Errorf("Select(%s) = %s, want %s", tt.c, got, tt.want)
		}
	}
}

func TestTemplateFor_FallbackPartners(t *testing.T) {
	p, ok := TemplateFor(signals.Drive)
	if !ok || p != (Pair{Primary: "T06", Fallback: "T05"}) {
		t.Errorf("TemplateFor(drive) = %+v, %v", p, ok)
	}
	if _, ok := TemplateFor("other"); ok {
		t.Error("unknown dimension should not resolve")
	}
}

func TestReachable(t *testing.T) {
	want := []string{"T01", "T02", "T03", "T06", "T08", "T10", "T11", "T12", "T13", "T14", "T15"}
	if got := Reachable(); !reflect.DeepEqual(got, want) {
		t.Errorf("Reachable() = %v, want %v", got, want)
	}
}
