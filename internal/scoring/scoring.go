// Package scoring maps extracted signals to a dominant dimension, an optional
// secondary, an optional composite label and a confidence in [0, 1].
package scoring

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/OneInX/Manifest-InX/internal/signals"
)

// #region constants

const (
	// ShortInputRunes is the trimmed length below which input counts as short.
	ShortInputRunes = 20
	// ShortConfidenceCap bounds the confidence of short inputs.
	ShortConfidenceCap = 0.4
	// QualifyingScore is the minimum score for a secondary or composite.
	QualifyingScore = 3
)

// Composite names an allowed (dominant, secondary) pair.
type Composite string

const (
	DriftLoop      Composite = "drift+loop"
	AvoidanceLoop  Composite = "avoidance+loop"
	DriveFracture  Composite = "drive+fracture"
	DriftAvoidance Composite = "drift+avoidance"
	DriveLoop      Composite = "drive+loop"
)

// TieBreak orders dimensions for resolving equal maximum scores.
var TieBreak = []signals.Dimension{
	signals.Fracture, signals.Avoidance, signals.Loop, signals.Drift, signals.Drive,
}

type pair struct{ dominant, secondary signals.Dimension }

var composites = map[pair]Composite{
	{signals.Drift, signals.Loop}:      DriftLoop,
	{signals.Avoidance, signals.Loop}:  AvoidanceLoop,
	{signals.Drive, signals.Fracture}:  DriveFracture,
	{signals.Drift, signals.Avoidance}: DriftAvoidance,
	{signals.Drive, signals.Loop}:      DriveLoop,
}

// CompositeFor returns the composite for the ordered pair, if allowed.
func CompositeFor(dominant, secondary signals.Dimension) (Composite, bool) {
	c, ok := composites[pair{dominant, secondary}]
	return c, ok
}

// #endregion constants

// #region vectors

// Vectors is the scoring result. An empty Secondary or Composite means unset.
type Vectors struct {
	Dominant   signals.Dimension `json:"dominant"`
	Secondary  signals.Dimension `json:"secondary,omitempty"`
	Composite  Composite         `json:"composite,omitempty"`
	Confidence float64           `json:"confidence"`
}

// #endregion vectors

// #region score

// IsShort reports whether raw, trimmed, has fewer than ShortInputRunes characters.
func IsShort(raw string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(raw)) < ShortInputRunes
}

// Score classifies sig. raw is the untrimmed input text, used only for the
// short-input rule.
func Score(sig signals.Signals, raw string) Vectors {
	if sig.AllZero() {
		return Vectors{Dominant: signals.Drift, Confidence: 0}
	}

	dominant := pickDominant(sig.Scores)
	domScore := sig.Scores[dominant]

	// Highest remaining score, ties by ascending name.
	var rest []signals.Dimension
	for _, d := range signals.Dimensions() {
		if d != dominant {
			rest = append(rest, d)
		}
	}
	sort.Slice(rest, func(i, j int) bool {
		si, sj := sig.Scores[rest[i]], sig.Scores[rest[j]]
		if si != sj {
			return si > sj
		}
		return rest[i] < rest[j]
	})

	var v Vectors
	v.Dominant = dominant
	candidate := rest[0]
	if cs := sig.Scores[candidate]; cs >= domScore-1 && cs >= QualifyingScore {
		v.Secondary = candidate
	}

	short := IsShort(raw)
	if short {
		v.Secondary = ""
	}
	if v.Secondary != "" && domScore >= QualifyingScore && sig.Scores[v.Secondary] >= QualifyingScore {
		if c, ok := CompositeFor(dominant, v.Secondary); ok {
			v.Composite = c
		}
	}

	v.Confidence = confidence(sig.Scores)
	if short && v.Confidence > ShortConfidenceCap {
		v.Confidence = ShortConfidenceCap
	}
	return v
}

// pickDominant returns the maximum scorer, resolving ties by TieBreak.
func pickDominant(scores map[signals.Dimension]int) signals.Dimension {
	top := -1
	for _, d := range signals.Dimensions() {
		if scores[d] > top {
			top = scores[d]
		}
	}
	for _, d := range TieBreak {
		if scores[d] == top {
			return d
		}
	}
	return signals.Drift
}

// confidence is (top - second + 1) / (top + 1) over all five scores, clipped.
func confidence(scores map[signals.Dimension]int) float64 {
	vals := make([]int, 0, len(scores))
	for _, d := range signals.Dimensions() {
		vals = append(vals, scores[d])
	}
	sort.Sort(sort.Reverse(sort.IntSlice(vals)))
	top, second := vals[0], vals[1]
	c := float64(top-second+1) / float64(top+1)
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}

// #endregion score
