// Package selector maps scored vectors to exactly one template identifier.
package selector

import (
	"sort"

	"github.com/OneInX/Manifest-InX/internal/scoring"
	"github.com/OneInX/Manifest-InX/internal/signals"
)

// LowSignalTemplate is returned whenever the dominant score is below
// scoring.QualifyingScore, whatever the dominant dimension is.
const LowSignalTemplate = "T02"

// Pair is a dimension's designated primary template and its declared
// low-confidence partner. Select only ever returns Primary.
type Pair struct {
	Primary  string
	Fallback string
}

var compositeTemplates = map[scoring.Composite]string{
	scoring.DriftLoop:      "T11",
	scoring.AvoidanceLoop:  "T12",
	scoring.DriveFracture:  "T13",
	scoring.DriftAvoidance: "T14",
	scoring.DriveLoop:      "T15",
}

var dominantTemplates = map[signals.Dimension]Pair{
	signals.Drift:     {"T01", "T02"},
	signals.Avoidance: {"T03", "T04"},
	signals.Drive:     {"T06", "T05"},
	signals.Loop:      {"T08", "T07"},
	signals.Fracture:  {"T10", "T09"},
}

// Select returns the template id for v.
func Select(v scoring.Vectors, sig signals.Signals) string {
	if v.Composite != "" {
		return compositeTemplates[v.Composite]
	}
	pair := dominantTemplates[v.Dominant]
	if sig.Score(v.Dominant) < scoring.QualifyingScore {
		return LowSignalTemplate
	}
	return pair.Primary
}

// TemplateFor returns the template pair of a dimension.
func TemplateFor(d signals.Dimension) (Pair, bool) {
	p, ok := dominantTemplates[d]
	return p, ok
}

// CompositeTemplate returns the template of a composite.
func CompositeTemplate(c scoring.Composite) (string, bool) {
	id, ok := compositeTemplates[c]
	return id, ok
}

// Reachable lists every template id Select can return, in ascending order.
func Reachable() []string {
	set := map[string]struct{}{LowSignalTemplate: {}}
	for _, p := range dominantTemplates {
		set[p.Primary] = struct{}{}
	}
	for _, id := range compositeTemplates {
		set[id] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
