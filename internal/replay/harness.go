package replay

import (
	"context"
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/OneInX/Manifest-InX/internal/gate"
	"github.com/OneInX/Manifest-InX/internal/pipeline"
	"github.com/OneInX/Manifest-InX/internal/signals"
	"github.com/OneInX/Manifest-InX/internal/store"
)

// #region types

// Runner is the decision pipeline. *pipeline.Engine satisfies it.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
	Version() string
}

// Evaluator is the output gate.
type Evaluator interface {
	Evaluate(outputText, templateID string) gate.Result
}

// Case kinds and replay actions.
const (
	KindInsight   = "insight"
	KindRejection = "rejection"
	KindRun       = "run"

	ActionMatch    = "match"
	ActionDiverged = "diverged"
)

// ReplayResult captures the outcome of replaying one case.
type ReplayResult struct {
	CaseID string
	Kind   string
	Action string // "match" | "diverged"
	// Diff is a cmp diff (-expected +actual), empty on match.
	Diff string
	// VersionChanged marks stored runs produced under another manifest version.
	VersionChanged bool
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	Total          int
	Matches        int
	Divergences    int
	VersionChanges int
}

// OK reports whether every case matched.
func (s ReplaySummary) OK() bool { return s.Divergences == 0 }

// #endregion types

// #region replay

// Replay runs every fixture case through the pipeline and every rejection
// through the gate. The only error is a pipeline failure, which aborts.
func Replay(ctx context.Context, runner Runner, ev Evaluator, f *Fixture) ([]ReplayResult, error) {
	results := make([]ReplayResult, 0, len(f.Cases)+len(f.Rejections))

	for _, c := range f.Cases {
		res, err := runner.Run(ctx, pipeline.Request{Text: c.Text, Source: "replay"})
		if err != nil {
			return results, fmt.Errorf("replay %s: %w", c.CaseID, err)
		}
		got := observe(res, c.Expected.Scores != nil)
		results = append(results, compare(c.CaseID, KindInsight, c.Expected, got))
	}

	for _, r := range f.Rejections {
		g := ev.Evaluate(r.OutputText, r.TemplateID)
		want := gate.Result{Pass: r.Pass, Violations: r.Violations}
		results = append(results, compare(r.CaseID, KindRejection, want, g))
	}
	return results, nil
}

// ReplayRuns re-runs stored inputs and compares the decision against what
// was recorded.
func ReplayRuns(ctx context.Context, runner Runner, runs []store.RunRecord) ([]ReplayResult, error) {
	results := make([]ReplayResult, 0, len(runs))
	version := runner.Version()

	for _, rec := range runs {
		res, err := runner.Run(ctx, pipeline.Request{Text: rec.InputText, Lang: rec.Lang, Source: "replay"})
		if err != nil {
			return results, fmt.Errorf("replay run %s: %w", rec.RunID, err)
		}
		want := runOutcome{
			TemplateID: rec.TemplateID,
			Dominant:   rec.Dominant,
			Secondary:  rec.Secondary,
			Composite:  rec.Composite,
			SDTPass:    rec.SDTPass,
			Violations: rec.Violations,
		}
		got := runOutcome{
			TemplateID: res.TemplateID,
			Dominant:   string(res.Vectors.Dominant),
			Secondary:  string(res.Vectors.Secondary),
			Composite:  string(res.Vectors.Composite),
			SDTPass:    res.SDT.Pass,
			Violations: res.SDT.Violations,
		}
		r := compare(rec.RunID, KindRun, want, got)
		r.VersionChanged = rec.ManifestVersion != version
		results = append(results, r)
	}
	return results, nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult) ReplaySummary {
	s := ReplaySummary{Total: len(results)}
	for _, r := range results {
		switch r.Action {
		case ActionMatch:
			s.Matches++
		case ActionDiverged:
			s.Divergences++
		}
		if r.VersionChanged {
			s.VersionChanges++
		}
	}
	return s
}

// #endregion replay

// #region helpers

type runOutcome struct {
	TemplateID string
	Dominant   string
	Secondary  string
	Composite  string
	SDTPass    bool
	Violations []string
}

func observe(res pipeline.Result, withScores bool) FixtureExpected {
	got := FixtureExpected{
		TemplateID: res.TemplateID,
		Dominant:   string(res.Vectors.Dominant),
		Secondary:  string(res.Vectors.Secondary),
		Composite:  string(res.Vectors.Composite),
		SDTPass:    res.SDT.Pass,
	}
	if withScores {
		got.Scores = make(map[string]int, len(signals.Dimensions()))
		for _, d := range signals.Dimensions() {
			got.Scores[string(d)] = res.Signals.Score(d)
		}
	}
	return got
}

func compare(id, kind string, want, got any) ReplayResult {
	r := ReplayResult{CaseID: id, Kind: kind, Action: ActionMatch}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		r.Action = ActionDiverged
		r.Diff = diff
	}
	return r
}

// #endregion helpers
