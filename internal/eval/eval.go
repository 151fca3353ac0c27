package eval

import (
	"fmt"

	"github.com/OneInX/Manifest-InX/internal/gate"
)

// #region eval-harness
// EvalHarness checks that a catalog and gate agree: every canonical template
// must pass the gate under its own id.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run evaluates every template and the id coverage of the catalog.
func (h *EvalHarness) Run(cat Catalog, g Evaluator) EvalResult {
	var metrics []EvalMetric
	var failReasons []string

	ids := cat.IDs()

	// 1. Catalog size
	if h.config.ExpectedSize > 0 {
		pass := len(ids) == h.config.ExpectedSize
		metrics = append(metrics, EvalMetric{Name: "catalog_size", Pass: pass})
		if !pass {
			failReasons = append(failReasons, fmt.Sprintf("catalog has %d templates, want %d", len(ids), h.config.ExpectedSize))
		}
	}

	// 2. Selector coverage
	for _, id := range h.config.RequiredIDs {
		_, ok := cat.Text(id)
		metrics = append(metrics, EvalMetric{Name: "required_" + id, Pass: ok})
		if !ok {
			failReasons = append(failReasons, fmt.Sprintf("required template %s missing", id))
		}
	}

	// 3. Self-conformance of each template
	for _, id := range ids {
		text, _ := cat.Text(id)
		res := g.Evaluate(text, id)
		pass := res.Pass
		if h.config.FailOnFlags && len(res.Violations) > 0 {
			pass = false
		}
		metrics = append(metrics, EvalMetric{Name: "template_" + id, Violations: res.Violations, Pass: pass})
		if !pass {
			failReasons = append(failReasons, fmt.Sprintf("template %s violates policy: %v", id, res.Violations))
		}
	}

	reason := "all checks passed"
	if len(failReasons) > 0 {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return EvalResult{
		Passed:  len(failReasons) == 0,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness

// #region helpers

// FlaggedTemplates returns ids whose canonical text carries review flags.
func FlaggedTemplates(r EvalResult) []string {
	var out []string
	for _, m := range r.Metrics {
		for _, v := range m.Violations {
			if gate.Kind(v) == "FLAG" {
				out = append(out, m.Name)
				break
			}
		}
	}
	return out
}

// #endregion helpers
