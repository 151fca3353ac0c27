package eval

import "github.com/OneInX/Manifest-InX/internal/gate"

// #region eval-config
// EvalConfig selects which conformance checks are blocking.
type EvalConfig struct {
	FailOnFlags  bool     // treat review flags on canonical text as failures
	RequiredIDs  []string // ids the selector can emit; each must exist in the catalog
	ExpectedSize int      // 0 disables the size check
}

// DefaultEvalConfig blocks on fatal violations and missing ids only.
func DefaultEvalConfig(requiredIDs []string, expectedSize int) EvalConfig {
	return EvalConfig{
		FailOnFlags:  false,
		RequiredIDs:  requiredIDs,
		ExpectedSize: expectedSize,
	}
}

// #endregion eval-config

// #region interfaces

// Catalog is the read side of the template catalog.
type Catalog interface {
	IDs() []string
	Text(id string) (string, bool)
}

// Evaluator is the output gate.
type Evaluator interface {
	Evaluate(outputText, templateID string) gate.Result
}

// #endregion interfaces

// #region eval-metric
// EvalMetric captures a single conformance check.
type EvalMetric struct {
	Name       string
	Violations []string
	Pass       bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the outcome of a conformance run.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// #endregion eval-result
