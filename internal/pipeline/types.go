package pipeline

// #region imports
import (
	"github.com/OneInX/Manifest-InX/internal/gate"
	"github.com/OneInX/Manifest-InX/internal/release"
	"github.com/OneInX/Manifest-InX/internal/scoring"
	"github.com/OneInX/Manifest-InX/internal/signals"
	"github.com/OneInX/Manifest-InX/internal/store"
)

// #endregion

// #region request

// Request is one classification call. Lang and Source are carried through to
// the audit log and never influence scoring.
type Request struct {
	Text   string `json:"text"`
	Lang   string `json:"lang,omitempty"`
	Source string `json:"source,omitempty"`
}

// #endregion

// #region response

// Response is the public envelope returned to callers. Fields are declared
// in key order so every encoding is sorted.
type Response struct {
	OutputText string      `json:"output_text"`
	SDT        gate.Result `json:"sdt"`
	TemplateID string      `json:"template_id"`
}

// Result is a Response plus the intermediate values that produced it.
type Result struct {
	Response
	RunID           string          `json:"run_id"`
	Signals         signals.Signals `json:"signals"`
	Vectors         scoring.Vectors `json:"mapped"`
	ManifestVersion string          `json:"manifest_version"`
}

// #endregion

// #region config

// EngineConfig holds pipeline behavior switches.
type EngineConfig struct {
	// VerifyEachCall re-runs full release verification before every run.
	VerifyEachCall bool
	// Release is used for the initial verification and for per-call checks.
	Release release.Options
}

// DefaultEngineConfig verifies once at startup against the default locations.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		VerifyEachCall: false,
		Release:        release.DefaultOptions(),
	}
}

// #endregion

// #region recorder

// Recorder persists completed runs. *store.Store satisfies it.
type Recorder interface {
	RecordRun(rec store.RunRecord) (store.RunRecord, error)
}

// #endregion
