package store

import "time"

// #region run-record
// RunRecord is a single row in the insight_runs table. It captures one
// pipeline invocation with enough context to replay it.
type RunRecord struct {
	RunID           string
	InputSHA256     string
	InputText       string
	Lang            string
	Source          string
	TemplateID      string
	Dominant        string
	Secondary       string // "" when unset
	Composite       string // "" when unset
	Confidence      float64
	SDTPass         bool
	Violations      []string
	ManifestVersion string
	CreatedAt       time.Time
}

// #endregion run-record

// #region integrity-event
// IntegrityEvent is a single row in the integrity_log table.
type IntegrityEvent struct {
	ManifestVersion string
	ManifestSource  string
	Outcome         string // "verified" | "failed"
	Reason          string // integrity reason on failure
	Key             string // failing artifact key on failure
	CreatedAt       time.Time
}

// #endregion integrity-event
