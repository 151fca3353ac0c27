package replay

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
)

//go:embed golden/golden_cases_v1.json
var goldenCases []byte

// #region fixture-types

// Fixture is the top-level JSON structure for a golden replay fixture.
type Fixture struct {
	GoldenVersion   string             `json:"golden_version"`
	Description     string             `json:"description"`
	ManifestVersion string             `json:"manifest_version"`
	Cases           []FixtureCase      `json:"cases"`
	Rejections      []FixtureRejection `json:"rejections"`
}

// FixtureCase is one input run end to end through the pipeline.
type FixtureCase struct {
	CaseID   string          `json:"case_id"`
	Text     string          `json:"text"`
	Expected FixtureExpected `json:"expected"`
}

// FixtureExpected is the pinned outcome of a FixtureCase. Scores is optional;
// when absent only the decision fields are compared.
type FixtureExpected struct {
	TemplateID string         `json:"template_id"`
	Dominant   string         `json:"dominant"`
	Secondary  string         `json:"secondary,omitempty"`
	Composite  string         `json:"composite,omitempty"`
	Scores     map[string]int `json:"scores,omitempty"`
	SDTPass    bool           `json:"sdt_pass"`
}

// FixtureRejection is an output text fed straight to the gate.
type FixtureRejection struct {
	CaseID     string   `json:"case_id"`
	OutputText string   `json:"output_text"`
	TemplateID string   `json:"template_id"`
	Pass       bool     `json:"pass"`
	Violations []string `json:"violations"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	f, err := ParseFixture(data)
	if err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return f, nil
}

// ParseFixture decodes a fixture and checks case ids are present and unique.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if len(f.Cases)+len(f.Rejections) == 0 {
		return nil, fmt.Errorf("fixture has no cases")
	}
	seen := make(map[string]bool)
	ids := make([]string, 0, len(f.Cases)+len(f.Rejections))
	for _, c := range f.Cases {
		ids = append(ids, c.CaseID)
	}
	for _, r := range f.Rejections {
		ids = append(ids, r.CaseID)
	}
	for _, id := range ids {
		if id == "" {
			return nil, fmt.Errorf("fixture case without case_id")
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate case_id %q", id)
		}
		seen[id] = true
	}
	return &f, nil
}

// Golden returns the fixture shipped with this build.
func Golden() *Fixture {
	f, err := ParseFixture(goldenCases)
	if err != nil {
		// The embedded fixture is covered by tests.
		panic(fmt.Sprintf("replay: embedded golden fixture: %v", err))
	}
	return f
}

// #endregion fixture-loader
