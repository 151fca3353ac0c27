// Package rules decodes the pinned rules artifact: the per-dimension signal
// lexicon and the output policy enforced by the safety gate.
package rules

import (
	"bytes"
	"fmt"

	"github.com/dlclark/regexp2"
	"gopkg.in/yaml.v3"
)

// #region types

// Rules is the decoded rules artifact. Treat as read-only once loaded.
type Rules struct {
	Version string                  `yaml:"version"`
	Lexicon map[string]LexiconEntry `yaml:"lexicon"`
	Policy  Policy                  `yaml:"policy"`
}

// LexiconEntry lists the literal phrases (+2 each when present) and the
// closed word set (+1 per matching token) of one dimension.
type LexiconEntry struct {
	Phrases []string `yaml:"phrases"`
	Words   []string `yaml:"words"`
}

// Policy configures the output gate. HardBans order is significant: the
// first matching pattern is the one reported.
type Policy struct {
	MaxTokens      int      `yaml:"max_tokens"`
	MinSentences   int      `yaml:"min_sentences"`
	MaxSentences   int      `yaml:"max_sentences"`
	Interrogatives []string `yaml:"interrogatives"`
	HardBans       []string `yaml:"hard_bans"`
	ReviewFlags    []string `yaml:"review_flags"`
	Emoticons      []string `yaml:"emoticons"`
}

// #endregion types

// #region load

// Load decodes and validates rules YAML. Unknown fields are rejected.
func Load(data []byte) (*Rules, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var r Rules
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks structural consistency and that every policy pattern compiles.
func (r *Rules) Validate() error {
	if r.Version == "" {
		return fmt.Errorf("rules: missing version")
	}
	if len(r.Lexicon) == 0 {
		return fmt.Errorf("rules: empty lexicon")
	}
	for dim, e := range r.Lexicon {
		if len(e.Phrases) == 0 && len(e.Words) == 0 {
			return fmt.Errorf("rules: dimension %q has no phrases or words", dim)
		}
		for _, p := range e.Phrases {
			if p == "" {
				return fmt.Errorf("rules: dimension %q has an empty phrase", dim)
			}
		}
	}

	p := r.Policy
	if p.MaxTokens <= 0 {
		return fmt.Errorf("rules: max_tokens must be positive, got %d", p.MaxTokens)
	}
	if p.MinSentences < 1 || p.MaxSentences < p.MinSentences {
		return fmt.Errorf("rules: invalid sentence bounds [%d, %d]", p.MinSentences, p.MaxSentences)
	}
	if len(p.Interrogatives) == 0 {
		return fmt.Errorf("rules: empty interrogatives")
	}
	if len(p.HardBans) == 0 {
		return fmt.Errorf("rules: empty hard_bans")
	}
	for _, list := range [][]string{p.HardBans, p.ReviewFlags} {
		for _, src := range list {
			if _, err := regexp2.Compile(src, regexp2.IgnoreCase); err != nil {
				return fmt.Errorf("rules: pattern %q: %w", src, err)
			}
		}
	}
	for _, e := range p.Emoticons {
		if e == "" {
			return fmt.Errorf("rules: empty emoticon")
		}
	}
	return nil
}

// #endregion load
