package gate

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/OneInX/Manifest-InX/internal/rules"
	"github.com/OneInX/Manifest-InX/internal/signals"
)

// Catalog is the subset of the template catalog the gate needs.
type Catalog interface {
	Text(id string) (string, bool)
}

type pattern struct {
	source string
	re     *regexp2.Regexp
}

// #region gate

// Gate validates rendered output against the output policy. It is immutable
// after construction and safe for concurrent use.
type Gate struct {
	catalog       Catalog
	policy        rules.Policy
	interrogative *regexp2.Regexp
	bans          []pattern
	flags         []pattern
}

// NewGate compiles the policy patterns in their declared order.
func NewGate(catalog Catalog, policy rules.Policy) (*Gate, error) {
	if catalog == nil {
		return nil, fmt.Errorf("gate: nil catalog")
	}
	words := make([]string, len(policy.Interrogatives))
	for i, w := range policy.Interrogatives {
		words[i] = regexp2.Escape(w)
	}
	interrogative, err := regexp2.Compile(`^\s*(`+strings.Join(words, "|")+`)\b`, regexp2.IgnoreCase)
	if err != nil {
		return nil, fmt.Errorf("gate: interrogatives: %w", err)
	}
	bans, err := compileAll(policy.HardBans)
	if err != nil {
		return nil, err
	}
	flags, err := compileAll(policy.ReviewFlags)
	if err != nil {
		return nil, err
	}
	return &Gate{
		catalog:       catalog,
		policy:        policy,
		interrogative: interrogative,
		bans:          bans,
		flags:         flags,
	}, nil
}

func compileAll(sources []string) ([]pattern, error) {
	out := make([]pattern, 0, len(sources))
	for _, src := range sources {
		re, err := regexp2.Compile(src, regexp2.IgnoreCase)
		if err != nil {
			return nil, fmt.Errorf("gate: pattern %q: %w", src, err)
		}
		out = append(out, pattern{source: src, re: re})
	}
	return out, nil
}

// Evaluate runs every check in order and collects violations. Only an unknown
// template id stops evaluation early.
func (g *Gate) Evaluate(outputText, templateID string) Result {
	canonical, ok := g.catalog.Text(templateID)
	if !ok {
		return Result{Pass: false, Violations: []string{CodeTemplateUnknown}}
	}

	violations := []string{}
	add := func(code string) { violations = append(violations, code) }

	if outputText != canonical {
		add(CodeExactMismatch)
	}
	if n := signals.CountSentences(outputText); n < g.policy.MinSentences || n > g.policy.MaxSentences {
		add(CodeSentenceCount)
	}
	if len(signals.Tokenize(outputText)) > g.policy.MaxTokens {
		add(CodeWordCount)
	}
	if strings.Contains(outputText, "?") {
		add(CodeQuestionMark)
	}
	if ok, _ := g.interrogative.MatchString(outputText); ok {
		add(CodeInterrogativeStart)
	}

	lower := strings.ToLower(outputText)
	// First match wins; list order decides which pattern is reported.
	for _, p := range g.bans {
		if ok, _ := p.re.MatchString(lower); ok {
			add(PrefixForbidden + p.source)
			break
		}
	}
	for _, p := range g.flags {
		if ok, _ := p.re.MatchString(lower); ok {
			add(PrefixFlag + p.source)
		}
	}

	if containsEmoji(outputText) {
		add(CodeEmoji)
	}
	for _, e := range g.policy.Emoticons {
		if strings.Contains(outputText, e) {
			add(CodeEmoticon)
			break
		}
	}

	pass := true
	for _, v := range violations {
		if IsFatal(v) {
			pass = false
			break
		}
	}
	return Result{Pass: pass, Violations: violations}
}

// #endregion gate

// #region helpers

func containsEmoji(s string) bool {
	for _, r := range s {
		switch {
		case r >= 0x1F300 && r <= 0x1FAFF,
			r >= 0x2600 && r <= 0x26FF,
			r >= 0x2700 && r <= 0x27BF:
			return true
		}
	}
	return false
}

// #endregion helpers
