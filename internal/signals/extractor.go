package signals

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/OneInX/Manifest-InX/internal/rules"
)

// Structural patterns. These are fixed behavior, not part of the lexicon.
var (
	bulletPattern    = regexp2.MustCompile(`(^|\n)\s*(?:[-*]|\d+\.)\s+`, regexp2.Multiline)
	becausePattern   = regexp2.MustCompile(`\bbecause\b`, regexp2.IgnoreCase)
	profanityPattern = regexp2.MustCompile(`\b(damn|shit|fuck)\b`, regexp2.IgnoreCase)

	wantPattern     = regexp2.MustCompile(`\bi want\b`, regexp2.None)
	dontWantPattern = regexp2.MustCompile(`\bi (do not|don't) want\b`, regexp2.None)
	alwaysPattern   = regexp2.MustCompile(`\balways\b`, regexp2.None)
	neverPattern    = regexp2.MustCompile(`\bnever\b`, regexp2.None)
	willPattern     = regexp2.MustCompile(`\bi will\b`, regexp2.None)
	cantPattern     = regexp2.MustCompile(`\bi can't\b`, regexp2.None)

	certaintyPattern = regexp2.MustCompile(`\b(perfect|100%|guarantee)\b`, regexp2.None)
	conditionPattern = regexp2.MustCompile(`\b(until|only if|before i)\b`, regexp2.None)
	urgencyPattern   = regexp2.MustCompile(`\b(asap|today|deadline|rush|ship|launch|now)\b`, regexp2.None)
	shortcutPattern  = regexp2.MustCompile(`\b(skip|ignore|fix later|doesn't matter)\b`, regexp2.None)
)

var (
	loopRepeatWords = []string{"again", "restart", "repeat", "revisit", "every", "still", "same", "keep"}
	contrastWords   = []string{"but", "however", "yet", "although"}
)

// #region extractor

type phrase struct {
	literal string
	re      *regexp2.Regexp
}

type dimensionLexicon struct {
	phrases []phrase
	words   map[string]struct{}
}

// Extractor converts raw text into Signals. It is immutable after
// construction and safe for concurrent use.
type Extractor struct {
	lexicon map[Dimension]dimensionLexicon
}

// NewExtractor compiles a lexicon. The lexicon must name exactly the five
// dimensions.
func NewExtractor(lexicon map[string]rules.LexiconEntry) (*Extractor, error) {
	if len(lexicon) != len(Dimensions()) {
		return nil, fmt.Errorf("extractor: lexicon has %d dimensions, want %d", len(lexicon), len(Dimensions()))
	}
	e := &Extractor{lexicon: make(map[Dimension]dimensionLexicon, len(lexicon))}
	for name, entry := range lexicon {
		d := Dimension(name)
		if !d.Valid() {
			return nil, fmt.Errorf("extractor: unknown dimension %q", name)
		}
		dl := dimensionLexicon{words: make(map[string]struct{}, len(entry.Words))}
		for _, p := range entry.Phrases {
			re, err := regexp2.Compile(`\b`+regexp2.Escape(p)+`\b`, regexp2.IgnoreCase)
			if err != nil {
				return nil, fmt.Errorf("extractor: phrase %q: %w", p, err)
			}
			dl.phrases = append(dl.phrases, phrase{literal: p, re: re})
		}
		for _, w := range entry.Words {
			dl.words[strings.ToLower(w)] = struct{}{}
		}
		e.lexicon[d] = dl
	}
	return e, nil
}

// Extract computes markers, counts and scores for raw.
func (e *Extractor) Extract(raw string) Signals {
	text := Normalize(raw)
	lower := strings.ToLower(text)
	tokens := Tokenize(text)
	lowerTokens := make([]string, len(tokens))
	present := make(map[string]struct{}, len(tokens))
	for i, t := range tokens {
		lt := strings.ToLower(t)
		lowerTokens[i] = lt
		present[lt] = struct{}{}
	}
	has := func(w string) bool {
		_, ok := present[w]
		return ok
	}

	counts := Counts{
		Tokens:             len(tokens),
		Sentences:          CountSentences(text),
		QuestionMarks:      strings.Count(text, "?"),
		Bullets:            countMatches(bulletPattern, raw),
		Profanity:          matches(profanityPattern, text),
		ContradictionPairs: contradictionPairs(lower),
	}

	sig := Signals{
		Markers: make(map[Dimension][]string, len(e.lexicon)),
		Counts:  counts,
		Scores:  make(map[Dimension]int, len(e.lexicon)),
	}

	// Phrase hits (+2) and word hits (+1).
	for _, d := range Dimensions() {
		dl := e.lexicon[d]
		hits := []string{}
		for _, p := range dl.phrases {
			if matches(p.re, lower) {
				hits = append(hits, p.literal)
			}
		}
		score := 2 * len(hits)
		for _, t := range lowerTokens {
			if _, ok := dl.words[t]; ok {
				score++
			}
		}
		sig.Markers[d] = hits
		sig.Scores[d] = score
	}

	// Structural bonuses.
	if countMatches(becausePattern, lower) >= 3 {
		sig.Scores[Drift] += 2
	}
	if counts.Bullets >= 3 {
		sig.Scores[Drift]++
	}

	if matches(certaintyPattern, lower) {
		sig.Scores[Avoidance] += 2
	}
	if matches(conditionPattern, lower) {
		sig.Scores[Avoidance] += 2
	}

	if matches(urgencyPattern, lower) {
		sig.Scores[Drive] += 2
	}
	if matches(shortcutPattern, lower) {
		sig.Scores[Drive] += 2
	}

	distinct := 0
	for _, w := range loopRepeatWords {
		if has(w) {
			distinct++
		}
	}
	if distinct >= 2 {
		sig.Scores[Loop] += 2
	}
	if (has("restart") || has("again")) && has("still") {
		sig.Scores[Loop] += 2
	}

	contrast := 0
	for _, w := range contrastWords {
		if has(w) {
			contrast++
		}
	}
	if contrast >= 2 {
		sig.Scores[Fracture] += 2
	}
	if counts.ContradictionPairs > 0 {
		sig.Scores[Fracture] += 3
	}

	return sig
}

// Phrases returns the literal phrases configured for d, for diagnostics.
func (e *Extractor) Phrases(d Dimension) []string {
	dl := e.lexicon[d]
	out := make([]string, 0, len(dl.phrases))
	for _, p := range dl.phrases {
		out = append(out, p.literal)
	}
	return out
}

// Words returns the sorted word set configured for d.
func (e *Extractor) Words(d Dimension) []string {
	dl := e.lexicon[d]
	out := make([]string, 0, len(dl.words))
	for w := range dl.words {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// #endregion extractor

// #region contradictions

func contradictionPairs(lower string) int {
	pairs := 0
	if matches(wantPattern, lower) && matches(dontWantPattern, lower) {
		pairs++
	}
	if matches(alwaysPattern, lower) && matches(neverPattern, lower) {
		pairs++
	}
	if matches(willPattern, lower) && matches(cantPattern, lower) {
		pairs++
	}
	return pairs
}

// #endregion contradictions
