package signals

import (
	"strings"

	"github.com/dlclark/regexp2"
)

// Word tokens use Unicode word boundaries; apostrophes stay inside a token
// ("doesn't" is one token).
var wordPattern = regexp2.MustCompile(`\b[\w']+\b`, regexp2.None)

// #region text

// Normalize collapses whitespace runs to single spaces and trims the ends.
func Normalize(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// Tokenize returns the word tokens of text in order.
func Tokenize(text string) []string {
	var tokens []string
	m, _ := wordPattern.FindStringMatch(text)
	for m != nil {
		tokens = append(tokens, m.String())
		m, _ = wordPattern.FindNextMatch(m)
	}
	return tokens
}

// CountSentences counts non-empty segments after splitting on '.' or '!'.
// Question marks do not end a sentence.
func CountSentences(text string) int {
	segs := strings.FieldsFunc(text, func(r rune) bool { return r == '.' || r == '!' })
	n := 0
	for _, s := range segs {
		if strings.TrimSpace(s) != "" {
			n++
		}
	}
	return n
}

// countMatches counts non-overlapping matches of re in s.
func countMatches(re *regexp2.Regexp, s string) int {
	n := 0
	m, _ := re.FindStringMatch(s)
	for m != nil {
		n++
		m, _ = re.FindNextMatch(m)
	}
	return n
}

func matches(re *regexp2.Regexp, s string) bool {
	ok, _ := re.MatchString(s)
	return ok
}

// #endregion text
