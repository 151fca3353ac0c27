package gate

import "strings"

// #region codes

// Violation codes, in detection order.
const (
	CodeTemplateUnknown    = "TEMPLATE_ID_UNKNOWN"
	CodeExactMismatch      = "EXACT_TEMPLATE_MISMATCH"
	CodeSentenceCount      = "SENTENCE_COUNT"
	CodeWordCount          = "WORD_COUNT"
	CodeQuestionMark       = "QUESTION_MARK"
	CodeInterrogativeStart = "INTERROGATIVE_START"
	CodeEmoji              = "EMOJI"
	CodeEmoticon           = "EMOTICON"

	// PrefixForbidden tags the first matching hard-ban pattern.
	PrefixForbidden = "FORBIDDEN:"
	// PrefixFlag tags each matching review-flag pattern. Flags never fail the gate.
	PrefixFlag = "FLAG:"
)

// IsFatal reports whether a violation code fails the gate.
func IsFatal(code string) bool {
	switch code {
	case CodeTemplateUnknown, CodeExactMismatch, CodeSentenceCount, CodeWordCount,
		CodeQuestionMark, CodeInterrogativeStart, CodeEmoji, CodeEmoticon:
		return true
	}
	return strings.HasPrefix(code, PrefixForbidden)
}

// Kind strips the pattern from tagged codes ("FORBIDDEN:\bmaybe\b" → "FORBIDDEN").
func Kind(code string) string {
	if i := strings.IndexByte(code, ':'); i > 0 {
		switch code[:i+1] {
		case PrefixForbidden, PrefixFlag:
			return code[:i]
		}
	}
	return code
}

// #endregion codes

// #region result

// Result is the gate outcome. Violations keep detection order and are never nil.
type Result struct {
	Pass       bool     `json:"pass"`
	Violations []string `json:"violations"`
}

// Fatal returns the violations that fail the gate.
func (r Result) Fatal() []string {
	var out []string
	for _, v := range r.Violations {
		if IsFatal(v) {
			out = append(out, v)
		}
	}
	return out
}

// #endregion result
