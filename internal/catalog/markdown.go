package catalog

import (
	"bufio"
	"errors"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/OneInX/Manifest-InX/internal/canon"
)

// ErrNoTemplates is returned when a markdown source holds no template lines.
var ErrNoTemplates = errors.New("no templates found in markdown")

// Canonical line shape: **T01** [drift] — <template text>
// An optional bullet ("-", "*", "1.") may precede it and the separator may be
// an em dash, en dash or hyphen.
var mdLine = regexp2.MustCompile(`^\s*(?:[-*]|\d+\.)?\s*\*\*(T\d{2})\*\*.*?[—–-]\s*(.+?)\s*$`, regexp2.None)

// ParseMarkdown extracts {template_id: text} from the template library
// markdown. Later lines for the same id replace earlier ones.
func ParseMarkdown(md string) (map[string]string, error) {
	out := make(map[string]string)
	sc := bufio.NewScanner(strings.NewReader(md))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		m, err := mdLine.FindStringMatch(line)
		if err != nil || m == nil {
			continue
		}
		groups := m.Groups()
		out[groups[1].String()] = strings.TrimSpace(groups[2].String())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNoTemplates
	}
	return out, nil
}

// BuildJSON parses markdown and emits canonical catalog bytes.
func BuildJSON(md string) ([]byte, error) {
	m, err := ParseMarkdown(md)
	if err != nil {
		return nil, err
	}
	return canon.JSON(m)
}
