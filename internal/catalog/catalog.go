// Package catalog holds the immutable template catalog: a fixed set of
// template identifiers mapped to their exact canonical output text.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dlclark/regexp2"

	"github.com/OneInX/Manifest-InX/internal/canon"
)

// Size is the number of templates in a release catalog.
const Size = 15

// ErrUnknownTemplate is returned by Render for identifiers outside the catalog.
var ErrUnknownTemplate = errors.New("unknown template id")

var idPattern = regexp2.MustCompile(`^T\d{2}$`, regexp2.None)

// #region catalog

// Catalog is read-only after construction and safe for concurrent use.
type Catalog struct {
	texts map[string]string
	ids   []string
}

// Load decodes catalog JSON ({"T01": "...", ...}) and validates its shape.
func Load(data []byte) (*Catalog, error) {
	var m map[string]string
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(m)
}

// New builds a catalog from a copy of m.
func New(m map[string]string) (*Catalog, error) {
	if len(m) != Size {
		return nil, fmt.Errorf("catalog: expected %d templates, got %d", Size, len(m))
	}
	c := &Catalog{texts: make(map[string]string, len(m))}
	for id, text := range m {
		if ok, _ := idPattern.MatchString(id); !ok {
			return nil, fmt.Errorf("catalog: malformed template id %q", id)
		}
		if text == "" {
			return nil, fmt.Errorf("catalog: empty text for %s", id)
		}
		c.texts[id] = text
		c.ids = append(c.ids, id)
	}
	sort.Strings(c.ids)
	return c, nil
}

// Has reports whether id is in the catalog.
func (c *Catalog) Has(id string) bool {
	_, ok := c.texts[id]
	return ok
}

// Text returns the canonical text for id.
func (c *Catalog) Text(id string) (string, bool) {
	t, ok := c.texts[id]
	return t, ok
}

// Render returns the exact canonical text for id.
func (c *Catalog) Render(id string) (string, error) {
	t, ok := c.texts[id]
	if !ok {
		return "", fmt.Errorf("render %q: %w", id, ErrUnknownTemplate)
	}
	return t, nil
}

// IDs returns the identifiers in ascending order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

// Len returns the number of templates.
func (c *Catalog) Len() int { return len(c.ids) }

// MarshalCanonical renders the catalog in its integrity-pinned byte layout.
func (c *Catalog) MarshalCanonical() ([]byte, error) {
	return canon.JSON(c.texts)
}

// #endregion catalog
