package pack

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrInvalid is wrapped by Load when validation fails.
var ErrInvalid = errors.New("pack validation failed")

// Handle is read-only access to a validated pack.
type Handle struct {
	root     string
	manifest map[string]any
}

// Load validates the pack at root and returns a handle to it. The error
// lists every issue as CODE:path in report order.
func Load(root string) (*Handle, error) {
	resolved, err := resolveRoot(root)
	if err != nil {
		return nil, fmt.Errorf("resolve pack root: %w", err)
	}
	report := Validate(resolved)
	if !report.OK {
		parts := make([]string, len(report.Issues))
		for i, is := range report.Issues {
			parts[i] = is.Code + ":" + is.Path
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalid, strings.Join(parts, "; "))
	}
	manifest, err := readManifest(resolved)
	if err != nil {
		return nil, err
	}
	return &Handle{root: resolved, manifest: manifest}, nil
}

// Root returns the resolved pack root.
func (h *Handle) Root() string { return h.root }

// ID returns pack_id.
func (h *Handle) ID() string {
	id, _ := h.manifest["pack_id"].(string)
	return id
}

// Version returns the optional version, or "".
func (h *Handle) Version() string {
	v, _ := h.manifest["version"].(string)
	return v
}

// Files returns the pinned relpaths in ascending order.
func (h *Handle) Files() []string {
	files, _ := h.manifest["files"].(map[string]any)
	return sortedKeys(files)
}

// EntrypointPath returns the absolute path of the named entrypoint.
func (h *Handle) EntrypointPath(name string) (string, error) {
	eps, _ := h.manifest["entrypoints"].(map[string]any)
	raw, ok := eps[name]
	if !ok {
		return "", fmt.Errorf("unknown entrypoint: %s", name)
	}
	rel, ok := raw.(string)
	if !ok || !IsSafeRelPath(rel) {
		return "", fmt.Errorf("unsafe entrypoint path for %s", name)
	}
	return within(h.root, rel)
}

// ReadBytes reads a file under the pack root.
func (h *Handle) ReadBytes(rel string) ([]byte, error) {
	if !IsSafeRelPath(rel) {
		return nil, fmt.Errorf("unsafe relpath: %q", rel)
	}
	p, err := within(h.root, rel)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	return os.ReadFile(p)
}

// ReadText reads a UTF-8 file under the pack root.
func (h *Handle) ReadText(rel string) (string, error) {
	b, err := h.ReadBytes(rel)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadJSON decodes a JSON file under the pack root into v.
func (h *Handle) ReadJSON(rel string, v any) error {
	b, err := h.ReadBytes(rel)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", rel, err)
	}
	return nil
}
