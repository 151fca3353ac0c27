package release

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/OneInX/Manifest-InX/internal/canon"
)

// DigestLen is the length of a hex-encoded sha256 digest.
const DigestLen = 64

// Manifest pins artifact keys to the sha256 of their raw bytes.
type Manifest struct {
	Files   map[string]string `json:"files"`
	Version string            `json:"version,omitempty"`
}

// ParseManifest decodes manifest JSON. It requires a non-empty files object;
// digests are checked by the verifier so the failing key can be reported.
func ParseManifest(data []byte) (*Manifest, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if len(m.Files) == 0 {
		return nil, fmt.Errorf("missing 'files'")
	}
	return &m, nil
}

// Keys returns the pinned artifact keys in ascending order.
func (m *Manifest) Keys() []string {
	keys := make([]string, 0, len(m.Files))
	for k := range m.Files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalCanonical renders the manifest in the pinned canonical layout.
func (m *Manifest) MarshalCanonical() ([]byte, error) {
	return canon.JSON(m)
}

func (m *Manifest) clone() *Manifest {
	files := make(map[string]string, len(m.Files))
	for k, v := range m.Files {
		files[k] = v
	}
	return &Manifest{Files: files, Version: m.Version}
}
