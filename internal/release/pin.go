package release

import (
	"fmt"
	"os"
	"path/filepath"
)

// PinFiles hashes each key as found under baseDir (layout dir first, then
// flat) and returns the resulting manifest. Bundled copies are never pinned.
func PinFiles(baseDir, layoutDir string, keys []string, version string) (*Manifest, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("pin: no files given")
	}
	if layoutDir == "" {
		layoutDir = DefaultLayoutDir
	}
	m := &Manifest{Files: make(map[string]string, len(keys)), Version: version}
	for _, key := range keys {
		var (
			b   []byte
			err error
		)
		if filepath.IsAbs(key) {
			b, err = os.ReadFile(key)
		} else {
			b, err = os.ReadFile(filepath.Join(baseDir, layoutDir, filepath.FromSlash(key)))
			if os.IsNotExist(err) {
				b, err = os.ReadFile(filepath.Join(baseDir, filepath.FromSlash(key)))
			}
		}
		if err != nil {
			return nil, fmt.Errorf("pin %s: %w", key, err)
		}
		m.Files[key] = Digest(b)
	}
	return m, nil
}

// WriteManifest writes m in canonical form to path.
func WriteManifest(path string, m *Manifest) error {
	b, err := m.MarshalCanonical()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
