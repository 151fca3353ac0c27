package release

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/OneInX/Manifest-InX/internal/assets"
)

// EnvManifestPath overrides the manifest location when no explicit path is given.
const EnvManifestPath = "MICROINX_MANIFEST_PATH"

// DefaultLayoutDir is the directory under the base dir searched first for artifacts.
const DefaultLayoutDir = "data"

// Source records where a manifest or artifact was resolved from.
type Source string

const (
	SourceExplicit Source = "explicit"
	SourceEnv      Source = "env"
	SourceLayout   Source = "layout"
	SourceFlat     Source = "flat"
	SourceBundled  Source = "bundled"
)

// #region options

// Options controls manifest and artifact resolution.
type Options struct {
	// ManifestPath is tried first; relative paths resolve against BaseDir.
	ManifestPath string
	// BaseDir anchors relative lookups. Empty means the working directory.
	BaseDir string
	// LayoutDir is the structured layout under BaseDir. Empty means DefaultLayoutDir.
	LayoutDir string
	// Bundled is the last fallback. Nil means the artifacts compiled into the binary.
	Bundled fs.FS
}

// DefaultOptions resolves against the working directory and the bundled artifacts.
func DefaultOptions() Options {
	return Options{LayoutDir: DefaultLayoutDir}
}

func (o Options) withDefaults() Options {
	if o.BaseDir == "" {
		if wd, err := os.Getwd(); err == nil {
			o.BaseDir = wd
		}
	}
	if o.LayoutDir == "" {
		o.LayoutDir = DefaultLayoutDir
	}
	if o.Bundled == nil {
		o.Bundled = assets.FS()
	}
	return o
}

// #endregion options

// #region release

// Release is a successfully verified manifest together with the exact bytes
// that were hashed. Downstream components are built only from these bytes.
type Release struct {
	manifest  *Manifest
	artifacts map[string][]byte
	paths     map[string]string
	sources   map[string]Source
	// ManifestSource is where the manifest itself came from.
	ManifestSource Source
	// ManifestPath is the on-disk manifest path, empty when bundled.
	ManifestPath string
}

// Version returns the manifest version, possibly empty.
func (r *Release) Version() string { return r.manifest.Version }

// Manifest returns a copy of the verified manifest.
func (r *Release) Manifest() *Manifest { return r.manifest.clone() }

// Files returns the verified artifact keys in ascending order.
func (r *Release) Files() []string { return r.manifest.Keys() }

// Artifact returns a copy of the verified bytes for key.
func (r *Release) Artifact(key string) ([]byte, bool) {
	b, ok := r.artifacts[key]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, true
}

// Source reports where an artifact was resolved from.
func (r *Release) Source(key string) Source { return r.sources[key] }

// Paths returns the on-disk locations of verified artifacts and the manifest.
// Bundled artifacts have no path and are omitted.
func (r *Release) Paths() []string {
	var out []string
	if r.ManifestPath != "" {
		out = append(out, r.ManifestPath)
	}
	for _, k := range r.manifest.Keys() {
		if p := r.paths[k]; p != "" {
			out = append(out, p)
		}
	}
	return out
}

// #endregion release

// #region verify

// Verify loads the manifest and checks every pinned artifact, in ascending key
// order, against its digest. The first failure aborts with an *IntegrityError.
func Verify(opts Options) (*Release, error) {
	opts = opts.withDefaults()

	data, msrc, mpath, err := loadManifest(opts)
	if err != nil {
		return nil, err
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, &IntegrityError{Key: assets.ManifestName, Reason: ReasonManifestInvalid, Err: err}
	}

	rel := &Release{
		manifest:       m,
		artifacts:      make(map[string][]byte, len(m.Files)),
		paths:          make(map[string]string, len(m.Files)),
		sources:        make(map[string]Source, len(m.Files)),
		ManifestSource: msrc,
		ManifestPath:   mpath,
	}

	for _, key := range m.Keys() {
		expected := m.Files[key]
		if len(expected) != DigestLen {
			return nil, &IntegrityError{Key: key, Reason: ReasonDigestMalformed}
		}
		b, src, path, err := resolveArtifact(opts, key)
		if err != nil {
			return nil, &IntegrityError{Key: key, Reason: ReasonArtifactMissing, Err: err}
		}
		if Digest(b) != expected {
			return nil, &IntegrityError{Key: key, Reason: ReasonHashMismatch}
		}
		rel.artifacts[key] = b
		rel.paths[key] = path
		rel.sources[key] = src
	}
	return rel, nil
}

// Digest returns the lowercase hex sha256 of b.
func Digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// #endregion verify

// #region resolve

func loadManifest(opts Options) ([]byte, Source, string, error) {
	if opts.ManifestPath != "" {
		p := anchor(opts.BaseDir, opts.ManifestPath)
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, "", "", &IntegrityError{Key: filepath.Base(p), Reason: ReasonManifestMissing, Err: err}
		}
		return b, SourceExplicit, p, nil
	}
	if env := os.Getenv(EnvManifestPath); env != "" {
		p := anchor(opts.BaseDir, env)
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, "", "", &IntegrityError{Key: filepath.Base(p), Reason: ReasonManifestMissing, Err: err}
		}
		return b, SourceEnv, p, nil
	}
	p := filepath.Join(opts.BaseDir, assets.ManifestName)
	if b, err := os.ReadFile(p); err == nil {
		return b, SourceFlat, p, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, "", "", &IntegrityError{Key: assets.ManifestName, Reason: ReasonManifestMissing, Err: err}
	}
	b, err := fs.ReadFile(opts.Bundled, assets.ManifestName)
	if err != nil {
		return nil, "", "", &IntegrityError{Key: assets.ManifestName, Reason: ReasonManifestMissing, Err: err}
	}
	return b, SourceBundled, "", nil
}

// resolveArtifact tries the structured layout, then the flat path, then the
// bundled copy. Absolute keys are read directly.
func resolveArtifact(opts Options, key string) ([]byte, Source, string, error) {
	if filepath.IsAbs(key) {
		b, err := os.ReadFile(key)
		if err != nil {
			return nil, "", "", err
		}
		return b, SourceExplicit, key, nil
	}
	candidates := []struct {
		path string
		src  Source
	}{
		{filepath.Join(opts.BaseDir, opts.LayoutDir, filepath.FromSlash(key)), SourceLayout},
		{filepath.Join(opts.BaseDir, filepath.FromSlash(key)), SourceFlat},
	}
	for _, c := range candidates {
		b, err := os.ReadFile(c.path)
		if err == nil {
			return b, c.src, c.path, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, "", "", err
		}
	}
	b, err := fs.ReadFile(opts.Bundled, key)
	if err != nil {
		return nil, "", "", err
	}
	return b, SourceBundled, "", nil
}

func anchor(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// #endregion resolve
