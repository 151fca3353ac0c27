package release

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OneInX/Manifest-InX/internal/assets"
)

// fixture writes two artifacts under base/data, pins them and writes the
// manifest at the conventional location.
func fixture(t *testing.T) (string, Options) {
	t.Helper()
	t.Setenv(EnvManifestPath, "")
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, DefaultLayoutDir), 0o755))
	writeFile(t, filepath.Join(base, DefaultLayoutDir, "a.json"), "{\"x\": 1}\n")
	writeFile(t, filepath.Join(base, DefaultLayoutDir, "b.yaml"), "k: v\n")

	m, err := PinFiles(base, "", []string{"a.json", "b.yaml"}, "2.0.0")
	require.NoError(t, err)
	require.NoError(t, WriteManifest(filepath.Join(base, assets.ManifestName), m))
	return base, Options{BaseDir: base, Bundled: fstest.MapFS{}}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func appendByte(t *testing.T, path string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.Write([]byte{' '})
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func requireIntegrity(t *testing.T, err error, reason Reason, key string) {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrIntegrity), "expected integrity error, got %v", err)
	var ie *IntegrityError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, reason, ie.Reason)
	if key != "" {
		assert.Equal(t, key, ie.Key)
	}
}

func TestVerify_BundledRelease(t *testing.T) {
	t.Setenv(EnvManifestPath, "")
	rel, err := Verify(Options{BaseDir: t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, "1.0.0", rel.Version())
	assert.Equal(t, []string{assets.RulesKey, assets.TemplatesKey}, rel.Files())
	assert.Equal(t, SourceBundled, rel.ManifestSource)
	assert.Equal(t, SourceBundled, rel.Source(assets.TemplatesKey))
	assert.Empty(t, rel.Paths())

	b, ok := rel.Artifact(assets.TemplatesKey)
	require.True(t, ok)
	assert.Equal(t, rel.Manifest().Files[assets.TemplatesKey], Digest(b))
}

func TestVerify_LayoutRelease(t *testing.T) {
	base, opts := fixture(t)
	rel, err := Verify(opts)
	require.NoError(t, err)

	assert.Equal(t, "2.0.0", rel.Version())
	assert.Equal(t, SourceFlat, rel.ManifestSource)
	assert.Equal(t, SourceLayout, rel.Source("a.json"))
	assert.Equal(t, []string{
		filepath.Join(base, assets.ManifestName),
		filepath.Join(base, DefaultLayoutDir, "a.json"),
		filepath.Join(base, DefaultLayoutDir, "b.yaml"),
	}, rel.Paths())
}

func TestVerify_AppendedByteNamesArtifact(t *testing.T) {
	base, opts := fixture(t)
	appendByte(t, filepath.Join(base, DefaultLayoutDir, "b.yaml"))

	rel, err := Verify(opts)
	assert.Nil(t, rel)
	requireIntegrity(t, err, ReasonHashMismatch, "b.yaml")
	assert.Equal(t, "release hash mismatch: b.yaml", err.Error())
}

func TestVerify_LayoutShadowsFlat(t *testing.T) {
	base, opts := fixture(t)
	// A tampered flat copy is never consulted while the layout copy exists.
	writeFile(t, filepath.Join(base, "a.json"), "tampered")
	_, err := Verify(opts)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(base, DefaultLayoutDir, "a.json")))
	_, err = Verify(opts)
	requireIntegrity(t, err, ReasonHashMismatch, "a.json")
}

func TestVerify_MissingArtifact(t *testing.T) {
	base, opts := fixture(t)
	require.NoError(t, os.Remove(filepath.Join(base, DefaultLayoutDir, "a.json")))

	_, err := Verify(opts)
	requireIntegrity(t, err, ReasonArtifactMissing, "a.json")
	assert.Contains(t, err.Error(), "release file missing: a.json")
}

func TestVerify_MalformedDigest(t *testing.T) {
	base, opts := fixture(t)
	writeFile(t, filepath.Join(base, assets.ManifestName), `{"files": {"a.json": "abc123"}}`)

	_, err := Verify(opts)
	requireIntegrity(t, err, ReasonDigestMalformed, "a.json")
}

func TestVerify_UppercaseDigestMismatches(t *testing.T) {
	base, opts := fixture(t)
	b, err := os.ReadFile(filepath.Join(base, DefaultLayoutDir, "a.json"))
	require.NoError(t, err)
	upper := []byte(Digest(b))
	for i, c := range upper {
		if c >= 'a' && c <= 'f' {
			upper[i] = c - 'a' + 'A'
		}
	}
	writeFile(t, filepath.Join(base, assets.ManifestName), `{"files": {"a.json": "`+string(upper)+`"}}`)

	_, err = Verify(opts)
	requireIntegrity(t, err, ReasonHashMismatch, "a.json")
}

func TestVerify_InvalidManifest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty files", `{"files": {}}`},
		{"no files", `{"version": "1.0.0"}`},
		{"not json", `files:`},
		{"files not object", `{"files": ["a.json"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, opts := fixture(t)
			writeFile(t, filepath.Join(base, assets.ManifestName), tt.body)
			_, err := Verify(opts)
			requireIntegrity(t, err, ReasonManifestInvalid, "")
		})
	}
}

func TestVerify_ExplicitManifestMissing(t *testing.T) {
	_, opts := fixture(t)
	opts.ManifestPath = "nope.json"
	_, err := Verify(opts)
	requireIntegrity(t, err, ReasonManifestMissing, "nope.json")
}

func TestVerify_EnvOverride(t *testing.T) {
	base, opts := fixture(t)
	alt := filepath.Join(base, "alt.json")
	writeFile(t, alt, `{"files": {"b.yaml": "`+Digest([]byte("k: v\n"))+`"}, "version": "9.9.9"}`)
	t.Setenv(EnvManifestPath, alt)

	rel, err := Verify(opts)
	require.NoError(t, err)
	assert.Equal(t, SourceEnv, rel.ManifestSource)
	assert.Equal(t, "9.9.9", rel.Version())
	assert.Equal(t, []string{"b.yaml"}, rel.Files())

	// An explicit path still wins over the environment.
	opts.ManifestPath = assets.ManifestName
	rel, err = Verify(opts)
	require.NoError(t, err)
	assert.Equal(t, SourceExplicit, rel.ManifestSource)
}

func TestRelease_ArtifactIsCopy(t *testing.T) {
	_, opts := fixture(t)
	rel, err := Verify(opts)
	require.NoError(t, err)

	b, ok := rel.Artifact("a.json")
	require.True(t, ok)
	b[0] = 'X'
	again, _ := rel.Artifact("a.json")
	assert.Equal(t, byte('{'), again[0])

	_, ok = rel.Artifact("missing")
	assert.False(t, ok)
}

func TestPinFiles_CanonicalManifest(t *testing.T) {
	base, _ := fixture(t)
	b, err := os.ReadFile(filepath.Join(base, assets.ManifestName))
	require.NoError(t, err)

	want := "{\n  \"files\": {\n    \"a.json\": \"" + Digest([]byte("{\"x\": 1}\n")) +
		"\",\n    \"b.yaml\": \"" + Digest([]byte("k: v\n")) + "\"\n  },\n  \"version\": \"2.0.0\"\n}\n"
	assert.Equal(t, want, string(b))

	_, err = PinFiles(base, "", []string{"missing.txt"}, "")
	assert.Error(t, err)
	_, err = PinFiles(base, "", nil, "")
	assert.Error(t, err)
}

func TestBundledManifestMatchesEmbeddedBytes(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "assets", "data", assets.ManifestName))
	require.NoError(t, err)
	m, err := ParseManifest(data)
	require.NoError(t, err)
	for _, key := range m.Keys() {
		b, err := os.ReadFile(filepath.Join("..", "assets", "data", key))
		require.NoError(t, err)
		assert.Equal(t, m.Files[key], Digest(b), key)
	}
}
