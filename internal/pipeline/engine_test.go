package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"github.com/OneInX/Manifest-InX/internal/assets"
	"github.com/OneInX/Manifest-InX/internal/canon"
	"github.com/OneInX/Manifest-InX/internal/metrics"
	"github.com/OneInX/Manifest-InX/internal/release"
	"github.com/OneInX/Manifest-InX/internal/signals"
	"github.com/OneInX/Manifest-InX/internal/store"
)

// layoutRelease copies the bundled artifacts into base/data, applies edit to
// the template map when given, pins both files and writes the manifest.
func layoutRelease(t *testing.T, edit func(map[string]string)) release.Options {
	t.Helper()
	t.Setenv(release.EnvManifestPath, "")
	base := t.TempDir()
	dataDir := filepath.Join(base, release.DefaultLayoutDir)
	require.NoError(t, os.MkdirAll(dataDir, 0o755))

	tpl, err := fs.ReadFile(assets.FS(), assets.TemplatesKey)
	require.NoError(t, err)
	if edit != nil {
		var m map[string]string
		require.NoError(t, json.Unmarshal(tpl, &m))
		edit(m)
		tpl, err = canon.JSON(m)
		require.NoError(t, err)
	}
	rs, err := fs.ReadFile(assets.FS(), assets.RulesKey)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, assets.TemplatesKey), tpl, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, assets.RulesKey), rs, 0o644))

	m, err := release.PinFiles(base, "", []string{assets.TemplatesKey, assets.RulesKey}, "1.0.0-test")
	require.NoError(t, err)
	require.NoError(t, release.WriteManifest(filepath.Join(base, assets.ManifestName), m))
	return release.Options{BaseDir: base, Bundled: fstest.MapFS{}}
}

func bundledEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	t.Setenv(release.EnvManifestPath, "")
	cfg := DefaultEngineConfig()
	cfg.Release.BaseDir = t.TempDir()
	e, err := Open(cfg, opts...)
	require.NoError(t, err)
	return e
}

var cases = []struct {
	name       string
	text       string
	templateID string
	dominant   signals.Dimension
}{
	{"defer", "I will decide later. I need more context before I can lock anything.", "T01", signals.Drift},
	{"certainty", "I need 100% certainty before I act. Until then I will wait.", "T03", signals.Avoidance},
	{"loop", "I restart the same plan again and again. There is no stop condition.", "T08", signals.Loop},
	{"label", "I call it one label but it means two different things depending on the day.", "T10", signals.Fracture},
	{"composite", "I need more context and more research; I repeat the same pass again and again. Scope.", "T11", signals.Drift},
	{"short", "later.", "T02", signals.Drift},
	{"urgency", "Ship it today, skip the tests and fix later. Push fast.", "T06", signals.Drive},
	{"empty", "", "T02", signals.Drift},
}

func TestRun_Cases(t *testing.T) {
	e := bundledEngine(t)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := e.Run(context.Background(), Request{Text: tc.text})
			require.NoError(t, err)
			assert.Equal(t, tc.templateID, res.TemplateID)
			assert.Equal(t, tc.dominant, res.Vectors.Dominant)
			assert.True(t, res.SDT.Pass, "violations: %v", res.SDT.Violations)
			assert.Empty(t, res.SDT.Violations)

			want, ok := e.Catalog().Text(tc.templateID)
			require.True(t, ok)
			assert.Equal(t, want, res.OutputText)
			assert.Equal(t, "1.0.0", res.ManifestVersion)
			assert.NotEmpty(t, res.RunID)
		})
	}
}

func TestRun_CompositeConfidence(t *testing.T) {
	e := bundledEngine(t)
	res, err := e.Run(context.Background(), Request{
		Text: "Need more context and more research; later it depends. I revisit again and still.",
	})
	require.NoError(t, err)
	assert.Equal(t, "T11", res.TemplateID)
	assert.Equal(t, 8, res.Signals.Score(signals.Drift))
	assert.Equal(t, 7, res.Signals.Score(signals.Loop))
	assert.Equal(t, signals.Loop, res.Vectors.Secondary)
	assert.InDelta(t, 2.0/9.0, res.Vectors.Confidence, 1e-9)
}

func TestRun_LangAndSourceDoNotAffectResult(t *testing.T) {
	e := bundledEngine(t)
	text := cases[0].text
	a, err := e.Run(context.Background(), Request{Text: text})
	require.NoError(t, err)
	b, err := e.Run(context.Background(), Request{Text: text, Lang: "de", Source: "cli"})
	require.NoError(t, err)
	if diff := cmp.Diff(a.Response, b.Response); diff != "" {
		t.Errorf("response differs (-plain +tagged):\n%s", diff)
	}
}

func TestRun_ConcurrentDeterminism(t *testing.T) {
	e := bundledEngine(t)
	want := make([]Response, len(cases))
	for i, tc := range cases {
		r, err := e.Insight(context.Background(), tc.text)
		require.NoError(t, err)
		want[i] = r
	}

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		g.Go(func() error {
			for i, tc := range cases {
				got, err := e.Insight(context.Background(), tc.text)
				if err != nil {
					return err
				}
				if diff := cmp.Diff(want[i], got); diff != "" {
					return fmt.Errorf("case %s diverged:\n%s", tc.name, diff)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestNewEngine_UnverifiedGuardFailsClosed(t *testing.T) {
	_, err := NewEngine(release.NewGuard(), DefaultEngineConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, release.ErrIntegrity))
	assert.Equal(t, release.ReasonNotVerified, release.ReasonOf(err))
}

func TestOpen_TamperedReleaseFails(t *testing.T) {
	opts := layoutRelease(t, nil)
	f, err := os.OpenFile(filepath.Join(opts.BaseDir, release.DefaultLayoutDir, assets.RulesKey), os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	cfg := DefaultEngineConfig()
	cfg.Release = opts
	_, err = Open(cfg, WithMetrics(m), WithLogger(zaptest.NewLogger(t)))
	require.Error(t, err)
	assert.EqualError(t, err, "release hash mismatch: "+assets.RulesKey)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IntegrityFailures.WithLabelValues("hash_mismatch")))
}

func TestRun_VerifyEachCallDetectsTamper(t *testing.T) {
	opts := layoutRelease(t, nil)
	cfg := DefaultEngineConfig()
	cfg.Release = opts
	cfg.VerifyEachCall = true
	e, err := Open(cfg)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0-test", e.Version())

	_, err = e.Run(context.Background(), Request{Text: cases[0].text})
	require.NoError(t, err)

	tplPath := filepath.Join(opts.BaseDir, release.DefaultLayoutDir, assets.TemplatesKey)
	require.NoError(t, os.WriteFile(tplPath, []byte("{}\n"), 0o644))

	_, err = e.Run(context.Background(), Request{Text: cases[0].text})
	require.Error(t, err)
	assert.Equal(t, release.ReasonHashMismatch, release.ReasonOf(err))
	assert.Equal(t, release.StateFailed, e.Guard().State())

	// Restoring the file does not re-arm the guard.
	tpl, rerr := fs.ReadFile(assets.FS(), assets.TemplatesKey)
	require.NoError(t, rerr)
	require.NoError(t, os.WriteFile(tplPath, tpl, 0o644))
	_, err = e.Run(context.Background(), Request{Text: cases[0].text})
	assert.True(t, errors.Is(err, release.ErrIntegrity))
}

func TestRun_GuardTrippedExternally(t *testing.T) {
	e := bundledEngine(t)
	e.Guard().Fail(&release.IntegrityError{Key: assets.TemplatesKey, Reason: release.ReasonHashMismatch})
	_, err := e.Insight(context.Background(), "anything at all")
	require.Error(t, err)
	assert.Equal(t, release.ReasonHashMismatch, release.ReasonOf(err))
}

func TestOpen_RejectsNonConformingCatalog(t *testing.T) {
	opts := layoutRelease(t, func(m map[string]string) {
		m["T01"] = "You defer, sorry. Narrow input."
	})
	cfg := DefaultEngineConfig()
	cfg.Release = opts
	_, err := Open(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template conformance failed")
	assert.False(t, errors.Is(err, release.ErrIntegrity))
}

func TestRun_RecordsAuditTrail(t *testing.T) {
	st, err := store.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	e := bundledEngine(t, WithRecorder(st), WithMetrics(m))

	res, err := e.Run(context.Background(), Request{Text: cases[2].text, Lang: "en", Source: "test"})
	require.NoError(t, err)

	rec, err := st.GetRun(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, "T08", rec.TemplateID)
	assert.Equal(t, "loop", rec.Dominant)
	assert.Equal(t, "en", rec.Lang)
	assert.Equal(t, "test", rec.Source)
	assert.Equal(t, release.Digest([]byte(cases[2].text)), rec.InputSHA256)
	assert.True(t, rec.SDTPass)
	assert.Equal(t, "1.0.0", rec.ManifestVersion)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Insights.WithLabelValues("T08", "true")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.PipelineDuration))
}

type failingRecorder struct{}

func (failingRecorder) RecordRun(store.RunRecord) (store.RunRecord, error) {
	return store.RunRecord{}, errors.New("disk full")
}

func TestRun_AuditFailureDoesNotFailRun(t *testing.T) {
	e := bundledEngine(t, WithRecorder(failingRecorder{}), WithLogger(zaptest.NewLogger(t)))
	res, err := e.Run(context.Background(), Request{Text: cases[0].text})
	require.NoError(t, err)
	assert.Equal(t, "T01", res.TemplateID)
	assert.NotEmpty(t, res.RunID)
}
