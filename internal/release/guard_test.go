package release

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestGuard_UnverifiedFailsClosed(t *testing.T) {
	g := NewGuard()
	assert.Equal(t, StateUnverified, g.State())
	err := g.Check()
	requireIntegrity(t, err, ReasonNotVerified, "")
	assert.Nil(t, g.Release())
}

func TestGuard_VerifyThenCheck(t *testing.T) {
	_, opts := fixture(t)
	g := NewGuard()
	rel, err := g.Verify(opts)
	require.NoError(t, err)
	assert.Same(t, rel, g.Release())
	assert.NoError(t, g.Check())
	assert.Equal(t, "verified", g.State().String())
}

func TestGuard_FailureLatches(t *testing.T) {
	base, opts := fixture(t)
	g := NewGuard()
	_, err := g.Verify(opts)
	require.NoError(t, err)

	target := filepath.Join(base, DefaultLayoutDir, "a.json")
	original, err := os.ReadFile(target)
	require.NoError(t, err)
	appendByte(t, target)

	_, err = g.Verify(opts)
	requireIntegrity(t, err, ReasonHashMismatch, "a.json")
	assert.Equal(t, StateFailed, g.State())

	// Restoring the bytes does not re-arm the guard.
	require.NoError(t, os.WriteFile(target, original, 0o644))
	_, err = g.Verify(opts)
	requireIntegrity(t, err, ReasonHashMismatch, "a.json")
	requireIntegrity(t, g.Check(), ReasonHashMismatch, "a.json")
	assert.Nil(t, g.Release())
}

func TestGuard_FailKeepsFirstError(t *testing.T) {
	g := NewGuard()
	first := &IntegrityError{Key: "x", Reason: ReasonArtifactMissing}
	g.Fail(first)
	g.Fail(errors.New("second"))
	assert.Same(t, first, g.Check())

	g2 := NewGuard()
	g2.Fail(nil)
	requireIntegrity(t, g2.Check(), ReasonNotVerified, "")
}

func TestWatcher_RecheckTripsGuard(t *testing.T) {
	base, opts := fixture(t)
	g := NewGuard()
	_, err := g.Verify(opts)
	require.NoError(t, err)

	w, err := NewWatcher(g, opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, []string{base, filepath.Join(base, DefaultLayoutDir)}, w.Dirs())

	var failures atomic.Int32
	w.OnFailure = func(error) { failures.Add(1) }

	require.NoError(t, w.Recheck())
	appendByte(t, filepath.Join(base, DefaultLayoutDir, "b.yaml"))
	requireIntegrity(t, w.Recheck(), ReasonHashMismatch, "b.yaml")
	assert.Equal(t, int32(1), failures.Load())
	assert.Equal(t, StateFailed, g.State())
}

func TestWatcher_RunDetectsTamper(t *testing.T) {
	base, opts := fixture(t)
	g := NewGuard()
	_, err := g.Verify(opts)
	require.NoError(t, err)

	w, err := NewWatcher(g, opts, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	target := filepath.Join(base, DefaultLayoutDir, "a.json")
	// Keep touching the file until the watcher has registered and reacted.
	require.Eventually(t, func() bool {
		if g.State() == StateFailed {
			return true
		}
		appendByte(t, target)
		return false
	}, 5*time.Second, 50*time.Millisecond)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop after integrity loss")
	}
}

func TestWatcher_RequiresVerifiedGuard(t *testing.T) {
	_, err := NewWatcher(NewGuard(), Options{}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIntegrity))
}

func TestWatcher_BundledIsIdle(t *testing.T) {
	t.Setenv(EnvManifestPath, "")
	opts := Options{BaseDir: t.TempDir()}
	g := NewGuard()
	_, err := g.Verify(opts)
	require.NoError(t, err)

	w, err := NewWatcher(g, opts, nil)
	require.NoError(t, err)
	assert.Empty(t, w.Dirs())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, w.Run(ctx))
}
