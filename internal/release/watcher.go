package release

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// #region watcher

// Watcher re-verifies the release whenever a pinned on-disk file changes and
// trips the guard on the first failure. Bundled artifacts cannot change and
// are not watched.
type Watcher struct {
	guard   *Guard
	opts    Options
	logger  *zap.Logger
	watched map[string]struct{}
	dirs    []string

	// OnFailure, if set, is called once with the error that tripped the guard.
	OnFailure func(error)
}

// NewWatcher prepares a watcher over the files of the guard's current release.
func NewWatcher(guard *Guard, opts Options, logger *zap.Logger) (*Watcher, error) {
	rel := guard.Release()
	if rel == nil {
		return nil, fmt.Errorf("watcher: %w", guard.Check())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watcher{
		guard:   guard,
		opts:    opts,
		logger:  logger,
		watched: make(map[string]struct{}),
	}
	dirSet := make(map[string]struct{})
	for _, p := range rel.Paths() {
		p = filepath.Clean(p)
		w.watched[p] = struct{}{}
		dirSet[filepath.Dir(p)] = struct{}{}
	}
	for d := range dirSet {
		w.dirs = append(w.dirs, d)
	}
	sort.Strings(w.dirs)
	return w, nil
}

// Dirs returns the watched directories.
func (w *Watcher) Dirs() []string { return w.dirs }

// Run blocks until ctx is done. It returns an error only if the underlying
// fsnotify watcher cannot be set up.
func (w *Watcher) Run(ctx context.Context) error {
	if len(w.dirs) == 0 {
		w.logger.Debug("release watcher idle: no on-disk artifacts")
		<-ctx.Done()
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fs watcher: %w", err)
	}
	defer fw.Close()

	for _, d := range w.dirs {
		if err := fw.Add(d); err != nil {
			return fmt.Errorf("watch %s: %w", d, err)
		}
	}
	w.logger.Info("release watcher started", zap.Strings("dirs", w.dirs))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if _, pinned := w.watched[filepath.Clean(ev.Name)]; !pinned {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("pinned file changed", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			if w.Recheck() != nil {
				// The guard never recovers, so there is nothing left to watch.
				return nil
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("release watcher error", zap.Error(err))
		}
	}
}

// Recheck re-verifies the release through the guard.
func (w *Watcher) Recheck() error {
	if _, err := w.guard.Verify(w.opts); err != nil {
		w.logger.Error("release integrity lost", zap.Error(err), zap.String("reason", string(ReasonOf(err))))
		if w.OnFailure != nil {
			w.OnFailure(err)
		}
		return err
	}
	return nil
}

// #endregion watcher
