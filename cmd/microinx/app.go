package main

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/OneInX/Manifest-InX/internal/config"
	"github.com/OneInX/Manifest-InX/internal/logging"
	"github.com/OneInX/Manifest-InX/internal/pipeline"
	"github.com/OneInX/Manifest-InX/internal/release"
	"github.com/OneInX/Manifest-InX/internal/store"
)

// app is the shared state every subcommand starts from.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	audit  *store.Store
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}
	if cfg.Audit.DBPath != "" {
		st, err := store.NewStore(cfg.Audit.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open audit db: %w", err)
		}
		a.audit = st
	}
	return a, nil
}

func (a *app) close() {
	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			a.logger.Warn("close audit db", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func (a *app) engineConfig() pipeline.EngineConfig {
	return pipeline.EngineConfig{
		VerifyEachCall: a.cfg.Release.VerifyEachCall,
		Release:        a.cfg.ReleaseOptions(),
	}
}

// openEngine verifies the release and builds the pipeline. The verification
// outcome is written to the audit log when one is configured.
func (a *app) openEngine(opts ...pipeline.Option) (*pipeline.Engine, error) {
	opts = append([]pipeline.Option{pipeline.WithLogger(a.logger)}, opts...)
	if a.audit != nil {
		opts = append(opts, pipeline.WithRecorder(a.audit))
	}
	e, err := pipeline.Open(a.engineConfig(), opts...)
	a.logIntegrity(e, err)
	return e, err
}

func (a *app) logIntegrity(e *pipeline.Engine, err error) {
	if a.audit == nil {
		return
	}
	ev := store.IntegrityEvent{Outcome: "verified"}
	if e != nil {
		rel := e.Release()
		ev.ManifestVersion = rel.Version()
		ev.ManifestSource = string(rel.ManifestSource)
	}
	if err != nil {
		ev.Outcome = "failed"
		ev.Reason = string(release.ReasonOf(err))
		var ie *release.IntegrityError
		if errors.As(err, &ie) {
			ev.Key = ie.Key
		}
	}
	if lerr := a.audit.LogIntegrity(ev); lerr != nil {
		a.logger.Warn("failed to log integrity event", zap.Error(lerr))
	}
}
