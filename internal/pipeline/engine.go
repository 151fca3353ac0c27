// Package pipeline wires the verified release into the deterministic
// decision pipeline: extract, score, select, render, gate.
package pipeline

// #region imports
import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/OneInX/Manifest-InX/internal/assets"
	"github.com/OneInX/Manifest-InX/internal/catalog"
	"github.com/OneInX/Manifest-InX/internal/eval"
	"github.com/OneInX/Manifest-InX/internal/gate"
	"github.com/OneInX/Manifest-InX/internal/metrics"
	"github.com/OneInX/Manifest-InX/internal/release"
	"github.com/OneInX/Manifest-InX/internal/rules"
	"github.com/OneInX/Manifest-InX/internal/scoring"
	"github.com/OneInX/Manifest-InX/internal/selector"
	"github.com/OneInX/Manifest-InX/internal/signals"
	"github.com/OneInX/Manifest-InX/internal/store"
)

// #endregion

const tracerName = "github.com/OneInX/Manifest-InX/internal/pipeline"

// #region engine

// Engine runs the decision pipeline over one verified release. All state is
// built once from the verified artifact bytes; Run is safe for concurrent use.
type Engine struct {
	config    EngineConfig
	guard     *release.Guard
	release   *release.Release
	catalog   *catalog.Catalog
	rules     *rules.Rules
	extractor *signals.Extractor
	gate      *gate.Gate

	logger   *zap.Logger
	metrics  *metrics.Metrics
	recorder Recorder
	tracer   trace.Tracer
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Inputs are never logged verbatim.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithRecorder persists every completed run.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// NewEngine builds an engine from the release currently held by guard. The
// guard must already be verified. The template catalog must pass its own
// output gate, otherwise the release is rejected.
func NewEngine(guard *release.Guard, config EngineConfig, opts ...Option) (*Engine, error) {
	if guard == nil {
		return nil, fmt.Errorf("pipeline: nil guard")
	}
	e := &Engine{
		config: config,
		guard:  guard,
		logger: zap.NewNop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := guard.Check(); err != nil {
		e.integrityFailure(err)
		return nil, err
	}
	rel := guard.Release()
	if err := e.build(rel); err != nil {
		return nil, err
	}
	e.logger.Info("pipeline ready",
		zap.String("manifest_version", rel.Version()),
		zap.Strings("artifacts", rel.Files()),
		zap.Int("templates", e.catalog.Len()),
	)
	return e, nil
}

// Open verifies the configured release and builds an engine over it.
func Open(config EngineConfig, opts ...Option) (*Engine, error) {
	guard := release.NewGuard()
	// The outcome is latched in the guard; NewEngine reports a failure.
	_, _ = guard.Verify(config.Release)
	return NewEngine(guard, config, opts...)
}

func (e *Engine) build(rel *release.Release) error {
	tplBytes, ok := rel.Artifact(assets.TemplatesKey)
	if !ok {
		return fmt.Errorf("pipeline: release has no %s", assets.TemplatesKey)
	}
	rulesBytes, ok := rel.Artifact(assets.RulesKey)
	if !ok {
		return fmt.Errorf("pipeline: release has no %s", assets.RulesKey)
	}

	cat, err := catalog.Load(tplBytes)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	rs, err := rules.Load(rulesBytes)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	ex, err := signals.NewExtractor(rs.Lexicon)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	g, err := gate.NewGate(cat, rs.Policy)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	harness := eval.NewEvalHarness(eval.DefaultEvalConfig(selector.Reachable(), catalog.Size))
	res := harness.Run(cat, g)
	if !res.Passed {
		return fmt.Errorf("pipeline: template conformance failed: %s", res.Reason)
	}
	if flagged := eval.FlaggedTemplates(res); len(flagged) > 0 {
		e.logger.Warn("templates carry review flags", zap.Strings("templates", flagged))
	}

	e.release = rel
	e.catalog = cat
	e.rules = rs
	e.extractor = ex
	e.gate = g
	return nil
}

// #endregion engine

// #region run

// Run classifies req.Text and returns the gated template. The only error
// class is a release integrity failure, which is also latched in the guard.
func (e *Engine) Run(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	inputHash := release.Digest([]byte(req.Text))
	ctx, span := e.tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.String("microinx.input_sha256", inputHash),
	))
	defer span.End()

	if err := e.checkRelease(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "release integrity")
		return Result{}, err
	}

	sig := e.extractor.Extract(req.Text)
	vec := scoring.Score(sig, req.Text)
	id := selector.Select(vec, sig)
	text, err := e.catalog.Render(id)
	if err != nil {
		// Conformance guarantees every reachable id renders.
		return Result{}, fmt.Errorf("pipeline: %w", err)
	}
	sdt := e.gate.Evaluate(text, id)

	res := Result{
		Response: Response{
			OutputText: text,
			SDT:        sdt,
			TemplateID: id,
		},
		Signals:         sig,
		Vectors:         vec,
		ManifestVersion: e.release.Version(),
	}

	e.metrics.IncrementInsight(id, sdt.Pass)
	for _, v := range sdt.Violations {
		e.metrics.IncrementViolation(gate.Kind(v))
	}

	res.RunID = e.record(req, inputHash, res)

	span.SetAttributes(
		attribute.String("microinx.template_id", id),
		attribute.String("microinx.dominant", string(vec.Dominant)),
		attribute.Bool("microinx.sdt_pass", sdt.Pass),
	)
	elapsed := time.Since(start)
	e.metrics.ObservePipeline(elapsed)
	e.logger.Debug("insight",
		zap.String("input_sha256", inputHash),
		zap.String("template_id", id),
		zap.String("dominant", string(vec.Dominant)),
		zap.Float64("confidence", vec.Confidence),
		zap.Bool("sdt_pass", sdt.Pass),
		zap.Duration("elapsed", elapsed),
	)
	return res, nil
}

// Insight is Run without the debug fields.
func (e *Engine) Insight(ctx context.Context, text string) (Response, error) {
	res, err := e.Run(ctx, Request{Text: text})
	if err != nil {
		return Response{}, err
	}
	return res.Response, nil
}

func (e *Engine) checkRelease(ctx context.Context) error {
	if e.config.VerifyEachCall {
		_, span := e.tracer.Start(ctx, "release.Verify")
		_, err := e.guard.Verify(e.config.Release)
		span.End()
		if err != nil {
			e.integrityFailure(err)
			return err
		}
	}
	if err := e.guard.Check(); err != nil {
		e.integrityFailure(err)
		return err
	}
	return nil
}

func (e *Engine) integrityFailure(err error) {
	reason := string(release.ReasonOf(err))
	e.metrics.IncrementIntegrityFailure(reason)
	e.logger.Error("release integrity failure", zap.String("reason", reason), zap.Error(err))
}

// record persists the run when a recorder is configured. Audit failures are
// logged and do not affect the response.
func (e *Engine) record(req Request, inputHash string, res Result) string {
	runID := uuid.New().String()
	if e.recorder == nil {
		return runID
	}
	rec, err := e.recorder.RecordRun(store.RunRecord{
		RunID:           runID,
		InputSHA256:     inputHash,
		InputText:       req.Text,
		Lang:            req.Lang,
		Source:          req.Source,
		TemplateID:      res.TemplateID,
		Dominant:        string(res.Vectors.Dominant),
		Secondary:       string(res.Vectors.Secondary),
		Composite:       string(res.Vectors.Composite),
		Confidence:      res.Vectors.Confidence,
		SDTPass:         res.SDT.Pass,
		Violations:      res.SDT.Violations,
		ManifestVersion: res.ManifestVersion,
	})
	if err != nil {
		e.logger.Warn("failed to record run", zap.String("run_id", runID), zap.Error(err))
		return runID
	}
	return rec.RunID
}

// #endregion run

// #region accessors

// Guard returns the release guard the engine checks before every run.
func (e *Engine) Guard() *release.Guard { return e.guard }

// Release returns the release the engine was built from.
func (e *Engine) Release() *release.Release { return e.release }

// Version returns the manifest version of the loaded release.
func (e *Engine) Version() string { return e.release.Version() }

// Catalog returns the loaded template catalog.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// Gate returns the output gate.
func (e *Engine) Gate() *gate.Gate { return e.gate }

// Rules returns the loaded rules.
func (e *Engine) Rules() *rules.Rules { return e.rules }

// #endregion accessors
