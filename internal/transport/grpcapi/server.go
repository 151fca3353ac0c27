package grpcapi

import (
	"context"
	"errors"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/OneInX/Manifest-InX/internal/pipeline"
	"github.com/OneInX/Manifest-InX/internal/release"
)

// Error messages carried in the status of failed calls.
const (
	ErrMissingText      = "missing_text"
	ErrReleaseIntegrity = "release_integrity"
	ErrEngine           = "engine_error"
)

// Service is the decision pipeline. *pipeline.Engine satisfies it.
type Service interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
	Guard() *release.Guard
}

// #region server

// Server implements InsightServer over the pipeline and keeps the grpc
// health status in step with the release guard.
type Server struct {
	service Service
	health  *health.Server
	logger  *zap.Logger
	grpc    *grpc.Server
}

// NewServer builds a grpc.Server with the Insight and health services
// registered.
func NewServer(service Service, logger *zap.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		service: service,
		health:  health.NewServer(),
		logger:  logger,
		grpc:    grpc.NewServer(opts...),
	}
	s.grpc.RegisterService(&ServiceDesc, s)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.SyncHealth()
	return s
}

// SyncHealth reports SERVING only while the release guard is verified.
func (s *Server) SyncHealth() {
	st := healthpb.HealthCheckResponse_SERVING
	if s.service.Guard().Check() != nil {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(ServiceName, st)
	s.health.SetServingStatus("", st)
}

// Classify runs one insight. The request struct carries text and optional
// lang and source strings.
func (s *Server) Classify(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, ok := decodeRequest(in)
	if !ok {
		return nil, status.Error(codes.InvalidArgument, ErrMissingText)
	}

	res, err := s.service.Run(ctx, req)
	if err != nil {
		if errors.Is(err, release.ErrIntegrity) {
			s.SyncHealth()
			return nil, status.Error(codes.Unavailable, ErrReleaseIntegrity)
		}
		s.logger.Error("classify failed", zap.Error(err))
		return nil, status.Error(codes.Internal, ErrEngine)
	}

	out, err := encodeResponse(res)
	if err != nil {
		s.logger.Error("encode response", zap.Error(err))
		return nil, status.Error(codes.Internal, ErrEngine)
	}
	return out, nil
}

// Serve accepts on ln until ctx is done, then stops gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("grpc api listening", zap.String("addr", ln.Addr().String()))
		errCh <- s.grpc.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	s.health.Shutdown()
	s.grpc.GracefulStop()
	<-errCh
	s.logger.Info("grpc api stopped")
	return nil
}

// Stop stops the server immediately.
func (s *Server) Stop() { s.grpc.Stop() }

// #endregion server

// #region codec

func decodeRequest(in *structpb.Struct) (pipeline.Request, bool) {
	fields := in.GetFields()
	text, ok := stringField(fields, "text")
	if !ok {
		return pipeline.Request{}, false
	}
	lang, _ := stringField(fields, "lang")
	source, _ := stringField(fields, "source")
	return pipeline.Request{Text: text, Lang: lang, Source: source}, true
}

func stringField(fields map[string]*structpb.Value, key string) (string, bool) {
	v, ok := fields[key]
	if !ok {
		return "", false
	}
	sv, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", false
	}
	return sv.StringValue, true
}

func encodeResponse(res pipeline.Result) (*structpb.Struct, error) {
	violations := make([]any, len(res.SDT.Violations))
	for i, v := range res.SDT.Violations {
		violations[i] = v
	}
	return structpb.NewStruct(map[string]any{
		"template_id": res.TemplateID,
		"output_text": res.OutputText,
		"sdt": map[string]any{
			"pass":       res.SDT.Pass,
			"violations": violations,
		},
		"manifest": map[string]any{
			"version": res.ManifestVersion,
			"hash_ok": true,
		},
	})
}

// #endregion codec
