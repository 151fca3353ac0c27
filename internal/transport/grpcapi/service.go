// Package grpcapi exposes the decision pipeline as a unary gRPC service.
// Messages are google.protobuf.Struct values carrying the same envelope as
// the HTTP API, so no generated stubs are needed.
package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name. The grpc health
// service reports status under this name.
const ServiceName = "microinx.v1.Insight"

const classifyMethod = "/" + ServiceName + "/Classify"

// InsightServer is the server API for the Insight service.
type InsightServer interface {
	Classify(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the Insight service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InsightServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Classify",
			Handler:    classifyHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "microinx/v1/insight.proto",
}

func classifyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InsightServer).Classify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: classifyMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InsightServer).Classify(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
