// Package transport exposes the refiner over gRPC. Messages are
// google.protobuf.Struct values carrying the JSON form of the Go types, so
// the service needs no generated code.
package transport

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "refiner.v1.Refiner"

// Method names.
const (
	MethodRefine         = "Refine"
	MethodGetSession     = "GetSession"
	MethodListSessions   = "ListSessions"
	MethodDeleteSession  = "DeleteSession"
	MethodListWeights    = "ListWeights"
	MethodMetricsSummary = "MetricsSummary"
)

// #region service-interface
// RefinerServer is implemented by Server. Every method takes and returns a
// Struct.
type RefinerServer interface {
	Refine(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ListSessions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	DeleteSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ListWeights(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	MetricsSummary(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}
// #endregion service-interface

// #region service-desc
type handlerFunc func(RefinerServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call handlerFunc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(RefinerServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(method),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(RefinerServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the Refiner service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RefinerServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler(MethodRefine, RefinerServer.Refine),
		unaryHandler(MethodGetSession, RefinerServer.GetSession),
		unaryHandler(MethodListSessions, RefinerServer.ListSessions),
		unaryHandler(MethodDeleteSession, RefinerServer.DeleteSession),
		unaryHandler(MethodListWeights, RefinerServer.ListWeights),
		unaryHandler(MethodMetricsSummary, RefinerServer.MetricsSummary),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "refiner/v1/refiner.proto",
}

// FullMethod returns "/refiner.v1.Refiner/<method>".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}
// #endregion service-desc
