package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region service
// ServiceName is the fully qualified gRPC service name.
const ServiceName = "pathmemory.v1.PathMemory"

const (
	methodObserve    = "Observe"
	methodPlan       = "Plan"
	methodArrive     = "Arrive"
	methodSnapshot   = "Snapshot"
	methodCheckpoint = "Checkpoint"
)

// PathMemoryServer is the server API. Every message is a
// google.protobuf.Struct so the service needs no generated stubs.
type PathMemoryServer interface {
	Observe(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Plan(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Arrive(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Snapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Checkpoint(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type handlerFunc func(PathMemoryServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, fn handlerFunc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(srv.(PathMemoryServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(srv.(PathMemoryServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PathMemoryServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(methodObserve, PathMemoryServer.Observe),
		unary(methodPlan, PathMemoryServer.Plan),
		unary(methodArrive, PathMemoryServer.Arrive),
		unary(methodSnapshot, PathMemoryServer.Snapshot),
		unary(methodCheckpoint, PathMemoryServer.Checkpoint),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pathmemory.proto",
}

// Register attaches srv to s.
func Register(s grpc.ServiceRegistrar, srv PathMemoryServer) {
	s.RegisterService(&serviceDesc, srv)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// #endregion service
