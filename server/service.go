package server

import (
	"context"

	"google.golang.org/grpc"
)

// Service names as they appear in gRPC method paths.
const (
	InspectServiceName = "rtl.Inspect"
	ObjectServiceName  = "rtl.Objects"
)

// InspectServer is the server API of the rtl.Inspect service.
type InspectServer interface {
	Snapshot(context.Context, *SnapshotRequest) (*SnapshotResponse, error)
	Class(context.Context, *ClassRequest) (*ClassResponse, error)
	Interface(context.Context, *InterfaceRequest) (*InterfaceResponse, error)
	Units(context.Context, *UnitsRequest) (*UnitsResponse, error)
}

// ObjectServer is the server API of the rtl.Objects service.
type ObjectServer interface {
	Create(context.Context, *CreateRequest) (*CreateResponse, error)
	Call(context.Context, *CallRequest) (*CallResponse, error)
	Dispatch(context.Context, *DispatchRequest) (*DispatchResponse, error)
	Query(context.Context, *QueryRequest) (*QueryResponse, error)
	Release(context.Context, *ReleaseRequest) (*ReleaseResponse, error)
}

var (
	_ InspectServer = (*InspectService)(nil)
	_ ObjectServer  = (*ObjectService)(nil)
)

// unary builds a grpc.MethodDesc for one method of a service interface.
// The decoded request passes through the server's interceptor the way a
// generated stub would.
func unary[S any, Req any, Resp any](service, name string, fn func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return fn(srv.(S), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var inspectServiceDesc = grpc.ServiceDesc{
	ServiceName: InspectServiceName,
	HandlerType: (*InspectServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(InspectServiceName, "Snapshot", InspectServer.Snapshot),
		unary(InspectServiceName, "Class", InspectServer.Class),
		unary(InspectServiceName, "Interface", InspectServer.Interface),
		unary(InspectServiceName, "Units", InspectServer.Units),
	},
	Metadata: "rtl/inspect",
}

var objectServiceDesc = grpc.ServiceDesc{
	ServiceName: ObjectServiceName,
	HandlerType: (*ObjectServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(ObjectServiceName, "Create", ObjectServer.Create),
		unary(ObjectServiceName, "Call", ObjectServer.Call),
		unary(ObjectServiceName, "Dispatch", ObjectServer.Dispatch),
		unary(ObjectServiceName, "Query", ObjectServer.Query),
		unary(ObjectServiceName, "Release", ObjectServer.Release),
	},
	Metadata: "rtl/objects",
}
