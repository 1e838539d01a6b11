package transport

import (
	"context"

	"google.golang.org/grpc"

	"github.com/cuemby/optimystic/internal/repository"
)

const serviceName = "optimystic.Transactor"

// RPC method names, exported so Client can address them directly
// without a generated stub.
const (
	MethodGet    = "/" + serviceName + "/Get"
	MethodPend   = "/" + serviceName + "/Pend"
	MethodCommit = "/" + serviceName + "/Commit"
	MethodCancel = "/" + serviceName + "/Cancel"
)

func handleGet(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return runGet(ctx, srv.(repository.Transactor), in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGet}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return runGet(ctx, srv.(repository.Transactor), req.(*GetRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func runGet(ctx context.Context, t repository.Transactor, in *GetRequest) (*GetResponse, error) {
	results, err := t.Get(ctx, in.BlockIds, in.Context)
	if err != nil {
		return &GetResponse{Error: err.Error()}, nil
	}
	return &GetResponse{Results: results}, nil
}

func handlePend(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(repository.PendRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		resp := srv.(repository.Transactor).Pend(ctx, *in)
		return &resp, nil
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodPend}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		resp := srv.(repository.Transactor).Pend(ctx, *req.(*repository.PendRequest))
		return &resp, nil
	}
	return interceptor(ctx, in, info, handler)
}

func handleCommit(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(repository.CommitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		resp := srv.(repository.Transactor).Commit(ctx, *in)
		return &resp, nil
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodCommit}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		resp := srv.(repository.Transactor).Commit(ctx, *req.(*repository.CommitRequest))
		return &resp, nil
	}
	return interceptor(ctx, in, info, handler)
}

func handleCancel(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(repository.CancelRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return runCancel(ctx, srv.(repository.Transactor), in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodCancel}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return runCancel(ctx, srv.(repository.Transactor), req.(*repository.CancelRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func runCancel(ctx context.Context, t repository.Transactor, in *repository.CancelRequest) (*CancelResponse, error) {
	if err := t.Cancel(ctx, *in); err != nil {
		return &CancelResponse{Error: err.Error()}, nil
	}
	return &CancelResponse{}, nil
}

// serviceDesc is the hand-registered gRPC service carrying the four
// transactor RPCs, in place of a protoc-generated descriptor.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*repository.Transactor)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Get", Handler: handleGet},
		{MethodName: "Pend", Handler: handlePend},
		{MethodName: "Commit", Handler: handleCommit},
		{MethodName: "Cancel", Handler: handleCancel},
	},
}
