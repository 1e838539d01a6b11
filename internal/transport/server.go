package transport

import (
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/cuemby/optimystic/internal/repository"
	"github.com/cuemby/optimystic/pkg/log"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// Server exposes a repository.Transactor over gRPC using the
// hand-registered transactor ServiceDesc.
type Server struct {
	grpcServer *grpc.Server
	logger     zerolog.Logger
}

// NewServer wraps transactor for RPC serving.
func NewServer(transactor repository.Transactor, opts ...grpc.ServerOption) *Server {
	opts = append(opts, grpc.ForceServerCodec(jsonCodec{}))
	grpcServer := grpc.NewServer(opts...)
	grpcServer.RegisterService(&serviceDesc, transactor)
	return &Server{grpcServer: grpcServer, logger: log.WithComponent("transport.server")}
}

// Serve blocks accepting connections on lis until the server stops.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("transactor RPC server listening")
	return s.grpcServer.Serve(lis)
}

// Stop gracefully stops the server.
func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}
