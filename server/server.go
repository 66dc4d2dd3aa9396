// Package server exposes a runtime over gRPC: read-only RTTI inspection
// and remote handles on live instances. Messages are CBOR-encoded structs.
package server

import (
	"context"
	"net"
	"time"

	"github.com/tliron/commonlog"
	"google.golang.org/grpc"

	"github.com/chazu/rtl/loader"
	"github.com/chazu/rtl/rtl"
)

// Server wraps a runtime and serves the rtl.Inspect and rtl.Objects
// services.
type Server struct {
	worker  *Worker
	handles *HandleStore
	grpc    *grpc.Server
	log     commonlog.Logger

	stopSweeper func()
}

// Option configures a Server.
type Option func(*config)

type config struct {
	sweepInterval time.Duration
	handleTTL     time.Duration
	grpcOptions   []grpc.ServerOption
}

// WithHandleTTL sets how long an unused handle survives and how often the
// sweeper looks for stale ones.
func WithHandleTTL(interval, ttl time.Duration) Option {
	return func(c *config) {
		c.sweepInterval = interval
		c.handleTTL = ttl
	}
}

// WithGRPCOptions passes options through to grpc.NewServer.
func WithGRPCOptions(opts ...grpc.ServerOption) Option {
	return func(c *config) { c.grpcOptions = append(c.grpcOptions, opts...) }
}

// New creates a Server for rt. ld may be nil when no loader journal is
// available.
func New(rt *rtl.Runtime, ld *loader.Loader, opts ...Option) *Server {
	cfg := &config{
		sweepInterval: 5 * time.Minute,
		handleTTL:     30 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &Server{
		worker:  NewWorker(rt),
		handles: NewHandleStore(),
		log:     commonlog.GetLogger("rtl.server"),
	}
	grpcOpts := append([]grpc.ServerOption{grpc.UnaryInterceptor(s.logCall)}, cfg.grpcOptions...)
	s.grpc = grpc.NewServer(grpcOpts...)
	s.grpc.RegisterService(&inspectServiceDesc, NewInspectService(rt, ld))
	s.grpc.RegisterService(&objectServiceDesc, NewObjectService(s.worker, s.handles))

	s.stopSweeper = s.handles.StartSweeper(s.worker, cfg.sweepInterval, cfg.handleTTL)
	return s
}

func (s *Server) logCall(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	if err != nil {
		s.log.Debugf("%s: %v", info.FullMethod, err)
	} else {
		s.log.Debugf("%s", info.FullMethod)
	}
	return resp, err
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Infof("serving on %s", lis.Addr())
	return s.grpc.Serve(lis)
}

// ListenAndServe listens on addr ("host:port" or ":port") and serves.
func (s *Server) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

// Handles returns the number of live instance handles.
func (s *Server) Handles() int {
	return s.handles.Len()
}

// Stop shuts down the server.
func (s *Server) Stop() {
	if s.stopSweeper != nil {
		s.stopSweeper()
	}
	s.grpc.GracefulStop()
	s.worker.Stop()
}
