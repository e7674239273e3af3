// Package grpc serves the operational gRPC endpoint of the auth server: the
// standard health service, reporting whether the credential store answers.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/deliveroo/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported next to the overall "".
const ServiceName = "deliveroo.auth"

// DefaultProbeInterval is how often the store is pinged.
const DefaultProbeInterval = 10 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type GRPCServer struct {
	address  string
	logger   logging.Logger
	store    Pinger
	health   *health.Server
	interval time.Duration
}

func NewGRPCServer(a string, l logging.Logger, store Pinger, interval time.Duration) *GRPCServer {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		store:    store,
		health:   health.NewServer(),
		interval: interval,
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve serves on lis until ctx is done.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)

	s.probe(ctx)

	go func() {
		t := time.NewTicker(s.interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info(ctx, "Stopping gRPC server...")
				s.health.Shutdown()
				srv.GracefulStop()
				return
			case <-t.C:
				s.probe(ctx)
			}
		}
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}
