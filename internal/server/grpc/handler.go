package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/deliveroo/internal/logging"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const probeTimeout = 2 * time.Second

// probe pings the store and publishes the result for "" and ServiceName.
func (s *GRPCServer) probe(ctx context.Context) {
	st := healthpb.HealthCheckResponse_SERVING

	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := s.store.PingContext(pctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn(ctx, "store ping failed", logging.Err(err))
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}

	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}
