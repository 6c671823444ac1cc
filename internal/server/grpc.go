package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported next to the overall "" status.
const ServiceName = "medextract.Pipeline"

// NewGRPCServer returns a gRPC server exposing the standard health service
// and reflection (for grpcurl).
func NewGRPCServer() (*grpc.Server, *health.Server) {
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)
	return gs, hs
}

// RefreshHealth sets SERVING or NOT_SERVING from check.
func RefreshHealth(hs *health.Server, check func() error, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	status := healthpb.HealthCheckResponse_SERVING
	if err := check(); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		logger.Warn("health.not_serving", "error", err)
	}
	hs.SetServingStatus("", status)
	hs.SetServingStatus(ServiceName, status)
}

// WatchHealth refreshes the health status every interval until ctx ends,
// then marks the server NOT_SERVING.
func WatchHealth(ctx context.Context, hs *health.Server, check func() error, interval time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	RefreshHealth(hs, check, logger)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-t.C:
			RefreshHealth(hs, check, logger)
		}
	}
}
