package grpc

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger reports whether the database answers
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependency is a named component with a liveness flag, such as a broker connection
type Dependency interface {
	IsHealthy() bool
}

// HealthServer implements the gRPC health checking protocol
type HealthServer struct {
	grpc_health_v1.UnimplementedHealthServer
	db   Pinger
	deps map[string]Dependency
	log  *zap.Logger
}

// NewHealthServer creates a health server over the database and optional dependencies
func NewHealthServer(database Pinger, deps map[string]Dependency, log *zap.Logger) *HealthServer {
	return &HealthServer{
		db:   database,
		deps: deps,
		log:  log,
	}
}

// Healthy returns the first failing check, or nil
func (h *HealthServer) Healthy(ctx context.Context) error {
	if err := h.db.Ping(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	for name, dep := range h.deps {
		if dep != nil && !dep.IsHealthy() {
			return errors.New(name + " unavailable")
		}
	}
	return nil
}

func (h *HealthServer) status(ctx context.Context) grpc_health_v1.HealthCheckResponse_ServingStatus {
	if err := h.Healthy(ctx); err != nil {
		h.log.Error("Health check failed", zap.Error(err))
		return grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	return grpc_health_v1.HealthCheckResponse_SERVING
}

// Check implements the health check
func (h *HealthServer) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	return &grpc_health_v1.HealthCheckResponse{Status: h.status(ctx)}, nil
}

// Watch sends the current status once and returns
func (h *HealthServer) Watch(req *grpc_health_v1.HealthCheckRequest, server grpc_health_v1.Health_WatchServer) error {
	return server.Send(&grpc_health_v1.HealthCheckResponse{Status: h.status(server.Context())})
}
