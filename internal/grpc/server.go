// Package grpc exposes the catalog's gRPC surface: the standard health
// service and server reflection.
package grpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// NewServer creates a gRPC server with the health service registered
func NewServer(health *HealthServer, log *zap.Logger) *grpc.Server {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(log)))
	grpc_health_v1.RegisterHealthServer(s, health)
	reflection.Register(s)
	return s
}

func loggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		started := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			log.Warn("gRPC call failed",
				zap.String("method", info.FullMethod),
				zap.Duration("duration", time.Since(started)),
				zap.Error(err),
			)
			return resp, err
		}
		log.Debug("gRPC call",
			zap.String("method", info.FullMethod),
			zap.Duration("duration", time.Since(started)),
		)
		return resp, nil
	}
}
