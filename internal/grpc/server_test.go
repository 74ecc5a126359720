package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1024 * 1024

type fakePinger struct{ err error }

func (f *fakePinger) Ping(context.Context) error { return f.err }

type fakeDependency struct{ healthy bool }

func (f *fakeDependency) IsHealthy() bool { return f.healthy }

func setupTestServer(t *testing.T, health *HealthServer) grpc_health_v1.HealthClient {
	lis := bufconn.Listen(bufSize)
	s := NewServer(health, zap.NewNop())

	go func() {
		if err := s.Serve(lis); err != nil {
			t.Logf("Server exited with error: %v", err)
		}
	}()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return lis.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return grpc_health_v1.NewHealthClient(conn)
}

func TestHealthServing(t *testing.T) {
	health := NewHealthServer(&fakePinger{}, map[string]Dependency{"rabbitmq": &fakeDependency{healthy: true}}, zap.NewNop())
	client := setupTestServer(t, health)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)

	stream, err := client.Watch(ctx, &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err)
	watched, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, watched.Status)
}

func TestHealthNotServing(t *testing.T) {
	tests := []struct {
		name string
		db   *fakePinger
		dep  *fakeDependency
	}{
		{"database down", &fakePinger{err: errors.New("connection refused")}, &fakeDependency{healthy: true}},
		{"broker down", &fakePinger{}, &fakeDependency{healthy: false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			health := NewHealthServer(tt.db, map[string]Dependency{"rabbitmq": tt.dep}, zap.NewNop())
			client := setupTestServer(t, health)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
			require.NoError(t, err)
			assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, resp.Status)
			assert.Error(t, health.Healthy(ctx))
		})
	}
}
