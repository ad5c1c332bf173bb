package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the gRPC health service name reported for the dispatcher.
const ServiceName = "notifyq.Dispatcher"

func (s *Server) handleHealth(c *gin.Context) {
	state, brokerState, code := "ok", "connected", http.StatusOK
	if s.deps.Broker != nil && !s.deps.Broker.Connected() {
		state, brokerState, code = "degraded", "disconnected", http.StatusServiceUnavailable
	}

	running := false
	if s.deps.Consumers != nil {
		running = s.deps.Consumers.Running()
	}

	c.JSON(code, gin.H{
		"status":    state,
		"broker":    brokerState,
		"consumers": running,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// NewGRPCServer builds the gRPC server with the standard health service,
// reflection and API-key interceptors. Keep the returned health server
// updated with WatchHealth.
func NewGRPCServer(keyHash string) (*grpc.Server, *health.Server) {
	auth := NewAuthInterceptor(keyHash)
	gs := grpc.NewServer(
		grpc.UnaryInterceptor(auth.Unary()),
		grpc.StreamInterceptor(auth.Stream()),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)
	return gs, hs
}

// WatchHealth mirrors broker connectivity into hs every interval until ctx
// ends, then marks everything NOT_SERVING.
func WatchHealth(ctx context.Context, hs *health.Server, b BrokerHealth, interval time.Duration) {
	update := func() {
		st := healthpb.HealthCheckResponse_SERVING
		if !b.Connected() {
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
		hs.SetServingStatus("", st)
		hs.SetServingStatus(ServiceName, st)
	}

	update()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
			update()
		}
	}
}
