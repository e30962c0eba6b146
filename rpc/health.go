package rpc

import (
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/wfunc/beatroom/logger"
)

// HealthServiceName is reported alongside the overall ("") status.
const HealthServiceName = "beatroom.Lobby"

// HealthServer exposes the standard grpc.health.v1 service so load balancers
// and orchestrators can probe the process.
type HealthServer struct {
	listener net.Listener
	grpc     *grpc.Server
	health   *health.Server
}

func NewHealthServer(addr string) (*HealthServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	hs := health.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(HealthServiceName, healthpb.HealthCheckResponse_SERVING)

	return &HealthServer{listener: listener, grpc: gs, health: hs}, nil
}

func (h *HealthServer) Addr() string {
	return h.listener.Addr().String()
}

func (h *HealthServer) Start() {
	logger.Log.Infof("gRPC health listening on %s", h.Addr())
	if err := h.grpc.Serve(h.listener); err != nil {
		logger.Log.Errorf("gRPC health server: %v", err)
	}
}

// Stop reports NOT_SERVING to watchers, then drains.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.grpc.GracefulStop()
}
