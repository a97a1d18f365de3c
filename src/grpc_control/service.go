// Package grpc_control exposes the feed connection state over the standard
// gRPC health protocol.
package grpc_control

import (
	"fmt"
	"net"

	"market-viewer/src/connection"
	"market-viewer/src/helpers"
	"market-viewer/src/logger"

	"google.golang.org/grpc"
	healthgrpc "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// FeedService is the health service name that tracks the upstream feed.
const FeedService = "market-viewer.Feed"

// HealthService reports SERVING for FeedService only while the feed is
// connected. The empty service name reports the process itself.
type HealthService struct {
	Logger *logger.Logger
	health *healthgrpc.Server
	server *grpc.Server
	last   healthpb.HealthCheckResponse_ServingStatus
}

// NewHealthService creates the service with the feed marked NOT_SERVING.
func NewHealthService(log *logger.Logger) *HealthService {
	if log == nil {
		log = logger.NewNopLogger()
	}
	s := &HealthService{
		Logger: log,
		health: healthgrpc.NewServer(),
		server: grpc.NewServer(),
		last:   healthpb.HealthCheckResponse_NOT_SERVING,
	}
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(FeedService, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s.server, s.health)
	return s
}

// -----------------------------------------------------------------------------

// SetFeedState maps a connection state onto the FeedService status.
func (s *HealthService) SetFeedState(state connection.State) {
	next := healthpb.HealthCheckResponse_NOT_SERVING
	if state == connection.Connected {
		next = healthpb.HealthCheckResponse_SERVING
	}
	if next == s.last {
		return
	}
	s.last = next
	s.health.SetServingStatus(FeedService, next)
	s.Logger.Debug("feed health is now %s (%s)", next, state)
}

// -----------------------------------------------------------------------------

// Serve blocks serving on lis until Stop.
func (s *HealthService) Serve(lis net.Listener) error {
	s.Logger.Info("gRPC health listening on %s", lis.Addr())
	if err := s.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return helpers.NewTransportError("grpc serve", err)
	}
	return nil
}

// ListenAndServe opens a TCP listener on host:port and serves on it.
func (s *HealthService) ListenAndServe(host string, port int) error {
	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return helpers.NewTransportError("grpc listen", err)
	}
	return s.Serve(lis)
}

// Stop marks everything NOT_SERVING and drains in-flight calls.
func (s *HealthService) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
