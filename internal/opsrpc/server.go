// Package opsrpc runs the operational gRPC endpoint: the standard health
// service, with a dedicated service name that reports whether a rebuild is
// running.
package opsrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/signalsfoundry/assumed-cables/internal/logging"
	"github.com/signalsfoundry/assumed-cables/internal/observability"
)

// RebuildService is the health service name that turns NOT_SERVING while a
// rebuild holds the rebuild lock.
const RebuildService = "routesynth.Rebuild"

// Server wraps a gRPC server exposing grpc.health.v1.Health.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	log    logging.Logger
}

// NewServer builds the ops server. A nil collector disables RPC metrics.
func NewServer(log logging.Logger, collector *observability.APICollector) *Server {
	if log == nil {
		log = logging.Noop()
	}
	interceptors := []grpc.UnaryServerInterceptor{
		RequestIDUnaryServerInterceptor(log),
		TracingUnaryServerInterceptor(),
	}
	if collector != nil {
		interceptors = append(interceptors, collector.UnaryServerInterceptor())
	}
	gs := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(interceptors...),
	)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(RebuildService, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{grpc: gs, health: hs, log: log}
}

// SetRebuilding flips the rebuild service status. It matches the signature
// of a rebuild state listener.
func (s *Server) SetRebuilding(active bool) {
	status := healthpb.HealthCheckResponse_SERVING
	if active {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(RebuildService, status)
}

// Serve accepts connections on lis until Stop or GracefulStop.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info(context.Background(), "starting ops gRPC server", logging.String("addr", lis.Addr().String()))
	return s.grpc.Serve(lis)
}

// GracefulStop marks every service NOT_SERVING and drains in-flight calls.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

// StatusJSON renders the current health of every service as JSON, keyed by
// service name ("" is the overall server).
func (s *Server) StatusJSON(ctx context.Context) ([]byte, error) {
	out := make(map[string]json.RawMessage, 2)
	for _, svc := range []string{"", RebuildService} {
		resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: svc})
		if err != nil {
			return nil, fmt.Errorf("health check %q: %w", svc, err)
		}
		raw, err := protojson.Marshal(resp)
		if err != nil {
			return nil, fmt.Errorf("encode health %q: %w", svc, err)
		}
		out[svc] = raw
	}
	return json.Marshal(out)
}
