package rpcapi

import (
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/sumitkumar2005/xeno-crm/internal/auth"
	"github.com/sumitkumar2005/xeno-crm/internal/config"
	"github.com/sumitkumar2005/xeno-crm/internal/validation"
)

// Server bundles the gRPC engine with its health service.
type Server struct {
	GRPC   *grpc.Server
	Health *health.Server
}

// NewServer builds a gRPC server serving api with logging, metrics and
// authentication interceptors, the standard health service and (optionally)
// reflection. The segment service starts as SERVING.
func NewServer(cfg *config.RPCServerConfig, log *slog.Logger, verifier *auth.Verifier, api *API) *Server {
	validation.AssertNotNil(cfg, "rpc server config")
	validation.AssertNotNil(verifier, "token verifier")
	validation.AssertNotNil(api, "segment api")

	s := grpc.NewServer(
		grpc.MaxConcurrentStreams(cfg.MaxConcurrentStreams),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:             cfg.KeepaliveTime,
			Timeout:          cfg.KeepaliveTimeout,
			MaxConnectionAge: cfg.MaxConnectionAge,
		}),
		// Order matters: the logger must exist before auth logs rejections.
		grpc.ChainUnaryInterceptor(
			RequestLoggerInterceptor(log),
			ObservabilityInterceptor(),
			AuthInterceptor(verifier),
		),
	)

	api.Register(s)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	if cfg.Reflection {
		reflection.Register(s)
	}

	return &Server{GRPC: s, Health: hs}
}

// Drain marks every service NOT_SERVING so load balancers stop routing new
// calls, then stops gracefully.
func (s *Server) Drain() {
	s.Health.Shutdown()
	s.GRPC.GracefulStop()
}
