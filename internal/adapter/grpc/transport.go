package grpc

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/smartbasket/smartbasket-backend/pkg/logger"
)

// Transport bundles the grpc.Server with its health service
type Transport struct {
	Server *grpc.Server
	Health *health.Server
}

// NewTransport builds a grpc.Server with the interceptor chain, the basket
// service and the standard health service registered.
func NewTransport(srv BasketServiceServer, log *logger.Log, enableReflection bool, opts ...grpc.ServerOption) *Transport {
	opts = append(opts, grpc.ChainUnaryInterceptor(
		RecoveryInterceptor(log),
		LoggingInterceptor(log),
		MetricsInterceptor(),
	))
	gs := grpc.NewServer(opts...)

	RegisterBasketServiceServer(gs, srv)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	if enableReflection {
		reflection.Register(gs)
	}
	return &Transport{Server: gs, Health: hs}
}

// Drain marks every service as not serving so health checks fail before shutdown
func (t *Transport) Drain() {
	t.Health.Shutdown()
}
