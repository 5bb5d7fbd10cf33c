// grpc — служебный gRPC-сервер auth-сервиса: grpc.health.v1.Health,
// рефлексия (local/dev) и цепочки интерсепторов. Состояние health
// переключает Probe по доступности хранилищ.
package grpc

import (
	"log/slog"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/pribylovaa/club-auth/internal/transport/grpc/interceptors"
)

// Options — параметры сборки gRPC-сервера.
type Options struct {
	Logger     *slog.Logger
	Timeout    time.Duration
	Reflection bool
	Metrics    bool // grpc_prometheus-интерсепторы
}

// NewServer создаёт gRPC-сервер с зарегистрированным health-сервисом.
// Все сервисы стартуют в NOT_SERVING; переводит их Probe.
func NewServer(opts Options) (*grpc.Server, *health.Server) {
	unary := []grpc.UnaryServerInterceptor{
		interceptors.Recover(opts.Logger),
		interceptors.UnaryLoggingInterceptor(opts.Logger),
		interceptors.WithTimeout(opts.Timeout),
	}
	stream := []grpc.StreamServerInterceptor{
		interceptors.RecoverStream(opts.Logger),
		interceptors.StreamLoggingInterceptor(opts.Logger),
	}
	if opts.Metrics {
		unary = append(unary, grpc_prometheus.UnaryServerInterceptor)
		stream = append(stream, grpc_prometheus.StreamServerInterceptor)
	}

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(stream...),
	)

	hs := health.NewServer()
	for _, name := range []string{ServiceOverall, ServiceRevocation, ServiceUsers} {
		hs.SetServingStatus(name, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	healthpb.RegisterHealthServer(srv, hs)

	if opts.Reflection {
		reflection.Register(srv)
	}

	if opts.Metrics {
		grpc_prometheus.Register(srv)
	}

	return srv, hs
}
