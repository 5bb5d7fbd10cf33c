package grpc

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/pribylovaa/club-auth/internal/metrics"
)

// Имена сервисов в grpc.health.v1.
const (
	ServiceOverall    = ""
	ServiceRevocation = "club.auth.revocation"
	ServiceUsers      = "club.auth.users"
)

// Pinger — зависимость с проверкой доступности.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthSetter — часть health.Server, нужная пробе.
type HealthSetter interface {
	SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus)
}

// Probe периодически пингует хранилище отозванных токенов и базу пользователей
// и переключает статусы health. Общий статус SERVING только если доступны оба.
type Probe struct {
	hs         HealthSetter
	revocation Pinger
	users      Pinger
	metrics    *metrics.Metrics
	log        *slog.Logger
	timeout    time.Duration

	healthy atomic.Bool
}

// NewProbe создаёт пробу. m и log могут быть nil.
func NewProbe(hs HealthSetter, revocation, users Pinger, m *metrics.Metrics, log *slog.Logger, timeout time.Duration) *Probe {
	if log == nil {
		log = slog.Default()
	}

	return &Probe{
		hs:         hs,
		revocation: revocation,
		users:      users,
		metrics:    m,
		log:        log,
		timeout:    timeout,
	}
}

// Check выполняет одну проверку и возвращает общий результат.
func (p *Probe) Check(ctx context.Context) bool {
	const op = "transport.grpc.probe.Check"

	revOK := p.ping(ctx, op, ServiceRevocation, p.revocation)
	usersOK := p.ping(ctx, op, ServiceUsers, p.users)
	p.metrics.SetStoreUp(revOK)

	ok := revOK && usersOK
	p.healthy.Store(ok)
	p.hs.SetServingStatus(ServiceOverall, servingStatus(ok))
	return ok
}

// Healthy — результат последней проверки (false до первой).
func (p *Probe) Healthy() bool { return p.healthy.Load() }

// Run проверяет сразу и затем каждые interval до отмены ctx.
// На выходе все сервисы переводятся в NOT_SERVING.
func (p *Probe) Run(ctx context.Context, interval time.Duration) {
	defer p.stop()

	p.Check(ctx)

	if interval <= 0 {
		<-ctx.Done()
		return
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.Check(ctx)
		}
	}
}

func (p *Probe) stop() {
	p.healthy.Store(false)
	for _, name := range []string{ServiceOverall, ServiceRevocation, ServiceUsers} {
		p.hs.SetServingStatus(name, healthpb.HealthCheckResponse_NOT_SERVING)
	}
}

func (p *Probe) ping(ctx context.Context, op, service string, dep Pinger) bool {
	if dep == nil {
		return true
	}

	pctx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	err := dep.Ping(pctx)
	if err != nil {
		p.log.Warn("dependency_probe_failed",
			slog.String("op", op),
			slog.String("service", service),
			slog.String("err", err.Error()),
		)
	}

	p.hs.SetServingStatus(service, servingStatus(err == nil))
	return err == nil
}

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
