package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"github.com/pribylovaa/club-auth/internal/cache"
	"github.com/pribylovaa/club-auth/internal/config"
	"github.com/pribylovaa/club-auth/internal/metrics"
	"github.com/pribylovaa/club-auth/internal/migrations"
	"github.com/pribylovaa/club-auth/internal/oauth"
	"github.com/pribylovaa/club-auth/internal/pkg/log"
	"github.com/pribylovaa/club-auth/internal/service"
	"github.com/pribylovaa/club-auth/internal/storage/postgres"
	grpctransport "github.com/pribylovaa/club-auth/internal/transport/grpc"
	httptransport "github.com/pribylovaa/club-auth/internal/transport/http"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	lg := log.Setup(cfg.Env, os.Stdout)
	slog.SetDefault(lg)
	lg.Info("starting application", "env", cfg.Env)

	// Корневой контекст по сигналам.
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	if err := run(rootCtx, cfg, lg); err != nil {
		lg.Error("service_failed", slog.String("err", err.Error()))
		rootCancel()
		os.Exit(1)
	}

	lg.Info("service_stopped")
}

func run(ctx context.Context, cfg *config.Config, lg *slog.Logger) error {
	// Миграции и подключение к БД c таймаутом.
	dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
	defer dbCancel()

	if !cfg.DB.SkipMigrations {
		if err := migrations.Up(dbCtx, cfg.DB.DatabaseURL); err != nil {
			return err
		}
		lg.Info("migrations_applied")
	}

	str, err := postgres.New(dbCtx, cfg.DB.DatabaseURL)
	if err != nil {
		return err
	}
	defer str.Close()
	lg.Info("postgres_connected")

	bl, err := newBlacklist(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = bl.Close() }()
	lg.Info("revocation_store_ready", slog.String("driver", cfg.Revocation.Driver))

	m := metrics.New(nil)

	srvc, err := service.New(str, bl, cfg.Auth)
	if err != nil {
		return err
	}
	srvc.SetMetrics(m)
	srvc.SetStoreTimeout(cfg.Timeouts.Store)
	srvc.SetFailOpen(cfg.Revocation.FailOpen)

	idp, err := oauth.NewClient(cfg.OAuth, &http.Client{Timeout: cfg.Timeouts.Service})
	switch {
	case err == nil:
		srvc.SetIdentityProvider(idp)
	case errors.Is(err, oauth.ErrNotConfigured):
		lg.Warn("oauth_not_configured")
	default:
		return err
	}
	lg.Info("service_initialized")

	// Служебный gRPC: health + рефлексия в local/dev.
	grpc_prometheus.EnableHandlingTimeHistogram()
	grpcServer, hs := grpctransport.NewServer(grpctransport.Options{
		Logger:     lg,
		Timeout:    cfg.Timeouts.Service,
		Reflection: cfg.Env == log.EnvLocal || cfg.Env == log.EnvDev,
		Metrics:    true,
	})

	probe := grpctransport.NewProbe(hs, bl, str, m, lg, cfg.Timeouts.Store)
	probeCtx, probeCancel := context.WithCancel(ctx)
	defer probeCancel()
	go probe.Run(probeCtx, cfg.Revocation.ProbeInterval)

	var ready atomic.Bool

	opsSrv := &http.Server{
		Addr:              cfg.Ops.Addr(),
		Handler:           opsMux(&ready, probe),
		ReadHeaderTimeout: 5 * time.Second,
	}

	publicSrv := &http.Server{
		Addr: cfg.HTTP.Addr(),
		Handler: httptransport.NewRouter(srvc, httptransport.Options{
			Logger:   lg,
			Timeout:  cfg.Timeouts.Service,
			BasePath: cfg.HTTP.BasePath,
			Cookie:   cfg.Cookie,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	listener, err := net.Listen("tcp", cfg.GRPC.Addr())
	if err != nil {
		return err
	}

	serveErrCh := make(chan error, 3)
	serveHTTP(lg, "ops", opsSrv, serveErrCh)
	serveHTTP(lg, "http", publicSrv, serveErrCh)

	go func() {
		lg.Info("grpc_listen_start", slog.String("addr", cfg.GRPC.Addr()))
		if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErrCh <- err
		}
	}()

	ready.Store(true)

	// Ожидание сигнала завершения или фатальной ошибки сервера.
	var serveErr error
	select {
	case <-ctx.Done():
		lg.Info("shutdown_requested")
	case serveErr = <-serveErrCh:
		lg.Error("serve_failed", slog.String("err", serveErr.Error()))
	}

	ready.Store(false)
	probeCancel()

	shutdown(lg, grpcServer, publicSrv, opsSrv)
	return serveErr
}

// newBlacklist выбирает хранилище отозванных токенов по revocation.driver.
func newBlacklist(ctx context.Context, cfg *config.Config) (cache.Blacklist, error) {
	if cfg.Revocation.Driver == config.RevocationDriverMemory {
		return cache.NewMemoryBlacklist(cfg.Revocation.Prefix, cfg.Revocation.CleanupInterval), nil
	}

	rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return cache.NewRedisBlacklist(rctx, cfg.Redis.RedisURL, cfg.Revocation.Prefix)
}

// opsMux — /livez, /healthz (готовность + последняя проба хранилищ), /metrics.
func opsMux(ready *atomic.Bool, probe *grpctransport.Probe) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if ready.Load() && probe.Healthy() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})

	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func serveHTTP(lg *slog.Logger, name string, srv *http.Server, errCh chan<- error) {
	go func() {
		lg.Info("http_listen_start", slog.String("server", name), slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
}

// shutdown — graceful stop с общим таймаутом: сначала HTTP-серверы, затем gRPC.
func shutdown(lg *slog.Logger, grpcServer *grpc.Server, servers ...*http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			lg.Warn("http_shutdown_failed", slog.String("addr", srv.Addr), slog.String("err", err.Error()))
		}
	}

	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		lg.Info("grpc_stopped")
	case <-shutdownCtx.Done():
		lg.Warn("grpc_force_stop")
		grpcServer.Stop()
	}
}
