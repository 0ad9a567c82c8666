package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Khaja-0531/flight-finders/api"
	"github.com/Khaja-0531/flight-finders/config"
	adminapi "github.com/Khaja-0531/flight-finders/internal/api/admin_service_api"
	bookingsapi "github.com/Khaja-0531/flight-finders/internal/api/bookings_service_api"
	flightsapi "github.com/Khaja-0531/flight-finders/internal/api/flights_service_api"
	"github.com/Khaja-0531/flight-finders/internal/api/rpcconv"
	"github.com/Khaja-0531/flight-finders/internal/service/booking"
	"github.com/Khaja-0531/flight-finders/internal/service/flights"
	"github.com/Khaja-0531/flight-finders/internal/service/stats"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

type Services struct {
	Flights  flights.FlightUseCase
	Bookings booking.BookingUseCase
	Stats    stats.StatsUseCase
}

type Options struct {
	Logger *slog.Logger
	// Idempotency is nil when no shared store is configured.
	Idempotency api.IdempotencyStore
	Health      func(ctx context.Context) error
	// Users is nil unless the storage keeps its own user directory.
	Users api.UserDirectory
}

type Servers struct {
	grpcServer *grpc.Server
	health     *health.Server
	httpServer *http.Server
}

// Run starts the gRPC and HTTP servers and blocks until ctx is cancelled or a server fails.
func Run(ctx context.Context, cfg *config.Config, svc Services, opts Options) error {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := NewServers(cfg, svc, opts)

	errCh := make(chan error, 2)

	lis, err := net.Listen("tcp", cfg.GRPC.Address)
	if err != nil {
		return fmt.Errorf("listen gRPC %s: %w", cfg.GRPC.Address, err)
	}
	go func() { errCh <- s.grpcServer.Serve(lis) }()

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	opts.Logger.InfoContext(ctx, "servers started",
		slog.String("http", cfg.HTTP.Address), slog.String("grpc", cfg.GRPC.Address))

	select {
	case err := <-errCh:
		s.grpcServer.Stop()
		_ = s.httpServer.Close()
		return err
	case <-ctx.Done():
		opts.Logger.Info("shutting down")
		s.health.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout())
		defer cancel()
		s.grpcServer.GracefulStop()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

func NewServers(cfg *config.Config, svc Services, opts Options) *Servers {
	var interceptors []grpc.UnaryServerInterceptor
	if opts.Users != nil {
		interceptors = append(interceptors, recordCallers(opts.Users))
	}
	grpcSrv, healthSrv := NewGRPCServer(svc, cfg.GRPC.Reflection, opts.Logger, interceptors...)

	router := api.NewRouter(api.Handlers{
		Flights:  api.NewFlightHandler(svc.Flights),
		Bookings: api.NewBookingHandler(svc.Bookings),
		Admin:    api.NewAdminHandler(svc.Stats, svc.Bookings),
	}, api.RouterOptions{
		Logger:      opts.Logger,
		Idempotency: opts.Idempotency,
		Docs:        cfg.HTTP.DocsEnabled,
		Health:      opts.Health,
		Users:       opts.Users,
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Servers{
		grpcServer: grpcSrv,
		health:     healthSrv,
		httpServer: httpSrv,
	}
}

// NewGRPCServer registers the flight, booking and admin services together with
// the standard health service. Extra interceptors run after the request logger.
func NewGRPCServer(svc Services, withReflection bool, logger *slog.Logger, interceptors ...grpc.UnaryServerInterceptor) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	chain := append([]grpc.UnaryServerInterceptor{unaryLogger(logger)}, interceptors...)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(chain...))

	flightsapi.Register(srv, flightsapi.NewServer(svc.Flights))
	bookingsapi.Register(srv, bookingsapi.NewServer(svc.Bookings))
	adminapi.Register(srv, adminapi.NewServer(svc.Stats, svc.Bookings))

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthSrv)
	for _, name := range []string{flightsapi.ServiceName, bookingsapi.ServiceName, adminapi.ServiceName} {
		healthSrv.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
	}

	if withReflection {
		reflection.Register(srv)
	}
	return srv, healthSrv
}

func unaryLogger(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		level := slog.LevelInfo
		if err != nil {
			level = slog.LevelWarn
		}
		logger.LogAttrs(ctx, level, "grpc request",
			slog.String("method", info.FullMethod),
			slog.Duration("latency", time.Since(start)),
			slog.Any("error", err),
		)
		return resp, err
	}
}

// recordCallers registers callers that carry an identity. Anonymous calls such
// as health checks pass untouched.
func recordCallers(users api.UserDirectory) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if id, role, err := rpcconv.Caller(ctx); err == nil {
			users.AddUser(id, role)
		}
		return handler(ctx, req)
	}
}
