package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Khaja-0531/flight-finders/api"
	"github.com/Khaja-0531/flight-finders/config"
	"github.com/Khaja-0531/flight-finders/internal/cache"
	"github.com/Khaja-0531/flight-finders/internal/repository"
	"github.com/Khaja-0531/flight-finders/internal/repository/memory"
	"github.com/Khaja-0531/flight-finders/internal/service/booking"
	"github.com/Khaja-0531/flight-finders/internal/service/flights"
	"github.com/Khaja-0531/flight-finders/internal/service/stats"
)

// Storage is the set of repositories one driver provides.
type Storage struct {
	Driver   string
	Tx       repository.Transactor
	Flights  repository.FlightRepository
	Bookings repository.BookingRepository
	Outbox   repository.OutboxRepository
	Stats    repository.StatsRepository
	// Users is set when the driver keeps its own user directory.
	Users api.UserDirectory

	ping  func(ctx context.Context) error
	close func()
}

func (s *Storage) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

func (s *Storage) Close() {
	if s.close != nil {
		s.close()
	}
}

// InProcess reports whether the data lives in this process only, in which case
// the background jobs must run here as well.
func (s *Storage) InProcess() bool {
	return s.Driver == config.DriverMemory
}

func OpenStorage(ctx context.Context, cfg config.DatabaseConfig) (*Storage, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		store := memory.NewStore()
		return &Storage{
			Driver:   cfg.Driver,
			Tx:       store,
			Flights:  store.Flights(),
			Bookings: store.Bookings(),
			Outbox:   store.Outbox(),
			Stats:    store.Stats(),
			Users:    store,
		}, nil
	case config.DriverPostgres:
		pool, err := repository.Connect(ctx, cfg.DSN(), cfg.MaxConns, cfg.ConnectAttempts)
		if err != nil {
			return nil, err
		}
		if cfg.Migrate {
			if err := repository.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
		}
		tx := repository.NewTxManager(pool)
		return &Storage{
			Driver:   cfg.Driver,
			Tx:       tx,
			Flights:  repository.NewFlightRepository(tx),
			Bookings: repository.NewBookingRepository(tx),
			Outbox:   repository.NewOutboxRepository(tx),
			Stats:    repository.NewStatsRepository(tx),
			ping:     pool.Ping,
			close:    pool.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// OpenCache connects to redis when it is enabled. A nil cache means caching and
// idempotent replays are off.
func OpenCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) *cache.RedisCache {
	if !cfg.Redis.Enabled {
		return nil
	}
	rc := cache.NewRedisCache(cache.NewClient(cfg.Redis), cache.TTLs{
		Flights:     cfg.Booking.FlightsCacheDuration(),
		Statistics:  cfg.Booking.StatsCacheDuration(),
		Idempotency: cfg.Booking.IdempotencyDuration(),
	})
	if err := rc.Ping(ctx); err != nil {
		logger.WarnContext(ctx, "redis unreachable, continuing with degraded cache", slog.Any("error", err))
	}
	return rc
}

func NewServices(cfg *config.Config, st *Storage, rc *cache.RedisCache, logger *slog.Logger) Services {
	var (
		flightCache flights.FlightCache
		bookingOpts = []booking.BookingServiceOption{
			booking.WithLogger(logger),
			booking.WithCancellationPolicy(booking.CancellationPolicy{MinNotice: cfg.Booking.CancellationNotice()}),
			booking.WithReferenceFunc(booking.NewReference, cfg.Booking.ReferenceAttempts),
		}
		statsOpts = []stats.ReporterOption{stats.WithLogger(logger)}
	)
	if rc != nil {
		flightCache = rc
		bookingOpts = append(bookingOpts, booking.WithCache(rc))
		statsOpts = append(statsOpts, stats.WithCache(rc))
	}

	return Services{
		Flights:  flights.NewFlightService(st.Flights, flightCache),
		Bookings: booking.NewBookingService(st.Tx, st.Bookings, st.Flights, st.Outbox, bookingOpts...),
		Stats:    stats.NewReporter(st.Stats, statsOpts...),
	}
}
