package repository

import (
	"context"
	"time"

	"github.com/Khaja-0531/flight-finders/internal/domain"
)

// Transactor runs fn as one unit: every repository call made with the context
// handed to fn commits or rolls back together.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// FlightRepository is the flight inventory store. TryReserve and Release are the
// only ways the booking flow moves AvailableSeats.
type FlightRepository interface {
	List(ctx context.Context) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	Create(ctx context.Context, flight *domain.Flight) error
	Update(ctx context.Context, id int64, upd domain.FlightUpdate) (*domain.Flight, error)
	Delete(ctx context.Context, id int64) error
	TryReserve(ctx context.Context, flightID int64, seats int) (*domain.Flight, error)
	Release(ctx context.Context, flightID int64, seats int) error
}

type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	GetForTraveler(ctx context.Context, id, travelerID int64) (*domain.Booking, error)
	ListByTraveler(ctx context.Context, travelerID int64) ([]domain.Booking, error)
	List(ctx context.Context) ([]domain.Booking, error)
	MarkCancelled(ctx context.Context, id, travelerID int64, reason *string, at time.Time) (*domain.Booking, error)
	CompleteDeparted(ctx context.Context, now time.Time) ([]domain.Booking, error)
}

type OutboxRepository interface {
	Create(ctx context.Context, event *domain.OutboxEvent) error
	FetchBatch(ctx context.Context, limit int, lease time.Duration) ([]domain.OutboxEvent, error)
	MarkProcessed(ctx context.Context, ids []string) error
	MarkFailed(ctx context.Context, ids []string) error
}

type StatsRepository interface {
	Snapshot(ctx context.Context) (domain.Statistics, error)
}
