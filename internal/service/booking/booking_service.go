package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Khaja-0531/flight-finders/internal/domain"
	"github.com/Khaja-0531/flight-finders/internal/metrics"
	"github.com/Khaja-0531/flight-finders/internal/repository"
	"github.com/google/uuid"
)

const defaultReferenceAttempts = 5

type BookingUseCase interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	CancelBooking(ctx context.Context, input CancelBookingInput) (*domain.Booking, error)
	GetBooking(ctx context.Context, travelerID, bookingID int64) (*domain.Booking, error)
	ListBookings(ctx context.Context, travelerID int64) ([]domain.Booking, error)
	ListAll(ctx context.Context) ([]domain.Booking, error)
	CompleteDepartedBookings(ctx context.Context) ([]domain.Booking, error)
}

// FlightCache is the part of the flights cache a booking invalidates: seat
// counts shown in the cached list change with every reservation.
type FlightCache interface {
	InvalidateFlights(ctx context.Context) error
}

type BookingService struct {
	tx                repository.Transactor
	bookings          repository.BookingRepository
	flights           repository.FlightRepository
	outbox            repository.OutboxRepository
	cache             FlightCache
	policy            CancellationPolicy
	reference         ReferenceFunc
	referenceAttempts int
	now               func() time.Time
	logger            *slog.Logger
}

type CreateBookingInput struct {
	TravelerID int64              `json:"-"`
	FlightID   int64              `json:"flight_id"`
	Passengers []domain.Passenger `json:"passengers"`
}

type CancelBookingInput struct {
	TravelerID int64   `json:"-"`
	BookingID  int64   `json:"-"`
	Reason     *string `json:"reason,omitempty"`
}

type BookingServiceOption func(*BookingService)

func WithCache(cache FlightCache) BookingServiceOption {
	return func(s *BookingService) {
		s.cache = cache
	}
}

func WithCancellationPolicy(p CancellationPolicy) BookingServiceOption {
	return func(s *BookingService) {
		s.policy = p
	}
}

func WithReferenceFunc(fn ReferenceFunc, attempts int) BookingServiceOption {
	return func(s *BookingService) {
		s.reference = fn
		if attempts > 0 {
			s.referenceAttempts = attempts
		}
	}
}

func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		s.now = now
	}
}

func WithLogger(l *slog.Logger) BookingServiceOption {
	return func(s *BookingService) {
		s.logger = l
	}
}

func NewBookingService(
	tx repository.Transactor,
	bookings repository.BookingRepository,
	flights repository.FlightRepository,
	outbox repository.OutboxRepository,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		tx:                tx,
		bookings:          bookings,
		flights:           flights,
		outbox:            outbox,
		policy:            CancellationPolicy{MinNotice: DefaultCancellationNotice},
		reference:         NewReference,
		referenceAttempts: defaultReferenceAttempts,
		now:               time.Now,
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// CreateBooking reserves one seat per passenger and records a confirmed, paid
// booking. The reservation, the booking row and its outbox event commit together.
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	if input.TravelerID <= 0 {
		return nil, s.fail(domain.NewValidationError("traveler_id", "must be positive"))
	}
	if input.FlightID <= 0 {
		return nil, s.fail(domain.NewValidationError("flight_id", "must be positive"))
	}

	now := s.now()
	passengers := append([]domain.Passenger(nil), input.Passengers...)
	domain.NormalizePassengers(passengers)
	if err := domain.ValidatePassengers(passengers, now); err != nil {
		return nil, s.fail(err)
	}
	seats := len(passengers)

	var created *domain.Booking
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		flight, err := s.flights.TryReserve(ctx, input.FlightID, seats)
		if err != nil {
			return err
		}

		b := &domain.Booking{
			TravelerID:       input.TravelerID,
			FlightID:         flight.ID,
			Passengers:       passengers,
			SeatCount:        seats,
			TotalAmountCents: flight.PriceCents * int64(seats),
			Status:           domain.BookingStatusConfirmed,
			PaymentStatus:    domain.PaymentStatusPaid,
			CreatedAt:        now,
		}
		if err := s.insertWithReference(ctx, b); err != nil {
			return err
		}
		if err := s.enqueue(ctx, domain.EventBookingCreated, b, now); err != nil {
			return err
		}
		created = b
		return nil
	})
	if err != nil {
		return nil, s.fail(err)
	}

	metrics.BookingsCreated.Inc()
	metrics.SeatsReserved.Add(float64(seats))
	s.invalidateFlights(ctx)
	s.logger.InfoContext(ctx, "booking created",
		slog.Int64("booking_id", created.ID),
		slog.String("reference", created.Reference),
		slog.Int64("flight_id", created.FlightID),
		slog.Int("seats", seats))
	return created, nil
}

func (s *BookingService) insertWithReference(ctx context.Context, b *domain.Booking) error {
	for attempt := 0; attempt < s.referenceAttempts; attempt++ {
		b.Reference = s.reference(s.now())
		err := s.bookings.Create(ctx, b)
		if !errors.Is(err, domain.ErrDuplicateReference) {
			return err
		}
		s.logger.WarnContext(ctx, "booking reference collision", slog.String("reference", b.Reference))
	}
	return fmt.Errorf("no free reference after %d attempts: %w", s.referenceAttempts, domain.ErrDuplicateReference)
}

// CancelBooking checks ownership and the cancellation policy, then restores the
// booking's seats and marks it cancelled and refunded in one transaction.
func (s *BookingService) CancelBooking(ctx context.Context, input CancelBookingInput) (*domain.Booking, error) {
	current, err := s.bookings.GetForTraveler(ctx, input.BookingID, input.TravelerID)
	if err != nil {
		return nil, err
	}
	if current.Status == domain.BookingStatusCancelled {
		return nil, domain.ErrAlreadyCancelled
	}

	flight, err := s.flights.GetByID(ctx, current.FlightID)
	if err != nil {
		return nil, fmt.Errorf("load flight %d of booking %d: %w", current.FlightID, current.ID, err)
	}
	now := s.now()
	if err := s.policy.Check(current, flight, now); err != nil {
		return nil, err
	}

	var reason *string
	if input.Reason != nil && *input.Reason != "" {
		reason = input.Reason
	}

	var updated *domain.Booking
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		b, err := s.bookings.MarkCancelled(ctx, input.BookingID, input.TravelerID, reason, now)
		if err != nil {
			return err
		}
		if err := s.flights.Release(ctx, b.FlightID, b.SeatCount); err != nil {
			return fmt.Errorf("release %d seats on flight %d: %w", b.SeatCount, b.FlightID, err)
		}
		if err := s.enqueue(ctx, domain.EventBookingCancelled, b, now); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.BookingsCancelled.Inc()
	metrics.SeatsReleased.Add(float64(updated.SeatCount))
	s.invalidateFlights(ctx)
	s.logger.InfoContext(ctx, "booking cancelled",
		slog.Int64("booking_id", updated.ID),
		slog.Int64("flight_id", updated.FlightID),
		slog.Int("seats", updated.SeatCount))
	return updated, nil
}

func (s *BookingService) GetBooking(ctx context.Context, travelerID, bookingID int64) (*domain.Booking, error) {
	return s.bookings.GetForTraveler(ctx, bookingID, travelerID)
}

func (s *BookingService) ListBookings(ctx context.Context, travelerID int64) ([]domain.Booking, error) {
	return s.bookings.ListByTraveler(ctx, travelerID)
}

func (s *BookingService) ListAll(ctx context.Context) ([]domain.Booking, error) {
	return s.bookings.List(ctx)
}

// CompleteDepartedBookings marks confirmed bookings of arrived flights as completed.
func (s *BookingService) CompleteDepartedBookings(ctx context.Context) ([]domain.Booking, error) {
	now := s.now()
	var completed []domain.Booking
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		done, err := s.bookings.CompleteDeparted(ctx, now)
		if err != nil {
			return err
		}
		for i := range done {
			if err := s.enqueue(ctx, domain.EventBookingCompleted, &done[i], now); err != nil {
				return err
			}
		}
		completed = done
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(completed) > 0 {
		metrics.BookingsCompleted.Add(float64(len(completed)))
		s.logger.InfoContext(ctx, "bookings completed", slog.Int("count", len(completed)))
	}
	return completed, nil
}

func (s *BookingService) enqueue(ctx context.Context, t domain.EventType, b *domain.Booking, at time.Time) error {
	payload, err := json.Marshal(domain.NewBookingEvent(t, b, at))
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", t, err)
	}
	return s.outbox.Create(ctx, &domain.OutboxEvent{
		ID:          uuid.NewString(),
		Type:        t,
		AggregateID: b.ID,
		Payload:     payload,
		Status:      domain.OutboxStatusNew,
		CreatedAt:   at,
	})
}

func (s *BookingService) invalidateFlights(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateFlights(ctx); err != nil {
		s.logger.WarnContext(ctx, "flights cache invalidation failed", slog.Any("error", err))
	}
}

func (s *BookingService) fail(err error) error {
	metrics.BookingFailures.WithLabelValues(failureReason(err)).Inc()
	return err
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrFlightNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrFlightNotBookable):
		return "not_bookable"
	case errors.Is(err, domain.ErrInsufficientInventory):
		return "insufficient"
	case errors.Is(err, domain.ErrDuplicateReference):
		return "conflict"
	default:
		return "internal"
	}
}

var _ BookingUseCase = (*BookingService)(nil)
