package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Khaja-0531/flight-finders/internal/domain"
)

type bookingRepo struct {
	s *Store
}

func cloneBooking(b *domain.Booking) *domain.Booking {
	c := *b
	c.Passengers = append([]domain.Passenger(nil), b.Passengers...)
	if b.CancelledAt != nil {
		at := *b.CancelledAt
		c.CancelledAt = &at
	}
	if b.CancellationReason != nil {
		reason := *b.CancellationReason
		c.CancellationReason = &reason
	}
	return &c
}

func (s *Store) hasBookings(flightID int64) bool {
	s.bookingsMu.RLock()
	defer s.bookingsMu.RUnlock()
	for _, b := range s.bookings {
		if b.FlightID == flightID {
			return true
		}
	}
	return false
}

func (r *bookingRepo) Create(ctx context.Context, b *domain.Booking) error {
	r.s.bookingsMu.Lock()
	defer r.s.bookingsMu.Unlock()

	if _, taken := r.s.references[b.Reference]; taken {
		return domain.ErrDuplicateReference
	}
	r.s.lastBookingID++
	b.ID = r.s.lastBookingID
	r.s.bookings[b.ID] = cloneBooking(b)
	r.s.references[b.Reference] = b.ID

	id, ref := b.ID, b.Reference
	record(ctx, func() {
		r.s.bookingsMu.Lock()
		delete(r.s.bookings, id)
		delete(r.s.references, ref)
		r.s.bookingsMu.Unlock()
	})
	return nil
}

func (r *bookingRepo) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	r.s.bookingsMu.RLock()
	defer r.s.bookingsMu.RUnlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	return cloneBooking(b), nil
}

func (r *bookingRepo) GetForTraveler(ctx context.Context, id, travelerID int64) (*domain.Booking, error) {
	b, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.TravelerID != travelerID {
		return nil, domain.ErrBookingNotFound
	}
	return b, nil
}

func (r *bookingRepo) ListByTraveler(ctx context.Context, travelerID int64) ([]domain.Booking, error) {
	return r.list(func(b *domain.Booking) bool { return b.TravelerID == travelerID }), nil
}

func (r *bookingRepo) List(ctx context.Context) ([]domain.Booking, error) {
	return r.list(func(*domain.Booking) bool { return true }), nil
}

func (r *bookingRepo) list(keep func(*domain.Booking) bool) []domain.Booking {
	r.s.bookingsMu.RLock()
	out := make([]domain.Booking, 0)
	for _, b := range r.s.bookings {
		if keep(b) {
			out = append(out, *cloneBooking(b))
		}
	}
	r.s.bookingsMu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *bookingRepo) MarkCancelled(ctx context.Context, id, travelerID int64, reason *string, at time.Time) (*domain.Booking, error) {
	r.s.bookingsMu.Lock()
	defer r.s.bookingsMu.Unlock()

	b, ok := r.s.bookings[id]
	if !ok || b.TravelerID != travelerID {
		return nil, domain.ErrBookingNotFound
	}
	switch b.Status {
	case domain.BookingStatusConfirmed:
	case domain.BookingStatusCancelled:
		return nil, domain.ErrAlreadyCancelled
	default:
		return nil, fmt.Errorf("%w: booking %d is %s", domain.ErrCancellationClosed, id, b.Status)
	}

	prev := cloneBooking(b)
	b.Status = domain.BookingStatusCancelled
	b.PaymentStatus = domain.PaymentStatusRefunded
	b.CancelledAt = &at
	if reason != nil {
		text := *reason
		b.CancellationReason = &text
	}
	record(ctx, func() {
		r.s.bookingsMu.Lock()
		r.s.bookings[id] = prev
		r.s.bookingsMu.Unlock()
	})
	return cloneBooking(b), nil
}

func (r *bookingRepo) CompleteDeparted(ctx context.Context, now time.Time) ([]domain.Booking, error) {
	flights, err := r.s.Flights().List(ctx)
	if err != nil {
		return nil, err
	}
	arrived := make(map[int64]bool, len(flights))
	for _, f := range flights {
		if !f.ArrivalTime.After(now) {
			arrived[f.ID] = true
		}
	}

	r.s.bookingsMu.Lock()
	defer r.s.bookingsMu.Unlock()

	var completed []domain.Booking
	for _, b := range r.s.bookings {
		if b.Status != domain.BookingStatusConfirmed || !arrived[b.FlightID] {
			continue
		}
		b.Status = domain.BookingStatusCompleted
		completed = append(completed, *cloneBooking(b))

		id := b.ID
		record(ctx, func() {
			r.s.bookingsMu.Lock()
			r.s.bookings[id].Status = domain.BookingStatusConfirmed
			r.s.bookingsMu.Unlock()
		})
	}
	return completed, nil
}
