package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Khaja-0531/flight-finders/internal/domain"
)

type flightRepo struct {
	s *Store
}

func (r *flightRepo) entry(id int64) (*flightEntry, error) {
	r.s.flightsMu.RLock()
	e, ok := r.s.flights[id]
	r.s.flightsMu.RUnlock()
	if !ok {
		return nil, domain.ErrFlightNotFound
	}
	return e, nil
}

func (r *flightRepo) List(ctx context.Context) ([]domain.Flight, error) {
	r.s.flightsMu.RLock()
	entries := make([]*flightEntry, 0, len(r.s.flights))
	for _, e := range r.s.flights {
		entries = append(entries, e)
	}
	r.s.flightsMu.RUnlock()

	flights := make([]domain.Flight, 0, len(entries))
	for _, e := range entries {
		unlock := lockForRead(ctx, e)
		if !e.deleted {
			flights = append(flights, e.flight)
		}
		unlock()
	}
	sort.Slice(flights, func(i, j int) bool {
		if flights[i].DepartureTime.Equal(flights[j].DepartureTime) {
			return flights[i].ID < flights[j].ID
		}
		return flights[i].DepartureTime.Before(flights[j].DepartureTime)
	})
	return flights, nil
}

func (r *flightRepo) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	e, err := r.entry(id)
	if err != nil {
		return nil, err
	}
	defer lockForRead(ctx, e)()
	if e.deleted {
		return nil, domain.ErrFlightNotFound
	}
	f := e.flight
	return &f, nil
}

func (r *flightRepo) Create(ctx context.Context, f *domain.Flight) error {
	r.s.flightsMu.Lock()
	defer r.s.flightsMu.Unlock()

	if _, taken := r.s.numbers[f.FlightNumber]; taken {
		return domain.ErrDuplicateFlightNumber
	}
	r.s.lastFlightID++
	now := time.Now()
	f.ID = r.s.lastFlightID
	f.CreatedAt, f.UpdatedAt = now, now
	r.s.flights[f.ID] = &flightEntry{flight: *f}
	r.s.numbers[f.FlightNumber] = f.ID

	id, number := f.ID, f.FlightNumber
	record(ctx, func() {
		r.s.flightsMu.Lock()
		delete(r.s.flights, id)
		delete(r.s.numbers, number)
		r.s.flightsMu.Unlock()
	})
	return nil
}

func (r *flightRepo) Update(ctx context.Context, id int64, upd domain.FlightUpdate) (*domain.Flight, error) {
	e, err := r.entry(id)
	if err != nil {
		return nil, err
	}
	defer lockForWrite(ctx, e)()
	if e.deleted {
		return nil, domain.ErrFlightNotFound
	}

	next, err := upd.Apply(e.flight)
	if err != nil {
		return nil, err
	}
	next.UpdatedAt = time.Now()
	prev := e.flight
	e.flight = next
	record(ctx, func() { e.flight = prev })

	f := e.flight
	return &f, nil
}

func (r *flightRepo) Delete(ctx context.Context, id int64) error {
	e, err := r.entry(id)
	if err != nil {
		return err
	}
	defer lockForWrite(ctx, e)()
	if e.deleted {
		return domain.ErrFlightNotFound
	}
	if e.flight.BookedSeats() > 0 || r.s.hasBookings(id) {
		return domain.ErrFlightHasBookings
	}

	e.deleted = true
	r.s.flightsMu.Lock()
	delete(r.s.flights, id)
	delete(r.s.numbers, e.flight.FlightNumber)
	r.s.flightsMu.Unlock()

	record(ctx, func() {
		e.deleted = false
		r.s.flightsMu.Lock()
		r.s.flights[id] = e
		r.s.numbers[e.flight.FlightNumber] = id
		r.s.flightsMu.Unlock()
	})
	return nil
}

// TryReserve checks and decrements under the flight's own lock. Inside a
// transaction a contender waits until the reservation commits or rolls back.
func (r *flightRepo) TryReserve(ctx context.Context, flightID int64, seats int) (*domain.Flight, error) {
	e, err := r.entry(flightID)
	if err != nil {
		return nil, err
	}
	defer lockForWrite(ctx, e)()

	switch {
	case e.deleted:
		return nil, domain.ErrFlightNotFound
	case !e.flight.Bookable():
		return nil, domain.ErrFlightNotBookable
	case e.flight.AvailableSeats < seats:
		return nil, fmt.Errorf("%w: requested %d, available %d", domain.ErrInsufficientInventory, seats, e.flight.AvailableSeats)
	}

	e.flight.AvailableSeats -= seats
	e.flight.UpdatedAt = time.Now()
	record(ctx, func() { e.flight.AvailableSeats += seats })

	f := e.flight
	return &f, nil
}

func (r *flightRepo) Release(ctx context.Context, flightID int64, seats int) error {
	e, err := r.entry(flightID)
	if err != nil {
		return err
	}
	defer lockForWrite(ctx, e)()
	if e.deleted {
		return domain.ErrFlightNotFound
	}
	if e.flight.AvailableSeats+seats > e.flight.TotalSeats {
		return domain.ErrInventoryOverflow
	}

	e.flight.AvailableSeats += seats
	e.flight.UpdatedAt = time.Now()
	record(ctx, func() { e.flight.AvailableSeats -= seats })
	return nil
}
