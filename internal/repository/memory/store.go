// Package memory keeps flights, bookings and outbox events in process memory.
// Seat counts are guarded per flight, so reservations on different flights never
// contend. A transaction keeps every flight it writes locked until it commits or
// rolls back, and keeps an undo journal that is replayed when the unit fails.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Khaja-0531/flight-finders/internal/domain"
	"github.com/Khaja-0531/flight-finders/internal/repository"
)

type flightEntry struct {
	mu      sync.Mutex
	flight  domain.Flight
	deleted bool
}

type Store struct {
	flightsMu    sync.RWMutex
	flights      map[int64]*flightEntry
	numbers      map[string]int64
	lastFlightID int64

	bookingsMu    sync.RWMutex
	bookings      map[int64]*domain.Booking
	references    map[string]int64
	lastBookingID int64

	outboxMu  sync.Mutex
	outbox    []*domain.OutboxEvent
	claimedAt map[string]time.Time

	now func() time.Time

	usersMu sync.RWMutex
	users   map[int64]string
}

func NewStore() *Store {
	return &Store{
		flights:    make(map[int64]*flightEntry),
		numbers:    make(map[string]int64),
		bookings:   make(map[int64]*domain.Booking),
		references: make(map[string]int64),
		users:      make(map[int64]string),
		claimedAt:  make(map[string]time.Time),
		now:        time.Now,
	}
}

func (s *Store) Flights() repository.FlightRepository   { return &flightRepo{s: s} }
func (s *Store) Bookings() repository.BookingRepository { return &bookingRepo{s: s} }
func (s *Store) Outbox() repository.OutboxRepository    { return &outboxRepo{s: s} }
func (s *Store) Stats() repository.StatsRepository      { return &statsRepo{s: s} }

// AddUser registers an account known to the upstream user directory.
func (s *Store) AddUser(id int64, role string) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	s.users[id] = role
}

type journalKey struct{}

type journal struct {
	mu   sync.Mutex
	undo []func()
	held map[*flightEntry]struct{}
}

// finish reverts the recorded changes when the unit failed, then lets go of the
// flights it locked. Undo steps run while those locks are still held.
func (j *journal) finish(failed bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if failed {
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
	}
	j.undo = nil
	for e := range j.held {
		e.mu.Unlock()
	}
	j.held = nil
}

func journalFrom(ctx context.Context) (*journal, bool) {
	j, ok := ctx.Value(journalKey{}).(*journal)
	return j, ok
}

func (j *journal) holds(e *flightEntry) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, ok := j.held[e]
	return ok
}

// lockForWrite locks e for a change made under ctx. Inside a transaction the lock
// stays held until the transaction ends and the returned unlock does nothing.
func lockForWrite(ctx context.Context, e *flightEntry) (unlock func()) {
	j, ok := journalFrom(ctx)
	if !ok {
		e.mu.Lock()
		return e.mu.Unlock
	}
	if !j.holds(e) {
		e.mu.Lock()
		j.mu.Lock()
		j.held[e] = struct{}{}
		j.mu.Unlock()
	}
	return func() {}
}

// lockForRead locks e unless the transaction in ctx already holds it.
func lockForRead(ctx context.Context, e *flightEntry) (unlock func()) {
	if j, ok := journalFrom(ctx); ok && j.holds(e) {
		return func() {}
	}
	e.mu.Lock()
	return e.mu.Unlock
}

// record registers how to revert a change made under ctx. Outside a transaction
// the change is final and nothing is recorded.
func record(ctx context.Context, undo func()) {
	j, ok := journalFrom(ctx)
	if !ok {
		return
	}
	j.mu.Lock()
	j.undo = append(j.undo, undo)
	j.mu.Unlock()
}

// WithinTransaction runs fn and reverts every recorded change if it fails or panics.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := journalFrom(ctx); ok {
		return fn(ctx)
	}

	j := &journal{held: make(map[*flightEntry]struct{})}
	defer func() {
		if p := recover(); p != nil {
			j.finish(true)
			panic(p)
		}
		j.finish(err != nil)
	}()
	return fn(context.WithValue(ctx, journalKey{}, j))
}

var _ repository.Transactor = (*Store)(nil)
