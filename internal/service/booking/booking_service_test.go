package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Khaja-0531/flight-finders/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mocks

type passthroughTx struct{}

func (passthroughTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) GetForTraveler(ctx context.Context, id, travelerID int64) (*domain.Booking, error) {
	args := m.Called(ctx, id, travelerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) ListByTraveler(ctx context.Context, travelerID int64) ([]domain.Booking, error) {
	args := m.Called(ctx, travelerID)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) List(ctx context.Context) ([]domain.Booking, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) MarkCancelled(ctx context.Context, id, travelerID int64, reason *string, at time.Time) (*domain.Booking, error) {
	args := m.Called(ctx, id, travelerID, reason, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) CompleteDeparted(ctx context.Context, now time.Time) ([]domain.Booking, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

type MockFlightRepository struct {
	mock.Mock
}

func (m *MockFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) Create(ctx context.Context, flight *domain.Flight) error {
	args := m.Called(ctx, flight)
	return args.Error(0)
}

func (m *MockFlightRepository) Update(ctx context.Context, id int64, upd domain.FlightUpdate) (*domain.Flight, error) {
	args := m.Called(ctx, id, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockFlightRepository) TryReserve(ctx context.Context, flightID int64, seats int) (*domain.Flight, error) {
	args := m.Called(ctx, flightID, seats)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) Release(ctx context.Context, flightID int64, seats int) error {
	args := m.Called(ctx, flightID, seats)
	return args.Error(0)
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Create(ctx context.Context, event *domain.OutboxEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockOutboxRepository) FetchBatch(ctx context.Context, limit int, lease time.Duration) ([]domain.OutboxEvent, error) {
	args := m.Called(ctx, limit, lease)
	return args.Get(0).([]domain.OutboxEvent), args.Error(1)
}

func (m *MockOutboxRepository) MarkProcessed(ctx context.Context, ids []string) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, ids []string) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) InvalidateFlights(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Helpers

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type mocks struct {
	bookings *MockBookingRepository
	flights  *MockFlightRepository
	outbox   *MockOutboxRepository
	cache    *MockCache
}

func newTestService(refs ...string) (*BookingService, *mocks) {
	m := &mocks{
		bookings: &MockBookingRepository{},
		flights:  &MockFlightRepository{},
		outbox:   &MockOutboxRepository{},
		cache:    &MockCache{},
	}
	next := 0
	refFn := func(time.Time) string {
		if next < len(refs) {
			next++
			return refs[next-1]
		}
		return NewReference(fixedNow)
	}
	svc := NewBookingService(passthroughTx{}, m.bookings, m.flights, m.outbox,
		WithCache(m.cache),
		WithClock(func() time.Time { return fixedNow }),
		WithReferenceFunc(refFn, 3),
	)
	return svc, m
}

func passengers(n int) []domain.Passenger {
	out := make([]domain.Passenger, n)
	for i := range out {
		out[i] = domain.Passenger{
			FirstName:   fmt.Sprintf("Ivan%d", i),
			LastName:    "Petrov",
			DateOfBirth: time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC),
			Gender:      domain.GenderMale,
		}
	}
	return out
}

func scheduledFlight(id int64, price int64, departIn time.Duration) *domain.Flight {
	return &domain.Flight{
		ID:             id,
		FlightNumber:   "SU100",
		DepartureTime:  fixedNow.Add(departIn),
		ArrivalTime:    fixedNow.Add(departIn + 2*time.Hour),
		PriceCents:     price,
		TotalSeats:     100,
		AvailableSeats: 98,
		Status:         domain.FlightStatusScheduled,
	}
}

// CreateBooking

func TestBookingService_CreateBooking_Success(t *testing.T) {
	svc, m := newTestService("BK00000001AAAA")
	ctx := context.Background()

	m.flights.On("TryReserve", ctx, int64(4), 2).Return(scheduledFlight(4, 15000, 72*time.Hour), nil).Once()
	m.bookings.On("Create", ctx, mock.AnythingOfType("*domain.Booking")).
		Run(func(args mock.Arguments) { args.Get(1).(*domain.Booking).ID = 77 }).
		Return(nil).Once()
	m.outbox.On("Create", ctx, mock.MatchedBy(func(e *domain.OutboxEvent) bool {
		var ev domain.BookingEvent
		return e.Type == domain.EventBookingCreated &&
			e.AggregateID == 77 &&
			e.Status == domain.OutboxStatusNew &&
			json.Unmarshal(e.Payload, &ev) == nil &&
			ev.Reference == "BK00000001AAAA" && ev.Seats == 2
	})).Return(nil).Once()
	m.cache.On("InvalidateFlights", ctx).Return(nil).Once()

	b, err := svc.CreateBooking(ctx, CreateBookingInput{TravelerID: 9, FlightID: 4, Passengers: passengers(2)})

	require.NoError(t, err)
	assert.Equal(t, int64(77), b.ID)
	assert.Equal(t, "BK00000001AAAA", b.Reference)
	assert.Equal(t, int64(9), b.TravelerID)
	assert.Equal(t, 2, b.SeatCount)
	assert.Equal(t, int64(30000), b.TotalAmountCents)
	assert.Equal(t, domain.BookingStatusConfirmed, b.Status)
	assert.Equal(t, domain.PaymentStatusPaid, b.PaymentStatus)
	assert.Equal(t, fixedNow, b.CreatedAt)

	m.flights.AssertExpectations(t)
	m.bookings.AssertExpectations(t)
	m.outbox.AssertExpectations(t)
	m.cache.AssertExpectations(t)
}

func TestBookingService_CreateBooking_ValidationBeforeAnyMutation(t *testing.T) {
	tests := []struct {
		name  string
		input CreateBookingInput
		field string
	}{
		{"no passengers", CreateBookingInput{TravelerID: 1, FlightID: 1}, "passengers"},
		{"missing traveler", CreateBookingInput{FlightID: 1, Passengers: passengers(1)}, "traveler_id"},
		{"missing flight", CreateBookingInput{TravelerID: 1, Passengers: passengers(1)}, "flight_id"},
		{"bad gender", CreateBookingInput{TravelerID: 1, FlightID: 1, Passengers: []domain.Passenger{{
			FirstName: "A", LastName: "B", DateOfBirth: fixedNow.AddDate(-20, 0, 0), Gender: "unknown",
		}}}, "passengers.gender"},
		{"born tomorrow", CreateBookingInput{TravelerID: 1, FlightID: 1, Passengers: []domain.Passenger{{
			FirstName: "A", LastName: "B", DateOfBirth: fixedNow.AddDate(0, 0, 1), Gender: domain.GenderFemale,
		}}}, "passengers.date_of_birth"},
		{"blank name", CreateBookingInput{TravelerID: 1, FlightID: 1, Passengers: []domain.Passenger{{
			FirstName: "   ", LastName: "B", DateOfBirth: fixedNow.AddDate(-20, 0, 0), Gender: domain.GenderFemale,
		}}}, "passengers.first_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newTestService()

			b, err := svc.CreateBooking(context.Background(), tt.input)

			assert.Nil(t, b)
			require.ErrorIs(t, err, domain.ErrValidation)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			m.flights.AssertNotCalled(t, "TryReserve", mock.Anything, mock.Anything, mock.Anything)
			m.bookings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestBookingService_CreateBooking_InventoryErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"not found", domain.ErrFlightNotFound},
		{"not bookable", domain.ErrFlightNotBookable},
		{"insufficient", fmt.Errorf("%w: requested 3, available 1", domain.ErrInsufficientInventory)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newTestService()
			ctx := context.Background()
			m.flights.On("TryReserve", ctx, int64(4), 3).Return(nil, tt.err).Once()

			b, err := svc.CreateBooking(ctx, CreateBookingInput{TravelerID: 1, FlightID: 4, Passengers: passengers(3)})

			assert.Nil(t, b)
			assert.ErrorIs(t, err, tt.err)
			m.bookings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			m.outbox.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			m.cache.AssertNotCalled(t, "InvalidateFlights", mock.Anything)
		})
	}
}

func TestBookingService_CreateBooking_RetriesReferenceCollision(t *testing.T) {
	svc, m := newTestService("BKTAKEN", "BKFREE")
	ctx := context.Background()

	m.flights.On("TryReserve", ctx, int64(4), 1).Return(scheduledFlight(4, 100, 72*time.Hour), nil).Once()
	m.bookings.On("Create", ctx, mock.MatchedBy(func(b *domain.Booking) bool { return b.Reference == "BKTAKEN" })).
		Return(domain.ErrDuplicateReference).Once()
	m.bookings.On("Create", ctx, mock.MatchedBy(func(b *domain.Booking) bool { return b.Reference == "BKFREE" })).
		Return(nil).Once()
	m.outbox.On("Create", ctx, mock.Anything).Return(nil).Once()
	m.cache.On("InvalidateFlights", ctx).Return(nil).Once()

	b, err := svc.CreateBooking(ctx, CreateBookingInput{TravelerID: 1, FlightID: 4, Passengers: passengers(1)})

	require.NoError(t, err)
	assert.Equal(t, "BKFREE", b.Reference)
	m.bookings.AssertNumberOfCalls(t, "Create", 2)
}

func TestBookingService_CreateBooking_ReferenceAttemptsExhausted(t *testing.T) {
	svc, m := newTestService("BKX", "BKX", "BKX")
	ctx := context.Background()

	m.flights.On("TryReserve", ctx, int64(4), 1).Return(scheduledFlight(4, 100, 72*time.Hour), nil).Once()
	m.bookings.On("Create", ctx, mock.Anything).Return(domain.ErrDuplicateReference).Times(3)

	b, err := svc.CreateBooking(ctx, CreateBookingInput{TravelerID: 1, FlightID: 4, Passengers: passengers(1)})

	assert.Nil(t, b)
	assert.ErrorIs(t, err, domain.ErrDuplicateReference)
	m.outbox.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestBookingService_CreateBooking_OutboxFailureFailsBooking(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()
	dbErr := errors.New("connection reset")

	m.flights.On("TryReserve", ctx, int64(4), 1).Return(scheduledFlight(4, 100, 72*time.Hour), nil).Once()
	m.bookings.On("Create", ctx, mock.Anything).Return(nil).Once()
	m.outbox.On("Create", ctx, mock.Anything).Return(dbErr).Once()

	b, err := svc.CreateBooking(ctx, CreateBookingInput{TravelerID: 1, FlightID: 4, Passengers: passengers(1)})

	assert.Nil(t, b)
	assert.ErrorIs(t, err, dbErr)
	m.cache.AssertNotCalled(t, "InvalidateFlights", mock.Anything)
}

func TestBookingService_CreateBooking_CacheErrorIgnored(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	m.flights.On("TryReserve", ctx, int64(4), 1).Return(scheduledFlight(4, 100, 72*time.Hour), nil).Once()
	m.bookings.On("Create", ctx, mock.Anything).Return(nil).Once()
	m.outbox.On("Create", ctx, mock.Anything).Return(nil).Once()
	m.cache.On("InvalidateFlights", ctx).Return(errors.New("redis down")).Once()

	b, err := svc.CreateBooking(ctx, CreateBookingInput{TravelerID: 1, FlightID: 4, Passengers: passengers(1)})

	require.NoError(t, err)
	assert.NotNil(t, b)
}

// CancelBooking

func confirmedBooking() *domain.Booking {
	return &domain.Booking{
		ID:               5,
		Reference:        "BK12345678ABCD",
		TravelerID:       9,
		FlightID:         4,
		SeatCount:        2,
		TotalAmountCents: 20000,
		Status:           domain.BookingStatusConfirmed,
		PaymentStatus:    domain.PaymentStatusPaid,
	}
}

func TestBookingService_CancelBooking_Success(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()
	reason := "change of plans"

	cancelled := confirmedBooking()
	cancelled.Status = domain.BookingStatusCancelled
	cancelled.PaymentStatus = domain.PaymentStatusRefunded
	cancelled.CancelledAt = &fixedNow
	cancelled.CancellationReason = &reason

	m.bookings.On("GetForTraveler", ctx, int64(5), int64(9)).Return(confirmedBooking(), nil).Once()
	m.flights.On("GetByID", ctx, int64(4)).Return(scheduledFlight(4, 10000, 48*time.Hour), nil).Once()
	m.bookings.On("MarkCancelled", ctx, int64(5), int64(9), &reason, fixedNow).Return(cancelled, nil).Once()
	m.flights.On("Release", ctx, int64(4), 2).Return(nil).Once()
	m.outbox.On("Create", ctx, mock.MatchedBy(func(e *domain.OutboxEvent) bool {
		return e.Type == domain.EventBookingCancelled && e.AggregateID == 5
	})).Return(nil).Once()
	m.cache.On("InvalidateFlights", ctx).Return(nil).Once()

	b, err := svc.CancelBooking(ctx, CancelBookingInput{TravelerID: 9, BookingID: 5, Reason: &reason})

	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, b.Status)
	assert.Equal(t, domain.PaymentStatusRefunded, b.PaymentStatus)
	m.bookings.AssertExpectations(t)
	m.flights.AssertExpectations(t)
	m.outbox.AssertExpectations(t)
}

func TestBookingService_CancelBooking_NotOwner(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	m.bookings.On("GetForTraveler", ctx, int64(5), int64(10)).Return(nil, domain.ErrBookingNotFound).Once()

	b, err := svc.CancelBooking(ctx, CancelBookingInput{TravelerID: 10, BookingID: 5})

	assert.Nil(t, b)
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)
	m.flights.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
}

func TestBookingService_CancelBooking_AlreadyCancelled(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	current := confirmedBooking()
	current.Status = domain.BookingStatusCancelled
	m.bookings.On("GetForTraveler", ctx, int64(5), int64(9)).Return(current, nil).Once()

	b, err := svc.CancelBooking(ctx, CancelBookingInput{TravelerID: 9, BookingID: 5})

	assert.Nil(t, b)
	assert.ErrorIs(t, err, domain.ErrAlreadyCancelled)
	m.bookings.AssertNotCalled(t, "MarkCancelled", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.flights.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
}

func TestBookingService_CancelBooking_InsideNoticeWindow(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	m.bookings.On("GetForTraveler", ctx, int64(5), int64(9)).Return(confirmedBooking(), nil).Once()
	m.flights.On("GetByID", ctx, int64(4)).Return(scheduledFlight(4, 10000, 3*time.Hour), nil).Once()

	b, err := svc.CancelBooking(ctx, CancelBookingInput{TravelerID: 9, BookingID: 5})

	assert.Nil(t, b)
	assert.ErrorIs(t, err, domain.ErrCancellationClosed)
	m.bookings.AssertNotCalled(t, "MarkCancelled", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBookingService_CancelBooking_ReleaseFailureSurfaces(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	cancelled := confirmedBooking()
	cancelled.Status = domain.BookingStatusCancelled
	m.bookings.On("GetForTraveler", ctx, int64(5), int64(9)).Return(confirmedBooking(), nil).Once()
	m.flights.On("GetByID", ctx, int64(4)).Return(scheduledFlight(4, 10000, 48*time.Hour), nil).Once()
	m.bookings.On("MarkCancelled", ctx, int64(5), int64(9), (*string)(nil), fixedNow).Return(cancelled, nil).Once()
	m.flights.On("Release", ctx, int64(4), 2).Return(domain.ErrInventoryOverflow).Once()

	b, err := svc.CancelBooking(ctx, CancelBookingInput{TravelerID: 9, BookingID: 5})

	assert.Nil(t, b)
	assert.ErrorIs(t, err, domain.ErrInventoryOverflow)
	m.outbox.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	m.cache.AssertNotCalled(t, "InvalidateFlights", mock.Anything)
}

func TestBookingService_CancelBooking_BlankReasonDropped(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()
	blank := ""

	cancelled := confirmedBooking()
	cancelled.Status = domain.BookingStatusCancelled
	m.bookings.On("GetForTraveler", ctx, int64(5), int64(9)).Return(confirmedBooking(), nil).Once()
	m.flights.On("GetByID", ctx, int64(4)).Return(scheduledFlight(4, 10000, 48*time.Hour), nil).Once()
	m.bookings.On("MarkCancelled", ctx, int64(5), int64(9), (*string)(nil), fixedNow).Return(cancelled, nil).Once()
	m.flights.On("Release", ctx, int64(4), 2).Return(nil).Once()
	m.outbox.On("Create", ctx, mock.Anything).Return(nil).Once()
	m.cache.On("InvalidateFlights", ctx).Return(nil).Once()

	_, err := svc.CancelBooking(ctx, CancelBookingInput{TravelerID: 9, BookingID: 5, Reason: &blank})

	require.NoError(t, err)
	m.bookings.AssertExpectations(t)
}

// Reads and sweep

func TestBookingService_ListBookings(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	m.bookings.On("ListByTraveler", ctx, int64(9)).Return([]domain.Booking{*confirmedBooking()}, nil).Once()

	list, err := svc.ListBookings(ctx, 9)

	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestBookingService_CompleteDepartedBookings(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	done := []domain.Booking{*confirmedBooking(), *confirmedBooking()}
	done[0].Status, done[1].Status = domain.BookingStatusCompleted, domain.BookingStatusCompleted
	done[1].ID = 6

	m.bookings.On("CompleteDeparted", ctx, fixedNow).Return(done, nil).Once()
	m.outbox.On("Create", ctx, mock.MatchedBy(func(e *domain.OutboxEvent) bool {
		return e.Type == domain.EventBookingCompleted
	})).Return(nil).Twice()

	completed, err := svc.CompleteDepartedBookings(ctx)

	require.NoError(t, err)
	assert.Len(t, completed, 2)
	m.outbox.AssertExpectations(t)
}

// Reference and policy

func TestNewReference_Format(t *testing.T) {
	at := time.UnixMilli(1712345678901)

	ref := NewReference(at)

	assert.Len(t, ref, 14)
	assert.Equal(t, "BK45678901", ref[:10])
	assert.Regexp(t, `^BK[0-9]{8}[0-9A-Z]{4}$`, ref)
}

func TestCancellationPolicy_Check(t *testing.T) {
	p := CancellationPolicy{MinNotice: 24 * time.Hour}
	b := confirmedBooking()

	assert.NoError(t, p.Check(b, scheduledFlight(1, 0, 25*time.Hour), fixedNow))
	assert.ErrorIs(t, p.Check(b, scheduledFlight(1, 0, 24*time.Hour), fixedNow), domain.ErrCancellationClosed)
	assert.ErrorIs(t, p.Check(b, scheduledFlight(1, 0, -time.Hour), fixedNow), domain.ErrCancellationClosed)
	assert.NoError(t, CancellationPolicy{}.Check(b, scheduledFlight(1, 0, time.Minute), fixedNow))

	completed := confirmedBooking()
	completed.Status = domain.BookingStatusCompleted
	assert.ErrorIs(t, CancellationPolicy{}.Check(completed, scheduledFlight(1, 0, 48*time.Hour), fixedNow), domain.ErrCancellationClosed)
}
