package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/Khaja-0531/flight-finders/internal/cache"
	"github.com/Khaja-0531/flight-finders/internal/domain"
	"github.com/Khaja-0531/flight-finders/internal/service/booking"
	"github.com/Khaja-0531/flight-finders/internal/service/flights"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
)

type MockFlightUseCase struct {
	mock.Mock
}

func (m *MockFlightUseCase) List(ctx context.Context) ([]domain.Flight, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Flight), args.Error(1)
}

func (m *MockFlightUseCase) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightUseCase) Search(ctx context.Context, criteria domain.SearchCriteria) ([]domain.Flight, error) {
	args := m.Called(ctx, criteria)
	return args.Get(0).([]domain.Flight), args.Error(1)
}

func (m *MockFlightUseCase) Create(ctx context.Context, input flights.CreateFlightInput) (*domain.Flight, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightUseCase) Update(ctx context.Context, id int64, upd domain.FlightUpdate) (*domain.Flight, error) {
	args := m.Called(ctx, id, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightUseCase) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockBookingUseCase struct {
	mock.Mock
}

func (m *MockBookingUseCase) CreateBooking(ctx context.Context, input booking.CreateBookingInput) (*domain.Booking, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) CancelBooking(ctx context.Context, input booking.CancelBookingInput) (*domain.Booking, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) GetBooking(ctx context.Context, travelerID, bookingID int64) (*domain.Booking, error) {
	args := m.Called(ctx, travelerID, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) ListBookings(ctx context.Context, travelerID int64) ([]domain.Booking, error) {
	args := m.Called(ctx, travelerID)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) ListAll(ctx context.Context) ([]domain.Booking, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) CompleteDepartedBookings(ctx context.Context) ([]domain.Booking, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

type MockStatsUseCase struct {
	mock.Mock
}

func (m *MockStatsUseCase) ComputeStatistics(ctx context.Context) (domain.Statistics, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.Statistics), args.Error(1)
}

// memoryIdempotency mimics the redis store semantics in process.
type memoryIdempotency struct {
	mu      sync.Mutex
	pending map[string]bool
	stored  map[string]cache.StoredResponse
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{pending: map[string]bool{}, stored: map[string]cache.StoredResponse{}}
}

func (s *memoryIdempotency) ReserveKey(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, done := s.stored[key]; done || s.pending[key] {
		return false, nil
	}
	s.pending[key] = true
	return true, nil
}

func (s *memoryIdempotency) LoadResponse(_ context.Context, key string) (*cache.StoredResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[key] {
		return nil, cache.ErrRequestInProgress
	}
	if resp, ok := s.stored[key]; ok {
		return &resp, nil
	}
	return nil, nil
}

func (s *memoryIdempotency) SaveResponse(_ context.Context, key string, resp cache.StoredResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, key)
	resp.Body = append([]byte(nil), resp.Body...)
	s.stored[key] = resp
	return nil
}

func (s *memoryIdempotency) ReleaseKey(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, key)
	delete(s.stored, key)
	return nil
}

type testAPI struct {
	router   *gin.Engine
	flights  *MockFlightUseCase
	bookings *MockBookingUseCase
	stats    *MockStatsUseCase
}

func newTestAPI(opts RouterOptions) *testAPI {
	gin.SetMode(gin.TestMode)
	a := &testAPI{
		flights:  &MockFlightUseCase{},
		bookings: &MockBookingUseCase{},
		stats:    &MockStatsUseCase{},
	}
	a.router = NewRouter(Handlers{
		Flights:  NewFlightHandler(a.flights),
		Bookings: NewBookingHandler(a.bookings),
		Admin:    NewAdminHandler(a.stats, a.bookings),
	}, opts)
	return a
}

type caller struct {
	id      int64
	role    string
	headers map[string]string
}

func (a *testAPI) do(t *testing.T, who caller, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if who.id != 0 {
		req.Header.Set(HeaderUserID, strconv.FormatInt(who.id, 10))
	}
	if who.role != "" {
		req.Header.Set(HeaderUserRole, who.role)
	}
	for k, v := range who.headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

var (
	traveler = caller{id: 9}
	admin    = caller{id: 1, role: RoleAdmin}
	operator = caller{id: 2, role: RoleFlightOperator}
)
