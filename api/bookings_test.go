package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Khaja-0531/flight-finders/internal/domain"
	"github.com/Khaja-0531/flight-finders/internal/service/booking"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func sampleBooking() *domain.Booking {
	return &domain.Booking{
		ID: 5, Reference: "BK12345678ABCD", TravelerID: traveler.id, FlightID: 1,
		Passengers: []domain.Passenger{{
			FirstName: "Ada", LastName: "Lovelace",
			DateOfBirth: time.Date(1990, 12, 10, 0, 0, 0, 0, time.UTC),
			Gender:      domain.GenderFemale,
		}},
		SeatCount: 1, TotalAmountCents: 12000,
		Status: domain.BookingStatusConfirmed, PaymentStatus: domain.PaymentStatusPaid,
		CreatedAt: time.Date(2030, 4, 1, 9, 0, 0, 0, time.UTC),
	}
}

const createBookingBody = `{"flight_id":1,"passengers":[{"first_name":"Ada","last_name":"Lovelace","date_of_birth":"1990-12-10T00:00:00Z","gender":"female"}]}`

func TestBookingHandler_list(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/bookings", nil)
	c.Set(ctxUserID, int64(9))

	mockService.On("ListBookings", c.Request.Context(), int64(9)).Return([]domain.Booking{*sampleBooking()}, nil)

	handler.list(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestBookingHandler_create(t *testing.T) {
	a := newTestAPI(RouterOptions{})
	a.bookings.On("CreateBooking", mock.Anything, mock.MatchedBy(func(in booking.CreateBookingInput) bool {
		return in.TravelerID == traveler.id && in.FlightID == 1 && len(in.Passengers) == 1
	})).Return(sampleBooking(), nil)

	w := a.do(t, traveler, http.MethodPost, "/api/v1/bookings", createBookingBody)

	require.Equal(t, http.StatusCreated, w.Code)
	got := decode[domain.Booking](t, w)
	assert.Equal(t, "BK12345678ABCD", got.Reference)
	assert.Equal(t, domain.BookingStatusConfirmed, got.Status)
	a.bookings.AssertExpectations(t)
}

func TestBookingHandler_createErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"sold out", domain.ErrInsufficientInventory, http.StatusConflict, "insufficient_inventory"},
		{"not bookable", domain.ErrFlightNotBookable, http.StatusConflict, "flight_not_bookable"},
		{"unknown flight", domain.ErrFlightNotFound, http.StatusNotFound, "flight_not_found"},
		{"bad passenger", domain.NewValidationError("passengers[0].gender", "is invalid"), http.StatusBadRequest, "validation_failed"},
		{"store failure", assert.AnError, http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAPI(RouterOptions{})
			a.bookings.On("CreateBooking", mock.Anything, mock.Anything).Return(nil, tt.err)

			w := a.do(t, traveler, http.MethodPost, "/api/v1/bookings", createBookingBody)

			assert.Equal(t, tt.status, w.Code)
			resp := decode[errorResponse](t, w)
			assert.Equal(t, tt.code, resp.Code)
			if tt.status == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", resp.Error)
			}
		})
	}
}

func TestBookingHandler_createMalformedBody(t *testing.T) {
	a := newTestAPI(RouterOptions{})

	w := a.do(t, traveler, http.MethodPost, "/api/v1/bookings", `{"flight_id":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	a.bookings.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
}

func TestBookingHandler_get(t *testing.T) {
	a := newTestAPI(RouterOptions{})
	a.bookings.On("GetBooking", mock.Anything, traveler.id, int64(5)).Return(sampleBooking(), nil)
	a.bookings.On("GetBooking", mock.Anything, int64(77), int64(5)).Return(nil, domain.ErrBookingNotFound)

	w := a.do(t, traveler, http.MethodGet, "/api/v1/bookings/5", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, caller{id: 77}, http.MethodGet, "/api/v1/bookings/5", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBookingHandler_cancel(t *testing.T) {
	cancelled := sampleBooking()
	cancelled.Status = domain.BookingStatusCancelled
	cancelled.PaymentStatus = domain.PaymentStatusRefunded

	t.Run("with reason", func(t *testing.T) {
		a := newTestAPI(RouterOptions{})
		a.bookings.On("CancelBooking", mock.Anything, mock.MatchedBy(func(in booking.CancelBookingInput) bool {
			return in.BookingID == 5 && in.TravelerID == traveler.id && in.Reason != nil && *in.Reason == "plans changed"
		})).Return(cancelled, nil)

		w := a.do(t, traveler, http.MethodPut, "/api/v1/bookings/5/cancel", `{"reason":"plans changed"}`)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, domain.BookingStatusCancelled, decode[domain.Booking](t, w).Status)
		a.bookings.AssertExpectations(t)
	})

	t.Run("without body", func(t *testing.T) {
		a := newTestAPI(RouterOptions{})
		a.bookings.On("CancelBooking", mock.Anything, mock.MatchedBy(func(in booking.CancelBookingInput) bool {
			return in.Reason == nil
		})).Return(cancelled, nil)

		w := a.do(t, traveler, http.MethodPut, "/api/v1/bookings/5/cancel", nil)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("already cancelled", func(t *testing.T) {
		a := newTestAPI(RouterOptions{})
		a.bookings.On("CancelBooking", mock.Anything, mock.Anything).Return(nil, domain.ErrAlreadyCancelled)

		w := a.do(t, traveler, http.MethodPut, "/api/v1/bookings/5/cancel", nil)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "already_cancelled", decode[errorResponse](t, w).Code)
	})

	t.Run("too close to departure", func(t *testing.T) {
		a := newTestAPI(RouterOptions{})
		a.bookings.On("CancelBooking", mock.Anything, mock.Anything).Return(nil, domain.ErrCancellationClosed)

		w := a.do(t, traveler, http.MethodPut, "/api/v1/bookings/5/cancel", nil)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "cancellation_closed", decode[errorResponse](t, w).Code)
	})
}

func TestAdminHandler(t *testing.T) {
	a := newTestAPI(RouterOptions{})
	a.stats.On("ComputeStatistics", mock.Anything).Return(domain.Statistics{
		UserCount: 2, FlightCount: 1, BookingCount: 3, TotalRevenueCents: 30000,
	}, nil)
	a.bookings.On("ListAll", mock.Anything).Return([]domain.Booking{*sampleBooking()}, nil)

	w := a.do(t, admin, http.MethodGet, "/api/v1/admin/statistics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[domain.Statistics](t, w)
	assert.Equal(t, int64(30000), st.TotalRevenueCents)
	assert.Equal(t, int64(2), st.UserCount)

	w = a.do(t, admin, http.MethodGet, "/api/v1/admin/bookings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.Booking](t, w), 1)

	for _, who := range []caller{traveler, operator} {
		w = a.do(t, who, http.MethodGet, "/api/v1/admin/statistics", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	}
}
