package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Khaja-0531/flight-finders/internal/domain"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

// statusFor maps domain errors to an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, domain.ErrFlightNotFound):
		return http.StatusNotFound, "flight_not_found"
	case errors.Is(err, domain.ErrBookingNotFound):
		return http.StatusNotFound, "booking_not_found"
	case errors.Is(err, domain.ErrFlightNotBookable):
		return http.StatusConflict, "flight_not_bookable"
	case errors.Is(err, domain.ErrInsufficientInventory):
		return http.StatusConflict, "insufficient_inventory"
	case errors.Is(err, domain.ErrAlreadyCancelled):
		return http.StatusConflict, "already_cancelled"
	case errors.Is(err, domain.ErrCancellationClosed):
		return http.StatusConflict, "cancellation_closed"
	case errors.Is(err, domain.ErrDuplicateFlightNumber):
		return http.StatusConflict, "duplicate_flight_number"
	case errors.Is(err, domain.ErrCapacityBelowBooked):
		return http.StatusConflict, "capacity_below_booked"
	case errors.Is(err, domain.ErrFlightHasBookings):
		return http.StatusConflict, "flight_has_bookings"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	resp := errorResponse{Error: err.Error(), Code: code}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}
	if status == http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed",
			slog.String("path", c.FullPath()), slog.Any("error", err))
		resp.Error = "internal server error"
	}
	c.AbortWithStatusJSON(status, resp)
}

func badRequest(c *gin.Context, field, message string) {
	writeError(c, domain.NewValidationError(field, message))
}
