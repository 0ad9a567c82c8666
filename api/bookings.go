package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/Khaja-0531/flight-finders/internal/domain"
	"github.com/Khaja-0531/flight-finders/internal/service/booking"
	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

type createBookingRequest struct {
	FlightID   int64              `json:"flight_id"`
	Passengers []domain.Passenger `json:"passengers"`
}

type cancelBookingRequest struct {
	Reason *string `json:"reason"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

// Register mounts the traveler booking routes. The group must already run
// Identity; idempotency wraps booking creation only.
func (h *BookingHandler) Register(router *gin.RouterGroup, idempotency ...gin.HandlerFunc) {
	router.POST("", append(idempotency, h.create)...)
	router.GET("", h.list)
	router.GET("/:id", h.get)
	router.PUT("/:id/cancel", h.cancel)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err.Error())
		return
	}

	b, err := h.service.CreateBooking(c.Request.Context(), booking.CreateBookingInput{
		TravelerID: userID(c),
		FlightID:   req.FlightID,
		Passengers: req.Passengers,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *BookingHandler) list(c *gin.Context) {
	list, err := h.service.ListBookings(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *BookingHandler) get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b, err := h.service.GetBooking(c.Request.Context(), userID(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// cancel accepts an optional JSON body with a reason.
func (h *BookingHandler) cancel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req cancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "body", err.Error())
		return
	}

	b, err := h.service.CancelBooking(c.Request.Context(), booking.CancelBookingInput{
		TravelerID: userID(c),
		BookingID:  id,
		Reason:     req.Reason,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}
