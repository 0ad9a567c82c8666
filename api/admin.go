package api

import (
	"net/http"

	"github.com/Khaja-0531/flight-finders/internal/service/booking"
	"github.com/Khaja-0531/flight-finders/internal/service/stats"
	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	stats    stats.StatsUseCase
	bookings booking.BookingUseCase
}

func NewAdminHandler(stats stats.StatsUseCase, bookings booking.BookingUseCase) *AdminHandler {
	return &AdminHandler{stats: stats, bookings: bookings}
}

func (h *AdminHandler) Register(router *gin.RouterGroup) {
	router.Use(RequireRole(RoleAdmin))
	router.GET("/statistics", h.statistics)
	router.GET("/bookings", h.allBookings)
}

func (h *AdminHandler) statistics(c *gin.Context) {
	st, err := h.stats.ComputeStatistics(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *AdminHandler) allBookings(c *gin.Context) {
	list, err := h.bookings.ListAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
