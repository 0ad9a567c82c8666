package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Flights  *FlightHandler
	Bookings *BookingHandler
	Admin    *AdminHandler
}

type RouterOptions struct {
	Logger *slog.Logger
	// Idempotency wraps booking creation when set.
	Idempotency IdempotencyStore
	Docs        bool
	// Health reports readiness of the backing stores; nil means always healthy.
	Health func(ctx context.Context) error
	// Users is told about every identified caller when set.
	Users UserDirectory
}

func NewRouter(h Handlers, opts RouterOptions) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger))

	r.GET("/health", func(c *gin.Context) {
		if opts.Health != nil {
			if err := opts.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if opts.Docs {
		RegisterDocs(r)
	}

	v1 := r.Group("/api/v1", Identity())
	if opts.Users != nil {
		v1.Use(RecordUsers(opts.Users))
	}
	h.Flights.Register(v1.Group("/flights"))

	var idempotency []gin.HandlerFunc
	if opts.Idempotency != nil {
		idempotency = append(idempotency, Idempotency(opts.Idempotency, logger))
	}
	h.Bookings.Register(v1.Group("/bookings"), idempotency...)
	h.Admin.Register(v1.Group("/admin"))

	return r
}
