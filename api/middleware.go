package api

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/Khaja-0531/flight-finders/internal/cache"
	"github.com/Khaja-0531/flight-finders/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RoleUser           = "user"
	RoleAdmin          = "admin"
	RoleFlightOperator = "flight_operator"

	HeaderUserID         = "X-User-ID"
	HeaderUserRole       = "X-User-Role"
	HeaderRequestID      = "X-Request-ID"
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotency-Replayed"

	ctxUserID   = "user_id"
	ctxUserRole = "user_role"
)

// Identity reads the caller set by the upstream gateway. Requests without a
// valid user id are rejected.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderUserID)
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{
				Error: "missing or invalid " + HeaderUserID, Code: "unauthenticated",
			})
			return
		}
		role := c.GetHeader(HeaderUserRole)
		if role == "" {
			role = RoleUser
		}
		c.Set(ctxUserID, id)
		c.Set(ctxUserRole, role)
		c.Next()
	}
}

// UserDirectory learns about callers as they show up.
type UserDirectory interface {
	AddUser(id int64, role string)
}

// RecordUsers registers every identified caller with users. It must run after Identity.
func RecordUsers(users UserDirectory) gin.HandlerFunc {
	return func(c *gin.Context) {
		users.AddUser(userID(c), c.GetString(ctxUserRole))
		c.Next()
	}
}

// RequireRole lets through callers whose role is one of roles. It must run after Identity.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !slices.Contains(roles, c.GetString(ctxUserRole)) {
			c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{
				Error: "role not allowed", Code: "forbidden",
			})
			return
		}
		c.Next()
	}
}

func userID(c *gin.Context) int64 {
	return c.GetInt64(ctxUserID)
}

// RequestLogger assigns a request id and emits one access log record and the
// request metrics per request.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(HeaderRequestID, reqID)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		latency := time.Since(start)
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(latency.Seconds())

		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.LogAttrs(c.Request.Context(), level, "http request",
			slog.String("request_id", reqID),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Duration("latency", latency),
			slog.Int64("user_id", c.GetInt64(ctxUserID)),
		)
	}
}

// IdempotencyStore keeps the first response given for an idempotency key.
type IdempotencyStore interface {
	ReserveKey(ctx context.Context, key string) (bool, error)
	LoadResponse(ctx context.Context, key string) (*cache.StoredResponse, error)
	SaveResponse(ctx context.Context, key string, resp cache.StoredResponse) error
	ReleaseKey(ctx context.Context, key string) error
}

type capturingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *capturingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored response when a request repeats an
// Idempotency-Key the same user already used. A repeat that arrives while the
// first request is still running gets 409. Server errors release the key so the
// client may retry. When the store is unavailable requests pass through.
func Idempotency(store IdempotencyStore, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderIdempotencyKey)
		if raw == "" {
			c.Next()
			return
		}
		if len(raw) > 128 {
			badRequest(c, HeaderIdempotencyKey, "must be at most 128 characters")
			return
		}
		ctx := c.Request.Context()
		key := strconv.FormatInt(userID(c), 10) + ":" + raw

		stored, err := store.LoadResponse(ctx, key)
		switch {
		case errors.Is(err, cache.ErrRequestInProgress):
			c.AbortWithStatusJSON(http.StatusConflict, errorResponse{Error: err.Error(), Code: "request_in_progress"})
			return
		case err != nil:
			logger.WarnContext(ctx, "idempotency store unavailable", slog.Any("error", err))
			c.Next()
			return
		case stored != nil:
			c.Header(HeaderReplayed, "true")
			c.Data(stored.Status, stored.ContentType, stored.Body)
			c.Abort()
			return
		}

		reserved, err := store.ReserveKey(ctx, key)
		if err != nil {
			logger.WarnContext(ctx, "idempotency store unavailable", slog.Any("error", err))
			c.Next()
			return
		}
		if !reserved {
			c.AbortWithStatusJSON(http.StatusConflict, errorResponse{
				Error: cache.ErrRequestInProgress.Error(), Code: "request_in_progress",
			})
			return
		}

		w := &capturingWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		// The outcome is recorded even when the client went away mid-request.
		ctx = context.WithoutCancel(ctx)
		status := w.Status()
		if status >= http.StatusInternalServerError {
			if err := store.ReleaseKey(ctx, key); err != nil {
				logger.WarnContext(ctx, "failed to release idempotency key", slog.Any("error", err))
			}
			return
		}
		err = store.SaveResponse(ctx, key, cache.StoredResponse{
			Status:      status,
			ContentType: w.Header().Get("Content-Type"),
			Body:        w.body.Bytes(),
		})
		if err != nil {
			logger.WarnContext(ctx, "failed to store idempotent response", slog.Any("error", err))
		}
	}
}
