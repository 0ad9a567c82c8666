package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Khaja-0531/flight-finders/config"
	"github.com/Khaja-0531/flight-finders/internal/domain"
	"github.com/redis/go-redis/v9"
)

const idempotencyPending = "pending"

// ErrRequestInProgress is returned by LoadResponse while the first request with
// the same idempotency key has not finished.
var ErrRequestInProgress = errors.New("request with this idempotency key is in progress")

type TTLs struct {
	Flights     time.Duration
	Statistics  time.Duration
	Idempotency time.Duration
}

type RedisCache struct {
	client *redis.Client
	ttl    TTLs
}

func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
}

func NewRedisCache(client *redis.Client, ttl TTLs) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) GetFlights(ctx context.Context) ([]domain.Flight, error) {
	var flights []domain.Flight
	ok, err := c.getJSON(ctx, flightsKey(), &flights)
	if err != nil || !ok {
		return nil, err
	}
	return flights, nil
}

func (c *RedisCache) SetFlights(ctx context.Context, flights []domain.Flight) error {
	return c.setJSON(ctx, flightsKey(), flights, c.ttl.Flights)
}

func (c *RedisCache) InvalidateFlights(ctx context.Context) error {
	return c.client.Del(ctx, flightsKey()).Err()
}

func (c *RedisCache) GetStatistics(ctx context.Context) (*domain.Statistics, error) {
	var st domain.Statistics
	ok, err := c.getJSON(ctx, statisticsKey(), &st)
	if err != nil || !ok {
		return nil, err
	}
	return &st, nil
}

func (c *RedisCache) SetStatistics(ctx context.Context, st domain.Statistics) error {
	if c.ttl.Statistics <= 0 {
		return nil
	}
	return c.setJSON(ctx, statisticsKey(), st, c.ttl.Statistics)
}

// StoredResponse is the first response given for an idempotency key.
type StoredResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// ReserveKey claims key for the caller. It reports false when another request
// already holds or completed it.
func (c *RedisCache) ReserveKey(ctx context.Context, key string) (bool, error) {
	return c.client.SetNX(ctx, idempotencyKey(key), idempotencyPending, c.ttl.Idempotency).Result()
}

// LoadResponse returns the stored response for key, (nil, nil) when the key is
// unknown and ErrRequestInProgress while it is still reserved.
func (c *RedisCache) LoadResponse(ctx context.Context, key string) (*StoredResponse, error) {
	data, err := c.client.Get(ctx, idempotencyKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if string(data) == idempotencyPending {
		return nil, ErrRequestInProgress
	}
	var resp StoredResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode stored response: %w", err)
	}
	return &resp, nil
}

func (c *RedisCache) SaveResponse(ctx context.Context, key string, resp StoredResponse) error {
	return c.setJSON(ctx, idempotencyKey(key), resp, c.ttl.Idempotency)
}

// ReleaseKey forgets key so the request can be retried.
func (c *RedisCache) ReleaseKey(ctx context.Context, key string) error {
	return c.client.Del(ctx, idempotencyKey(key)).Err()
}

func (c *RedisCache) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisCache) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func flightsKey() string {
	return "cache:flights"
}

func statisticsKey() string {
	return "cache:statistics"
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("idempotency:bookings:%s", key)
}
