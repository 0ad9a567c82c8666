// Package outbox relays booking events, stored with the state change that
// produced them, to the message broker.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Khaja-0531/flight-finders/internal/metrics"
	"github.com/Khaja-0531/flight-finders/internal/repository"
)

const (
	sendTimeout = 5 * time.Second

	DefaultClaimLease = 5 * time.Minute
)

type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, topic, key string, payload any) error

func (f PublisherFunc) Publish(ctx context.Context, topic, key string, payload any) error {
	return f(ctx, topic, key, payload)
}

type Relay struct {
	repo      repository.OutboxRepository
	publisher Publisher
	topic     string
	batchSize int
	interval  time.Duration
	lease     time.Duration
	logger    *slog.Logger
}

type RelayOption func(*Relay)

// WithClaimLease sets how long a claimed event stays with one relay pass. Events
// still unsettled after that, for instance because the worker died, are claimed again.
func WithClaimLease(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.lease = d
		}
	}
}

func NewRelay(repo repository.OutboxRepository, publisher Publisher, topic string, batchSize int, interval time.Duration, logger *slog.Logger, opts ...RelayOption) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Relay{
		repo:      repo,
		publisher: publisher,
		topic:     topic,
		batchSize: batchSize,
		interval:  interval,
		lease:     DefaultClaimLease,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.InfoContext(ctx, "outbox relay started", slog.String("topic", r.topic), slog.Duration("interval", r.interval))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.ProcessBatch(ctx); err != nil {
				r.logger.ErrorContext(ctx, "outbox batch failed", slog.Any("error", err))
			}
		}
	}
}

// ProcessBatch claims up to batchSize events, publishes them and records the
// outcome. Events that failed to publish go back to the queue.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	events, err := r.repo.FetchBatch(ctx, r.batchSize, r.lease)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	var processed, failed []string
	for _, e := range events {
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := r.publisher.Publish(sendCtx, r.topic, strconv.FormatInt(e.AggregateID, 10), json.RawMessage(e.Payload))
		cancel()

		if err != nil {
			r.logger.WarnContext(ctx, "outbox publish failed",
				slog.String("event_id", e.ID), slog.String("type", string(e.Type)),
				slog.Int("attempts", e.Attempts), slog.Any("error", err))
			metrics.OutboxPublishErrors.Inc()
			failed = append(failed, e.ID)
			continue
		}
		metrics.OutboxPublished.Inc()
		processed = append(processed, e.ID)
	}

	// Failed events are requeued before successes are marked. Successes that stay
	// claimed are picked up again once the lease runs out.
	if len(failed) > 0 {
		if err := r.repo.MarkFailed(ctx, failed); err != nil {
			r.logger.ErrorContext(ctx, "failed to requeue outbox events", slog.Any("error", err))
		}
	}
	if len(processed) > 0 {
		if err := r.repo.MarkProcessed(ctx, processed); err != nil {
			return 0, fmt.Errorf("mark %d outbox events processed: %w", len(processed), err)
		}
	}
	return len(processed), nil
}
