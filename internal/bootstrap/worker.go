package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Khaja-0531/flight-finders/config"
	"github.com/Khaja-0531/flight-finders/internal/domain"
	"github.com/Khaja-0531/flight-finders/internal/email"
	"github.com/Khaja-0531/flight-finders/internal/kafka"
	"github.com/Khaja-0531/flight-finders/internal/outbox"
	"github.com/Khaja-0531/flight-finders/internal/service/booking"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// RunWorker drives the background jobs: the outbox relay, the notification
// consumer and the sweep that completes departed bookings. Without kafka the
// relay hands events straight to the notification sender.
func RunWorker(ctx context.Context, cfg *config.Config, st *Storage, bookings booking.BookingUseCase, logger *slog.Logger) error {
	sender := email.NewSender(logger)
	g, ctx := errgroup.WithContext(ctx)

	var publisher outbox.Publisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, logger)
		defer producer.Close()
		publisher = producer

		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
		defer consumer.Close()
		g.Go(func() error {
			if err := consumer.Consume(ctx, sender.HandleMessage); err != nil {
				return fmt.Errorf("notifications consumer: %w", err)
			}
			return nil
		})
	} else {
		publisher = LocalPublisher(sender)
	}

	relay := outbox.NewRelay(st.Outbox, publisher, cfg.Kafka.BookingEventsTopic,
		cfg.Worker.OutboxBatchSize, cfg.Worker.OutboxPollInterval(), logger,
		outbox.WithClaimLease(cfg.Worker.OutboxClaimLease()))
	g.Go(func() error { return relay.Run(ctx) })

	g.Go(func() error {
		sweepCompleted(ctx, bookings, cfg.Worker.CompletionSweepInterval(), logger)
		return nil
	})

	return g.Wait()
}

// LocalPublisher delivers relayed booking events to sender in process.
func LocalPublisher(sender *email.Sender) outbox.Publisher {
	return outbox.PublisherFunc(func(ctx context.Context, _, _ string, payload any) error {
		raw, ok := payload.(json.RawMessage)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", payload)
		}
		var event domain.BookingEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return fmt.Errorf("decode booking event: %w", err)
		}
		return sender.Send(ctx, event)
	})
}

func sweepCompleted(ctx context.Context, bookings booking.BookingUseCase, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			completed, err := bookings.CompleteDepartedBookings(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "complete departed bookings", slog.Any("error", err))
				continue
			}
			if len(completed) > 0 {
				logger.InfoContext(ctx, "completed departed bookings", slog.Int("count", len(completed)))
			}
		}
	}
}

// ServeMetrics exposes /metrics on addr until ctx is done.
func ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
