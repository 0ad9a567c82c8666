// Package email turns booking events into traveler notifications.
package email

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Khaja-0531/flight-finders/internal/domain"
	"github.com/segmentio/kafka-go"
)

// Notification is a rendered message for one traveler.
type Notification struct {
	TravelerID int64
	Subject    string
	Body       string
}

// Sender delivers notifications. This one only logs them and remembers the most
// recent deliveries; the mail gateway sits outside this service.
type Sender struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []Notification
}

func NewSender(logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{logger: logger}
}

func (s *Sender) Send(ctx context.Context, event domain.BookingEvent) error {
	n, ok := render(event)
	if !ok {
		return nil
	}

	s.mu.Lock()
	s.sent = append(s.sent, n)
	if len(s.sent) > 100 {
		s.sent = s.sent[len(s.sent)-100:]
	}
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "notification sent",
		slog.Int64("traveler_id", n.TravelerID),
		slog.String("subject", n.Subject),
		slog.String("reference", event.Reference))
	return nil
}

// Sent returns a copy of the recent notifications.
func (s *Sender) Sent() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.sent...)
}

// HandleMessage decodes a booking event from the broker and sends it. Malformed
// messages are logged and skipped so one bad record does not stall the consumer.
func (s *Sender) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var event domain.BookingEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		s.logger.WarnContext(ctx, "skipping malformed booking event",
			slog.Int64("offset", msg.Offset), slog.Any("error", err))
		return nil
	}
	return s.Send(ctx, event)
}

func render(e domain.BookingEvent) (Notification, bool) {
	n := Notification{TravelerID: e.TravelerID}
	amount := fmt.Sprintf("%d.%02d", e.TotalAmountCents/100, e.TotalAmountCents%100)
	switch e.Type {
	case domain.EventBookingCreated:
		n.Subject = fmt.Sprintf("Booking %s confirmed", e.Reference)
		n.Body = fmt.Sprintf("Your booking %s for %d seat(s) on flight %d is confirmed. Total paid: %s.",
			e.Reference, e.Seats, e.FlightID, amount)
	case domain.EventBookingCancelled:
		n.Subject = fmt.Sprintf("Booking %s cancelled", e.Reference)
		n.Body = fmt.Sprintf("Your booking %s was cancelled and %s will be refunded.", e.Reference, amount)
		if e.Reason != "" {
			n.Body += " Reason: " + e.Reason + "."
		}
	case domain.EventBookingCompleted:
		n.Subject = fmt.Sprintf("Thank you for flying with us (%s)", e.Reference)
		n.Body = fmt.Sprintf("Your trip on flight %d is complete.", e.FlightID)
	default:
		return Notification{}, false
	}
	return n, true
}
