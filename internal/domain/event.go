package domain

import "time"

type EventType string

const (
	EventBookingCreated   EventType = "booking_created"
	EventBookingCancelled EventType = "booking_cancelled"
	EventBookingCompleted EventType = "booking_completed"
)

// OutboxEvent is a booking event stored next to the state change that produced it
// and relayed to the broker afterwards.
type OutboxEvent struct {
	ID          string
	Type        EventType
	AggregateID int64
	Payload     []byte
	Status      string
	Attempts    int
	CreatedAt   time.Time
}

const (
	OutboxStatusNew        = "new"
	OutboxStatusProcessing = "processing"
	OutboxStatusProcessed  = "processed"
)

// BookingEvent is the broker payload for booking lifecycle changes.
type BookingEvent struct {
	Type             EventType     `json:"type"`
	BookingID        int64         `json:"booking_id"`
	Reference        string        `json:"reference"`
	TravelerID       int64         `json:"traveler_id"`
	FlightID         int64         `json:"flight_id"`
	Seats            int           `json:"seats"`
	TotalAmountCents int64         `json:"total_amount_cents"`
	Status           BookingStatus `json:"status"`
	PaymentStatus    PaymentStatus `json:"payment_status"`
	Reason           string        `json:"reason,omitempty"`
	OccurredAt       time.Time     `json:"occurred_at"`
}

func NewBookingEvent(t EventType, b *Booking, at time.Time) BookingEvent {
	ev := BookingEvent{
		Type:             t,
		BookingID:        b.ID,
		Reference:        b.Reference,
		TravelerID:       b.TravelerID,
		FlightID:         b.FlightID,
		Seats:            b.SeatCount,
		TotalAmountCents: b.TotalAmountCents,
		Status:           b.Status,
		PaymentStatus:    b.PaymentStatus,
		OccurredAt:       at,
	}
	if b.CancellationReason != nil {
		ev.Reason = *b.CancellationReason
	}
	return ev
}
