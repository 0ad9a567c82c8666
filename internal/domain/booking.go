package domain

import (
	"strings"
	"time"
)

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

type Passenger struct {
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	DateOfBirth time.Time `json:"date_of_birth"`
	Gender      Gender    `json:"gender"`
	SeatNumber  string    `json:"seat_number,omitempty"`
}

type Booking struct {
	ID                 int64         `json:"id"`
	Reference          string        `json:"reference"`
	TravelerID         int64         `json:"traveler_id"`
	FlightID           int64         `json:"flight_id"`
	Passengers         []Passenger   `json:"passengers"`
	SeatCount          int           `json:"seat_count"`
	TotalAmountCents   int64         `json:"total_amount_cents"`
	Status             BookingStatus `json:"status"`
	PaymentStatus      PaymentStatus `json:"payment_status"`
	CreatedAt          time.Time     `json:"created_at"`
	CancelledAt        *time.Time    `json:"cancelled_at,omitempty"`
	CancellationReason *string       `json:"cancellation_reason,omitempty"`
}

// EarnsRevenue reports whether the booking's amount counts towards revenue.
func (b *Booking) EarnsRevenue() bool {
	return (b.Status == BookingStatusConfirmed || b.Status == BookingStatusCompleted) &&
		b.PaymentStatus == PaymentStatusPaid
}

// NormalizePassengers trims names and seat numbers in place.
func NormalizePassengers(passengers []Passenger) {
	for i := range passengers {
		p := &passengers[i]
		p.FirstName = strings.TrimSpace(p.FirstName)
		p.LastName = strings.TrimSpace(p.LastName)
		p.SeatNumber = strings.ToUpper(strings.TrimSpace(p.SeatNumber))
		p.Gender = Gender(strings.ToLower(strings.TrimSpace(string(p.Gender))))
	}
}

// ValidatePassengers checks a booking's passenger list. now bounds birth dates.
func ValidatePassengers(passengers []Passenger, now time.Time) error {
	if len(passengers) == 0 {
		return NewValidationError("passengers", "at least one passenger is required")
	}
	for _, p := range passengers {
		switch {
		case p.FirstName == "":
			return NewValidationError("passengers.first_name", "is required")
		case p.LastName == "":
			return NewValidationError("passengers.last_name", "is required")
		case p.DateOfBirth.IsZero():
			return NewValidationError("passengers.date_of_birth", "is required")
		case p.DateOfBirth.After(now):
			return NewValidationError("passengers.date_of_birth", "must not be in the future")
		}
		switch p.Gender {
		case GenderMale, GenderFemale, GenderOther:
		default:
			return NewValidationError("passengers.gender", "must be one of male, female, other")
		}
	}
	return nil
}
