package domain

import (
	"strings"
	"time"
)

type FlightStatus string

const (
	FlightStatusScheduled FlightStatus = "scheduled"
	FlightStatusDelayed   FlightStatus = "delayed"
	FlightStatusCancelled FlightStatus = "cancelled"
	FlightStatusCompleted FlightStatus = "completed"
)

func (s FlightStatus) Valid() bool {
	switch s {
	case FlightStatusScheduled, FlightStatusDelayed, FlightStatusCancelled, FlightStatusCompleted:
		return true
	}
	return false
}

type Flight struct {
	ID              int64        `json:"id"`
	FlightNumber    string       `json:"flight_number"`
	Airline         string       `json:"airline"`
	DepartureCity   string       `json:"departure_city"`
	DestinationCity string       `json:"destination_city"`
	DepartureTime   time.Time    `json:"departure_time"`
	ArrivalTime     time.Time    `json:"arrival_time"`
	PriceCents      int64        `json:"price_cents"`
	TotalSeats      int          `json:"total_seats"`
	AvailableSeats  int          `json:"available_seats"`
	Aircraft        string       `json:"aircraft"`
	Gate            string       `json:"gate,omitempty"`
	Status          FlightStatus `json:"status"`
	CreatedBy       int64        `json:"created_by"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// BookedSeats is the number of seats currently held by non-cancelled bookings.
func (f *Flight) BookedSeats() int {
	return f.TotalSeats - f.AvailableSeats
}

func (f *Flight) Bookable() bool {
	return f.Status == FlightStatusScheduled
}

// Normalize trims free-text fields and upper-cases the flight number.
func (f *Flight) Normalize() {
	f.FlightNumber = strings.ToUpper(strings.TrimSpace(f.FlightNumber))
	f.Airline = strings.TrimSpace(f.Airline)
	f.DepartureCity = strings.TrimSpace(f.DepartureCity)
	f.DestinationCity = strings.TrimSpace(f.DestinationCity)
	f.Aircraft = strings.TrimSpace(f.Aircraft)
	f.Gate = strings.TrimSpace(f.Gate)
}

func (f *Flight) Validate() error {
	switch {
	case f.FlightNumber == "":
		return NewValidationError("flight_number", "is required")
	case f.Airline == "":
		return NewValidationError("airline", "is required")
	case f.DepartureCity == "":
		return NewValidationError("departure_city", "is required")
	case f.DestinationCity == "":
		return NewValidationError("destination_city", "is required")
	case f.DepartureTime.IsZero():
		return NewValidationError("departure_time", "is required")
	case !f.ArrivalTime.After(f.DepartureTime):
		return NewValidationError("arrival_time", "must be after departure_time")
	case f.PriceCents < 0:
		return NewValidationError("price_cents", "must not be negative")
	case f.TotalSeats < 1:
		return NewValidationError("total_seats", "must be positive")
	case f.AvailableSeats < 0 || f.AvailableSeats > f.TotalSeats:
		return NewValidationError("available_seats", "must be between 0 and total_seats")
	case !f.Status.Valid():
		return NewValidationError("status", "is not a known flight status")
	}
	return nil
}

// FlightUpdate lists the fields an operator may edit. Inventory is not among them:
// available seats only move with reservations, cancellations and the capacity
// delta of a TotalSeats change.
type FlightUpdate struct {
	Airline         *string       `json:"airline,omitempty"`
	DepartureCity   *string       `json:"departure_city,omitempty"`
	DestinationCity *string       `json:"destination_city,omitempty"`
	DepartureTime   *time.Time    `json:"departure_time,omitempty"`
	ArrivalTime     *time.Time    `json:"arrival_time,omitempty"`
	PriceCents      *int64        `json:"price_cents,omitempty"`
	TotalSeats      *int          `json:"total_seats,omitempty"`
	Aircraft        *string       `json:"aircraft,omitempty"`
	Gate            *string       `json:"gate,omitempty"`
	Status          *FlightStatus `json:"status,omitempty"`
}

func (u FlightUpdate) Empty() bool {
	return u.Airline == nil && u.DepartureCity == nil && u.DestinationCity == nil &&
		u.DepartureTime == nil && u.ArrivalTime == nil && u.PriceCents == nil &&
		u.TotalSeats == nil && u.Aircraft == nil && u.Gate == nil && u.Status == nil
}

// Apply returns a copy of f with the update applied. A capacity change shifts
// AvailableSeats by the same delta; shrinking below the seats already sold
// fails with ErrCapacityBelowBooked.
func (u FlightUpdate) Apply(f Flight) (Flight, error) {
	if u.Airline != nil {
		f.Airline = *u.Airline
	}
	if u.DepartureCity != nil {
		f.DepartureCity = *u.DepartureCity
	}
	if u.DestinationCity != nil {
		f.DestinationCity = *u.DestinationCity
	}
	if u.DepartureTime != nil {
		f.DepartureTime = *u.DepartureTime
	}
	if u.ArrivalTime != nil {
		f.ArrivalTime = *u.ArrivalTime
	}
	if u.PriceCents != nil {
		f.PriceCents = *u.PriceCents
	}
	if u.Aircraft != nil {
		f.Aircraft = *u.Aircraft
	}
	if u.Gate != nil {
		f.Gate = *u.Gate
	}
	if u.Status != nil {
		f.Status = *u.Status
	}
	if u.TotalSeats != nil {
		booked := f.BookedSeats()
		if *u.TotalSeats < booked {
			return Flight{}, ErrCapacityBelowBooked
		}
		f.TotalSeats = *u.TotalSeats
		f.AvailableSeats = f.TotalSeats - booked
	}
	f.Normalize()
	if err := f.Validate(); err != nil {
		return Flight{}, err
	}
	return f, nil
}

// SearchCriteria is the traveler-facing flight filter. Empty fields match everything.
type SearchCriteria struct {
	DepartureCity   string
	DestinationCity string
	DepartureDate   time.Time
}

func (c SearchCriteria) Matches(f *Flight) bool {
	if f.Status != FlightStatusScheduled || f.AvailableSeats <= 0 {
		return false
	}
	if c.DepartureCity != "" && !containsFold(f.DepartureCity, c.DepartureCity) {
		return false
	}
	if c.DestinationCity != "" && !containsFold(f.DestinationCity, c.DestinationCity) {
		return false
	}
	if !c.DepartureDate.IsZero() {
		y, m, d := c.DepartureDate.Date()
		start := time.Date(y, m, d, 0, 0, 0, 0, c.DepartureDate.Location())
		if f.DepartureTime.Before(start) || !f.DepartureTime.Before(start.AddDate(0, 0, 1)) {
			return false
		}
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
