package memory

import (
	"context"

	"github.com/Khaja-0531/flight-finders/internal/domain"
)

type statsRepo struct {
	s *Store
}

// Snapshot takes no flight locks; figures may straddle concurrent transactions.
func (r *statsRepo) Snapshot(ctx context.Context) (domain.Statistics, error) {
	var st domain.Statistics

	r.s.usersMu.RLock()
	for _, role := range r.s.users {
		if role == "user" {
			st.UserCount++
		}
	}
	r.s.usersMu.RUnlock()

	r.s.flightsMu.RLock()
	st.FlightCount = int64(len(r.s.flights))
	r.s.flightsMu.RUnlock()

	r.s.bookingsMu.RLock()
	st.BookingCount = int64(len(r.s.bookings))
	for _, b := range r.s.bookings {
		if b.EarnsRevenue() {
			st.TotalRevenueCents += b.TotalAmountCents
		}
	}
	r.s.bookingsMu.RUnlock()

	return st, nil
}
