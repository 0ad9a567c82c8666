package booking

import (
	"fmt"
	"time"

	"github.com/Khaja-0531/flight-finders/internal/domain"
)

const DefaultCancellationNotice = 24 * time.Hour

// CancellationPolicy decides whether a traveler may still cancel. It runs before
// the cancellation transaction and never inside it.
type CancellationPolicy struct {
	MinNotice time.Duration
}

// Check refuses cancellations closer than MinNotice to departure. A zero MinNotice
// allows every cancellation.
func (p CancellationPolicy) Check(b *domain.Booking, f *domain.Flight, now time.Time) error {
	if b.Status == domain.BookingStatusCompleted {
		return fmt.Errorf("%w: booking %s is completed", domain.ErrCancellationClosed, b.Reference)
	}
	if p.MinNotice <= 0 {
		return nil
	}
	if f.DepartureTime.Sub(now) <= p.MinNotice {
		return fmt.Errorf("%w: departure %s is less than %s away",
			domain.ErrCancellationClosed, f.DepartureTime.Format(time.RFC3339), p.MinNotice)
	}
	return nil
}
