package repository

import (
	"context"

	"github.com/Khaja-0531/flight-finders/internal/domain"
)

type PGStatsRepository struct {
	tx *TxManager
}

func NewStatsRepository(tx *TxManager) StatsRepository {
	return &PGStatsRepository{tx: tx}
}

// Snapshot reads every figure in one statement, so they all come from the same snapshot.
func (r *PGStatsRepository) Snapshot(ctx context.Context) (domain.Statistics, error) {
	var s domain.Statistics
	err := r.tx.executor(ctx).QueryRow(ctx, `SELECT
		(SELECT count(*) FROM users WHERE role = 'user'),
		(SELECT count(*) FROM flights),
		(SELECT count(*) FROM bookings),
		(SELECT COALESCE(SUM(total_amount_cents), 0)::bigint FROM bookings
			WHERE status IN ($1, $2) AND payment_status = $3)`,
		domain.BookingStatusConfirmed, domain.BookingStatusCompleted, domain.PaymentStatusPaid).
		Scan(&s.UserCount, &s.FlightCount, &s.BookingCount, &s.TotalRevenueCents)
	return s, err
}

var _ StatsRepository = (*PGStatsRepository)(nil)
