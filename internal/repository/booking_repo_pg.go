package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Khaja-0531/flight-finders/internal/domain"
	"github.com/jackc/pgx/v5"
)

const bookingColumns = `id, reference, user_id, flight_id, passengers, seat_count, total_amount_cents,
	status, payment_status, created_at, cancelled_at, cancellation_reason`

type PGBookingRepository struct {
	tx *TxManager
}

func NewBookingRepository(tx *TxManager) BookingRepository {
	return &PGBookingRepository{tx: tx}
}

func scanBooking(row scanner) (*domain.Booking, error) {
	var b domain.Booking
	var passengers []byte
	if err := row.Scan(&b.ID, &b.Reference, &b.TravelerID, &b.FlightID, &passengers, &b.SeatCount, &b.TotalAmountCents,
		&b.Status, &b.PaymentStatus, &b.CreatedAt, &b.CancelledAt, &b.CancellationReason); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(passengers, &b.Passengers); err != nil {
		return nil, fmt.Errorf("decode passengers of booking %d: %w", b.ID, err)
	}
	return &b, nil
}

func collectBookings(rows pgx.Rows) ([]domain.Booking, error) {
	defer rows.Close()
	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// Create inserts the booking. A reference collision leaves the transaction usable
// and is reported as ErrDuplicateReference so the caller can pick another one.
func (r *PGBookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	passengers, err := json.Marshal(b.Passengers)
	if err != nil {
		return fmt.Errorf("encode passengers: %w", err)
	}

	err = r.tx.executor(ctx).QueryRow(ctx, `INSERT INTO bookings (reference, user_id, flight_id, passengers, seat_count,
		total_amount_cents, status, payment_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (reference) DO NOTHING
		RETURNING id`,
		b.Reference, b.TravelerID, b.FlightID, passengers, b.SeatCount, b.TotalAmountCents, b.Status, b.PaymentStatus, b.CreatedAt).
		Scan(&b.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrDuplicateReference
	}
	return err
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	b, err := scanBooking(r.tx.executor(ctx).QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrBookingNotFound
	}
	return b, err
}

func (r *PGBookingRepository) GetForTraveler(ctx context.Context, id, travelerID int64) (*domain.Booking, error) {
	b, err := scanBooking(r.tx.executor(ctx).QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1 AND user_id=$2`, id, travelerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrBookingNotFound
	}
	return b, err
}

func (r *PGBookingRepository) ListByTraveler(ctx context.Context, travelerID int64) ([]domain.Booking, error) {
	rows, err := r.tx.executor(ctx).Query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE user_id=$1 ORDER BY created_at DESC`, travelerID)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (r *PGBookingRepository) List(ctx context.Context) ([]domain.Booking, error) {
	rows, err := r.tx.executor(ctx).Query(ctx, `SELECT `+bookingColumns+` FROM bookings ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

// MarkCancelled flips a confirmed booking to cancelled/refunded. A booking that is
// already cancelled or was completed in the meantime is left untouched.
func (r *PGBookingRepository) MarkCancelled(ctx context.Context, id, travelerID int64, reason *string, at time.Time) (*domain.Booking, error) {
	db := r.tx.executor(ctx)
	b, err := scanBooking(db.QueryRow(ctx, `UPDATE bookings
		SET status=$3, payment_status=$4, cancelled_at=$5, cancellation_reason=$6
		WHERE id=$1 AND user_id=$2 AND status=$7
		RETURNING `+bookingColumns,
		id, travelerID, domain.BookingStatusCancelled, domain.PaymentStatusRefunded, at, reason, domain.BookingStatusConfirmed))
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	var status domain.BookingStatus
	if err := db.QueryRow(ctx, `SELECT status FROM bookings WHERE id=$1 AND user_id=$2`, id, travelerID).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, err
	}
	return nil, notCancellable(id, status)
}

func notCancellable(id int64, status domain.BookingStatus) error {
	if status == domain.BookingStatusCancelled {
		return domain.ErrAlreadyCancelled
	}
	return fmt.Errorf("%w: booking %d is %s", domain.ErrCancellationClosed, id, status)
}

func (r *PGBookingRepository) CompleteDeparted(ctx context.Context, now time.Time) ([]domain.Booking, error) {
	rows, err := r.tx.executor(ctx).Query(ctx, `UPDATE bookings b SET status=$1
		FROM flights f
		WHERE b.flight_id = f.id AND b.status=$2 AND f.arrival_time <= $3
		RETURNING `+prefixColumns("b.", bookingColumns),
		domain.BookingStatusCompleted, domain.BookingStatusConfirmed, now)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

var _ BookingRepository = (*PGBookingRepository)(nil)
