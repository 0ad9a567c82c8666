package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Khaja-0531/flight-finders/internal/domain"
	"github.com/jackc/pgx/v5"
)

const flightColumns = `id, flight_number, airline, departure_city, destination_city, departure_time, arrival_time,
	price_cents, total_seats, available_seats, aircraft, gate, status, created_by, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

type PGFlightRepository struct {
	tx *TxManager
}

func NewFlightRepository(tx *TxManager) FlightRepository {
	return &PGFlightRepository{tx: tx}
}

func scanFlight(row scanner) (*domain.Flight, error) {
	var f domain.Flight
	if err := row.Scan(&f.ID, &f.FlightNumber, &f.Airline, &f.DepartureCity, &f.DestinationCity, &f.DepartureTime, &f.ArrivalTime,
		&f.PriceCents, &f.TotalSeats, &f.AvailableSeats, &f.Aircraft, &f.Gate, &f.Status, &f.CreatedBy, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *PGFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	rows, err := r.tx.executor(ctx).Query(ctx, `SELECT `+flightColumns+` FROM flights ORDER BY departure_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flights := make([]domain.Flight, 0)
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, err
		}
		flights = append(flights, *f)
	}
	return flights, rows.Err()
}

func (r *PGFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	f, err := scanFlight(r.tx.executor(ctx).QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrFlightNotFound
	}
	return f, err
}

func (r *PGFlightRepository) Create(ctx context.Context, f *domain.Flight) error {
	err := r.tx.executor(ctx).QueryRow(ctx, `INSERT INTO flights (flight_number, airline, departure_city, destination_city,
		departure_time, arrival_time, price_cents, total_seats, available_seats, aircraft, gate, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`,
		f.FlightNumber, f.Airline, f.DepartureCity, f.DestinationCity, f.DepartureTime, f.ArrivalTime,
		f.PriceCents, f.TotalSeats, f.AvailableSeats, f.Aircraft, f.Gate, f.Status, f.CreatedBy).
		Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if pgErrorCode(err) == pgUniqueViolation {
		return domain.ErrDuplicateFlightNumber
	}
	return err
}

// Update locks the flight row, applies the allow-listed fields and writes them back.
// The row lock orders the edit against concurrent reservations.
func (r *PGFlightRepository) Update(ctx context.Context, id int64, upd domain.FlightUpdate) (*domain.Flight, error) {
	var updated *domain.Flight
	err := r.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		db := r.tx.executor(ctx)
		current, err := scanFlight(db.QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id=$1 FOR UPDATE`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrFlightNotFound
		}
		if err != nil {
			return err
		}

		next, err := upd.Apply(*current)
		if err != nil {
			return err
		}

		updated, err = scanFlight(db.QueryRow(ctx, `UPDATE flights SET airline=$2, departure_city=$3, destination_city=$4,
			departure_time=$5, arrival_time=$6, price_cents=$7, total_seats=$8,
			available_seats = available_seats + ($8 - total_seats),
			aircraft=$9, gate=$10, status=$11, updated_at=now()
			WHERE id=$1 RETURNING `+flightColumns,
			id, next.Airline, next.DepartureCity, next.DestinationCity, next.DepartureTime, next.ArrivalTime,
			next.PriceCents, next.TotalSeats, next.Aircraft, next.Gate, next.Status))
		if pgErrorCode(err) == pgCheckViolation {
			return domain.ErrCapacityBelowBooked
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *PGFlightRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.tx.executor(ctx).Exec(ctx, `DELETE FROM flights WHERE id=$1`, id)
	if pgErrorCode(err) == pgForeignKeyViolation {
		return domain.ErrFlightHasBookings
	}
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrFlightNotFound
	}
	return nil
}

// TryReserve takes seats in a single conditional UPDATE. The returned flight
// carries the price read in that same statement.
func (r *PGFlightRepository) TryReserve(ctx context.Context, flightID int64, seats int) (*domain.Flight, error) {
	db := r.tx.executor(ctx)
	f, err := scanFlight(db.QueryRow(ctx, `UPDATE flights SET available_seats = available_seats - $2, updated_at = now()
		WHERE id=$1 AND status=$3 AND available_seats >= $2 RETURNING `+flightColumns,
		flightID, seats, domain.FlightStatusScheduled))
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	var status domain.FlightStatus
	var available int
	if err := db.QueryRow(ctx, `SELECT status, available_seats FROM flights WHERE id=$1`, flightID).Scan(&status, &available); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFlightNotFound
		}
		return nil, err
	}
	if status != domain.FlightStatusScheduled {
		return nil, domain.ErrFlightNotBookable
	}
	return nil, fmt.Errorf("%w: requested %d, available %d", domain.ErrInsufficientInventory, seats, available)
}

func (r *PGFlightRepository) Release(ctx context.Context, flightID int64, seats int) error {
	db := r.tx.executor(ctx)
	cmd, err := db.Exec(ctx, `UPDATE flights SET available_seats = available_seats + $2, updated_at = now()
		WHERE id=$1 AND available_seats + $2 <= total_seats`, flightID, seats)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM flights WHERE id=$1)`, flightID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrFlightNotFound
	}
	return domain.ErrInventoryOverflow
}

var _ FlightRepository = (*PGFlightRepository)(nil)
