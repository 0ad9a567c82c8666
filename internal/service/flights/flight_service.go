package flights

import (
	"context"
	"log/slog"
	"time"

	"github.com/Khaja-0531/flight-finders/internal/domain"
	"github.com/Khaja-0531/flight-finders/internal/repository"
)

type FlightUseCase interface {
	List(ctx context.Context) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	Search(ctx context.Context, criteria domain.SearchCriteria) ([]domain.Flight, error)
	Create(ctx context.Context, input CreateFlightInput) (*domain.Flight, error)
	Update(ctx context.Context, id int64, upd domain.FlightUpdate) (*domain.Flight, error)
	Delete(ctx context.Context, id int64) error
}

// FlightCache holds the full flight list. GetFlights returns (nil, nil) on a miss.
type FlightCache interface {
	GetFlights(ctx context.Context) ([]domain.Flight, error)
	SetFlights(ctx context.Context, flights []domain.Flight) error
	InvalidateFlights(ctx context.Context) error
}

type FlightService struct {
	repo  repository.FlightRepository
	cache FlightCache
}

type CreateFlightInput struct {
	FlightNumber    string    `json:"flight_number"`
	Airline         string    `json:"airline"`
	DepartureCity   string    `json:"departure_city"`
	DestinationCity string    `json:"destination_city"`
	DepartureTime   time.Time `json:"departure_time"`
	ArrivalTime     time.Time `json:"arrival_time"`
	PriceCents      int64     `json:"price_cents"`
	TotalSeats      int       `json:"total_seats"`
	Aircraft        string    `json:"aircraft"`
	Gate            string    `json:"gate"`
	CreatedBy       int64     `json:"-"`
}

func NewFlightService(repo repository.FlightRepository, cache FlightCache) *FlightService {
	return &FlightService{repo: repo, cache: cache}
}

func (s *FlightService) List(ctx context.Context) ([]domain.Flight, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetFlights(ctx); err == nil && cached != nil {
			return cached, nil
		}
	}

	flights, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.SetFlights(ctx, flights)
	}
	return flights, nil
}

func (s *FlightService) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	return s.repo.GetByID(ctx, id)
}

// Search filters the flight list; only scheduled flights with free seats match.
func (s *FlightService) Search(ctx context.Context, criteria domain.SearchCriteria) ([]domain.Flight, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	found := make([]domain.Flight, 0)
	for i := range all {
		if criteria.Matches(&all[i]) {
			found = append(found, all[i])
		}
	}
	return found, nil
}

// Create opens a new scheduled flight with every seat available.
func (s *FlightService) Create(ctx context.Context, input CreateFlightInput) (*domain.Flight, error) {
	f := &domain.Flight{
		FlightNumber:    input.FlightNumber,
		Airline:         input.Airline,
		DepartureCity:   input.DepartureCity,
		DestinationCity: input.DestinationCity,
		DepartureTime:   input.DepartureTime,
		ArrivalTime:     input.ArrivalTime,
		PriceCents:      input.PriceCents,
		TotalSeats:      input.TotalSeats,
		AvailableSeats:  input.TotalSeats,
		Aircraft:        input.Aircraft,
		Gate:            input.Gate,
		Status:          domain.FlightStatusScheduled,
		CreatedBy:       input.CreatedBy,
	}
	f.Normalize()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, f); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return f, nil
}

func (s *FlightService) Update(ctx context.Context, id int64, upd domain.FlightUpdate) (*domain.Flight, error) {
	if upd.Empty() {
		return nil, domain.NewValidationError("body", "no editable fields given")
	}
	f, err := s.repo.Update(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return f, nil
}

func (s *FlightService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *FlightService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateFlights(ctx); err != nil {
		slog.WarnContext(ctx, "flights cache invalidation failed", slog.Any("error", err))
	}
}

var _ FlightUseCase = (*FlightService)(nil)
