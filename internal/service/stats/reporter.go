// Package stats computes the admin dashboard figures. It only reads.
package stats

import (
	"context"
	"log/slog"

	"github.com/Khaja-0531/flight-finders/internal/domain"
	"github.com/Khaja-0531/flight-finders/internal/repository"
)

type StatsUseCase interface {
	ComputeStatistics(ctx context.Context) (domain.Statistics, error)
}

// Cache keeps a recent snapshot. A miss is (nil, nil).
type Cache interface {
	GetStatistics(ctx context.Context) (*domain.Statistics, error)
	SetStatistics(ctx context.Context, st domain.Statistics) error
}

type Reporter struct {
	repo   repository.StatsRepository
	cache  Cache
	logger *slog.Logger
}

type ReporterOption func(*Reporter)

func WithCache(c Cache) ReporterOption {
	return func(r *Reporter) {
		r.cache = c
	}
}

func WithLogger(l *slog.Logger) ReporterOption {
	return func(r *Reporter) {
		r.logger = l
	}
}

func NewReporter(repo repository.StatsRepository, opts ...ReporterOption) *Reporter {
	r := &Reporter{repo: repo, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ComputeStatistics returns user, flight and booking counts and the revenue of
// paid confirmed or completed bookings. The figures may lag concurrent writes.
func (r *Reporter) ComputeStatistics(ctx context.Context) (domain.Statistics, error) {
	if r.cache != nil {
		cached, err := r.cache.GetStatistics(ctx)
		if err == nil && cached != nil {
			return *cached, nil
		}
		if err != nil {
			r.logger.WarnContext(ctx, "statistics cache read failed", slog.Any("error", err))
		}
	}

	st, err := r.repo.Snapshot(ctx)
	if err != nil {
		return domain.Statistics{}, err
	}
	if r.cache != nil {
		if err := r.cache.SetStatistics(ctx, st); err != nil {
			r.logger.WarnContext(ctx, "statistics cache write failed", slog.Any("error", err))
		}
	}
	return st, nil
}

var _ StatsUseCase = (*Reporter)(nil)
