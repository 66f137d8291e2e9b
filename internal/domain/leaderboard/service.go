package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hospitalkpi/kpi/internal/domain/hospital"
	"github.com/hospitalkpi/kpi/internal/domain/kpi"
	"github.com/hospitalkpi/kpi/internal/platform/metrics"
)

// SeriesSource lists every series with its history.
type SeriesSource interface {
	List(ctx context.Context, hospitalID string) ([]kpi.Series, error)
}

// HospitalSource resolves display names for ranked ids.
type HospitalSource interface {
	List(ctx context.Context) ([]hospital.Hospital, error)
}

// Service builds the network-wide leaderboard on demand.
type Service struct {
	series    SeriesSource
	hospitals HospitalSource
	logger    zerolog.Logger
}

func NewService(series SeriesSource, hospitals HospitalSource, logger zerolog.Logger) *Service {
	return &Service{series: series, hospitals: hospitals, logger: logger.With().Str("component", "leaderboard").Logger()}
}

func (s *Service) Leaderboard(ctx context.Context) ([]Entry, error) {
	defer metrics.ObserveAnalytics("leaderboard", time.Now())

	var (
		series    []kpi.Series
		hospitals []hospital.Hospital
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if series, err = s.series.List(gctx, ""); err != nil {
			return fmt.Errorf("load series: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if hospitals, err = s.hospitals.List(gctx); err != nil {
			return fmt.Errorf("load hospitals: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries, orphans := Build(series, hospitals)
	for _, id := range orphans {
		s.logger.Warn().Str("hospital_id", id).Msg("series reference a hospital with no record")
	}
	return entries, nil
}
