package insights

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hospitalkpi/kpi/internal/domain/hospital"
	"github.com/hospitalkpi/kpi/internal/domain/kpi"
	"github.com/hospitalkpi/kpi/internal/platform/metrics"
	"github.com/hospitalkpi/kpi/internal/platform/randsrc"
)

// SeriesSource lists series snapshots, optionally for one hospital.
type SeriesSource interface {
	List(ctx context.Context, hospitalID string) ([]kpi.Series, error)
}

// HospitalSource lists hospitals for federated status.
type HospitalSource interface {
	List(ctx context.Context) ([]hospital.Hospital, error)
}

// Service computes insights from live series snapshots. It keeps no
// state between calls.
type Service struct {
	series    SeriesSource
	hospitals HospitalSource
	gateway   *Gateway
	rnd       randsrc.Source
	now       func() time.Time
	logger    zerolog.Logger
}

// NewService falls back to randsrc.Default and a gateway simulator built
// on it when rnd or gateway is nil.
func NewService(series SeriesSource, hospitals HospitalSource, gateway *Gateway, rnd randsrc.Source, logger zerolog.Logger) *Service {
	if rnd == nil {
		rnd = randsrc.Default()
	}
	if gateway == nil {
		gateway = NewGateway(rnd, nil)
	}
	return &Service{
		series:    series,
		hospitals: hospitals,
		gateway:   gateway,
		rnd:       rnd,
		now:       time.Now,
		logger:    logger.With().Str("component", "insights").Logger(),
	}
}

func (s *Service) snapshot(ctx context.Context, hospitalID string) ([]kpi.Series, error) {
	list, err := s.series.List(ctx, strings.TrimSpace(hospitalID))
	if err != nil {
		return nil, fmt.Errorf("load series: %w", err)
	}
	return list, nil
}

func (s *Service) Anomalies(ctx context.Context, hospitalID string) ([]Anomaly, error) {
	defer metrics.ObserveAnalytics("anomalies", time.Now())
	list, err := s.snapshot(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	found := DetectAnomalies(list, s.rnd, s.now().UTC())
	for _, a := range found {
		metrics.RecordAnomaly(string(a.Severity))
	}
	s.logger.Debug().Str("hospital_id", hospitalID).Int("series", len(list)).Int("anomalies", len(found)).Msg("anomaly scan")
	return found, nil
}

func (s *Service) Predictions(ctx context.Context, hospitalID string) ([]Prediction, error) {
	defer metrics.ObserveAnalytics("predictions", time.Now())
	list, err := s.snapshot(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	return Predict(list, s.rnd, s.now().UTC()), nil
}

func (s *Service) Recommendations(ctx context.Context, hospitalID string) ([]Recommendation, error) {
	defer metrics.ObserveAnalytics("recommendations", time.Now())
	list, err := s.snapshot(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	return Recommend(list, s.rnd), nil
}

func (s *Service) FederatedStatus(ctx context.Context) ([]FederatedStatus, error) {
	hs, err := s.hospitals.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load hospitals: %w", err)
	}
	return FederatedStatuses(hs, s.rnd, s.now().UTC()), nil
}

func (s *Service) GatewayStatus() GatewayStatus {
	st := s.gateway.Check()
	if !st.Reachable {
		s.logger.Warn().Time("last_heartbeat", st.LastHeartbeat).Msg("ml gateway unreachable")
	}
	return st
}
