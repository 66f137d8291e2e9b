// Package dashboard assembles the per-user landing summary. Managers with an
// assigned hospital see that hospital only; everyone else sees the network.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hospitalkpi/kpi/internal/domain/hospital"
	"github.com/hospitalkpi/kpi/internal/domain/identity"
	"github.com/hospitalkpi/kpi/internal/domain/insights"
	"github.com/hospitalkpi/kpi/internal/platform/apperr"
	"github.com/hospitalkpi/kpi/internal/platform/metrics"
)

// Caps on the alert and recommendation lists of a Summary.
const (
	MaxAlerts          = 3
	MaxRecommendations = 3
)

// Summary is the landing view for one user, scoped to their hospital
// when they manage one.
type Summary struct {
	TotalHospitals  int      `json:"totalHospitals"`
	ActiveHospitals int      `json:"activeHospitals"`
	MonitoredKPIs   int      `json:"monitoredKpis"`
	Alerts          []string `json:"alerts"`
	Recommendations []string `json:"recommendations"`
}

// UserSource resolves the caller's account.
type UserSource interface {
	GetByEmail(ctx context.Context, email string) (*identity.User, error)
}

type HospitalSource interface {
	List(ctx context.Context) ([]hospital.Hospital, error)
}

type SeriesCounter interface {
	Count(ctx context.Context, hospitalID string) (int, error)
}

// Insights is the subset of insights.Service the summary draws on.
type Insights interface {
	Anomalies(ctx context.Context, hospitalID string) ([]insights.Anomaly, error)
	Recommendations(ctx context.Context, hospitalID string) ([]insights.Recommendation, error)
}

// Service computes dashboard summaries.
type Service struct {
	users     UserSource
	hospitals HospitalSource
	series    SeriesCounter
	insights  Insights
	logger    zerolog.Logger
}

func NewService(users UserSource, hospitals HospitalSource, series SeriesCounter, ins Insights, logger zerolog.Logger) *Service {
	return &Service{
		users:     users,
		hospitals: hospitals,
		series:    series,
		insights:  ins,
		logger:    logger.With().Str("component", "dashboard").Logger(),
	}
}

// scope returns the hospital the user's view is restricted to, or "" for
// the global view.
func scope(u *identity.User) string {
	if u.PrimaryRole() != identity.RoleManager {
		return ""
	}
	id, _ := u.AssignedHospital()
	return id
}

// FormatAlert renders an anomaly as a single alert line.
func FormatAlert(a insights.Anomaly) string {
	return fmt.Sprintf("%s in %s (%s) deviation %s", a.Metric, a.Department, a.Severity, a.Deviation.StringFixed(2))
}

func (s *Service) Summary(ctx context.Context, email string) (*Summary, error) {
	defer metrics.ObserveAnalytics("dashboard", time.Now())

	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperr.NotFound("user", email)
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	scoped := scope(user)

	out := &Summary{Alerts: []string{}, Recommendations: []string{}}
	if scoped != "" {
		out.TotalHospitals, out.ActiveHospitals = 1, 1
	}

	g, gctx := errgroup.WithContext(ctx)
	if scoped == "" {
		g.Go(func() error {
			hs, err := s.hospitals.List(gctx)
			if err != nil {
				return fmt.Errorf("load hospitals: %w", err)
			}
			c := hospital.CountOf(hs)
			out.TotalHospitals, out.ActiveHospitals = c.Total, c.Active
			return nil
		})
	}
	g.Go(func() error {
		n, err := s.series.Count(gctx, scoped)
		if err != nil {
			return fmt.Errorf("count series: %w", err)
		}
		out.MonitoredKPIs = n
		return nil
	})
	g.Go(func() error {
		found, err := s.insights.Anomalies(gctx, scoped)
		if err != nil {
			return err
		}
		for i := 0; i < len(found) && i < MaxAlerts; i++ {
			out.Alerts = append(out.Alerts, FormatAlert(found[i]))
		}
		return nil
	})
	g.Go(func() error {
		recs, err := s.insights.Recommendations(gctx, scoped)
		if err != nil {
			return err
		}
		for i := 0; i < len(recs) && i < MaxRecommendations; i++ {
			out.Recommendations = append(out.Recommendations, recs[i].Recommendation)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("user", email).
		Str("role", string(user.PrimaryRole())).
		Str("scope", scoped).
		Int("monitored_kpis", out.MonitoredKPIs).
		Msg("dashboard summary built")
	return out, nil
}
