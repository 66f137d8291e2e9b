package kpi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hospitalkpi/kpi/internal/domain/hospital"
	"github.com/hospitalkpi/kpi/internal/platform/apperr"
	"github.com/hospitalkpi/kpi/internal/platform/events"
	"github.com/hospitalkpi/kpi/internal/platform/metrics"
)

// StreamSubmitter is recorded as the submitter for streamed records that do
// not name one.
const StreamSubmitter = "kafka-ingest"

// HospitalLookup resolves hospital ids for history reads.
type HospitalLookup interface {
	GetByID(ctx context.Context, id string) (*hospital.Hospital, error)
}

// Service ingests submissions and serves series reads.
type Service struct {
	repo      Repository
	hospitals HospitalLookup
	publisher events.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, hospitals HospitalLookup, publisher events.Publisher, logger zerolog.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		hospitals: hospitals,
		publisher: publisher,
		logger:    logger.With().Str("component", "kpi").Logger(),
		now:       time.Now,
	}
}

func validate(sub Submission) error {
	details := map[string]string{}
	key := sub.Key()
	if key.HospitalID == "" {
		details["hospitalId"] = "required"
	}
	if key.Department == "" {
		details["department"] = "required"
	}
	if key.Metric == "" {
		details["metric"] = "required"
	}
	if sub.Value == nil {
		details["value"] = "required"
	}
	if len(details) > 0 {
		return apperr.InvalidInput("invalid kpi submission", details)
	}
	return nil
}

// Submit appends a point to the series identified by the submission's key,
// creating the series on first use. Unit and target always take the
// submitted values.
func (s *Service) Submit(ctx context.Context, sub Submission, submitter string) (*SeriesView, error) {
	if err := validate(sub); err != nil {
		metrics.RecordSubmission("invalid")
		return nil, err
	}

	key := sub.Key()
	point := Point{
		Timestamp:   s.now().UTC(),
		Value:       *sub.Value,
		Note:        strings.TrimSpace(sub.Note),
		SubmittedBy: submitter,
	}
	series, err := s.repo.Append(ctx, key, strings.TrimSpace(sub.Unit), sub.Target, point)
	if err != nil {
		metrics.RecordSubmission("error")
		return nil, err
	}
	metrics.RecordSubmission("accepted")

	s.logger.Debug().
		Str("series", key.String()).
		Str("value", point.Value.String()).
		Int("history_len", len(series.History)).
		Msg("kpi point appended")

	s.publish(ctx, series, point)

	view := ToView(series)
	return &view, nil
}

// publish emits kpi.submitted. Failures are logged and counted only; the
// point is already stored.
func (s *Service) publish(ctx context.Context, series *Series, p Point) {
	evt := events.KPISubmitted{
		SeriesID:    series.ID.String(),
		HospitalID:  series.Key.HospitalID,
		Department:  series.Key.Department,
		Metric:      series.Key.Metric,
		Unit:        series.Unit,
		Value:       p.Value.String(),
		Note:        p.Note,
		SubmittedBy: p.SubmittedBy,
		Timestamp:   p.Timestamp,
	}
	if series.Target != nil {
		t := series.Target.String()
		evt.Target = &t
	}
	if _, nop := s.publisher.(events.NopPublisher); nop {
		return
	}
	if err := s.publisher.PublishSubmitted(ctx, evt); err != nil {
		metrics.RecordEventPublish(false)
		s.logger.Warn().Err(err).Str("series", series.Key.String()).Msg("kpi.submitted publish failed")
		return
	}
	metrics.RecordEventPublish(true)
}

// SubmitRecord feeds a streamed record through the same path as Submit.
func (s *Service) SubmitRecord(ctx context.Context, rec events.KPIRecord) (*SeriesView, error) {
	sub := Submission{
		HospitalID: rec.HospitalID,
		Department: rec.Department,
		Metric:     rec.Metric,
		Unit:       rec.Unit,
		Note:       rec.Note,
	}
	if rec.Value != "" {
		v, err := decimal.NewFromString(rec.Value.String())
		if err != nil {
			return nil, apperr.InvalidInput("invalid kpi submission", map[string]string{"value": "not a number"})
		}
		sub.Value = &v
	}
	if rec.Target != "" {
		t, err := decimal.NewFromString(rec.Target.String())
		if err != nil {
			return nil, apperr.InvalidInput("invalid kpi submission", map[string]string{"target": "not a number"})
		}
		sub.Target = &t
	}
	submitter := strings.TrimSpace(rec.SubmittedBy)
	if submitter == "" {
		submitter = StreamSubmitter
	}
	return s.Submit(ctx, sub, submitter)
}

// History returns every series of a hospital. Unknown hospitals are
// reported as not found.
func (s *Service) History(ctx context.Context, hospitalID string) ([]SeriesView, error) {
	hospitalID = strings.TrimSpace(hospitalID)
	if hospitalID == "" {
		return nil, apperr.InvalidInput("hospitalId is required", nil)
	}
	if _, err := s.hospitals.GetByID(ctx, hospitalID); err != nil {
		return nil, err
	}
	list, err := s.repo.List(ctx, hospitalID)
	if err != nil {
		return nil, fmt.Errorf("list series for %s: %w", hospitalID, err)
	}
	views := make([]SeriesView, len(list))
	for i := range list {
		views[i] = ToView(&list[i])
	}
	return views, nil
}

// Series returns one series by its key.
func (s *Service) Series(ctx context.Context, key Key) (*SeriesView, error) {
	key = key.normalized()
	details := map[string]string{}
	if key.HospitalID == "" {
		details["hospitalId"] = "required"
	}
	if key.Department == "" {
		details["department"] = "required"
	}
	if key.Metric == "" {
		details["metric"] = "required"
	}
	if len(details) > 0 {
		return nil, apperr.InvalidInput("invalid kpi key", details)
	}
	series, err := s.repo.GetByKey(ctx, key)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("get series %s: %w", key, err)
	}
	view := ToView(series)
	return &view, nil
}
