package kpi

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hospitalkpi/kpi/internal/platform/apperr"
	"github.com/hospitalkpi/kpi/internal/platform/events"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func newTestService(repo Repository, pub events.Publisher) *Service {
	svc := NewService(repo, mockHospitals{"H1": {ID: "H1", Name: "North"}}, pub, zerolog.Nop())
	clock := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return svc
}

func TestSubmit_SameKeyAppendsToOneSeries(t *testing.T) {
	repo := &mockRepo{}
	svc := newTestService(repo, nil)
	ctx := context.Background()

	sub := Submission{HospitalID: "H1", Department: "ER", Metric: "wait_time", Unit: "min", Value: dec("120"), Target: dec("100")}
	if _, err := svc.Submit(ctx, sub, "manager@north.example"); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	sub.Value = dec("95.5")
	view, err := svc.Submit(ctx, sub, "manager@north.example")
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}

	if len(repo.series) != 1 {
		t.Fatalf("expected exactly one series, got %d", len(repo.series))
	}
	if len(view.History) != 2 {
		t.Errorf("expected history length 2, got %d", len(view.History))
	}
	if view.LatestValue == nil || !view.LatestValue.Equal(decimal.RequireFromString("95.5")) {
		t.Errorf("expected latestValue 95.5, got %v", view.LatestValue)
	}
	if view.Target == nil || !view.Target.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected target 100, got %v", view.Target)
	}
	if view.LatestTimestamp == nil || !view.LatestTimestamp.Equal(view.History[1].Timestamp) {
		t.Errorf("expected latestTimestamp to match last point")
	}
	if view.History[1].SubmittedBy != "manager@north.example" {
		t.Errorf("expected submitter recorded, got %q", view.History[1].SubmittedBy)
	}
}

func TestSubmit_LastWriteWinsForUnitAndTarget(t *testing.T) {
	repo := &mockRepo{}
	svc := newTestService(repo, nil)
	ctx := context.Background()

	_, _ = svc.Submit(ctx, Submission{HospitalID: "H1", Department: "ER", Metric: "wait", Unit: "min", Value: dec("1"), Target: dec("10")}, "u")
	view, err := svc.Submit(ctx, Submission{HospitalID: "H1", Department: "ER", Metric: "wait", Unit: "hours", Value: dec("2")}, "u")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if view.Unit != "hours" {
		t.Errorf("expected unit overwritten to hours, got %s", view.Unit)
	}
	if view.Target != nil {
		t.Errorf("expected target cleared by latest submission, got %v", view.Target)
	}
}

func TestSubmit_HistoryGrowsByOnePerSubmission(t *testing.T) {
	repo := &mockRepo{}
	svc := newTestService(repo, nil)
	for i := 1; i <= 5; i++ {
		view, err := svc.Submit(context.Background(), Submission{HospitalID: "H1", Department: "ICU", Metric: "beds", Value: dec("3")}, "u")
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if len(view.History) != i {
			t.Fatalf("after %d submissions expected history %d, got %d", i, i, len(view.History))
		}
	}
}

func TestSubmit_Validation(t *testing.T) {
	svc := newTestService(&mockRepo{}, nil)
	tests := []struct {
		name  string
		sub   Submission
		field string
	}{
		{"blank hospital", Submission{HospitalID: "  ", Department: "ER", Metric: "m", Value: dec("1")}, "hospitalId"},
		{"blank department", Submission{HospitalID: "H1", Metric: "m", Value: dec("1")}, "department"},
		{"blank metric", Submission{HospitalID: "H1", Department: "ER", Value: dec("1")}, "metric"},
		{"missing value", Submission{HospitalID: "H1", Department: "ER", Metric: "m"}, "value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), tt.sub, "u")
			if !apperr.IsInvalidInput(err) {
				t.Fatalf("expected invalid input, got %v", err)
			}
			var ae *apperr.Error
			if !errors.As(err, &ae) || ae.Details[tt.field] == "" {
				t.Errorf("expected detail for %s, got %+v", tt.field, ae)
			}
		})
	}
}

func TestSubmit_TrimsKey(t *testing.T) {
	repo := &mockRepo{}
	svc := newTestService(repo, nil)
	_, _ = svc.Submit(context.Background(), Submission{HospitalID: " H1 ", Department: "ER ", Metric: " wait", Value: dec("1")}, "u")
	_, _ = svc.Submit(context.Background(), Submission{HospitalID: "H1", Department: "ER", Metric: "wait", Value: dec("2")}, "u")
	if len(repo.series) != 1 {
		t.Errorf("expected whitespace variants to share one series, got %d", len(repo.series))
	}
}

func TestSubmit_PropagatesStoreError(t *testing.T) {
	boom := errors.New("connection reset")
	svc := newTestService(&mockRepo{err: boom}, nil)
	_, err := svc.Submit(context.Background(), Submission{HospitalID: "H1", Department: "ER", Metric: "m", Value: dec("1")}, "u")
	if !errors.Is(err, boom) {
		t.Fatalf("expected store error to propagate, got %v", err)
	}
}

func TestSubmit_PublishesEvent(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newTestService(&mockRepo{}, pub)
	_, err := svc.Submit(context.Background(), Submission{HospitalID: "H1", Department: "ER", Metric: "wait", Unit: "min", Value: dec("12.50"), Target: dec("10")}, "u@x")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(pub.evts) != 1 {
		t.Fatalf("expected one event, got %d", len(pub.evts))
	}
	evt := pub.evts[0]
	if evt.Key() != "H1|ER|wait" || evt.Value != "12.5" || evt.Target == nil || *evt.Target != "10" || evt.SubmittedBy != "u@x" {
		t.Errorf("unexpected event %+v", evt)
	}
}

func TestSubmit_PublishFailureIsNotReturned(t *testing.T) {
	pub := &recordingPublisher{err: errBroker}
	svc := newTestService(&mockRepo{}, pub)
	view, err := svc.Submit(context.Background(), Submission{HospitalID: "H1", Department: "ER", Metric: "wait", Value: dec("1")}, "u")
	if err != nil {
		t.Fatalf("expected publish failure to be swallowed, got %v", err)
	}
	if view == nil || len(view.History) != 1 {
		t.Fatal("expected point to be stored despite publish failure")
	}
}

func TestSubmitRecord(t *testing.T) {
	repo := &mockRepo{}
	svc := newTestService(repo, nil)

	view, err := svc.SubmitRecord(context.Background(), events.KPIRecord{
		HospitalID: "H1", Department: "Lab", Metric: "tat", Value: "4.25", Target: "4",
	})
	if err != nil {
		t.Fatalf("submit record: %v", err)
	}
	if view.History[0].SubmittedBy != StreamSubmitter {
		t.Errorf("expected default submitter %s, got %s", StreamSubmitter, view.History[0].SubmittedBy)
	}
	if !view.Target.Equal(decimal.NewFromInt(4)) {
		t.Errorf("expected target 4, got %v", view.Target)
	}

	_, err = svc.SubmitRecord(context.Background(), events.KPIRecord{HospitalID: "H1", Department: "Lab", Metric: "tat"})
	if !apperr.IsInvalidInput(err) {
		t.Errorf("expected missing value to be invalid, got %v", err)
	}
}

func TestHistory(t *testing.T) {
	repo := &mockRepo{}
	svc := newTestService(repo, nil)
	ctx := context.Background()
	_, _ = svc.Submit(ctx, Submission{HospitalID: "H1", Department: "ER", Metric: "a", Value: dec("1")}, "u")
	_, _ = svc.Submit(ctx, Submission{HospitalID: "H1", Department: "ER", Metric: "b", Value: dec("2")}, "u")
	_, _ = svc.Submit(ctx, Submission{HospitalID: "H2", Department: "ER", Metric: "a", Value: dec("3")}, "u")

	views, err := svc.History(ctx, "H1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(views) != 2 {
		t.Errorf("expected 2 series for H1, got %d", len(views))
	}

	if _, err := svc.History(ctx, "H404"); !apperr.IsNotFound(err) {
		t.Errorf("expected not found for unknown hospital, got %v", err)
	}
	if _, err := svc.History(ctx, " "); !apperr.IsInvalidInput(err) {
		t.Errorf("expected invalid input for blank hospital, got %v", err)
	}
}

func TestSeries_ByKey(t *testing.T) {
	svc := newTestService(&mockRepo{}, nil)
	ctx := context.Background()
	_, _ = svc.Submit(ctx, Submission{HospitalID: "H1", Department: "ER", Metric: "wait", Unit: "min", Value: dec("12")}, "u")
	_, _ = svc.Submit(ctx, Submission{HospitalID: "H1", Department: "ER", Metric: "wait", Unit: "min", Value: dec("9")}, "u")

	view, err := svc.Series(ctx, Key{HospitalID: " H1", Department: "ER ", Metric: "wait"})
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	if len(view.History) != 2 || view.LatestValue == nil || view.LatestValue.String() != "9" {
		t.Errorf("unexpected view %+v", view)
	}

	if _, err := svc.Series(ctx, Key{HospitalID: "H1", Department: "ER", Metric: "beds"}); !apperr.IsNotFound(err) {
		t.Errorf("expected not found for unknown key, got %v", err)
	}
	if _, err := svc.Series(ctx, Key{HospitalID: "H1", Metric: "wait"}); !apperr.IsInvalidInput(err) {
		t.Errorf("expected invalid input for blank department, got %v", err)
	}
}

func TestToView_EmptyHistory(t *testing.T) {
	v := ToView(&Series{Key: Key{HospitalID: "H1"}})
	if v.LatestValue != nil || v.LatestTimestamp != nil {
		t.Error("expected no latest value for empty history")
	}
	if v.History == nil {
		t.Error("expected empty, non-nil history slice")
	}
}
