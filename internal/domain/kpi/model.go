package kpi

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Key identifies one series. It is unique across the store.
type Key struct {
	HospitalID string `json:"hospitalId"`
	Department string `json:"department"`
	Metric     string `json:"metric"`
}

func (k Key) String() string {
	return k.HospitalID + "/" + k.Department + "/" + k.Metric
}

func (k Key) normalized() Key {
	return Key{
		HospitalID: strings.TrimSpace(k.HospitalID),
		Department: strings.TrimSpace(k.Department),
		Metric:     strings.TrimSpace(k.Metric),
	}
}

// Point is one immutable observation.
type Point struct {
	Timestamp   time.Time       `json:"timestamp"`
	Value       decimal.Decimal `json:"value"`
	Note        string          `json:"note,omitempty"`
	SubmittedBy string          `json:"submittedBy"`
}

// Series is a snapshot of one KPI time series. History is in insertion
// order, which is chronological.
type Series struct {
	ID        uuid.UUID
	Key       Key
	Unit      string
	Target    *decimal.Decimal
	History   []Point
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Latest returns the most recent point.
func (s *Series) Latest() (Point, bool) {
	if len(s.History) == 0 {
		return Point{}, false
	}
	return s.History[len(s.History)-1], true
}

// Values returns the history values in order.
func (s *Series) Values() []decimal.Decimal {
	out := make([]decimal.Decimal, len(s.History))
	for i, p := range s.History {
		out[i] = p.Value
	}
	return out
}

// Submission is the ingestion request body.
type Submission struct {
	HospitalID string           `json:"hospitalId"`
	Department string           `json:"department"`
	Metric     string           `json:"metric"`
	Unit       string           `json:"unit"`
	Value      *decimal.Decimal `json:"value"`
	Target     *decimal.Decimal `json:"target,omitempty"`
	Note       string           `json:"note,omitempty"`
}

func (s Submission) Key() Key {
	return Key{HospitalID: s.HospitalID, Department: s.Department, Metric: s.Metric}.normalized()
}

// SeriesView is the response shape for a series.
type SeriesView struct {
	ID              string           `json:"id"`
	HospitalID      string           `json:"hospitalId"`
	Department      string           `json:"department"`
	Metric          string           `json:"metric"`
	Unit            string           `json:"unit"`
	Target          *decimal.Decimal `json:"target"`
	LatestValue     *decimal.Decimal `json:"latestValue"`
	LatestTimestamp *time.Time       `json:"latestTimestamp"`
	History         []Point          `json:"history"`
}

func ToView(s *Series) SeriesView {
	v := SeriesView{
		ID:         s.ID.String(),
		HospitalID: s.Key.HospitalID,
		Department: s.Key.Department,
		Metric:     s.Key.Metric,
		Unit:       s.Unit,
		Target:     s.Target,
		History:    make([]Point, len(s.History)),
	}
	copy(v.History, s.History)
	if p, ok := s.Latest(); ok {
		val, ts := p.Value, p.Timestamp
		v.LatestValue = &val
		v.LatestTimestamp = &ts
	}
	return v
}
