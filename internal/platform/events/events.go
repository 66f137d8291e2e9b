// Package events carries KPI submissions over Kafka: an outbound
// kpi.submitted event after each accepted point and an inbound stream of
// KPI records that the consume command feeds into ingestion.
package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// KPISubmitted is published after a point has been durably appended.
type KPISubmitted struct {
	SeriesID    string    `json:"seriesId"`
	HospitalID  string    `json:"hospitalId"`
	Department  string    `json:"department"`
	Metric      string    `json:"metric"`
	Unit        string    `json:"unit,omitempty"`
	Target      *string   `json:"target,omitempty"`
	Value       string    `json:"value"`
	Note        string    `json:"note,omitempty"`
	SubmittedBy string    `json:"submittedBy,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Key groups events for the same series onto one partition.
func (e KPISubmitted) Key() string {
	return e.HospitalID + "|" + e.Department + "|" + e.Metric
}

// Publisher emits KPI events. Implementations must be safe for concurrent use.
type Publisher interface {
	PublishSubmitted(ctx context.Context, evt KPISubmitted) error
	Close() error
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishSubmitted(context.Context, KPISubmitted) error { return nil }
func (NopPublisher) Close() error                                          { return nil }

// KPIRecord is the inbound submission payload read from the KPI topic. It
// mirrors the HTTP submission body so both paths share validation.
type KPIRecord struct {
	HospitalID  string      `json:"hospitalId"`
	Department  string      `json:"department"`
	Metric      string      `json:"metric"`
	Unit        string      `json:"unit"`
	Target      json.Number `json:"target"`
	Value       json.Number `json:"value"`
	Note        string      `json:"note"`
	SubmittedBy string      `json:"submittedBy"`
}

// DecodeKPIRecord parses a message value. Numbers are kept as text so that
// decimal precision survives the trip.
func DecodeKPIRecord(raw []byte) (KPIRecord, error) {
	var rec KPIRecord
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return KPIRecord{}, fmt.Errorf("decode kpi record: %w", err)
	}
	if strings.TrimSpace(rec.HospitalID) == "" {
		return KPIRecord{}, fmt.Errorf("decode kpi record: hospitalId is required")
	}
	return rec, nil
}
