package kpi

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hospitalkpi/kpi/internal/domain/hospital"
	"github.com/hospitalkpi/kpi/internal/platform/apperr"
	"github.com/hospitalkpi/kpi/internal/platform/events"
)

type mockRepo struct {
	mu     sync.Mutex
	series []*Series
	err    error
}

func (m *mockRepo) find(key Key) *Series {
	for _, s := range m.series {
		if s.Key == key {
			return s
		}
	}
	return nil
}

func clone(s *Series) Series {
	c := *s
	c.History = append([]Point(nil), s.History...)
	return c
}

func (m *mockRepo) List(_ context.Context, hospitalID string) ([]Series, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Series
	for _, s := range m.series {
		if hospitalID == "" || s.Key.HospitalID == hospitalID {
			out = append(out, clone(s))
		}
	}
	return out, nil
}

func (m *mockRepo) GetByKey(_ context.Context, key Key) (*Series, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.find(key)
	if s == nil {
		return nil, apperr.NotFound("kpi series", key.String())
	}
	c := clone(s)
	return &c, nil
}

func (m *mockRepo) Append(_ context.Context, key Key, unit string, target *decimal.Decimal, p Point) (*Series, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	s := m.find(key)
	if s == nil {
		s = &Series{ID: uuid.New(), Key: key, CreatedAt: p.Timestamp}
		m.series = append(m.series, s)
	}
	s.Unit = unit
	s.Target = target
	s.UpdatedAt = p.Timestamp
	s.History = append(s.History, p)
	c := clone(s)
	return &c, nil
}

func (m *mockRepo) Count(_ context.Context, hospitalID string) (int, error) {
	list, _ := m.List(context.Background(), hospitalID)
	return len(list), nil
}

type mockHospitals map[string]hospital.Hospital

func (m mockHospitals) GetByID(_ context.Context, id string) (*hospital.Hospital, error) {
	h, ok := m[id]
	if !ok {
		return nil, apperr.NotFound("hospital", id)
	}
	return &h, nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	evts []events.KPISubmitted
	err  error
}

func (p *recordingPublisher) PublishSubmitted(_ context.Context, evt events.KPISubmitted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.evts = append(p.evts, evt)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

var errBroker = errors.New("broker unavailable")
