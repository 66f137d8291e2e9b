package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/hospitalkpi/kpi/internal/platform/apperr"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaPublisher_KeyedBySeries(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{w: w}
	evt := KPISubmitted{
		SeriesID:   "s1",
		HospitalID: "H1",
		Department: "ER",
		Metric:     "wait",
		Value:      "42.50",
		Timestamp:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := p.PublishSubmitted(context.Background(), evt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	if got := string(w.msgs[0].Key); got != "H1|ER|wait" {
		t.Errorf("expected key H1|ER|wait, got %s", got)
	}
	var decoded map[string]any
	if err := json.Unmarshal(w.msgs[0].Value, &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if decoded["value"] != "42.50" {
		t.Errorf("expected value 42.50, got %v", decoded["value"])
	}
	if _, ok := decoded["target"]; ok {
		t.Error("expected target to be omitted when nil")
	}
}

func TestKafkaPublisher_WrapsError(t *testing.T) {
	boom := errors.New("broker down")
	p := &KafkaPublisher{w: &fakeWriter{err: boom}}
	err := p.PublishSubmitted(context.Background(), KPISubmitted{HospitalID: "H1"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped broker error, got %v", err)
	}
}

func TestNewKafkaPublisher_Validation(t *testing.T) {
	if _, err := NewKafkaPublisher(nil, "t"); err == nil {
		t.Error("expected error without brokers")
	}
	if _, err := NewKafkaPublisher([]string{"localhost:9092"}, ""); err == nil {
		t.Error("expected error without topic")
	}
}

func TestDecodeKPIRecord(t *testing.T) {
	rec, err := DecodeKPIRecord([]byte(`{"hospitalId":"H1","department":"ER","metric":"wait","value":12.345,"target":10}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Value.String() != "12.345" {
		t.Errorf("expected exact value text, got %s", rec.Value)
	}
	if rec.Target.String() != "10" {
		t.Errorf("expected target 10, got %s", rec.Target)
	}

	if _, err := DecodeKPIRecord([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed payload")
	}
	if _, err := DecodeKPIRecord([]byte(`{"metric":"wait"}`)); err == nil {
		t.Error("expected error for missing hospitalId")
	}
}

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return kafka.Message{}, io.EOF
	}
	m := r.queue[0]
	r.queue = r.queue[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestConsumer_CommitsHandledAndRejectedRecords(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{
		{Offset: 1, Value: []byte(`{"hospitalId":"H1","department":"ER","metric":"wait","value":5}`)},
		{Offset: 2, Value: []byte(`garbage`)},
		{Offset: 3, Value: []byte(`{"hospitalId":"H2","department":"ICU","metric":"beds","value":7}`)},
	}}
	c := newConsumer(r, zerolog.Nop())

	var handled []string
	err := c.Run(context.Background(), func(_ context.Context, rec KPIRecord) error {
		handled = append(handled, rec.HospitalID)
		if rec.HospitalID == "H2" {
			return apperr.InvalidInput("invalid kpi submission", map[string]string{"value": "required"})
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}
	if len(handled) != 2 || handled[0] != "H1" || handled[1] != "H2" {
		t.Errorf("unexpected handled records: %v", handled)
	}
	if len(r.committed) != 3 {
		t.Errorf("expected all 3 offsets committed, got %v", r.committed)
	}
}

func newFastConsumer(r messageReader) *Consumer {
	c := newConsumer(r, zerolog.Nop())
	c.retryBase = time.Millisecond
	c.retryLimit = 2 * time.Millisecond
	return c
}

func TestConsumer_RetriesStoreFailureBeforeCommit(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{
		{Offset: 7, Value: []byte(`{"hospitalId":"H1","department":"ER","metric":"wait","value":5}`)},
	}}
	c := newFastConsumer(r)

	attempts := 0
	err := c.Run(context.Background(), func(context.Context, KPIRecord) error {
		attempts++
		if attempts < 3 {
			return errors.New("upsert series H1/ER/wait: dial tcp: connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if len(r.committed) != 1 || r.committed[0] != 7 {
		t.Errorf("expected offset 7 committed once after success, got %v", r.committed)
	}
}

func TestConsumer_StoreOutageLeavesRecordUncommitted(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{
		{Offset: 7, Value: []byte(`{"hospitalId":"H1","department":"ER","metric":"wait","value":5}`)},
		{Offset: 8, Value: []byte(`{"hospitalId":"H1","department":"ER","metric":"wait","value":6}`)},
	}}
	c := newFastConsumer(r)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var seen []string
	err := c.Run(ctx, func(_ context.Context, rec KPIRecord) error {
		seen = append(seen, string(rec.Value))
		if len(seen) == 3 {
			cancel()
		}
		return errors.New("upsert series H1/ER/wait: dial tcp: connection refused")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(r.committed) != 0 {
		t.Errorf("record whose store write failed must stay uncommitted, got %v", r.committed)
	}
	for _, v := range seen {
		if v != "5" {
			t.Errorf("expected only offset 7 to be attempted, saw value %s", v)
		}
	}
}

func TestConsumer_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := newConsumer(&fakeReader{}, zerolog.Nop())
	if err := c.Run(ctx, func(context.Context, KPIRecord) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
