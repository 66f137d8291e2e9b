package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the slice of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes kpi.submitted events to a single topic.
type KafkaPublisher struct {
	w messageWriter
}

// NewKafkaPublisher builds a synchronous writer keyed by series so that
// points for one series keep their order.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("topic must not be empty")
	}
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}, nil
}

func (p *KafkaPublisher) PublishSubmitted(ctx context.Context, evt KPISubmitted) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal kpi.submitted: %w", err)
	}
	msg := kafka.Message{
		Key:     []byte(evt.Key()),
		Value:   body,
		Headers: []kafka.Header{{Key: "type", Value: []byte("kpi.submitted")}},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish kpi.submitted: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
