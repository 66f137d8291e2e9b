package events

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/hospitalkpi/kpi/internal/platform/apperr"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// HandlerFunc processes one decoded record. An apperr.ErrInvalidInput error
// marks a poison record, which is logged and committed. Any other error is
// retried with backoff and the message stays uncommitted until it succeeds.
type HandlerFunc func(ctx context.Context, rec KPIRecord) error

// Consumer reads KPI records from a consumer group and commits each
// message once it has been handled.
type Consumer struct {
	r          messageReader
	logger     zerolog.Logger
	poll       time.Duration
	retryBase  time.Duration
	retryLimit time.Duration
}

func NewConsumer(brokers []string, topic, groupID string, logger zerolog.Logger) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("topic must not be empty")
	}
	if groupID == "" {
		return nil, errors.New("consumer group must not be empty")
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
	})
	return newConsumer(r, logger), nil
}

func newConsumer(r messageReader, logger zerolog.Logger) *Consumer {
	return &Consumer{
		r:          r,
		logger:     logger.With().Str("component", "kpi-consumer").Logger(),
		poll:       5 * time.Second,
		retryBase:  500 * time.Millisecond,
		retryLimit: 30 * time.Second,
	}
}

// Run blocks until ctx is cancelled or the reader is closed.
func (c *Consumer) Run(ctx context.Context, handle HandlerFunc) error {
	c.logger.Info().Msg("consumer started")
	defer c.logger.Info().Msg("consumer stopped")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fetchCtx, cancel := context.WithTimeout(ctx, c.poll)
		msg, err := c.r.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				continue
			case errors.Is(err, context.Canceled):
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe), errors.Is(err, kafka.ErrGroupClosed):
				return nil
			}
			c.logger.Error().Err(err).Msg("fetch failed")
			continue
		}

		rec, err := DecodeKPIRecord(msg.Value)
		if err != nil {
			c.logger.Warn().Err(err).Int64("offset", msg.Offset).Msg("skipping malformed record")
		} else if err := c.deliver(ctx, msg, rec, handle); err != nil {
			return err
		}

		commitCtx, commitCancel := context.WithTimeout(ctx, c.poll)
		if err := c.r.CommitMessages(commitCtx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error().Err(err).Int64("offset", msg.Offset).Msg("commit failed")
		}
		commitCancel()
	}
}

// deliver runs handle until it succeeds or rejects the record as invalid.
// It returns only when ctx is done, leaving the message uncommitted.
func (c *Consumer) deliver(ctx context.Context, msg kafka.Message, rec KPIRecord, handle HandlerFunc) error {
	wait := c.retryBase
	for attempt := 1; ; attempt++ {
		err := handle(ctx, rec)
		switch {
		case err == nil:
			return nil
		case apperr.IsInvalidInput(err):
			c.logger.Warn().Err(err).
				Int64("offset", msg.Offset).
				Str("hospital_id", rec.HospitalID).
				Str("metric", rec.Metric).
				Msg("record rejected")
			return nil
		}

		c.logger.Error().Err(err).
			Int64("offset", msg.Offset).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Msg("record not stored, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if wait *= 2; wait > c.retryLimit {
			wait = c.retryLimit
		}
	}
}

func (c *Consumer) Close() error {
	return c.r.Close()
}
