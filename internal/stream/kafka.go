package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/media-aggregator/internal/models"
)

// DeadLetterSuffix is appended to a topic to name its dead letter topic.
const DeadLetterSuffix = "_dlq"

const dlqAttempts = 5

// MessageWriter is the part of *kafka.Writer the package needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewWriter returns a writer for topic that balances by message key.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		MaxAttempts:            3,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// Publisher sends records to the ingest topic keyed by their store id, so
// every version of a record lands on the same partition.
type Publisher struct {
	w   MessageWriter
	log *slog.Logger
}

func NewPublisher(w MessageWriter, logger *slog.Logger) *Publisher {
	return &Publisher{w: w, log: logger}
}

// Publish writes one message per record in a single call.
func (p *Publisher) Publish(ctx context.Context, source string, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(records))
	for _, rec := range records {
		key, err := rec.StoreID()
		if err != nil {
			return err
		}
		env, err := Wrap(source, rec)
		if err != nil {
			return err
		}
		value, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("encode envelope: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(key),
			Value: value,
			Headers: []kafka.Header{
				{Key: "kind", Value: []byte(env.Kind)},
				{Key: "source", Value: []byte(source)},
			},
		})
	}

	if err := p.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d records: %w", len(msgs), err)
	}
	p.log.Info("published records", slog.String("source", source), slog.Int("count", len(msgs)))
	return nil
}

// DeadLetter forwards msg to the dead letter writer with the failure attached
// as headers, retrying with exponential backoff.
func DeadLetter(ctx context.Context, log *slog.Logger, w MessageWriter, msg kafka.Message, cause error) error {
	dlq := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(append([]kafka.Header(nil), msg.Headers...),
			kafka.Header{Key: "original_topic", Value: []byte(msg.Topic)},
			kafka.Header{Key: "original_partition", Value: []byte(strconv.Itoa(msg.Partition))},
			kafka.Header{Key: "original_offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
			kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		),
	}

	var lastErr error
	for attempt := 0; attempt < dlqAttempts; attempt++ {
		if lastErr = w.WriteMessages(ctx, dlq); lastErr == nil {
			return nil
		}
		backoff := time.Duration(1<<uint(attempt)) * 100 * time.Millisecond
		log.Warn("dead letter write failed, retrying",
			slog.Any("err", lastErr),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return errors.Join(lastErr, ctx.Err())
		}
	}
	return fmt.Errorf("dead letter after %d attempts: %w", dlqAttempts, lastErr)
}
