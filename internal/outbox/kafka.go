package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher delivers events in order. It returns how many leading events
// were delivered; on error the rest must be retried.
type Publisher interface {
	Publish(ctx context.Context, events []Event) (int, error)
}

// KafkaPublisher writes each event to its own topic keyed by Event.Key.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
			BatchTimeout:           50 * time.Millisecond,
		},
	}
}

// Publish sends all events in a single WriteMessages call.
func (p *KafkaPublisher) Publish(ctx context.Context, events []Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		msgs = append(msgs, kafka.Message{
			Topic: e.Topic,
			Key:   []byte(e.Key),
			Value: e.Payload,
			Time:  now,
			Headers: []kafka.Header{
				{Key: "event_id", Value: []byte(e.ID.String())},
			},
		})
	}

	err := p.writer.WriteMessages(ctx, msgs...)
	n := deliveredPrefix(err, len(events))
	if err != nil {
		return n, fmt.Errorf("outbox: failed to publish event %s: %w", events[n].ID, err)
	}
	return n, nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// deliveredPrefix counts the events before the first failed one. Errors other
// than kafka.WriteErrors fail the whole batch.
func deliveredPrefix(err error, total int) int {
	if err == nil {
		return total
	}
	var writeErrs kafka.WriteErrors
	if !errors.As(err, &writeErrs) {
		return 0
	}
	for i, e := range writeErrs {
		if e != nil {
			return i
		}
	}
	return 0
}
