package kafka

import (
	"context"
	"encoding/json"

	"tatkal-search/queues"

	"github.com/rs/zerolog/log"
	kafkago "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Producer publishes invalidation events keyed by route so one route stays on one partition.
type Producer struct {
	writer messageWriter
	topic  string
}

var _ queues.Publisher = (*Producer)(nil)

func NewProducer(brokers []string, topic string) *Producer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Producer{writer: w, topic: topic}
}

func (p *Producer) PublishInvalidation(ctx context.Context, ev *queues.InvalidationEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Interface("event", ev).Msg("failed to marshal invalidation event")
		return err
	}
	msg := kafkago.Message{Key: []byte(ev.Origin + "-" + ev.Destination), Value: b}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Error().Err(err).Str("topic", p.topic).Str("from", ev.Origin).Str("to", ev.Destination).Str("date", ev.TravelDate).Msg("failed to publish invalidation event")
		return err
	}
	log.Debug().Str("topic", p.topic).Str("from", ev.Origin).Str("to", ev.Destination).Str("date", ev.TravelDate).Msg("published invalidation event")
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
