package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"tatkal-search/queues"

	"github.com/rs/zerolog/log"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	defaultAttempts = 3
	defaultBackoff  = time.Second
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Consumer reads invalidation events from a Kafka topic and commits offsets manually.
type Consumer struct {
	reader   messageReader
	topic    string
	attempts int
	backoff  time.Duration
}

var _ queues.Subscriber = (*Consumer)(nil)

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // commits are explicit
	})
	return &Consumer{reader: r, topic: topic, attempts: defaultAttempts, backoff: defaultBackoff}
}

// Start blocks until ctx is done. It closes the underlying reader on return.
func (c *Consumer) Start(ctx context.Context, handler queues.Handler) error {
	defer c.reader.Close()
	log.Info().Str("topic", c.topic).Msg("kafka consumer started")
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Str("topic", c.topic).Msg("kafka consumer context done")
				return nil
			}
			log.Error().Err(err).Str("topic", c.topic).Msg("fetch message error")
			if !sleep(ctx, c.backoff) {
				return nil
			}
			continue
		}
		c.process(ctx, m, handler)
	}
}

// process applies one message and commits it unless ctx ended mid-retry.
func (c *Consumer) process(ctx context.Context, m kafkago.Message, handler queues.Handler) {
	var ev queues.InvalidationEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		log.Error().Err(err).Str("topic", m.Topic).Int64("offset", m.Offset).Msg("invalid JSON, skipping message")
		c.commit(ctx, m)
		return
	}

	for attempt := 1; ; attempt++ {
		err := handler(ctx, &ev)
		if err == nil {
			break
		}
		if errors.Is(err, queues.ErrInvalidEvent) {
			log.Error().Str("from", ev.Origin).Str("to", ev.Destination).Str("date", ev.TravelDate).Msg("invalid invalidation payload, skipping message")
			break
		}
		if attempt >= c.attempts {
			// The entry still expires on its TTL.
			log.Error().Err(err).Int("attempts", attempt).Str("from", ev.Origin).Str("to", ev.Destination).Str("date", ev.TravelDate).Msg("giving up on invalidation")
			break
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("invalidation handler failed; retrying")
		if !sleep(ctx, c.backoff) {
			return
		}
	}
	c.commit(ctx, m)
}

func (c *Consumer) commit(ctx context.Context, m kafkago.Message) {
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		log.Error().Err(err).Int64("offset", m.Offset).Msg("commit message failed")
		return
	}
	log.Debug().Int("partition", m.Partition).Int64("offset", m.Offset).Msg("message processed and committed")
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
