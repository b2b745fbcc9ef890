package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"tatkal-search/queues"

	gpubsub "cloud.google.com/go/pubsub"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

type Subscriber struct {
	projectID        string
	subscriptionName string
	credsFile        string
	client           *gpubsub.Client
	sub              *gpubsub.Subscription
}

var _ queues.Subscriber = (*Subscriber)(nil)

func NewSubscriber(projectID, subscriptionName, credsFile string) *Subscriber {
	return &Subscriber{projectID: projectID, subscriptionName: subscriptionName, credsFile: credsFile}
}

func (s *Subscriber) Start(ctx context.Context, handler queues.Handler) error {
	if s.client == nil {
		var (
			client *gpubsub.Client
			err    error
		)
		if s.credsFile != "" {
			log.Debug().Str("projectID", s.projectID).Str("subscription", s.subscriptionName).Str("credsFile", s.credsFile).Msg("initializing pubsub subscriber with explicit credentials")
			client, err = gpubsub.NewClient(ctx, s.projectID, option.WithCredentialsFile(s.credsFile))
		} else {
			log.Debug().Str("projectID", s.projectID).Str("subscription", s.subscriptionName).Msg("initializing pubsub subscriber with default credentials")
			client, err = gpubsub.NewClient(ctx, s.projectID)
		}
		if err != nil {
			log.Error().Err(err).Str("projectID", s.projectID).Str("subscription", s.subscriptionName).Msg("failed to create pubsub client for subscriber")
			return err
		}
		s.client = client
		s.sub = client.Subscription(s.subscriptionName)
		log.Info().Str("subscription", s.subscriptionName).Msg("pubsub subscriber initialized")
	}

	// Receive blocks until ctx is cancelled and runs the callback on its own goroutines.
	return s.sub.Receive(ctx, func(ctx context.Context, m *gpubsub.Message) {
		log.Debug().Str("messageID", m.ID).Int("size", len(m.Data)).Msg("received invalidation message")
		recvAt := time.Now()
		var ev queues.InvalidationEvent
		if err := json.Unmarshal(m.Data, &ev); err != nil {
			// Poison: redelivery cannot fix a malformed payload.
			log.Error().Err(err).Str("messageID", m.ID).Msg("failed to unmarshal invalidation event; dropping")
			m.Ack()
			return
		}

		if err := handler(ctx, &ev); err != nil {
			if errors.Is(err, queues.ErrInvalidEvent) {
				log.Error().Str("from", ev.Origin).Str("to", ev.Destination).Str("date", ev.TravelDate).Msg("invalid invalidation payload; dropping")
				m.Ack()
				return
			}
			log.Error().Err(err).Str("messageID", m.ID).Msg("invalidation handler failed; will retry")
			m.Nack()
			return
		}
		log.Debug().Str("messageID", m.ID).Dur("latency", time.Since(recvAt)).Msg("invalidation applied; acking message")
		m.Ack()
	})
}
