package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"tatkal-search/queues"

	gpubsub "cloud.google.com/go/pubsub"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

type Publisher struct {
	projectID string
	topicName string
	credsFile string
	client    *gpubsub.Client
	topic     *gpubsub.Topic
}

var _ queues.Publisher = (*Publisher)(nil)

func NewPublisher(projectID, topicName, credsFile string) *Publisher {
	return &Publisher{projectID: projectID, topicName: topicName, credsFile: credsFile}
}

// PublishInvalidation sends ev with the route as ordering key, so events for one route reach
// subscribers in publish order.
func (p *Publisher) PublishInvalidation(ctx context.Context, ev *queues.InvalidationEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	if p.topic == nil {
		if err := p.connect(ctx); err != nil {
			return err
		}
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode invalidation: %w", err)
	}

	route := ev.Query().Route()
	res := p.topic.Publish(ctx, &gpubsub.Message{
		Data:        b,
		OrderingKey: route,
		Attributes: map[string]string{
			"type":  ev.Type,
			"route": route,
			"date":  ev.TravelDate,
		},
	})
	id, err := res.Get(ctx)
	if err != nil {
		// A failed ordered publish pauses the key until it is resumed.
		p.topic.ResumePublish(route)
		log.Error().Err(err).Str("topic", p.topicName).Str("route", route).Str("date", ev.TravelDate).Msg("failed to publish invalidation event")
		return fmt.Errorf("publish invalidation for %s:%s: %w", route, ev.TravelDate, err)
	}
	log.Debug().Str("messageID", id).Str("route", route).Str("date", ev.TravelDate).Msg("published invalidation event")
	return nil
}

func (p *Publisher) connect(ctx context.Context) error {
	opts := []option.ClientOption{}
	if p.credsFile != "" {
		opts = append(opts, option.WithCredentialsFile(p.credsFile))
	}
	client, err := gpubsub.NewClient(ctx, p.projectID, opts...)
	if err != nil {
		log.Error().Err(err).Str("projectID", p.projectID).Str("topic", p.topicName).Msg("failed to create pubsub client for publisher")
		return err
	}
	p.client = client
	p.topic = orderedTopic(client, p.topicName)
	log.Info().Str("topic", p.topicName).Bool("credsFile", p.credsFile != "").Msg("pubsub publisher initialized")
	return nil
}

func orderedTopic(client *gpubsub.Client, name string) *gpubsub.Topic {
	t := client.Topic(name)
	t.EnableMessageOrdering = true
	return t
}

func (p *Publisher) Close() error {
	if p.topic != nil {
		p.topic.Stop()
	}
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
