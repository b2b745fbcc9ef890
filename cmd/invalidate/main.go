// Command invalidate publishes an availability-changed event so running search instances evict
// the matching cache entry.
//
//	invalidate -from DEL -to MUM -date 2024-12-25
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"tatkal-search/config"
	"tatkal-search/queues"
	qkafka "tatkal-search/queues/kafka"
	qpubsub "tatkal-search/queues/pubsub"
	"tatkal-search/store"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type publisher interface {
	queues.Publisher
	Close() error
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	from := flag.String("from", "", "origin station code")
	to := flag.String("to", "", "destination station code")
	date := flag.String("date", time.Now().UTC().Format("2006-01-02"), "travel date (YYYY-MM-DD)")
	timeout := flag.Duration("timeout", 10*time.Second, "publish timeout")
	flag.Parse()

	cfg := config.Load()
	ev := queues.NewInvalidationEvent(store.Query{Origin: *from, Destination: *to, TravelDate: *date})
	if err := ev.Validate(); err != nil {
		log.Fatal().Err(err).Str("from", *from).Str("to", *to).Str("date", *date).Msg("refusing to publish")
	}

	var p publisher
	switch cfg.InvalidationTransport {
	case "pubsub":
		if cfg.GoogleProjectID == "" {
			log.Fatal().Msg("missing Google project id; set GOOGLE_PROJECT_ID")
		}
		p = qpubsub.NewPublisher(cfg.GoogleProjectID, cfg.InvalidationTopic, cfg.CredentialsFile)
	case "kafka":
		p = qkafka.NewProducer(cfg.KafkaBrokers, cfg.InvalidationTopic)
	default:
		log.Fatal().Msg("set INVALIDATION_TRANSPORT to pubsub or kafka")
	}
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := p.PublishInvalidation(ctx, ev); err != nil {
		log.Fatal().Err(err).Msg("publish failed")
	}
	log.Info().Str("topic", cfg.InvalidationTopic).Str("from", ev.Origin).Str("to", ev.Destination).Str("date", ev.TravelDate).Msg("invalidation published")
}
