package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tatkal-search/admission"
	"tatkal-search/api"
	"tatkal-search/cache"
	"tatkal-search/cacheaside"
	"tatkal-search/config"
	"tatkal-search/health"
	"tatkal-search/metrics"
	"tatkal-search/queues"
	qkafka "tatkal-search/queues/kafka"
	qpubsub "tatkal-search/queues/pubsub"
	"tatkal-search/store"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var version = "source"

func setLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if os.Getenv("DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func main() {
	cfg := config.Load()
	setLogger(cfg.LogLevel)
	log.Info().Msgf("Starting tatkal-search version: %s", version)
	log.Info().Interface("config", cfg.Redacted()).Msg("config loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cacheClient, closeCache := buildCache(ctx, cfg)
	defer closeCache()
	st, closeStore := buildStore(ctx, cfg)
	defer closeStore()

	controller := admission.NewController(int64(cfg.MaxInflight))
	reader := cacheaside.NewReader(cacheClient, cacheaside.Options{
		TTL:               cfg.CacheTTL(),
		StoreTimeout:      cfg.StoreTimeout,
		CacheWriteTimeout: cfg.CacheWriteTimeout,
		CoalesceMisses:    cfg.CoalesceMisses,
	})

	router := api.NewRouter()
	api.NewHandler(controller, reader, st).Register(router)
	health.Register(router, health.Info{
		MaxInflight:     cfg.MaxInflight,
		CacheTTLSeconds: cfg.CacheTTLSeconds,
		CacheEnabled:    cfg.CacheEnabled,
	}, controller, cacheClient, st)
	metrics.Register(router)

	srv := api.NewServer(cfg.HTTPAddr(), router)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr()).Msg("starting search server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	if sub := buildSubscriber(cfg); sub != nil {
		invalidator := queues.NewInvalidator(reader)
		go func() {
			log.Info().Str("transport", cfg.InvalidationTransport).Msg("starting invalidation subscriber loop")
			if err := sub.Start(ctx, invalidator.Handle); err != nil {
				// Entries still expire on TTL, so losing the feed is not fatal.
				log.Error().Err(err).Msg("invalidation subscriber exited; relying on TTL expiry")
			}
		}()
	}

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server graceful shutdown failed")
	}
	log.Info().Msg("shutdown complete")
}

func buildCache(ctx context.Context, cfg *config.Config) (cache.Client, func()) {
	if !cfg.CacheEnabled {
		log.Info().Msg("cache disabled; every search goes to the store")
		return cache.Disabled{}, func() {}
	}
	if cfg.RedisAddr == "" {
		log.Info().Msg("REDIS_ADDR not set; using in-process cache")
		return cache.NewMemory(cfg.CacheTTL(), time.Minute), func() {}
	}
	r, err := cache.NewRedis(ctx, cache.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Error().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable at startup; falling back to in-process cache")
		return cache.NewMemory(cfg.CacheTTL(), time.Minute), func() {}
	}
	return r, func() { _ = r.Close() }
}

func buildStore(ctx context.Context, cfg *config.Config) (store.Store, func()) {
	if cfg.StoreDSN == "" {
		log.Info().Dur("latency", cfg.StoreLatency).Msg("STORE_DSN not set; using simulated store")
		return store.NewSimulated(cfg.StoreLatency), func() {}
	}
	pg, err := store.NewPostgres(ctx, cfg.StoreDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open availability store")
	}
	return pg, pg.Close
}

func buildSubscriber(cfg *config.Config) queues.Subscriber {
	switch cfg.InvalidationTransport {
	case "pubsub":
		if cfg.GoogleProjectID == "" || cfg.InvalidationSubscription == "" {
			log.Error().Msg("pubsub invalidation disabled; missing project or subscription")
			return nil
		}
		if cfg.CredentialsFile != "" {
			log.Info().Str("credsFile", cfg.CredentialsFile).Msg("using explicit Google credentials file")
		} else {
			log.Info().Msg("using default Google credentials")
		}
		return qpubsub.NewSubscriber(cfg.GoogleProjectID, cfg.InvalidationSubscription, cfg.CredentialsFile)
	case "kafka":
		return qkafka.NewConsumer(cfg.KafkaBrokers, cfg.InvalidationTopic, cfg.KafkaGroupID)
	default:
		log.Info().Msg("no invalidation transport configured; entries expire on TTL only")
		return nil
	}
}
