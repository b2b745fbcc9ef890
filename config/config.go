package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxInflight = 500
	DefaultCacheTTL    = 30
)

type Config struct {
	HTTPPort          int
	LogLevel          string
	CacheEnabled      bool
	MaxInflight       int
	CacheTTLSeconds   int
	StoreTimeout      time.Duration
	CacheWriteTimeout time.Duration
	CoalesceMisses    bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	StoreDSN     string
	StoreLatency time.Duration

	// Invalidation feed. Transport is "", "pubsub" or "kafka".
	InvalidationTransport    string
	InvalidationTopic        string
	InvalidationSubscription string
	GoogleProjectID          string
	CredentialsFile          string
	KafkaBrokers             []string
	KafkaGroupID             string
}

func Load() *Config {
	cfg := &Config{
		HTTPPort:          getEnvInt("HTTP_PORT", 3000),
		LogLevel:          strings.TrimSpace(getEnv("LOG_LEVEL", "info")),
		CacheEnabled:      getEnvBool("CACHE_ENABLED", true),
		MaxInflight:       getEnvInt("MAX_INFLIGHT", DefaultMaxInflight),
		CacheTTLSeconds:   getEnvInt("CACHE_TTL", DefaultCacheTTL),
		StoreTimeout:      getEnvDuration("STORE_TIMEOUT", 2*time.Second),
		CacheWriteTimeout: getEnvDuration("CACHE_WRITE_TIMEOUT", 500*time.Millisecond),
		CoalesceMisses:    getEnvBool("COALESCE_MISSES", false),

		RedisAddr:     strings.TrimSpace(getEnv("REDIS_ADDR", "")),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		StoreDSN:     strings.TrimSpace(getEnv("STORE_DSN", "")),
		StoreLatency: getEnvDuration("STORE_LATENCY", 120*time.Millisecond),

		InvalidationTransport:    strings.ToLower(strings.TrimSpace(getEnv("INVALIDATION_TRANSPORT", ""))),
		InvalidationTopic:        strings.TrimSpace(getEnv("INVALIDATION_TOPIC", "availability-changes")),
		InvalidationSubscription: strings.TrimSpace(getEnv("INVALIDATION_SUBSCRIPTION", "")),
		GoogleProjectID:          strings.TrimSpace(firstNonEmpty(os.Getenv("GOOGLE_PROJECT_ID"), os.Getenv("GOOGLE_CLOUD_PROJECT"))),
		CredentialsFile:          strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),
		KafkaBrokers:             splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaGroupID:             strings.TrimSpace(getEnv("KAFKA_GROUP_ID", "tatkal-search")),
	}

	if cfg.MaxInflight <= 0 {
		log.Warn().Int("maxInflight", cfg.MaxInflight).Msg("MAX_INFLIGHT must be positive; using default")
		cfg.MaxInflight = DefaultMaxInflight
	}
	if cfg.CacheTTLSeconds <= 0 {
		log.Warn().Int("cacheTtl", cfg.CacheTTLSeconds).Msg("CACHE_TTL must be positive; using default")
		cfg.CacheTTLSeconds = DefaultCacheTTL
	}
	switch cfg.InvalidationTransport {
	case "", "pubsub", "kafka":
	default:
		log.Warn().Str("transport", cfg.InvalidationTransport).Msg("unknown INVALIDATION_TRANSPORT; invalidation feed disabled")
		cfg.InvalidationTransport = ""
	}
	if cfg.InvalidationTransport == "pubsub" && (cfg.GoogleProjectID == "" || cfg.InvalidationSubscription == "") {
		log.Warn().Msg("pubsub invalidation needs GOOGLE_PROJECT_ID and INVALIDATION_SUBSCRIPTION")
	}
	return cfg
}

func (c *Config) HTTPAddr() string {
	return net.JoinHostPort("0.0.0.0", strconv.Itoa(c.HTTPPort))
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Redacted returns a view safe for logging
func (c *Config) Redacted() map[string]any {
	return map[string]any{
		"httpPort":              c.HTTPPort,
		"logLevel":              c.LogLevel,
		"cacheEnabled":          c.CacheEnabled,
		"maxInflight":           c.MaxInflight,
		"cacheTtlSeconds":       c.CacheTTLSeconds,
		"storeTimeout":          c.StoreTimeout.String(),
		"coalesceMisses":        c.CoalesceMisses,
		"redisAddr":             c.RedisAddr,
		"redisPasswordProvided": c.RedisPassword != "",
		"storeDsnProvided":      c.StoreDSN != "",
		"invalidationTransport": c.InvalidationTransport,
		"invalidationTopic":     c.InvalidationTopic,
		"credentialsProvided":   c.CredentialsFile != "",
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		iv, err := strconv.Atoi(strings.TrimSpace(v))
		if err == nil {
			return iv
		}
		fmt.Printf("invalid int for %s: %s\n", key, v)
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err == nil {
			return b
		}
		fmt.Printf("invalid bool for %s: %s\n", key, v)
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err == nil {
			return d
		}
		fmt.Printf("invalid duration for %s: %s\n", key, v)
	}
	return def
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
