package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwalitptl/lifepulse/pkg/circuitbreaker"
	"github.com/jwalitptl/lifepulse/pkg/logger"
	"github.com/jwalitptl/lifepulse/pkg/messaging"
)

type RedisBroker struct {
	client *redis.Client
	cb     *circuitbreaker.CircuitBreaker
	logger *logger.Logger
}

type Config struct {
	URL          string
	MaxRetries   int
	RetryBackoff time.Duration
	PoolSize     int
	MinIdleConns int
}

func NewRedisBroker(config Config, log *logger.Logger) (messaging.Broker, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.MaxRetries = config.MaxRetries
	opts.MinRetryBackoff = config.RetryBackoff
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	opts.MinIdleConns = config.MinIdleConns

	return newRedisBroker(redis.NewClient(opts), log), nil
}

func newRedisBroker(client *redis.Client, log *logger.Logger) *RedisBroker {
	settings := circuitbreaker.DefaultSettings("redis-broker")
	settings.OnStateChange = func(name, from, to string) {
		log.Warn("circuit breaker state changed", "breaker", name, "from", from, "to", to)
	}

	return &RedisBroker{
		client: client,
		cb:     circuitbreaker.NewCircuitBreaker(settings),
		logger: log,
	}
}

// Publish reports an error when no subscriber received the message, so an
// unattended channel never counts as a delivery.
func (b *RedisBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return b.cb.Execute(func() error {
		receivers, err := b.client.Publish(ctx, channel, payload).Result()
		if err != nil {
			return fmt.Errorf("failed to publish to %s: %w", channel, err)
		}
		if receivers == 0 {
			return fmt.Errorf("no subscribers on %s", channel)
		}
		return nil
	})
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}
