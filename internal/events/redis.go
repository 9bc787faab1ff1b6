package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/utils"
)

const DefaultChannel = "checkup:events"

// RedisPublisher mirrors events onto a Redis channel for out-of-process
// consumers.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  *utils.Logger
}

func NewRedisPublisher(ctx context.Context, url, channel string, logger *utils.Logger) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisPublisherWithClient(client, channel, logger), nil
}

func NewRedisPublisherWithClient(client *redis.Client, channel string, logger *utils.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel, logger: logger}
}

// Publish logs and drops on failure.
func (p *RedisPublisher) Publish(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("Failed to encode event", "event", ev.Name, "error", err)
		return
	}
	if err := p.client.Publish(context.WithoutCancel(ctx), p.channel, payload).Err(); err != nil {
		p.logger.Warn("Failed to publish event to Redis", "event", ev.Name, "error", err)
	}
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
