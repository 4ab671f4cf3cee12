package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Broadcaster publishes events to named channels. Delivery is
// fire-and-forget: no acknowledgement or retry is assumed by callers.
// Implementations must be safe for concurrent use.
type Broadcaster interface {
	Publish(ctx context.Context, channel, event string, payload any) error
	Ping(ctx context.Context) error
	Close() error
}

// message is the wire envelope for every published event.
type message struct {
	Event       string    `json:"event"`
	Payload     any       `json:"payload"`
	PublishedAt time.Time `json:"published_at"`
}

// RedisBroadcaster implements Broadcaster over Redis pub/sub.
type RedisBroadcaster struct {
	client *redis.Client
}

// NewRedisBroadcaster creates a RedisBroadcaster from a Redis URL.
func NewRedisBroadcaster(redisURL string) (*RedisBroadcaster, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisBroadcaster{client: redis.NewClient(opts)}, nil
}

// NewRedisBroadcasterFromClient wraps an existing client, letting the
// broadcaster share a connection pool with the cache.
func NewRedisBroadcasterFromClient(client *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{client: client}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, channel, event string, payload any) error {
	body, err := json.Marshal(message{
		Event:       event,
		Payload:     payload,
		PublishedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	if err := b.client.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("publish %s to %s: %w", event, channel, err)
	}
	return nil
}

func (b *RedisBroadcaster) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBroadcaster) Close() error {
	return b.client.Close()
}
