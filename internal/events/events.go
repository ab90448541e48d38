// Package events fans live engine events out to every connected observer
// through a Redis pub/sub channel.
package events

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"liteassistant/internal/models"
)

// Channel is the Redis channel events are published on
const Channel = "liteassistant:events"

type pubSubClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// Broadcaster publishes events and hands out subscriptions
type Broadcaster struct {
	client  pubSubClient
	channel string
}

// NewBroadcaster creates a broadcaster on the default channel
func NewBroadcaster(client *redis.Client) *Broadcaster {
	return &Broadcaster{client: client, channel: Channel}
}

// Broadcast publishes event. Failures are logged; observers are best effort.
func (b *Broadcaster) Broadcast(ctx context.Context, event models.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("EVENTS: Failed to encode %s event: %v", event.Type, err)
		return
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		log.Printf("EVENTS: Failed to publish %s event: %v", event.Type, err)
	}
}

// Subscription delivers raw JSON events until closed
type Subscription struct {
	pubsub *redis.PubSub
	C      <-chan *redis.Message
}

// Close stops the subscription
func (s *Subscription) Close() error {
	return s.pubsub.Close()
}

// Subscribe opens a new subscription to the event channel
func (b *Broadcaster) Subscribe(ctx context.Context) (*Subscription, error) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	// Receive waits for the subscription confirmation so no event is missed after return.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}
	return &Subscription{pubsub: pubsub, C: pubsub.Channel()}, nil
}
