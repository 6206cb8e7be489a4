package ws

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ordmarket/sale-service/internal/events"
	"github.com/ordmarket/sale-service/internal/platform/logger"
)

// Subscriber drains the sale-event Pub/Sub channels and hands payloads to
// the WebSocket manager.
type Subscriber struct {
	client *redis.Client
	pubsub *redis.PubSub
	log    *logger.Logger
}

// NewSubscriber pings Redis and returns a subscriber.
func NewSubscriber(client *redis.Client, log *logger.Logger) (*Subscriber, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Subscriber{client: client, log: log}, nil
}

// Message is one sale-event payload tagged with its item id.
type Message struct {
	ItemID  string
	Payload string
}

// Listen subscribes to every item's event channel and forwards messages
// until the context is cancelled. Blocking; run in a goroutine.
func (s *Subscriber) Listen(ctx context.Context, out chan<- *Message) error {
	s.pubsub = s.client.PSubscribe(ctx, events.ChannelPattern)
	ch := s.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			itemID := itemIDFromChannel(msg.Channel)
			if itemID == "" {
				s.log.Warn("message on unexpected channel", "channel", msg.Channel)
				continue
			}
			out <- &Message{ItemID: itemID, Payload: msg.Payload}
		}
	}
}

// itemIDFromChannel strips the channel prefix: "sale_events:abc" -> "abc".
func itemIDFromChannel(channel string) string {
	id, ok := strings.CutPrefix(channel, events.Channel(""))
	if !ok {
		return ""
	}
	return id
}

// Close tears down the subscription and the connection.
func (s *Subscriber) Close() error {
	if s.pubsub != nil {
		s.pubsub.Close()
	}
	return s.client.Close()
}
