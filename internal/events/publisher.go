package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"

	"github.com/ordmarket/sale-service/internal/platform/logger"
)

// Publisher fans a committed mutation out to the live path (Redis
// Pub/Sub, picked up by the broadcaster) and the durable path (NATS
// JetStream, drained by the archiver). Both publishes are fire and
// forget: the write path never blocks or fails on event delivery.
type Publisher struct {
	redis *redis.Client
	js    jetstream.JetStream
	log   *logger.Logger
}

// NewPublisher ensures the archival stream exists and returns a
// publisher.
func NewPublisher(redisClient *redis.Client, natsConn *nats.Conn, log *logger.Logger) (*Publisher, error) {
	js, err := jetstream.New(natsConn)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Sale events awaiting archival",
		Subjects:    []string{StreamSubjects},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      24 * time.Hour,
		Replicas:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("create/update stream %s: %w", StreamName, err)
	}

	return &Publisher{redis: redisClient, js: js, log: log}, nil
}

// Publish sends the event on both paths in the background.
func (p *Publisher) Publish(evt SaleEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		p.log.Error("marshal sale event", "event_id", evt.EventID, "err", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.redis.Publish(ctx, Channel(evt.ItemID), payload).Err(); err != nil {
			p.log.Warn("publish to redis pubsub", "event_id", evt.EventID, "err", err)
		}
	}()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ack, err := p.js.Publish(ctx, Subject(evt.ItemID), payload)
		if err != nil {
			p.log.Warn("publish to jetstream", "event_id", evt.EventID, "err", err)
			return
		}
		p.log.Debug("event queued for archival", "event_id", evt.EventID, "seq", ack.Sequence)
	}()
}
