package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/ordmarket/sale-service/internal/events"
	"github.com/ordmarket/sale-service/internal/platform/logger"
)

// Consumer drains the sale-event stream and persists each event.
type Consumer struct {
	conn *nats.Conn
	js   jetstream.JetStream
	db   *PostgresClient
	log  *logger.Logger
}

// NewConsumer connects to NATS and returns a consumer.
func NewConsumer(natsURL string, db *PostgresClient, log *logger.Logger) (*Consumer, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}
	return &Consumer{conn: conn, js: js, db: db, log: log}, nil
}

// Start consumes the stream until the context is cancelled. Events that
// fail to persist are not acked and come back on redelivery; the archive
// inserts are idempotent so replays are safe.
func (c *Consumer) Start(ctx context.Context) error {
	cons, err := c.js.CreateOrUpdateConsumer(ctx, events.StreamName, jetstream.ConsumerConfig{
		Durable:       "archiver",
		FilterSubject: events.StreamSubjects,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	consumeCtx, err := cons.Consume(func(msg jetstream.Msg) {
		c.handleMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	defer consumeCtx.Stop()

	c.log.Info("archiver consuming", "stream", events.StreamName)
	<-ctx.Done()
	return nil
}

func (c *Consumer) handleMessage(ctx context.Context, msg jetstream.Msg) {
	var evt events.SaleEvent
	if err := json.Unmarshal(msg.Data(), &evt); err != nil {
		c.log.Error("unmarshal sale event", "err", err)
		// Poison message; ack so it does not loop forever.
		_ = msg.Ack()
		return
	}

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := c.db.ArchiveEvent(dbCtx, &evt); err != nil {
		c.log.Error("archive sale event", "event_id", evt.EventID, "err", err)
		return
	}

	c.log.Debug("event archived", "event_id", evt.EventID, "type", evt.Type, "item_id", evt.ItemID)
	_ = msg.Ack()
}

// Close closes the NATS connection.
func (c *Consumer) Close() {
	c.conn.Close()
}
