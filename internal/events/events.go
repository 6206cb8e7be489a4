package events

import (
	"time"

	"github.com/ordmarket/sale-service/internal/core"
)

// Type names what happened to an item.
type Type string

const (
	TypeActivated    Type = "activated"
	TypeCancelled    Type = "cancelled"
	TypeBidAccepted  Type = "bid_accepted"
	TypeAuctionEnded Type = "auction_ended"
	TypeTicketSold   Type = "ticket_sold"
	TypeWinnerDrawn  Type = "winner_drawn"
)

// SaleEvent is emitted after a mutation commits. It flows to Redis
// Pub/Sub for live broadcast and to NATS JetStream for archival.
type SaleEvent struct {
	EventID      string    `json:"event_id"`
	Type         Type      `json:"type"`
	Kind         core.Kind `json:"kind"`
	ItemID       string    `json:"item_id"`
	Actor        string    `json:"actor,omitempty"`
	Amount       float64   `json:"amount,omitempty"`
	TicketNumber int       `json:"ticket_number,omitempty"`
	Version      int64     `json:"version"`
	Timestamp    time.Time `json:"timestamp"`
}

// Channel is the Redis Pub/Sub channel for one item's events.
func Channel(itemID string) string {
	return "sale_events:" + itemID
}

// ChannelPattern matches every item's channel.
const ChannelPattern = "sale_events:*"

// Subject is the JetStream subject for one item's events.
func Subject(itemID string) string {
	return "sale.events." + itemID
}

// StreamName is the JetStream stream holding events awaiting archival.
const StreamName = "SALE_EVENTS"

// StreamSubjects is the subject space the stream captures.
const StreamSubjects = "sale.events.*"
