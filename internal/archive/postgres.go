package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/ordmarket/sale-service/internal/events"
)

// PostgresClient persists sale events for reporting and audit. Redis
// remains the source of truth for live state; this archive is the
// durable history.
type PostgresClient struct {
	db *sql.DB
}

// NewPostgresClient opens and pings the database.
func NewPostgresClient(connStr string) (*PostgresClient, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresClient{db: db}, nil
}

// InitSchema creates the archive tables.
func (c *PostgresClient) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sale_events (
		event_id VARCHAR(255) PRIMARY KEY,
		event_type VARCHAR(50) NOT NULL,
		kind VARCHAR(50) NOT NULL,
		item_id VARCHAR(255) NOT NULL,
		actor VARCHAR(255),
		amount DECIMAL(20, 8),
		ticket_number INTEGER,
		item_version BIGINT NOT NULL,
		event_time TIMESTAMP NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS bids (
		event_id VARCHAR(255) PRIMARY KEY,
		auction_id VARCHAR(255) NOT NULL,
		bidder_address VARCHAR(255) NOT NULL,
		amount DECIMAL(20, 8) NOT NULL,
		bid_time TIMESTAMP NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS tickets (
		event_id VARCHAR(255) PRIMARY KEY,
		raffle_id VARCHAR(255) NOT NULL,
		buyer_address VARCHAR(255) NOT NULL,
		ticket_number INTEGER NOT NULL,
		purchase_time TIMESTAMP NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sale_events_item_id ON sale_events(item_id);
	CREATE INDEX IF NOT EXISTS idx_bids_auction_id ON bids(auction_id);
	CREATE INDEX IF NOT EXISTS idx_tickets_raffle_id ON tickets(raffle_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_tickets_raffle_number ON tickets(raffle_id, ticket_number);
	`

	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// ArchiveEvent writes one sale event. Inserts are keyed by event id and
// conflict-ignored, so redelivered messages are harmless.
func (c *PostgresClient) ArchiveEvent(ctx context.Context, evt *events.SaleEvent) error {
	const insertEvent = `
		INSERT INTO sale_events (event_id, event_type, kind, item_id, actor, amount, ticket_number, item_version, event_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (event_id) DO NOTHING
	`
	if _, err := c.db.ExecContext(ctx, insertEvent,
		evt.EventID, evt.Type, evt.Kind, evt.ItemID, evt.Actor,
		evt.Amount, evt.TicketNumber, evt.Version, evt.Timestamp,
	); err != nil {
		return fmt.Errorf("insert sale event: %w", err)
	}

	switch evt.Type {
	case events.TypeBidAccepted:
		const insertBid = `
			INSERT INTO bids (event_id, auction_id, bidder_address, amount, bid_time)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (event_id) DO NOTHING
		`
		if _, err := c.db.ExecContext(ctx, insertBid,
			evt.EventID, evt.ItemID, evt.Actor, evt.Amount, evt.Timestamp,
		); err != nil {
			return fmt.Errorf("insert bid: %w", err)
		}
	case events.TypeTicketSold:
		const insertTicket = `
			INSERT INTO tickets (event_id, raffle_id, buyer_address, ticket_number, purchase_time)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (event_id) DO NOTHING
		`
		if _, err := c.db.ExecContext(ctx, insertTicket,
			evt.EventID, evt.ItemID, evt.Actor, evt.TicketNumber, evt.Timestamp,
		); err != nil {
			return fmt.Errorf("insert ticket: %w", err)
		}
	}

	return nil
}

// BidHistory returns the most recent archived bids for an auction.
func (c *PostgresClient) BidHistory(ctx context.Context, auctionID string, limit int) ([]ArchivedBid, error) {
	const query = `
		SELECT event_id, auction_id, bidder_address, amount, bid_time
		FROM bids
		WHERE auction_id = $1
		ORDER BY bid_time DESC
		LIMIT $2
	`
	rows, err := c.db.QueryContext(ctx, query, auctionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query bids: %w", err)
	}
	defer rows.Close()

	var bids []ArchivedBid
	for rows.Next() {
		var b ArchivedBid
		if err := rows.Scan(&b.EventID, &b.AuctionID, &b.BidderAddress, &b.Amount, &b.BidTime); err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

// TicketHistory returns the archived tickets for a raffle in purchase
// order.
func (c *PostgresClient) TicketHistory(ctx context.Context, raffleID string) ([]ArchivedTicket, error) {
	const query = `
		SELECT event_id, raffle_id, buyer_address, ticket_number, purchase_time
		FROM tickets
		WHERE raffle_id = $1
		ORDER BY ticket_number ASC
	`
	rows, err := c.db.QueryContext(ctx, query, raffleID)
	if err != nil {
		return nil, fmt.Errorf("query tickets: %w", err)
	}
	defer rows.Close()

	var tickets []ArchivedTicket
	for rows.Next() {
		var t ArchivedTicket
		if err := rows.Scan(&t.EventID, &t.RaffleID, &t.BuyerAddress, &t.TicketNumber, &t.PurchaseTime); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// ArchivedBid is one bid row read back from the archive.
type ArchivedBid struct {
	EventID       string    `json:"event_id"`
	AuctionID     string    `json:"auction_id"`
	BidderAddress string    `json:"bidder_address"`
	Amount        float64   `json:"amount"`
	BidTime       time.Time `json:"bid_time"`
}

// ArchivedTicket is one ticket row read back from the archive.
type ArchivedTicket struct {
	EventID      string    `json:"event_id"`
	RaffleID     string    `json:"raffle_id"`
	BuyerAddress string    `json:"buyer_address"`
	TicketNumber int       `json:"ticket_number"`
	PurchaseTime time.Time `json:"purchase_time"`
}

// Close closes the database connection.
func (c *PostgresClient) Close() error {
	return c.db.Close()
}
