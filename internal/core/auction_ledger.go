package core

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ordmarket/sale-service/internal/platform/logger"
)

// AuctionLedger validates and applies auction mutations. It holds no
// locks and no item state; correctness under concurrent callers derives
// entirely from the store's versioned compare-and-swap.
type AuctionLedger struct {
	store Store[*Auction]
	log   *logger.Logger
	now   func() time.Time
}

func NewAuctionLedger(store Store[*Auction], log *logger.Logger) *AuctionLedger {
	return &AuctionLedger{
		store: store,
		log:   log,
		now:   time.Now,
	}
}

// Create validates the spec and persists a new auction in pending status.
func (l *AuctionLedger) Create(ctx context.Context, spec AuctionSpec) (*Auction, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	now := l.now()
	auction := &Auction{
		Item: Item{
			ID:            uuid.New().String(),
			AssetID:       spec.AssetID,
			SellerAddress: spec.SellerAddress,
			StartTime:     spec.StartTime,
			EndTime:       spec.EndTime,
			Status:        StatusPending,
			Version:       1,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		StartingPrice:   spec.StartingPrice,
		MinBidIncrement: spec.MinBidIncrement,
		CurrentPrice:    spec.StartingPrice,
		Bids:            []Bid{},
	}
	if err := l.store.Create(ctx, auction); err != nil {
		return nil, err
	}
	l.log.Info("auction created", "auction_id", auction.ID, "asset_id", auction.AssetID)
	return auction, nil
}

// Get returns the auction without side effects.
func (l *AuctionLedger) Get(ctx context.Context, id string) (*Auction, error) {
	return l.store.Read(ctx, id)
}

// ListActive returns all auctions currently accepting bids.
func (l *AuctionLedger) ListActive(ctx context.Context) ([]*Auction, error) {
	return l.store.ListByStatus(ctx, StatusActive)
}

// PlaceBid applies a bid. Preconditions are checked in order against the
// freshly read state on every attempt, so two bids racing for the same
// price level resolve to exactly one winner: the loser re-validates
// against the raised price and fails the increment rule honestly instead
// of overwriting the accepted bid.
func (l *AuctionLedger) PlaceBid(ctx context.Context, id, bidder string, amount float64) (*Auction, error) {
	auction, err := applyCAS(ctx, l.store, id, func(a *Auction) error {
		if a.Status != StatusActive {
			return Errf(CodeInvalidState, "auction %s is %s, not active", id, a.Status)
		}
		if amount <= a.CurrentPrice {
			return Errf(CodeBidTooLow, "bid %v is not above current price %v", amount, a.CurrentPrice)
		}
		if amount < a.CurrentPrice+a.MinBidIncrement {
			return Errf(CodeIncrementTooSmall, "bid %v is below current price %v plus increment %v", amount, a.CurrentPrice, a.MinBidIncrement)
		}
		now := l.now()
		a.Bids = append(a.Bids, Bid{Bidder: bidder, Amount: amount, Timestamp: now})
		a.CurrentPrice = amount
		a.HighestBidder = bidder
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.log.Info("bid accepted", "auction_id", id, "bidder", bidder, "amount", amount)
	return auction, nil
}

// End moves an active auction to ended. Not idempotent: ending an auction
// twice fails with an invalid-state error.
func (l *AuctionLedger) End(ctx context.Context, id string) (*Auction, error) {
	return l.transition(ctx, id, StatusEnded)
}

// Activate opens a pending auction for bidding.
func (l *AuctionLedger) Activate(ctx context.Context, id string) (*Auction, error) {
	return l.transition(ctx, id, StatusActive)
}

// Cancel cancels a pending or active auction.
func (l *AuctionLedger) Cancel(ctx context.Context, id string) (*Auction, error) {
	return l.transition(ctx, id, StatusCancelled)
}

func (l *AuctionLedger) transition(ctx context.Context, id string, next Status) (*Auction, error) {
	auction, err := applyCAS(ctx, l.store, id, func(a *Auction) error {
		if !a.Status.CanTransition(next) {
			return Errf(CodeInvalidState, "auction %s cannot move from %s to %s", id, a.Status, next)
		}
		a.Status = next
		a.UpdatedAt = l.now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.log.Info("auction transitioned", "auction_id", id, "status", next)
	return auction, nil
}
