package core

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/ordmarket/sale-service/internal/platform/logger"
)

// RaffleLedger validates and applies raffle mutations. Like the auction
// ledger it keeps no state of its own; the store's compare-and-swap is
// the only synchronization.
type RaffleLedger struct {
	store Store[*Raffle]
	log   *logger.Logger
	now   func() time.Time

	// pickIndex selects a uniform index in [0, n). rand/v2 is unseeded
	// process-wide and bias-free for arbitrary n. Overridden in tests.
	pickIndex func(n int) int
}

func NewRaffleLedger(store Store[*Raffle], log *logger.Logger) *RaffleLedger {
	return &RaffleLedger{
		store:     store,
		log:       log,
		now:       time.Now,
		pickIndex: rand.IntN,
	}
}

// Create validates the spec and persists a new raffle in pending status.
func (l *RaffleLedger) Create(ctx context.Context, spec RaffleSpec) (*Raffle, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	now := l.now()
	raffle := &Raffle{
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
		TicketPrice: spec.TicketPrice,
		MaxTickets:  spec.MaxTickets,
		Tickets:     []Ticket{},
	}
	if err := l.store.Create(ctx, raffle); err != nil {
		return nil, err
	}
	l.log.Info("raffle created", "raffle_id", raffle.ID, "asset_id", raffle.AssetID, "max_tickets", raffle.MaxTickets)
	return raffle, nil
}

// Get returns the raffle without side effects.
func (l *RaffleLedger) Get(ctx context.Context, id string) (*Raffle, error) {
	return l.store.Read(ctx, id)
}

// ListActive returns all raffles currently selling tickets.
func (l *RaffleLedger) ListActive(ctx context.Context) ([]*Raffle, error) {
	return l.store.ListByStatus(ctx, StatusActive)
}

// BuyTicket appends a ticket and returns its 1-based number. The capacity
// check and the append live inside one compare-and-swap cycle and the
// check runs against freshly read state on every retry, so two buyers
// racing for the last slot can never both append: the loser sees the full
// ticket list and fails sold-out.
func (l *RaffleLedger) BuyTicket(ctx context.Context, id, buyer string) (*Raffle, int, error) {
	var number int
	raffle, err := applyCAS(ctx, l.store, id, func(r *Raffle) error {
		if r.Status != StatusActive {
			return Errf(CodeInvalidState, "raffle %s is %s, not active", id, r.Status)
		}
		if len(r.Tickets) >= r.MaxTickets {
			return Errf(CodeSoldOut, "raffle %s has sold all %d tickets", id, r.MaxTickets)
		}
		now := l.now()
		number = len(r.Tickets) + 1
		r.Tickets = append(r.Tickets, Ticket{Buyer: buyer, TicketNumber: number, PurchaseTime: now})
		r.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	l.log.Info("ticket sold", "raffle_id", id, "buyer", buyer, "ticket_number", number)
	return raffle, number, nil
}

// DrawWinner selects a winner uniformly among sold tickets and ends the
// raffle in the same write. A second call fails with an invalid-state
// error and leaves the winner untouched.
func (l *RaffleLedger) DrawWinner(ctx context.Context, id string) (*Raffle, string, error) {
	raffle, err := applyCAS(ctx, l.store, id, func(r *Raffle) error {
		if r.Status != StatusActive {
			return Errf(CodeInvalidState, "raffle %s is %s, not active", id, r.Status)
		}
		if len(r.Tickets) == 0 {
			return Errf(CodeNoTicketsSold, "raffle %s has no tickets sold", id)
		}
		winner := r.Tickets[l.pickIndex(len(r.Tickets))].Buyer
		r.Winner = winner
		r.Status = StatusEnded
		r.UpdatedAt = l.now()
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	l.log.Info("winner drawn", "raffle_id", id, "winner", raffle.Winner, "tickets_sold", len(raffle.Tickets))
	return raffle, raffle.Winner, nil
}

// Activate opens a pending raffle for ticket sales.
func (l *RaffleLedger) Activate(ctx context.Context, id string) (*Raffle, error) {
	return l.transition(ctx, id, StatusActive)
}

// Cancel cancels a pending or active raffle.
func (l *RaffleLedger) Cancel(ctx context.Context, id string) (*Raffle, error) {
	return l.transition(ctx, id, StatusCancelled)
}

func (l *RaffleLedger) transition(ctx context.Context, id string, next Status) (*Raffle, error) {
	raffle, err := applyCAS(ctx, l.store, id, func(r *Raffle) error {
		if !r.Status.CanTransition(next) {
			return Errf(CodeInvalidState, "raffle %s cannot move from %s to %s", id, r.Status, next)
		}
		r.Status = next
		r.UpdatedAt = l.now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.log.Info("raffle transitioned", "raffle_id", id, "status", next)
	return raffle, nil
}
