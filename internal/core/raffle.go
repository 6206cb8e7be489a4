package core

import "time"

// Ticket is one sold raffle ticket. TicketNumber is the 1-based position
// of the entry, assigned at append time and never reused.
type Ticket struct {
	Buyer        string    `json:"buyer"`
	TicketNumber int       `json:"ticket_number"`
	PurchaseTime time.Time `json:"purchase_time"`
}

// Raffle is a fixed-price sale drawn at random among ticket holders.
type Raffle struct {
	Item
	TicketPrice float64  `json:"ticket_price"`
	MaxTickets  int      `json:"max_tickets"`
	Tickets     []Ticket `json:"tickets"`
	Winner      string   `json:"winner,omitempty"`
}

func (r *Raffle) Base() *Item { return &r.Item }
func (r *Raffle) Kind() Kind  { return KindRaffle }

// RaffleSpec carries the caller-supplied fields for CreateRaffle.
type RaffleSpec struct {
	AssetID       string    `json:"asset_id"`
	SellerAddress string    `json:"seller_address"`
	TicketPrice   float64   `json:"ticket_price"`
	MaxTickets    int       `json:"max_tickets"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
}

func (s RaffleSpec) validate() error {
	if s.AssetID == "" {
		return Errf(CodeInvalidSpec, "asset id is required")
	}
	if s.SellerAddress == "" {
		return Errf(CodeInvalidSpec, "seller address is required")
	}
	if s.TicketPrice < 0 {
		return Errf(CodeInvalidSpec, "ticket price must not be negative")
	}
	if s.MaxTickets < 1 {
		return Errf(CodeInvalidSpec, "max tickets must be at least 1")
	}
	if !s.EndTime.After(s.StartTime) {
		return Errf(CodeInvalidSpec, "end time must be after start time")
	}
	return nil
}
