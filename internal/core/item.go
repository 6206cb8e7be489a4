package core

import "time"

// Kind distinguishes the two sale mechanisms sharing one lifecycle.
type Kind string

const (
	KindAuction Kind = "auction"
	KindRaffle  Kind = "raffle"
)

// Status is the lifecycle state of an item under sale.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
	StatusCancelled Status = "cancelled"
)

// transitions is the single transition table both ledgers consult. The
// lifecycle is monotonic: nothing ever moves backward, and the terminal
// states have no outgoing edges.
var transitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusActive:    true,
		StatusCancelled: true,
	},
	StatusActive: {
		StatusEnded:     true,
		StatusCancelled: true,
	},
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// transition.
func (s Status) CanTransition(next Status) bool {
	return transitions[s][next]
}

// Terminal reports whether s admits no further mutation.
func (s Status) Terminal() bool {
	return s == StatusEnded || s == StatusCancelled
}

// Item is the base shape shared by Auction and Raffle. Everything except
// Status, Version and UpdatedAt is immutable after creation.
type Item struct {
	ID            string    `json:"id"`
	AssetID       string    `json:"asset_id"`
	SellerAddress string    `json:"seller_address"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Status        Status    `json:"status"`
	Version       int64     `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Record is implemented by the two item types so that stores and the
// compare-and-swap loop can be written once.
type Record interface {
	Base() *Item
	Kind() Kind
}
