package core

import "time"

// Bid is one accepted bid. The bids slice on an auction is append-only and
// never reordered.
type Bid struct {
	Bidder    string    `json:"bidder"`
	Amount    float64   `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// Auction is an open-ascending sale of a single asset.
type Auction struct {
	Item
	StartingPrice   float64 `json:"starting_price"`
	MinBidIncrement float64 `json:"min_bid_increment"`
	CurrentPrice    float64 `json:"current_price"`
	HighestBidder   string  `json:"highest_bidder,omitempty"`
	Bids            []Bid   `json:"bids"`
}

func (a *Auction) Base() *Item { return &a.Item }
func (a *Auction) Kind() Kind  { return KindAuction }

// AuctionSpec carries the caller-supplied fields for CreateAuction.
type AuctionSpec struct {
	AssetID         string    `json:"asset_id"`
	SellerAddress   string    `json:"seller_address"`
	StartingPrice   float64   `json:"starting_price"`
	MinBidIncrement float64   `json:"min_bid_increment"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
}

func (s AuctionSpec) validate() error {
	if s.AssetID == "" {
		return Errf(CodeInvalidSpec, "asset id is required")
	}
	if s.SellerAddress == "" {
		return Errf(CodeInvalidSpec, "seller address is required")
	}
	if s.StartingPrice < 0 {
		return Errf(CodeInvalidSpec, "starting price must not be negative")
	}
	if s.MinBidIncrement < 0 {
		return Errf(CodeInvalidSpec, "min bid increment must not be negative")
	}
	if !s.EndTime.After(s.StartTime) {
		return Errf(CodeInvalidSpec, "end time must be after start time")
	}
	return nil
}
