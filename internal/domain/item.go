package domain

import "github.com/shopspring/decimal"

// ItemStatus is the custody state of a market item. An item is created
// Listed and moves to Sold exactly once; there is no delist transition.
type ItemStatus string

const (
	StatusListed ItemStatus = "listed"
	StatusSold   ItemStatus = "sold"
)

// MarketItem pairs a token with a sale price, seller and custody state.
// While Listed the token itself is held by the market's escrow account;
// Buyer is set only once the item is Sold, after which the record is an
// immutable historical entry.
type MarketItem struct {
	ItemID     int64           `json:"itemId"`
	TokenID    int64           `json:"tokenId"`
	Seller     Identity        `json:"seller"`
	Buyer      Identity        `json:"buyer,omitempty"`
	Price      decimal.Decimal `json:"price"`
	ListingFee decimal.Decimal `json:"listingFee"`
	Status     ItemStatus      `json:"status"`
}

// Sold reports whether the item has been settled.
func (m MarketItem) Sold() bool {
	return m.Status == StatusSold
}
