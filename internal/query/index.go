// Package query provides read-only catalog views over the market ledger.
// Each call scans the current committed snapshot and returns a fresh
// slice; nothing is cached between calls.
package query

import (
	"github.com/samber/lo"

	"github.com/kbmarket/market/internal/domain"
)

// ItemSource supplies a committed snapshot of market items in ascending
// item ID order. *market.Ledger satisfies it.
type ItemSource interface {
	Items() []domain.MarketItem
}

// Index evaluates catalog projections against an item source.
type Index struct {
	source ItemSource
}

// NewIndex creates an index over the given item source.
func NewIndex(source ItemSource) *Index {
	return &Index{source: source}
}

// MarketTokens returns all items still up for sale.
func (ix *Index) MarketTokens() []domain.MarketItem {
	return lo.Filter(ix.source.Items(), func(m domain.MarketItem, _ int) bool {
		return !m.Sold()
	})
}

// ItemsCreated returns every item listed by the given seller, sold or not.
func (ix *Index) ItemsCreated(seller domain.Identity) []domain.MarketItem {
	return lo.Filter(ix.source.Items(), func(m domain.MarketItem, _ int) bool {
		return m.Seller == seller
	})
}

// OwnedNFTs returns the items the given identity has bought. Unsold items
// never match: while listed an item has no buyer, only escrow custody.
func (ix *Index) OwnedNFTs(owner domain.Identity) []domain.MarketItem {
	return lo.Filter(ix.source.Items(), func(m domain.MarketItem, _ int) bool {
		return m.Sold() && m.Buyer == owner
	})
}
