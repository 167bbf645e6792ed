// Package market implements the marketplace ledger: item listings under
// escrow, listing-fee accounting and atomic sale execution. The ledger is
// the only writer of market state; every mutating operation commits in
// full or aborts with no observable effect.
package market

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/kbmarket/market/internal/domain"
	"github.com/kbmarket/market/internal/token"
)

// Journal persists committed market mutations. Each method covers every
// entity touched by one operation (item record, token holder, balance
// credits, counters) so the backing store can apply it as a single
// transaction. A nil journal keeps the ledger memory-only.
type Journal interface {
	RecordListing(ctx context.Context, item domain.MarketItem, escrow domain.Identity) error
	RecordSale(ctx context.Context, item domain.MarketItem, itemsSold int64) error
	SaveListingFee(ctx context.Context, fee decimal.Decimal) error
}

// Ledger owns market item records and their custody lifecycle. Items move
// Listed -> Sold exactly once; there is no delist operation. One mutex
// serializes all market mutations, which also makes the registry
// check-then-transfer inside an operation race-free: holder rights of an
// existing token only ever change through this ledger.
type Ledger struct {
	mu       sync.RWMutex
	registry *token.Registry
	journal  Journal

	owner  domain.Identity
	escrow domain.Identity

	listingFee decimal.Decimal
	items      []*domain.MarketItem
	itemsSold  int64
	balances   map[domain.Identity]decimal.Decimal
}

// NewLedger creates an empty ledger. owner is the identity allowed to
// reconfigure the listing fee; escrow is the custodial account that holds
// tokens while they are listed. journal may be nil.
func NewLedger(registry *token.Registry, journal Journal, owner, escrow domain.Identity, listingFee decimal.Decimal) *Ledger {
	return &Ledger{
		registry:   registry,
		journal:    journal,
		owner:      owner,
		escrow:     escrow,
		listingFee: listingFee,
		balances:   make(map[domain.Identity]decimal.Decimal),
	}
}

// Restore rebuilds a ledger from previously committed state. Items must be
// ordered by ascending item ID with no gaps.
func Restore(registry *token.Registry, journal Journal, owner, escrow domain.Identity, st State) (*Ledger, error) {
	l := NewLedger(registry, journal, owner, escrow, st.ListingFee)
	for i, item := range st.Items {
		if item.ItemID != int64(i)+1 {
			return nil, fmt.Errorf("restoring ledger: item %d out of sequence at position %d", item.ItemID, i)
		}
		cp := item
		l.items = append(l.items, &cp)
	}
	l.itemsSold = st.ItemsSold
	for account, balance := range st.Balances {
		l.balances[account] = balance
	}
	return l, nil
}

// State is the committed ledger state handed to Restore after a restart.
type State struct {
	ListingFee decimal.Decimal
	Items      []domain.MarketItem
	ItemsSold  int64
	Balances   map[domain.Identity]decimal.Decimal
}

// Owner returns the identity allowed to configure the ledger.
func (l *Ledger) Owner() domain.Identity {
	return l.owner
}

// Escrow returns the custodial account holding listed tokens.
func (l *Ledger) Escrow() domain.Identity {
	return l.escrow
}

// ListingPrice returns the fee currently required to list an item.
func (l *Ledger) ListingPrice() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.listingFee
}

// SetListingPrice updates the listing fee. Only the ledger owner may call
// it; the fee must not be negative. Existing listings keep the fee they
// were created under.
func (l *Ledger) SetListingPrice(ctx context.Context, amount decimal.Decimal, caller domain.Identity) error {
	if caller != l.owner {
		return fmt.Errorf("set listing price by %s: %w", caller, domain.ErrUnauthorized)
	}
	if amount.IsNegative() {
		return fmt.Errorf("listing fee %s: %w", amount, domain.ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.journal != nil {
		if err := l.journal.SaveListingFee(ctx, amount); err != nil {
			return fmt.Errorf("journaling listing fee: %w", err)
		}
	}
	l.listingFee = amount
	return nil
}

// MakeMarketItem lists a token for sale at the given price. The caller
// must hold the token and pay the exact listing fee; on success the token
// moves into escrow, the fee is credited to the ledger owner and the new
// item ID is returned.
func (l *Ledger) MakeMarketItem(ctx context.Context, tokenID int64, price, payment decimal.Decimal, caller domain.Identity) (int64, error) {
	if !price.IsPositive() {
		return 0, fmt.Errorf("price %s: %w", price, domain.ErrInvalidPrice)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !payment.Equal(l.listingFee) {
		return 0, fmt.Errorf("listing payment %s, fee is %s: %w", payment, l.listingFee, domain.ErrInvalidPayment)
	}
	holder, err := l.registry.HolderOf(tokenID)
	if err != nil {
		return 0, fmt.Errorf("listing token %d: %w", tokenID, err)
	}
	if holder != caller {
		return 0, fmt.Errorf("token %d held by %s, not %s: %w", tokenID, holder, caller, domain.ErrNotTokenOwner)
	}

	item := domain.MarketItem{
		ItemID:     int64(len(l.items)) + 1,
		TokenID:    tokenID,
		Seller:     caller,
		Price:      price,
		ListingFee: l.listingFee,
		Status:     domain.StatusListed,
	}

	if err := l.registry.Transfer(tokenID, caller, l.escrow); err != nil {
		return 0, fmt.Errorf("escrowing token %d: %w", tokenID, err)
	}
	if l.journal != nil {
		if err := l.journal.RecordListing(ctx, item, l.escrow); err != nil {
			// Hand custody back so the aborted listing leaves no trace.
			if rbErr := l.registry.Transfer(tokenID, l.escrow, caller); rbErr != nil {
				return 0, fmt.Errorf("journaling listing: %v (custody rollback failed: %w)", err, rbErr)
			}
			return 0, fmt.Errorf("journaling listing: %w", err)
		}
	}

	l.items = append(l.items, &item)
	l.credit(l.owner, item.ListingFee)
	return item.ItemID, nil
}

// CreateMarketSale settles a listed item: the exact asking price moves to
// the seller, the token moves from escrow to the caller and the item
// becomes a terminal Sold record.
func (l *Ledger) CreateMarketSale(ctx context.Context, itemID int64, payment decimal.Decimal, caller domain.Identity) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if itemID < 1 || itemID > int64(len(l.items)) {
		return fmt.Errorf("item %d: %w", itemID, domain.ErrNotFound)
	}
	item := l.items[itemID-1]
	if item.Sold() {
		return fmt.Errorf("item %d: %w", itemID, domain.ErrItemAlreadySold)
	}
	if !payment.Equal(item.Price) {
		return fmt.Errorf("sale payment %s, price is %s: %w", payment, item.Price, domain.ErrInvalidPayment)
	}

	settled := *item
	settled.Status = domain.StatusSold
	settled.Buyer = caller

	if err := l.registry.Transfer(item.TokenID, l.escrow, caller); err != nil {
		return fmt.Errorf("releasing token %d from escrow: %w", item.TokenID, err)
	}
	if l.journal != nil {
		if err := l.journal.RecordSale(ctx, settled, l.itemsSold+1); err != nil {
			if rbErr := l.registry.Transfer(item.TokenID, caller, l.escrow); rbErr != nil {
				return fmt.Errorf("journaling sale: %v (custody rollback failed: %w)", err, rbErr)
			}
			return fmt.Errorf("journaling sale: %w", err)
		}
	}

	*item = settled
	l.itemsSold++
	l.credit(item.Seller, payment)
	return nil
}

// Item returns a copy of a single market item.
func (l *Ledger) Item(itemID int64) (domain.MarketItem, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if itemID < 1 || itemID > int64(len(l.items)) {
		return domain.MarketItem{}, fmt.Errorf("item %d: %w", itemID, domain.ErrNotFound)
	}
	return *l.items[itemID-1], nil
}

// Items returns a snapshot of all market items in ascending item ID order.
func (l *Ledger) Items() []domain.MarketItem {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.MarketItem, len(l.items))
	for i, item := range l.items {
		out[i] = *item
	}
	return out
}

// BalanceOf returns the funds credited to an identity by fee collection
// and sale settlement. Identities with no credits have a zero balance.
func (l *Ledger) BalanceOf(account domain.Identity) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	b, ok := l.balances[account]
	if !ok {
		return decimal.Zero
	}
	return b
}

// Stats returns the number of items listed so far and how many have sold.
func (l *Ledger) Stats() (listed, sold int64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return int64(len(l.items)), l.itemsSold
}

// credit adds amount to an account balance. Caller holds l.mu.
func (l *Ledger) credit(account domain.Identity, amount decimal.Decimal) {
	l.balances[account] = l.balances[account].Add(amount)
}
