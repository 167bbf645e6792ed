// Package token implements the registry of ownership tokens: identity,
// metadata URI and current holder. Token IDs are dense and strictly
// increasing; tokens are never deleted.
package token

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbmarket/market/internal/domain"
)

// Journal persists newly minted tokens. A nil journal keeps the registry
// memory-only. Holder changes are not journaled here: they only happen as
// part of a market listing or sale, whose journal entry covers the holder
// update in the same transaction.
type Journal interface {
	InsertToken(ctx context.Context, t domain.Token) error
}

// Registry issues token identifiers and tracks each token's URI and
// current holder. All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	nextID  int64
	tokens  map[int64]*domain.Token
	journal Journal
}

// NewRegistry creates an empty registry. journal may be nil.
func NewRegistry(journal Journal) *Registry {
	return &Registry{
		nextID:  1,
		tokens:  make(map[int64]*domain.Token),
		journal: journal,
	}
}

// Restore rebuilds a registry from previously committed tokens. The next
// token ID resumes after the highest restored ID so identifiers stay dense
// and never repeat across restarts.
func Restore(journal Journal, tokens []domain.Token) *Registry {
	r := NewRegistry(journal)
	for _, t := range tokens {
		cp := t
		r.tokens[t.ID] = &cp
		if t.ID >= r.nextID {
			r.nextID = t.ID + 1
		}
	}
	return r
}

// Mint creates a new token holding the given metadata URI and assigns it
// to minter. Every call mints a distinct token, even for a repeated URI.
// The journal is written before the in-memory commit, so a journal failure
// leaves the registry unchanged.
func (r *Registry) Mint(ctx context.Context, uri string, minter domain.Identity) (int64, error) {
	if uri == "" {
		return 0, domain.ErrEmptyURI
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t := domain.Token{ID: r.nextID, URI: uri, Holder: minter}
	if r.journal != nil {
		if err := r.journal.InsertToken(ctx, t); err != nil {
			return 0, fmt.Errorf("journaling mint: %w", err)
		}
	}

	r.tokens[t.ID] = &t
	r.nextID++
	return t.ID, nil
}

// URI returns the metadata URI recorded at mint time.
func (r *Registry) URI(tokenID int64) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tokens[tokenID]
	if !ok {
		return "", fmt.Errorf("token %d: %w", tokenID, domain.ErrNotFound)
	}
	return t.URI, nil
}

// HolderOf returns the identity currently holding the token.
func (r *Registry) HolderOf(tokenID int64) (domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tokens[tokenID]
	if !ok {
		return "", fmt.Errorf("token %d: %w", tokenID, domain.ErrNotFound)
	}
	return t.Holder, nil
}

// Transfer moves holder rights from one identity to another. It is invoked
// only by the market ledger, inside the ledger's own critical section, so
// custody and item state always change together.
func (r *Registry) Transfer(tokenID int64, from, to domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[tokenID]
	if !ok {
		return fmt.Errorf("token %d: %w", tokenID, domain.ErrNotFound)
	}
	if t.Holder != from {
		return fmt.Errorf("token %d held by %s: %w", tokenID, t.Holder, domain.ErrNotHolder)
	}
	t.Holder = to
	return nil
}

// Count returns the number of minted tokens.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tokens)
}
