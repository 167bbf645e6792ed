// Package store persists committed ledger state in PostgreSQL. Each
// journal method applies every entity touched by one ledger operation in a
// single transaction, so a restart can never observe a listing without its
// custody change or a sale without its payout.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kbmarket/market/internal/domain"
	"github.com/kbmarket/market/internal/market"
)

// PgJournal implements token.Journal and market.Journal on a pgx pool.
// Amounts travel as text so decimal values round-trip exactly.
type PgJournal struct {
	pool  *pgxpool.Pool
	owner domain.Identity
}

// NewPgJournal creates a journal crediting listing fees to the given
// ledger owner.
func NewPgJournal(pool *pgxpool.Pool, owner domain.Identity) *PgJournal {
	return &PgJournal{pool: pool, owner: owner}
}

// InsertToken records a freshly minted token.
func (j *PgJournal) InsertToken(ctx context.Context, t domain.Token) error {
	_, err := j.pool.Exec(ctx,
		`INSERT INTO tokens (id, uri, holder) VALUES ($1, $2, $3)`,
		t.ID, t.URI, string(t.Holder))
	if err != nil {
		return fmt.Errorf("inserting token %d: %w", t.ID, err)
	}
	return nil
}

// RecordListing stores a new market item together with the token's move
// into escrow and the listing fee credited to the ledger owner.
func (j *PgJournal) RecordListing(ctx context.Context, item domain.MarketItem, escrow domain.Identity) error {
	return j.inTx(ctx, "recording listing", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE tokens SET holder = $1 WHERE id = $2`,
			string(escrow), item.TokenID); err != nil {
			return fmt.Errorf("moving token %d to escrow: %w", item.TokenID, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO market_items (item_id, token_id, seller, price, listing_fee, sold)
			 VALUES ($1, $2, $3, $4::numeric, $5::numeric, FALSE)`,
			item.ItemID, item.TokenID, string(item.Seller),
			item.Price.String(), item.ListingFee.String()); err != nil {
			return fmt.Errorf("inserting item %d: %w", item.ItemID, err)
		}
		return j.creditTx(ctx, tx, j.owner, item.ListingFee)
	})
}

// RecordSale stores a settled item together with the token's release to
// the buyer, the seller's payout and the new sold counter.
func (j *PgJournal) RecordSale(ctx context.Context, item domain.MarketItem, itemsSold int64) error {
	return j.inTx(ctx, "recording sale", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE tokens SET holder = $1 WHERE id = $2`,
			string(item.Buyer), item.TokenID); err != nil {
			return fmt.Errorf("releasing token %d: %w", item.TokenID, err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE market_items SET sold = TRUE, buyer = $1 WHERE item_id = $2`,
			string(item.Buyer), item.ItemID); err != nil {
			return fmt.Errorf("settling item %d: %w", item.ItemID, err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE ledger_state SET items_sold = $1 WHERE id = 1`,
			itemsSold); err != nil {
			return fmt.Errorf("updating sold counter: %w", err)
		}
		return j.creditTx(ctx, tx, item.Seller, item.Price)
	})
}

// SaveListingFee stores a reconfigured listing fee.
func (j *PgJournal) SaveListingFee(ctx context.Context, fee decimal.Decimal) error {
	_, err := j.pool.Exec(ctx,
		`UPDATE ledger_state SET listing_fee = $1::numeric WHERE id = 1`,
		fee.String())
	if err != nil {
		return fmt.Errorf("saving listing fee: %w", err)
	}
	return nil
}

// EnsureState creates the singleton ledger row on first start and returns
// the stored listing fee, which wins over the configured default on
// subsequent starts.
func (j *PgJournal) EnsureState(ctx context.Context, defaultFee decimal.Decimal) (decimal.Decimal, error) {
	var feeStr string
	err := j.pool.QueryRow(ctx,
		`INSERT INTO ledger_state (id, listing_fee, items_sold, owner)
		 VALUES (1, $1::numeric, 0, $2)
		 ON CONFLICT (id) DO UPDATE SET owner = $2
		 RETURNING listing_fee::text`,
		defaultFee.String(), string(j.owner)).Scan(&feeStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ensuring ledger state: %w", err)
	}
	fee, err := decimal.NewFromString(feeStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing stored listing fee %q: %w", feeStr, err)
	}
	return fee, nil
}

// Load reads back every committed token, item and balance for startup
// restore.
func (j *PgJournal) Load(ctx context.Context) ([]domain.Token, market.State, error) {
	st := market.State{Balances: make(map[domain.Identity]decimal.Decimal)}

	var feeStr string
	err := j.pool.QueryRow(ctx,
		`SELECT listing_fee::text, items_sold FROM ledger_state WHERE id = 1`).
		Scan(&feeStr, &st.ItemsSold)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// First start: nothing committed yet.
			return nil, st, nil
		}
		return nil, st, fmt.Errorf("loading ledger state: %w", err)
	}
	if st.ListingFee, err = decimal.NewFromString(feeStr); err != nil {
		return nil, st, fmt.Errorf("parsing stored listing fee %q: %w", feeStr, err)
	}

	tokens, err := j.loadTokens(ctx)
	if err != nil {
		return nil, st, err
	}
	if st.Items, err = j.loadItems(ctx); err != nil {
		return nil, st, err
	}
	if err := j.loadBalances(ctx, st.Balances); err != nil {
		return nil, st, err
	}
	return tokens, st, nil
}

func (j *PgJournal) loadTokens(ctx context.Context) ([]domain.Token, error) {
	rows, err := j.pool.Query(ctx, `SELECT id, uri, holder FROM tokens ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("loading tokens: %w", err)
	}
	defer rows.Close()

	var tokens []domain.Token
	for rows.Next() {
		var t domain.Token
		var holder string
		if err := rows.Scan(&t.ID, &t.URI, &holder); err != nil {
			return nil, fmt.Errorf("scanning token: %w", err)
		}
		t.Holder = domain.Identity(holder)
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tokens: %w", err)
	}
	return tokens, nil
}

func (j *PgJournal) loadItems(ctx context.Context) ([]domain.MarketItem, error) {
	rows, err := j.pool.Query(ctx,
		`SELECT item_id, token_id, seller, COALESCE(buyer, ''), price::text, listing_fee::text, sold
		 FROM market_items ORDER BY item_id`)
	if err != nil {
		return nil, fmt.Errorf("loading market items: %w", err)
	}
	defer rows.Close()

	var items []domain.MarketItem
	for rows.Next() {
		var m domain.MarketItem
		var seller, buyer, price, fee string
		var sold bool
		if err := rows.Scan(&m.ItemID, &m.TokenID, &seller, &buyer, &price, &fee, &sold); err != nil {
			return nil, fmt.Errorf("scanning market item: %w", err)
		}
		m.Seller = domain.Identity(seller)
		m.Buyer = domain.Identity(buyer)
		if m.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parsing price of item %d: %w", m.ItemID, err)
		}
		if m.ListingFee, err = decimal.NewFromString(fee); err != nil {
			return nil, fmt.Errorf("parsing fee of item %d: %w", m.ItemID, err)
		}
		m.Status = domain.StatusListed
		if sold {
			m.Status = domain.StatusSold
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating market items: %w", err)
	}
	return items, nil
}

func (j *PgJournal) loadBalances(ctx context.Context, out map[domain.Identity]decimal.Decimal) error {
	rows, err := j.pool.Query(ctx, `SELECT account, balance::text FROM balances`)
	if err != nil {
		return fmt.Errorf("loading balances: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var account, balance string
		if err := rows.Scan(&account, &balance); err != nil {
			return fmt.Errorf("scanning balance: %w", err)
		}
		d, err := decimal.NewFromString(balance)
		if err != nil {
			return fmt.Errorf("parsing balance of %s: %w", account, err)
		}
		out[domain.Identity(account)] = d
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating balances: %w", err)
	}
	return nil
}

func (j *PgJournal) creditTx(ctx context.Context, tx pgx.Tx, account domain.Identity, amount decimal.Decimal) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO balances (account, balance) VALUES ($1, $2::numeric)
		 ON CONFLICT (account) DO UPDATE SET balance = balances.balance + EXCLUDED.balance`,
		string(account), amount.String())
	if err != nil {
		return fmt.Errorf("crediting %s: %w", account, err)
	}
	return nil
}

func (j *PgJournal) inTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	tx, err := j.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: beginning transaction: %w", op, err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: committing: %w", op, err)
	}
	return nil
}
