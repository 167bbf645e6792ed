package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/kbmarket/market/internal/domain"
	"github.com/kbmarket/market/internal/market"
	"github.com/kbmarket/market/internal/query"
	"github.com/kbmarket/market/internal/token"
)

// Handler provides the HTTP endpoints of the marketplace ledger. The
// caller identity in request bodies is supplied by the wallet layer in
// front of this service; the ledger itself only checks it against its own
// records.
type Handler struct {
	registry *token.Registry
	ledger   *market.Ledger
	index    *query.Index
}

// NewHandler creates an API handler over the ledger components.
func NewHandler(registry *token.Registry, ledger *market.Ledger, index *query.Index) *Handler {
	return &Handler{registry: registry, ledger: ledger, index: index}
}

type mintRequest struct {
	URI    string `json:"uri"`
	Minter string `json:"minter"`
}

// MintToken handles POST /api/v1/tokens.
func (h *Handler) MintToken(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id, err := h.registry.Mint(r.Context(), req.URI, domain.Identity(req.Minter))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"tokenId": id})
}

// GetToken handles GET /api/v1/tokens/{id}.
func (h *Handler) GetToken(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid token id")
		return
	}
	uri, err := h.registry.URI(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	holder, err := h.registry.HolderOf(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.Token{ID: id, URI: uri, Holder: holder})
}

// GetListingPrice handles GET /api/v1/listing-price.
func (h *Handler) GetListingPrice(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]decimal.Decimal{"listingPrice": h.ledger.ListingPrice()})
}

type feeRequest struct {
	Amount string `json:"amount"`
	Caller string `json:"caller"`
}

// SetListingPrice handles PUT /api/v1/listing-price.
func (h *Handler) SetListingPrice(w http.ResponseWriter, r *http.Request) {
	var req feeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	if err := h.ledger.SetListingPrice(r.Context(), amount, domain.Identity(req.Caller)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]decimal.Decimal{"listingPrice": h.ledger.ListingPrice()})
}

// GetOwner handles GET /api/v1/owner.
func (h *Handler) GetOwner(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]domain.Identity{"owner": h.ledger.Owner()})
}

type listRequest struct {
	TokenID int64  `json:"tokenId"`
	Price   string `json:"price"`
	Payment string `json:"payment"`
	Caller  string `json:"caller"`
}

// CreateMarketItem handles POST /api/v1/market-items.
func (h *Handler) CreateMarketItem(w http.ResponseWriter, r *http.Request) {
	var req listRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	price, err := domain.ParseAmount(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid price")
		return
	}
	payment, err := domain.ParseAmount(req.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payment")
		return
	}
	itemID, err := h.ledger.MakeMarketItem(r.Context(), req.TokenID, price, payment, domain.Identity(req.Caller))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"itemId": itemID})
}

type saleRequest struct {
	Payment string `json:"payment"`
	Caller  string `json:"caller"`
}

// CreateMarketSale handles POST /api/v1/market-items/{id}/sale.
func (h *Handler) CreateMarketSale(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	var req saleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	payment, err := domain.ParseAmount(req.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payment")
		return
	}
	if err := h.ledger.CreateMarketSale(r.Context(), itemID, payment, domain.Identity(req.Caller)); err != nil {
		writeDomainError(w, err)
		return
	}
	item, err := h.ledger.Item(itemID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// ListMarketItems handles GET /api/v1/market-items. Without parameters it
// returns the unsold catalog; ?seller= returns everything a seller has
// listed and ?owner= returns the items an identity has bought.
func (h *Handler) ListMarketItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	seller := q.Get("seller")
	owner := q.Get("owner")

	switch {
	case seller != "" && owner != "":
		writeError(w, http.StatusBadRequest, "seller and owner filters are mutually exclusive")
	case seller != "":
		writeItems(w, h.index.ItemsCreated(domain.Identity(seller)))
	case owner != "":
		writeItems(w, h.index.OwnedNFTs(domain.Identity(owner)))
	default:
		writeItems(w, h.index.MarketTokens())
	}
}

// GetBalance handles GET /api/v1/balances/{identity}.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	account := r.PathValue("identity")
	if account == "" {
		writeError(w, http.StatusBadRequest, "missing identity")
		return
	}
	writeJSON(w, http.StatusOK, map[string]decimal.Decimal{"balance": h.ledger.BalanceOf(domain.Identity(account))})
}

// writeItems always emits a JSON array, never null for an empty catalog.
func writeItems(w http.ResponseWriter, items []domain.MarketItem) {
	if items == nil {
		items = []domain.MarketItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrItemAlreadySold):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidPayment),
		errors.Is(err, domain.ErrNotTokenOwner),
		errors.Is(err, domain.ErrNotHolder),
		errors.Is(err, domain.ErrEmptyURI):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
		return
	}
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
