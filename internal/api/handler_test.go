package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/kbmarket/market/internal/domain"
	"github.com/kbmarket/market/internal/market"
	"github.com/kbmarket/market/internal/query"
	"github.com/kbmarket/market/internal/token"
)

func newTestServer(t *testing.T, adminKey string) (*token.Registry, *market.Ledger, http.Handler) {
	t.Helper()
	registry := token.NewRegistry(nil)
	ledger := market.NewLedger(registry, nil, "market-owner", "market-escrow",
		decimal.RequireFromString("0.045"))
	index := query.NewIndex(ledger)
	srv := NewServer("0", NewHandler(registry, ledger, index), adminKey)
	return registry, ledger, srv.Handler
}

func doJSON(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestMintAndGetToken(t *testing.T) {
	_, _, h := newTestServer(t, "")

	w := doJSON(t, h, http.MethodPost, "/api/v1/tokens", `{"uri":"http--t1","minter":"alice"}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("mint status = %d, want 201, body %s", w.Code, w.Body)
	}
	var minted struct {
		TokenID int64 `json:"tokenId"`
	}
	json.NewDecoder(w.Body).Decode(&minted)
	if minted.TokenID != 1 {
		t.Errorf("tokenId = %d, want 1", minted.TokenID)
	}

	w = doJSON(t, h, http.MethodGet, "/api/v1/tokens/1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get token status = %d, want 200", w.Code)
	}
	var tok domain.Token
	json.NewDecoder(w.Body).Decode(&tok)
	if tok.URI != "http--t1" || tok.Holder != "alice" {
		t.Errorf("token = %+v, want uri http--t1 held by alice", tok)
	}
}

func TestMintRejectsEmptyURI(t *testing.T) {
	_, _, h := newTestServer(t, "")

	w := doJSON(t, h, http.MethodPost, "/api/v1/tokens", `{"uri":"","minter":"alice"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetUnknownTokenReturns404(t *testing.T) {
	_, _, h := newTestServer(t, "")

	w := doJSON(t, h, http.MethodGet, "/api/v1/tokens/7", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestListingAndSaleFlow(t *testing.T) {
	_, _, h := newTestServer(t, "")

	doJSON(t, h, http.MethodPost, "/api/v1/tokens", `{"uri":"http--t1","minter":"seller"}`, nil)

	w := doJSON(t, h, http.MethodPost, "/api/v1/market-items",
		`{"tokenId":1,"price":"55","payment":"0.045","caller":"seller"}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("listing status = %d, want 201, body %s", w.Code, w.Body)
	}

	// The unsold catalog has the item.
	w = doJSON(t, h, http.MethodGet, "/api/v1/market-items", "", nil)
	var items []domain.MarketItem
	json.NewDecoder(w.Body).Decode(&items)
	if len(items) != 1 || items[0].ItemID != 1 {
		t.Fatalf("catalog = %+v, want one item", items)
	}

	w = doJSON(t, h, http.MethodPost, "/api/v1/market-items/1/sale",
		`{"payment":"55","caller":"buyer"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("sale status = %d, want 200, body %s", w.Code, w.Body)
	}
	var sold domain.MarketItem
	json.NewDecoder(w.Body).Decode(&sold)
	if !sold.Sold() || sold.Buyer != "buyer" {
		t.Errorf("sold item = %+v, want sold by buyer", sold)
	}

	w = doJSON(t, h, http.MethodGet, "/api/v1/market-items?owner=buyer", "", nil)
	items = nil
	json.NewDecoder(w.Body).Decode(&items)
	if len(items) != 1 {
		t.Errorf("owner view = %d items, want 1", len(items))
	}

	w = doJSON(t, h, http.MethodGet, "/api/v1/market-items?seller=seller", "", nil)
	items = nil
	json.NewDecoder(w.Body).Decode(&items)
	if len(items) != 1 {
		t.Errorf("seller view = %d items, want 1", len(items))
	}

	// Empty catalog stays a JSON array, not null.
	w = doJSON(t, h, http.MethodGet, "/api/v1/market-items", "", nil)
	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Errorf("empty catalog body = %s, want []", body)
	}
}

func TestSaleErrorMapping(t *testing.T) {
	_, ledger, h := newTestServer(t, "")

	doJSON(t, h, http.MethodPost, "/api/v1/tokens", `{"uri":"http--t1","minter":"seller"}`, nil)
	doJSON(t, h, http.MethodPost, "/api/v1/market-items",
		`{"tokenId":1,"price":"55","payment":"0.045","caller":"seller"}`, nil)

	w := doJSON(t, h, http.MethodPost, "/api/v1/market-items/9/sale",
		`{"payment":"55","caller":"buyer"}`, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown item status = %d, want 404", w.Code)
	}

	w = doJSON(t, h, http.MethodPost, "/api/v1/market-items/1/sale",
		`{"payment":"54","caller":"buyer"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("short payment status = %d, want 400", w.Code)
	}

	if err := ledger.CreateMarketSale(context.Background(), 1, decimal.RequireFromString("55"), "buyer"); err != nil {
		t.Fatalf("CreateMarketSale: %v", err)
	}
	w = doJSON(t, h, http.MethodPost, "/api/v1/market-items/1/sale",
		`{"payment":"55","caller":"buyer2"}`, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("double sale status = %d, want 409", w.Code)
	}
}

func TestListingPriceConfiguration(t *testing.T) {
	_, _, h := newTestServer(t, "")

	w := doJSON(t, h, http.MethodGet, "/api/v1/listing-price", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get listing price status = %d, want 200", w.Code)
	}

	w = doJSON(t, h, http.MethodPut, "/api/v1/listing-price",
		`{"amount":"0.1","caller":"mallory"}`, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("non-owner set fee status = %d, want 403", w.Code)
	}

	w = doJSON(t, h, http.MethodPut, "/api/v1/listing-price",
		`{"amount":"0.1","caller":"market-owner"}`, nil)
	if w.Code != http.StatusOK {
		t.Errorf("owner set fee status = %d, want 200, body %s", w.Code, w.Body)
	}

	w = doJSON(t, h, http.MethodPut, "/api/v1/listing-price",
		`{"amount":"-1","caller":"market-owner"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("negative fee status = %d, want 400", w.Code)
	}
}

func TestListingPriceRequiresBearerWhenConfigured(t *testing.T) {
	_, _, h := newTestServer(t, "sekrit")

	w := doJSON(t, h, http.MethodPut, "/api/v1/listing-price",
		`{"amount":"0.1","caller":"market-owner"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing bearer status = %d, want 401", w.Code)
	}

	w = doJSON(t, h, http.MethodPut, "/api/v1/listing-price",
		`{"amount":"0.1","caller":"market-owner"}`,
		map[string]string{"Authorization": "Bearer sekrit"})
	if w.Code != http.StatusOK {
		t.Errorf("bearer set fee status = %d, want 200, body %s", w.Code, w.Body)
	}
}

func TestGetOwnerAndBalance(t *testing.T) {
	_, _, h := newTestServer(t, "")

	w := doJSON(t, h, http.MethodGet, "/api/v1/owner", "", nil)
	var ownerResp map[string]string
	json.NewDecoder(w.Body).Decode(&ownerResp)
	if ownerResp["owner"] != "market-owner" {
		t.Errorf("owner = %q, want market-owner", ownerResp["owner"])
	}

	doJSON(t, h, http.MethodPost, "/api/v1/tokens", `{"uri":"http--t1","minter":"seller"}`, nil)
	doJSON(t, h, http.MethodPost, "/api/v1/market-items",
		`{"tokenId":1,"price":"55","payment":"0.045","caller":"seller"}`, nil)

	w = doJSON(t, h, http.MethodGet, "/api/v1/balances/market-owner", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("balance status = %d, want 200", w.Code)
	}
	var balResp map[string]decimal.Decimal
	json.NewDecoder(w.Body).Decode(&balResp)
	if !balResp["balance"].Equal(decimal.RequireFromString("0.045")) {
		t.Errorf("owner balance = %s, want 0.045", balResp["balance"])
	}
}

func TestRequestIDHeaderIsSet(t *testing.T) {
	_, _, h := newTestServer(t, "")

	w := doJSON(t, h, http.MethodGet, "/api/v1/owner", "", nil)
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set")
	}
}
