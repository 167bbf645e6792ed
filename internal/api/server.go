package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"
)

// NewServer creates an HTTP server with all marketplace routes configured.
// When adminAPIKey is non-empty the listing-fee configuration route
// additionally requires it as a bearer token; the ledger still verifies
// the caller identity against the ledger owner either way.
func NewServer(port string, handler *Handler, adminAPIKey string) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/tokens", handler.MintToken)
	mux.HandleFunc("GET /api/v1/tokens/{id}", handler.GetToken)

	mux.HandleFunc("GET /api/v1/listing-price", handler.GetListingPrice)
	setFee := http.HandlerFunc(handler.SetListingPrice)
	if adminAPIKey != "" {
		mux.Handle("PUT /api/v1/listing-price", requireAuth(adminAPIKey, setFee))
	} else {
		mux.Handle("PUT /api/v1/listing-price", setFee)
	}

	mux.HandleFunc("GET /api/v1/owner", handler.GetOwner)
	mux.HandleFunc("POST /api/v1/market-items", handler.CreateMarketItem)
	mux.HandleFunc("POST /api/v1/market-items/{id}/sale", handler.CreateMarketSale)
	mux.HandleFunc("GET /api/v1/market-items", handler.ListMarketItems)
	mux.HandleFunc("GET /api/v1/balances/{identity}", handler.GetBalance)

	return &http.Server{
		Addr:         ":" + port,
		Handler:      requestLogger(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func requireAuth(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if !strings.HasPrefix(auth, "Bearer ") || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
