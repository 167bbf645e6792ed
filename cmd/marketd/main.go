package main

import (
	"context"
	"embed"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbmarket/market/internal/api"
	"github.com/kbmarket/market/internal/config"
	"github.com/kbmarket/market/internal/database"
	"github.com/kbmarket/market/internal/domain"
	"github.com/kbmarket/market/internal/market"
	"github.com/kbmarket/market/internal/query"
	"github.com/kbmarket/market/internal/store"
	"github.com/kbmarket/market/internal/token"
	"github.com/kbmarket/market/internal/worker"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	owner := domain.Identity(cfg.LedgerOwner)
	escrow := domain.Identity(cfg.EscrowAccount)

	var registry *token.Registry
	var ledger *market.Ledger

	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pool.Close()

		migrationsSub, err := fs.Sub(migrationsFS, "migrations")
		if err != nil {
			log.Fatalf("Failed to create migrations sub-fs: %v", err)
		}
		if err := database.Migrate(ctx, pool, migrationsSub); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}

		journal := store.NewPgJournal(pool, owner)
		fee, err := journal.EnsureState(ctx, cfg.ListingFee)
		if err != nil {
			log.Fatalf("Failed to ensure ledger state: %v", err)
		}
		slog.Info("ledger state ready", "listingFee", fee, "owner", owner)

		tokens, st, err := journal.Load(ctx)
		if err != nil {
			log.Fatalf("Failed to load committed state: %v", err)
		}
		registry = token.Restore(journal, tokens)
		ledger, err = market.Restore(registry, journal, owner, escrow, st)
		if err != nil {
			log.Fatalf("Failed to restore ledger: %v", err)
		}
		slog.Info("restored committed state", "tokens", len(tokens), "items", len(st.Items))
	} else {
		slog.Warn("DATABASE_URL not set, ledger state is memory-only")
		registry = token.NewRegistry(nil)
		ledger = market.NewLedger(registry, nil, owner, escrow, cfg.ListingFee)
	}

	index := query.NewIndex(ledger)

	statsWorker := worker.NewStatsWorker(ledger, registry, cfg.StatsInterval)
	go statsWorker.Run(ctx)

	if cfg.AdminAPIKey == "" {
		slog.Warn("ADMIN_API_KEY not set, listing-price configuration is guarded by caller identity only")
	}

	handler := api.NewHandler(registry, ledger, index)
	srv := api.NewServer(cfg.HTTPPort, handler, cfg.AdminAPIKey)

	go func() {
		log.Printf("HTTP server listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
}
