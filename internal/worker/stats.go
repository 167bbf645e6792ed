package worker

import (
	"context"
	"log/slog"
	"time"
)

// LedgerStats reports ledger counters. *market.Ledger satisfies it
// together with the token registry's Count.
type LedgerStats interface {
	Stats() (listed, sold int64)
}

// TokenCounter reports how many tokens have been minted.
type TokenCounter interface {
	Count() int
}

// StatsWorker periodically logs marketplace activity counters.
type StatsWorker struct {
	ledger   LedgerStats
	registry TokenCounter
	interval time.Duration
}

// NewStatsWorker creates a stats worker with the given report interval.
func NewStatsWorker(ledger LedgerStats, registry TokenCounter, interval time.Duration) *StatsWorker {
	return &StatsWorker{ledger: ledger, registry: registry, interval: interval}
}

// Run starts the worker loop. It blocks until the context is cancelled.
func (w *StatsWorker) Run(ctx context.Context) {
	slog.Info("StatsWorker: starting", "interval", w.interval)

	w.report()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("StatsWorker: shutting down")
			return
		case <-ticker.C:
			w.report()
		}
	}
}

func (w *StatsWorker) report() {
	listed, sold := w.ledger.Stats()
	slog.Info("marketplace stats",
		"tokensMinted", w.registry.Count(),
		"itemsListed", listed,
		"itemsSold", sold,
		"itemsUnsold", listed-sold,
	)
}
