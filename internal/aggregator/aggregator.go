// Package aggregator detects position splitting: one intended large
// purchase spread across several similarly sized smaller buys.
package aggregator

import (
	"context"
	"fmt"
	"log"
	"sync"

	"wallet-sentinel/internal/config"
	"wallet-sentinel/internal/domain"
	"wallet-sentinel/internal/observability"
	"wallet-sentinel/internal/storage"
)

// Aggregator clusters buy events into per-(wallet, token) windows and
// persists windows that cross the eligibility thresholds.
type Aggregator struct {
	cfg     config.AggregationConfig
	swaps   storage.SwapStore
	aggs    storage.AggregationStore
	history storage.ScoreHistoryStore
	logger  *log.Logger

	mu   sync.Mutex
	keys map[string]*keyState
}

// keyState serializes all window mutations for one (wallet, token) key.
// Two concurrent buys for the same key contend on this lock, never on
// the aggregator-wide map lock.
type keyState struct {
	mu        sync.Mutex
	window    *window
	persisted bool // the current window has been written at least once
	dirty     bool // the last persist attempt failed partway; retry on next touch
}

// Options contains configuration for creating an Aggregator.
type Options struct {
	Config            config.AggregationConfig
	SwapStore         storage.SwapStore
	AggregationStore  storage.AggregationStore
	ScoreHistoryStore storage.ScoreHistoryStore // optional analytics sink
	Logger            *log.Logger
}

// New creates a new Aggregator.
func New(opts Options) *Aggregator {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Aggregator{
		cfg:     opts.Config,
		swaps:   opts.SwapStore,
		aggs:    opts.AggregationStore,
		history: opts.ScoreHistoryStore,
		logger:  logger,
		keys:    make(map[string]*keyState),
	}
}

// Ingest feeds one normalized swap into the clustering windows.
// Sell events and already-aggregated transactions are no-ops. The
// returned aggregation is non-nil whenever this call persisted (created
// or extended) an eligible window.
//
// On a storage failure the in-memory window is left untouched and
// flagged dirty; the next touch of the key re-runs the full write, so
// retrying the same swap converges: the upsert replaces by identity and
// marking a transaction aggregated twice is harmless.
func (a *Aggregator) Ingest(ctx context.Context, swap *domain.NormalizedSwap) (*domain.PositionAggregation, error) {
	if err := swap.Validate(); err != nil {
		return nil, err
	}
	if !swap.IsBuy() {
		return nil, nil
	}

	// Idempotency: a transaction already claimed by an aggregation never
	// participates again.
	aggregated, err := a.swaps.IsTransactionAggregated(ctx, swap.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("check transaction aggregated: %w", err)
	}
	if aggregated {
		return nil, nil
	}

	ks := a.keyState(swap.WalletAddress, swap.TokenAddress)
	ks.mu.Lock()
	defer ks.mu.Unlock()

	// A dirty window has an unfinished write: the upsert may have landed
	// while the transaction claims did not. Heal it before anything else,
	// so even a pure redelivery of an already-contained swap retries the
	// claim instead of short-circuiting.
	if ks.dirty {
		agg := ks.window.toAggregation(a.cfg.SizeTolerance)
		if err := a.persist(ctx, agg); err != nil {
			return nil, err
		}
		ks.dirty = false
		ks.persisted = true
		if ks.window.contains(swap.TransactionID) {
			return agg, nil
		}
	}

	if ks.window != nil && ks.window.contains(swap.TransactionID) {
		return nil, nil
	}

	purchase := domain.Purchase{
		TransactionID: swap.TransactionID,
		AmountUSD:     swap.AmountUSD,
		Timestamp:     swap.Timestamp,
	}

	if ks.window == nil {
		ks.window = newWindow(swap.WalletAddress, swap.TokenAddress, swap.TokenSymbol)
		ks.window.add(purchase)
		ks.persisted = false
		return nil, nil
	}

	if a.joins(ks, purchase) {
		ks.window.add(purchase)
	} else {
		// Superseded. An eligible window was already persisted the moment
		// it became eligible; an ineligible one is discarded here without
		// ever touching storage.
		ks.window = newWindow(swap.WalletAddress, swap.TokenAddress, swap.TokenSymbol)
		ks.window.add(purchase)
		ks.persisted = false
		return nil, nil
	}

	if !ks.window.eligible(a.cfg.MinPurchaseCount, a.cfg.MinTotalUSD) {
		return nil, nil
	}

	agg := ks.window.toAggregation(a.cfg.SizeTolerance)
	if err := a.persist(ctx, agg); err != nil {
		ks.dirty = true
		return nil, err
	}
	ks.persisted = true
	return agg, nil
}

// joins decides whether a purchase belongs to the current open window:
// it must land within the configured time window of the first buy and
// keep the size coefficient of variation under the tolerance.
func (a *Aggregator) joins(ks *keyState, p domain.Purchase) bool {
	w := ks.window
	windowMs := int64(a.cfg.TimeWindowMinutes) * 60000

	elapsed := p.Timestamp - w.firstBuyTime()
	if elapsed > windowMs || elapsed < -windowMs {
		return false
	}
	// A late event older than the first buy may only join while the
	// window is unpersisted: after the first write the window identity
	// (first buy time) is fixed, and shifting it would produce a second
	// aggregation overlapping the same span.
	if elapsed < 0 && ks.persisted {
		return false
	}

	return w.covWith(p.AmountUSD) <= a.cfg.SizeTolerance
}

// persist writes the aggregation, claims its transactions and appends a
// score history point. Upsert + mark run as one logical unit: a failure
// of either leaves the window in memory for an idempotent retry.
func (a *Aggregator) persist(ctx context.Context, agg *domain.PositionAggregation) error {
	if err := a.aggs.Upsert(ctx, agg); err != nil {
		return fmt.Errorf("persist aggregation %s: %w", agg.AggregationID, err)
	}

	ids := make([]string, len(agg.Purchases))
	for i, p := range agg.Purchases {
		ids[i] = p.TransactionID
	}
	if err := a.swaps.MarkAggregated(ctx, ids, agg.AggregationID, agg.SuspicionScore); err != nil {
		return fmt.Errorf("mark transactions aggregated for %s: %w", agg.AggregationID, err)
	}

	if a.history != nil {
		point := &domain.ScoreHistoryPoint{
			AggregationID:  agg.AggregationID,
			WalletAddress:  agg.WalletAddress,
			TokenAddress:   agg.TokenAddress,
			SuspicionScore: agg.SuspicionScore,
			RiskLevel:      agg.RiskLevel,
			PurchaseCount:  agg.PurchaseCount,
			TotalUSD:       agg.TotalUSD,
			Timestamp:      agg.LastBuyTime,
		}
		if err := a.history.InsertBulk(ctx, []*domain.ScoreHistoryPoint{point}); err != nil {
			// Analytics is best-effort; the aggregation itself is durable.
			a.logger.Printf("Error appending score history for %s: %v", agg.AggregationID, err)
		}
	}

	observability.RecordAggregationPersisted(agg.RiskLevel, agg.SuspicionScore)
	a.logger.Printf("Aggregation persisted: %s wallet=%s token=%s purchases=%d total=%.2f score=%.1f risk=%s",
		agg.AggregationID[:12], agg.WalletAddress, agg.TokenAddress,
		agg.PurchaseCount, agg.TotalUSD, agg.SuspicionScore, agg.RiskLevel)
	return nil
}

// keyState returns the lock-carrying state for one (wallet, token) key,
// creating it on first use.
func (a *Aggregator) keyState(wallet, token string) *keyState {
	key := wallet + "|" + token
	a.mu.Lock()
	defer a.mu.Unlock()
	ks, ok := a.keys[key]
	if !ok {
		ks = &keyState{}
		a.keys[key] = ks
	}
	return ks
}

// OpenWindows reports how many keys currently hold an open window.
// Used by the status endpoint.
func (a *Aggregator) OpenWindows() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, ks := range a.keys {
		ks.mu.Lock()
		if ks.window != nil {
			n++
		}
		ks.mu.Unlock()
	}
	return n
}
