package ingestion

import (
	"context"
	"errors"
	"log"
	"time"

	"wallet-sentinel/internal/aggregator"
	"wallet-sentinel/internal/domain"
	"wallet-sentinel/internal/observability"
	"wallet-sentinel/internal/storage"
)

// Runner consumes the swap feed, restores timestamp order, persists
// every valid swap and feeds buys into the position aggregator.
type Runner struct {
	source        SwapSource
	swaps         storage.SwapStore
	aggregator    *aggregator.Aggregator
	buffer        *reorderBuffer
	flushInterval time.Duration
	logger        *log.Logger
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Source        SwapSource
	SwapStore     storage.SwapStore
	Aggregator    *aggregator.Aggregator
	LagWindow     time.Duration // reorder buffer depth, default 10s
	FlushInterval time.Duration // safety-net flush tick, default 5s
	Logger        *log.Logger
}

// NewRunner creates a new ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	lagWindow := opts.LagWindow
	if lagWindow == 0 {
		lagWindow = 10 * time.Second
	}

	flushInterval := opts.FlushInterval
	if flushInterval == 0 {
		flushInterval = 5 * time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Runner{
		source:        opts.Source,
		swaps:         opts.SwapStore,
		aggregator:    opts.Aggregator,
		buffer:        newReorderBuffer(lagWindow),
		flushInterval: flushInterval,
		logger:        logger,
	}
}

// Run starts continuous ingestion. It blocks until the context is
// cancelled, flushing all buffered swaps before returning.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Println("Starting ingestion runner...")

	swapsCh, err := r.source.Subscribe(ctx)
	if err != nil {
		return err
	}

	// Safety net: drain the buffer even when the feed goes quiet and no
	// new high-water mark arrives to seal old buckets.
	flushTicker := time.NewTicker(r.flushInterval)
	defer flushTicker.Stop()

	r.logger.Printf("Runner started, flush interval: %v", r.flushInterval)

	for {
		select {
		case <-ctx.Done():
			r.process(context.Background(), r.buffer.flushAll())
			r.logger.Println("Runner stopping...")
			return ctx.Err()

		case swap, ok := <-swapsCh:
			if !ok {
				r.process(ctx, r.buffer.flushAll())
				return errors.New("swap feed channel closed")
			}
			r.process(ctx, r.buffer.add(swap))
			observability.UpdateFeedBufferSize(r.buffer.size())

		case <-flushTicker.C:
			r.process(ctx, r.buffer.flushAll())
			observability.UpdateFeedBufferSize(r.buffer.size())
		}
	}
}

// process handles an ordered batch of swaps.
func (r *Runner) process(ctx context.Context, swaps []*domain.NormalizedSwap) {
	for _, swap := range swaps {
		r.handleSwap(ctx, swap)
	}
}

// handleSwap validates, stores and aggregates one swap. A malformed swap
// is skipped with a log line; it never stops the stream.
func (r *Runner) handleSwap(ctx context.Context, swap *domain.NormalizedSwap) {
	start := time.Now()

	if err := swap.Validate(); err != nil {
		observability.RecordSwapRejected("invalid")
		r.logger.Printf("Skipping invalid swap %q: %v", swap.TransactionID, err)
		return
	}
	if !domain.ValidWalletAddress(swap.WalletAddress) {
		observability.RecordSwapRejected("bad_wallet")
		r.logger.Printf("Skipping swap %s: wallet %q is not an on-curve address", swap.TransactionID, swap.WalletAddress)
		return
	}
	if !domain.ValidTokenAddress(swap.TokenAddress) {
		observability.RecordSwapRejected("bad_token")
		r.logger.Printf("Skipping swap %s: token %q is not a valid address", swap.TransactionID, swap.TokenAddress)
		return
	}

	if err := r.swaps.Insert(ctx, swap); err != nil {
		if !errors.Is(err, storage.ErrDuplicateKey) {
			r.logger.Printf("Error storing swap %s: %v", swap.TransactionID, err)
			return
		}
		// Redelivery. The aggregator is idempotent, so fall through.
	} else {
		observability.RecordSwapStored()
	}

	if _, err := r.aggregator.Ingest(ctx, swap); err != nil {
		r.logger.Printf("Error aggregating swap %s: %v", swap.TransactionID, err)
	}

	observability.RecordSwapProcessed()
	observability.DefaultMetrics.SwapLatency.Observe(time.Since(start).Seconds())
	observability.DefaultMetrics.LastSwapIngested.Set(float64(time.Now().Unix()))
	observability.UpdateOpenWindows(r.aggregator.OpenWindows())
}
