// Package evaluator computes wallet performance metrics from trading
// history. Metrics are a pure function of the history plus token
// first-trade timestamps read from storage; there is no randomness.
package evaluator

import (
	"context"
	"errors"
	"log"
	"math"
	"sort"
	"time"

	"wallet-sentinel/internal/config"
	"wallet-sentinel/internal/domain"
	"wallet-sentinel/internal/storage"
)

// Evaluator turns a wallet's swap history into PerformanceMetrics.
type Evaluator struct {
	cfg    config.EvaluationConfig
	swaps  storage.SwapStore
	logger *log.Logger
	now    func() int64
}

// Options contains configuration for creating an Evaluator.
type Options struct {
	Config    config.EvaluationConfig
	SwapStore storage.SwapStore
	Logger    *log.Logger
	Now       func() int64 // injectable clock for tests, ms
}

// New creates a new Evaluator.
func New(opts Options) *Evaluator {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}
	return &Evaluator{
		cfg:    opts.Config,
		swaps:  opts.SwapStore,
		logger: logger,
		now:    now,
	}
}

// tokenPosition accumulates per-token buy/sell totals.
type tokenPosition struct {
	token         string
	totalBought   float64
	totalSold     float64
	firstBuyTime  int64
	firstSellTime int64
	buys          int
	sells         int
}

// Evaluate computes metrics for a wallet history ordered most-recent-first.
// Histories shorter than the configured minimum produce an explicit
// insufficient-data result instead of an error.
func (e *Evaluator) Evaluate(ctx context.Context, history []*domain.NormalizedSwap) domain.PerformanceMetrics {
	if len(history) < e.cfg.MinTransactions {
		return domain.PerformanceMetrics{
			RecentActivity:   e.now(),
			InsufficientData: true,
		}
	}

	// Bound cost: only the most recent transactions participate.
	if len(history) > e.cfg.MaxTransactions {
		history = history[:e.cfg.MaxTransactions]
	}

	metrics := domain.PerformanceMetrics{
		TotalTrades:    len(history),
		RecentActivity: history[0].Timestamp,
	}

	positions := groupPositions(history)

	// Trade size stats over every buy and sell. Non-positive or
	// non-finite amounts are skipped rather than propagated.
	var sizeSum float64
	var sizeCount int
	for _, s := range history {
		if s.AmountUSD <= 0 || math.IsNaN(s.AmountUSD) || math.IsInf(s.AmountUSD, 0) {
			continue
		}
		sizeSum += s.AmountUSD
		sizeCount++
		if s.AmountUSD > metrics.MaxTradeSize {
			metrics.MaxTradeSize = s.AmountUSD
		}
		if metrics.MinTradeSize == 0 || s.AmountUSD < metrics.MinTradeSize {
			metrics.MinTradeSize = s.AmountUSD
		}
	}
	if sizeCount > 0 {
		metrics.AvgTradeSize = sizeSum / float64(sizeCount)
	}

	// Realized PnL, win rate and hold time over completed positions
	// (positions with at least one sell).
	completed := completedPositions(positions)
	wins := 0
	var holdSum float64
	var holdCount int
	for _, p := range completed {
		pnl := p.totalSold - p.totalBought
		metrics.TotalPnL += pnl
		if pnl > 0 {
			wins++
		}
		if p.buys > 0 && p.firstSellTime > p.firstBuyTime {
			holdSum += float64(p.firstSellTime-p.firstBuyTime) / 3600000.0
			holdCount++
		}
	}
	if len(completed) > 0 {
		metrics.WinRate = float64(wins) / float64(len(completed)) * 100
	}
	if holdCount > 0 {
		metrics.AvgHoldTimeHours = holdSum / float64(holdCount)
	}

	metrics.MaxDrawdown = maxDrawdown(completed)
	metrics.EarlyEntryRate = e.earlyEntryRate(ctx, history)

	// Smoothness proxy: per-buy PnL relative to mean trade size.
	buyCount := 0
	for _, s := range history {
		if s.IsBuy() {
			buyCount++
		}
	}
	if buyCount > 0 && metrics.AvgTradeSize > 0 {
		metrics.SharpeRatio = (metrics.TotalPnL / float64(buyCount)) / metrics.AvgTradeSize
	}

	metrics.WinRate = clampRate(metrics.WinRate)
	metrics.EarlyEntryRate = clampRate(metrics.EarlyEntryRate)
	return metrics
}

// groupPositions buckets history into per-token positions.
func groupPositions(history []*domain.NormalizedSwap) map[string]*tokenPosition {
	positions := make(map[string]*tokenPosition)
	for _, s := range history {
		if s.AmountUSD <= 0 || math.IsNaN(s.AmountUSD) || math.IsInf(s.AmountUSD, 0) {
			continue
		}
		p, ok := positions[s.TokenAddress]
		if !ok {
			p = &tokenPosition{token: s.TokenAddress}
			positions[s.TokenAddress] = p
		}
		switch {
		case s.IsBuy():
			p.totalBought += s.AmountUSD
			p.buys++
			if p.firstBuyTime == 0 || s.Timestamp < p.firstBuyTime {
				p.firstBuyTime = s.Timestamp
			}
		case s.IsSell():
			p.totalSold += s.AmountUSD
			p.sells++
			if p.firstSellTime == 0 || s.Timestamp < p.firstSellTime {
				p.firstSellTime = s.Timestamp
			}
		}
	}
	return positions
}

// completedPositions returns positions with at least one sell, ordered
// by realization time for order-dependent drawdown computation.
func completedPositions(positions map[string]*tokenPosition) []*tokenPosition {
	var completed []*tokenPosition
	for _, p := range positions {
		if p.sells > 0 {
			completed = append(completed, p)
		}
	}
	sort.Slice(completed, func(i, j int) bool {
		if completed[i].firstSellTime != completed[j].firstSellTime {
			return completed[i].firstSellTime < completed[j].firstSellTime
		}
		return completed[i].token < completed[j].token
	})
	return completed
}

// maxDrawdown computes the worst peak-to-trough drop in cumulative
// realized PnL. Positions must be in chronological order.
func maxDrawdown(completed []*tokenPosition) float64 {
	cumulative := 0.0
	peak := 0.0
	worst := 0.0
	for _, p := range completed {
		cumulative += p.totalSold - p.totalBought
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > worst {
			worst = dd
		}
	}
	return worst
}

// earlyEntryRate is the share of buys placed within the configured
// early-entry horizon of the token's first recorded trade. The
// first-trade lookup carries a timeout and degrades to "not early" so a
// slow store never stalls evaluation.
func (e *Evaluator) earlyEntryRate(ctx context.Context, history []*domain.NormalizedSwap) float64 {
	earlyMs := int64(e.cfg.EarlyEntryMinutes) * 60000
	firstSeen := make(map[string]int64)

	earlyBuys := 0
	totalBuys := 0
	for _, s := range history {
		if !s.IsBuy() {
			continue
		}
		totalBuys++

		first, ok := firstSeen[s.TokenAddress]
		if !ok {
			first = e.lookupFirstTrade(ctx, s.TokenAddress)
			firstSeen[s.TokenAddress] = first
		}
		if first > 0 && s.Timestamp-first <= earlyMs {
			earlyBuys++
		}
	}
	if totalBuys == 0 {
		return 0
	}
	return float64(earlyBuys) / float64(totalBuys) * 100
}

// lookupFirstTrade fetches the token's first-seen timestamp, returning 0
// on timeout, missing token or store failure.
func (e *Evaluator) lookupFirstTrade(ctx context.Context, token string) int64 {
	lookupCtx, cancel := context.WithTimeout(ctx, e.cfg.FirstTradeTimeout.Std())
	defer cancel()

	first, err := e.swaps.TokenFirstTradeAt(lookupCtx, token)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			e.logger.Printf("Error looking up first trade for %s: %v", token, err)
		}
		return 0
	}
	return first
}

func clampRate(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
