// Package lifecycle drives wallet state transitions: discovery promotes
// candidates to active, the deactivation sweep demotes decayed wallets,
// and the aggregation sweep pushes unprocessed detections downstream.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"wallet-sentinel/internal/classifier"
	"wallet-sentinel/internal/config"
	"wallet-sentinel/internal/domain"
	"wallet-sentinel/internal/evaluator"
	"wallet-sentinel/internal/notify"
	"wallet-sentinel/internal/observability"
	"wallet-sentinel/internal/storage"
)

// ErrSweepInProgress is returned when a sweep is requested while another
// run of the same sweep has not finished.
var ErrSweepInProgress = errors.New("sweep already in progress")

// Manager owns every wallet status transition. Nothing else in the
// system mutates wallet records.
type Manager struct {
	cfg        config.Config
	swaps      storage.SwapStore
	aggs       storage.AggregationStore
	wallets    storage.WalletStore
	evaluator  *evaluator.Evaluator
	classifier *classifier.Classifier
	notifier   notify.Notifier
	logger     *log.Logger
	now        func() int64

	discoveryRun    runGuard
	deactivationRun runGuard
}

// runGuard admits at most one run at a time. Each admitted run gets a
// token; release is a no-op unless the token matches, so a stale
// release can never unlock someone else's run.
type runGuard struct {
	mu    sync.Mutex
	token string
}

// acquire admits a run and returns its token, or "" when one is in flight.
func (g *runGuard) acquire() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.token != "" {
		return ""
	}
	g.token = uuid.NewString()
	return g.token
}

func (g *runGuard) release(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.token == token {
		g.token = ""
	}
}

// Options contains configuration for creating a Manager.
type Options struct {
	Config      config.Config
	SwapStore   storage.SwapStore
	AggStore    storage.AggregationStore
	WalletStore storage.WalletStore
	Evaluator   *evaluator.Evaluator
	Classifier  *classifier.Classifier
	Notifier    notify.Notifier
	Logger      *log.Logger
	Now         func() int64 // injectable clock for tests, ms
}

// New creates a new Manager.
func New(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	now := opts.Now
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}
	return &Manager{
		cfg:        opts.Config,
		swaps:      opts.SwapStore,
		aggs:       opts.AggStore,
		wallets:    opts.WalletStore,
		evaluator:  opts.Evaluator,
		classifier: opts.Classifier,
		notifier:   notifier,
		logger:     logger,
		now:        now,
	}
}

// DiscoveryResult summarizes one discovery sweep.
type DiscoveryResult struct {
	CandidatesSeen int
	Evaluated      int
	Qualified      int
	Promoted       int
	Duration       time.Duration
}

// RunDiscovery sweeps recent swap activity for new smart-money wallets.
// At most one discovery sweep runs at a time; a second caller gets
// ErrSweepInProgress immediately instead of queueing.
func (m *Manager) RunDiscovery(ctx context.Context) (*DiscoveryResult, error) {
	token := m.discoveryRun.acquire()
	if token == "" {
		observability.DefaultMetrics.SweepsRejected.Inc()
		return nil, ErrSweepInProgress
	}
	defer m.discoveryRun.release(token)

	start := time.Now()
	m.logger.Printf("Discovery sweep started (run %s)", token[:8])

	since := m.now() - int64(m.cfg.Discovery.LookbackHours)*3600000
	addresses, err := m.swaps.GetDistinctWallets(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list candidate wallets: %w", err)
	}

	result := &DiscoveryResult{CandidatesSeen: len(addresses)}

	type qualified struct {
		record *domain.WalletRecord
	}
	var passed []qualified

	for _, address := range addresses {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Already-tracked wallets belong to the deactivation sweep, not
		// discovery. Deactivated and candidate records may re-enter.
		existing, err := m.wallets.GetByAddress(ctx, address)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			m.logger.Printf("Error loading wallet %s: %v", address, err)
			continue
		}
		if existing != nil && existing.IsActive() {
			continue
		}

		record, res, err := m.evaluate(ctx, address)
		if err != nil {
			m.logger.Printf("Error evaluating wallet %s: %v", address, err)
			continue
		}
		result.Evaluated++

		if !res.Qualifies {
			continue
		}
		result.Qualified++
		passed = append(passed, qualified{record: record})
	}

	// Best candidates first; the per-sweep cap keeps the tracked set
	// growing slowly even on a rich day.
	sort.Slice(passed, func(i, j int) bool {
		if passed[i].record.PerformanceScore != passed[j].record.PerformanceScore {
			return passed[i].record.PerformanceScore > passed[j].record.PerformanceScore
		}
		return passed[i].record.Address < passed[j].record.Address
	})
	if len(passed) > m.cfg.Discovery.MaxNewWalletsPerSweep {
		passed = passed[:m.cfg.Discovery.MaxNewWalletsPerSweep]
	}

	for _, q := range passed {
		q.record.Status = domain.WalletStatusActive
		if err := m.wallets.Upsert(ctx, q.record); err != nil {
			m.logger.Printf("Error promoting wallet %s: %v", q.record.Address, err)
			continue
		}
		result.Promoted++
		observability.RecordWalletQualified(q.record.Category)

		if err := m.notifier.WalletQualified(ctx, q.record.Address, q.record.Category, q.record.Metrics); err != nil {
			m.logger.Printf("Error notifying qualification of %s: %v", q.record.Address, err)
		} else {
			observability.RecordNotification("wallet_qualified")
		}
	}

	result.Duration = time.Since(start)
	observability.RecordSweep("discovery", result.Duration.Seconds())
	observability.DefaultMetrics.LastSuccessfulSweep.Set(float64(time.Now().Unix()))
	m.logger.Printf("Discovery sweep finished: seen=%d evaluated=%d qualified=%d promoted=%d in %s",
		result.CandidatesSeen, result.Evaluated, result.Qualified, result.Promoted, result.Duration)
	return result, nil
}

// evaluate builds a fresh wallet record from history. The record keeps
// candidate status until the caller decides to promote it.
func (m *Manager) evaluate(ctx context.Context, address string) (*domain.WalletRecord, classifier.Result, error) {
	history, err := m.swaps.GetWalletHistory(ctx, address, m.cfg.Evaluation.MaxTransactions)
	if err != nil {
		return nil, classifier.Result{}, fmt.Errorf("load history: %w", err)
	}

	metrics := m.evaluator.Evaluate(ctx, history)
	res := m.classifier.Classify(metrics)
	observability.DefaultMetrics.WalletsEvaluated.Inc()

	record := &domain.WalletRecord{
		Address:          address,
		Category:         res.Category,
		Metrics:          metrics,
		PerformanceScore: res.PerformanceScore,
		Status:           domain.WalletStatusCandidate,
		LastEvaluatedAt:  m.now(),
		CreatedAt:        m.now(),
	}
	return record, res, nil
}

// DeactivationResult summarizes one deactivation sweep.
type DeactivationResult struct {
	Checked     int
	Deactivated int
	Duration    time.Duration
}

// RunDeactivation re-evaluates every active wallet and demotes the ones
// whose edge has decayed. The triggering condition is recorded verbatim
// as the deactivation reason.
func (m *Manager) RunDeactivation(ctx context.Context) (*DeactivationResult, error) {
	token := m.deactivationRun.acquire()
	if token == "" {
		observability.DefaultMetrics.SweepsRejected.Inc()
		return nil, ErrSweepInProgress
	}
	defer m.deactivationRun.release(token)

	start := time.Now()
	active, err := m.wallets.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active wallets: %w", err)
	}

	result := &DeactivationResult{}
	for _, w := range active {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.Checked++

		history, err := m.swaps.GetWalletHistory(ctx, w.Address, m.cfg.Evaluation.MaxTransactions)
		if err != nil {
			m.logger.Printf("Error loading history for %s: %v", w.Address, err)
			continue
		}
		metrics := m.evaluator.Evaluate(ctx, history)
		observability.DefaultMetrics.WalletsEvaluated.Inc()

		w.Metrics = metrics
		w.LastEvaluatedAt = m.now()

		reason, label := m.deactivationReason(metrics)
		if reason == "" {
			if err := m.wallets.Upsert(ctx, w); err != nil {
				m.logger.Printf("Error refreshing wallet %s: %v", w.Address, err)
			}
			continue
		}

		// Status and reason change in one write so no reader ever sees a
		// deactivated wallet without its reason.
		w.Status = domain.WalletStatusDeactivated
		w.DeactivationReason = reason
		if err := m.wallets.Upsert(ctx, w); err != nil {
			m.logger.Printf("Error deactivating wallet %s: %v", w.Address, err)
			continue
		}
		result.Deactivated++
		observability.RecordWalletDeactivated(label)

		if err := m.notifier.WalletDeactivated(ctx, w.Address, reason); err != nil {
			m.logger.Printf("Error notifying deactivation of %s: %v", w.Address, err)
		} else {
			observability.RecordNotification("wallet_deactivated")
		}
		m.logger.Printf("Wallet deactivated: %s (%s)", w.Address, reason)
	}

	result.Duration = time.Since(start)
	observability.RecordSweep("deactivation", result.Duration.Seconds())
	m.logger.Printf("Deactivation sweep finished: checked=%d deactivated=%d in %s",
		result.Checked, result.Deactivated, result.Duration)
	return result, nil
}

// deactivationReason checks demotion conditions in a fixed order and
// returns the first that fires, plus a stable metric label. Empty means
// the wallet stays active.
func (m *Manager) deactivationReason(metrics domain.PerformanceMetrics) (reason, label string) {
	cfg := m.cfg.Deactivation

	if metrics.WinRate < cfg.MinWinRate {
		return fmt.Sprintf("win rate dropped to %.1f%%", metrics.WinRate), "win_rate"
	}

	inactiveDays := float64(m.now()-metrics.RecentActivity) / 86400000.0
	if metrics.RecentActivity > 0 && inactiveDays > float64(cfg.MaxInactivityDays) {
		return fmt.Sprintf("inactive for %.0f days", inactiveDays), "inactivity"
	}

	if metrics.TotalPnL < cfg.MinTotalPnL {
		return fmt.Sprintf("PnL went negative: %.2f", metrics.TotalPnL), "negative_pnl"
	}

	if metrics.AvgTradeSize < cfg.MinAvgTradeSize {
		return fmt.Sprintf("average trade size too small: %.2f", metrics.AvgTradeSize), "trade_size"
	}

	return "", ""
}

// AggregationSweepResult summarizes one aggregation-processing sweep.
type AggregationSweepResult struct {
	Processed int
	Duration  time.Duration
}

// ProcessAggregations delivers unprocessed aggregations downstream and
// marks them handled. An aggregation failing delivery stays unprocessed
// and is retried on the next sweep.
func (m *Manager) ProcessAggregations(ctx context.Context) (*AggregationSweepResult, error) {
	start := time.Now()

	pending, err := m.aggs.GetUnprocessed(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unprocessed aggregations: %w", err)
	}

	result := &AggregationSweepResult{}
	for _, agg := range pending {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := m.notifier.AggregationDetected(ctx, agg); err != nil {
			m.logger.Printf("Error notifying aggregation %s: %v", agg.AggregationID, err)
			continue
		}
		observability.RecordNotification("aggregation_detected")

		if err := m.aggs.MarkProcessed(ctx, agg.AggregationID, true); err != nil {
			m.logger.Printf("Error marking aggregation %s processed: %v", agg.AggregationID, err)
			continue
		}
		result.Processed++
	}

	result.Duration = time.Since(start)
	observability.RecordSweep("aggregations", result.Duration.Seconds())
	return result, nil
}
