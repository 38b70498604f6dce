// Package notify defines the outbound event contract. Formatting and
// delivery to concrete channels live outside the core; the engine only
// emits structured events.
package notify

import (
	"context"
	"log"

	"wallet-sentinel/internal/domain"
)

// Notifier receives structured detection events.
type Notifier interface {
	// AggregationDetected fires when a suspicious position cluster closes.
	AggregationDetected(ctx context.Context, agg *domain.PositionAggregation) error

	// WalletQualified fires when a candidate wallet passes qualification.
	WalletQualified(ctx context.Context, address, category string, metrics domain.PerformanceMetrics) error

	// WalletDeactivated fires when an active wallet is demoted.
	WalletDeactivated(ctx context.Context, address, reason string) error
}

// LogNotifier writes events to a logger. It is the default sink when no
// external delivery collaborator is wired in.
type LogNotifier struct {
	logger *log.Logger
}

// NewLogNotifier creates a LogNotifier. logger may be nil for the default.
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.Default()
	}
	return &LogNotifier{logger: logger}
}

// Compile-time interface check.
var _ Notifier = (*LogNotifier)(nil)

// AggregationDetected logs a closed aggregation.
func (n *LogNotifier) AggregationDetected(_ context.Context, agg *domain.PositionAggregation) error {
	n.logger.Printf("EVENT aggregation_detected wallet=%s token=%s purchases=%d total=%.2f score=%.1f risk=%s",
		agg.WalletAddress, agg.TokenAddress, agg.PurchaseCount, agg.TotalUSD, agg.SuspicionScore, agg.RiskLevel)
	return nil
}

// WalletQualified logs a qualification event.
func (n *LogNotifier) WalletQualified(_ context.Context, address, category string, metrics domain.PerformanceMetrics) error {
	n.logger.Printf("EVENT wallet_qualified address=%s category=%s win_rate=%.1f pnl=%.2f trades=%d",
		address, category, metrics.WinRate, metrics.TotalPnL, metrics.TotalTrades)
	return nil
}

// WalletDeactivated logs a deactivation event.
func (n *LogNotifier) WalletDeactivated(_ context.Context, address, reason string) error {
	n.logger.Printf("EVENT wallet_deactivated address=%s reason=%q", address, reason)
	return nil
}
