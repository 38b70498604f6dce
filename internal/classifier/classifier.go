// Package classifier applies behavioral categories and smart-money
// qualification gates to wallet performance metrics.
package classifier

import (
	"fmt"
	"math"
	"time"

	"wallet-sentinel/internal/config"
	"wallet-sentinel/internal/domain"
)

// Result is the classifier verdict for one wallet.
type Result struct {
	Category         string
	Qualifies        bool
	Reasons          []string // every failed gate, not just the first
	PerformanceScore float64  // 0..100 ranking score, never a gate
}

// Classifier evaluates qualification criteria. It is stateless: identical
// metrics always produce identical results.
type Classifier struct {
	cfg config.QualificationConfig
	now func() int64 // ms clock, injected for deterministic tests
}

// New creates a new Classifier. now may be nil for wall-clock time.
func New(cfg config.QualificationConfig, now func() int64) *Classifier {
	return &Classifier{cfg: cfg, now: now}
}

// Classify produces the category, qualification verdict and diagnostic
// reasons for the given metrics. Invalid metrics (NaN/Inf) and
// insufficient histories disqualify with an explicit reason instead of
// propagating.
func (c *Classifier) Classify(m domain.PerformanceMetrics) Result {
	if invalidMetrics(m) {
		return Result{
			Category:  domain.CategoryUnclassified,
			Qualifies: false,
			Reasons:   []string{"invalid metrics"},
		}
	}
	if m.InsufficientData {
		return Result{
			Category:  domain.CategoryUnclassified,
			Qualifies: false,
			Reasons:   []string{"insufficient transaction history"},
		}
	}

	result := Result{
		Category:         categorize(m),
		PerformanceScore: performanceScore(m),
	}

	// Every failing gate is recorded so a caller can present all
	// disqualification causes at once.
	if m.WinRate < c.cfg.MinWinRate {
		result.Reasons = append(result.Reasons, "win rate too low")
	}
	if m.TotalPnL < c.cfg.MinTotalPnL {
		result.Reasons = append(result.Reasons, "total PnL too low")
	}
	if m.AvgTradeSize < c.cfg.MinAvgTradeSize {
		result.Reasons = append(result.Reasons, "average trade size too small")
	}
	if m.TotalTrades < c.cfg.MinTotalTrades {
		result.Reasons = append(result.Reasons, "not enough trades")
	}
	if m.MaxTradeSize < c.cfg.MinMaxTradeSize {
		result.Reasons = append(result.Reasons, "max trade size too small")
	}
	if days := c.daysSince(m.RecentActivity); days > float64(c.cfg.MaxInactivityDays) {
		result.Reasons = append(result.Reasons, fmt.Sprintf("inactive for %.0f days", days))
	}

	result.Qualifies = len(result.Reasons) == 0
	return result
}

// categorize assigns the behavioral category; first matching rule wins.
func categorize(m domain.PerformanceMetrics) string {
	switch {
	case m.EarlyEntryRate > 35 && m.AvgHoldTimeHours < 8:
		return domain.CategorySniper
	case m.AvgHoldTimeHours > 1 && m.AvgHoldTimeHours < 48:
		return domain.CategoryHunter
	case m.AvgHoldTimeHours >= 48 && m.AvgTradeSize > 10000:
		return domain.CategoryTrader
	default:
		return domain.CategoryUnclassified
	}
}

// Performance score component caps.
const (
	maxWinRateScore    = 30.0
	maxPnLScore        = 25.0
	maxTradeCountScore = 15.0
	maxTradeSizeScore  = 15.0
	maxSharpeScore     = 15.0
)

// performanceScore ranks candidates on a 0..100 scale. It orders
// discovery output and never gates qualification.
func performanceScore(m domain.PerformanceMetrics) float64 {
	score := math.Min(maxWinRateScore, m.WinRate*0.3)

	if m.TotalPnL > 1000 {
		score += math.Min(maxPnLScore, 8*math.Log10(m.TotalPnL/1000))
	}

	score += math.Min(maxTradeCountScore, float64(m.TotalTrades)*0.25)

	if m.AvgTradeSize > 100 {
		score += math.Min(maxTradeSizeScore, 6*math.Log10(m.AvgTradeSize/100))
	}

	if m.SharpeRatio > 0 {
		score += math.Min(maxSharpeScore, m.SharpeRatio*30)
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// invalidMetrics reports whether any numeric field is NaN or infinite.
func invalidMetrics(m domain.PerformanceMetrics) bool {
	for _, v := range []float64{
		m.TotalPnL, m.WinRate, m.AvgTradeSize, m.MaxTradeSize,
		m.MinTradeSize, m.SharpeRatio, m.MaxDrawdown,
		m.AvgHoldTimeHours, m.EarlyEntryRate,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

// daysSince converts a recent-activity timestamp to whole days ago.
func (c *Classifier) daysSince(ts int64) float64 {
	if ts <= 0 {
		return math.Inf(1)
	}
	nowMs := c.nowMs()
	if ts >= nowMs {
		return 0
	}
	return float64(nowMs-ts) / 86400000.0
}

func (c *Classifier) nowMs() int64 {
	if c.now != nil {
		return c.now()
	}
	return time.Now().UnixMilli()
}
