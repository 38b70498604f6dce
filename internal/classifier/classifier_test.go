package classifier

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"wallet-sentinel/internal/config"
	"wallet-sentinel/internal/domain"
)

const dayMs = int64(86400000)

var testNow = int64(1704067200000)

func testQualConfig() config.QualificationConfig {
	return config.QualificationConfig{
		MinWinRate:        60,
		MinTotalPnL:       20000,
		MinAvgTradeSize:   1500,
		MinTotalTrades:    30,
		MinMaxTradeSize:   5000,
		MaxInactivityDays: 7,
	}
}

func newTestClassifier() *Classifier {
	return New(testQualConfig(), func() int64 { return testNow })
}

// qualifyingMetrics passes every gate with room to spare.
func qualifyingMetrics() domain.PerformanceMetrics {
	return domain.PerformanceMetrics{
		TotalPnL:         25000,
		WinRate:          65,
		TotalTrades:      40,
		AvgTradeSize:     2000,
		MaxTradeSize:     8000,
		MinTradeSize:     500,
		SharpeRatio:      0.2,
		AvgHoldTimeHours: 24,
		EarlyEntryRate:   10,
		RecentActivity:   testNow - 2*dayMs,
	}
}

func TestClassify_Qualifies(t *testing.T) {
	result := newTestClassifier().Classify(qualifyingMetrics())

	if !result.Qualifies {
		t.Fatalf("expected qualification, got reasons %v", result.Reasons)
	}
	if len(result.Reasons) != 0 {
		t.Errorf("qualified wallet carries reasons: %v", result.Reasons)
	}
	if result.Category != domain.CategoryHunter {
		t.Errorf("expected hunter category for 24h holds, got %s", result.Category)
	}
	if result.PerformanceScore <= 0 || result.PerformanceScore > 100 {
		t.Errorf("PerformanceScore out of range: %f", result.PerformanceScore)
	}
}

func TestClassify_CollectsEveryFailedGate(t *testing.T) {
	m := domain.PerformanceMetrics{
		TotalPnL:       100,                // below 20000
		WinRate:        10,                 // below 60
		TotalTrades:    5,                  // below 30
		AvgTradeSize:   50,                 // below 1500
		MaxTradeSize:   60,                 // below 5000
		RecentActivity: testNow - 30*dayMs, // past 7 days
	}
	result := newTestClassifier().Classify(m)

	if result.Qualifies {
		t.Fatal("expected disqualification")
	}
	if len(result.Reasons) != 6 {
		t.Errorf("expected all 6 gate failures reported, got %d: %v", len(result.Reasons), result.Reasons)
	}

	for _, want := range []string{
		"win rate too low",
		"total PnL too low",
		"average trade size too small",
		"not enough trades",
		"max trade size too small",
	} {
		found := false
		for _, r := range result.Reasons {
			if r == want {
				found = true
			}
		}
		if !found {
			t.Errorf("missing reason %q in %v", want, result.Reasons)
		}
	}

	inactive := false
	for _, r := range result.Reasons {
		if strings.HasPrefix(r, "inactive for") {
			inactive = true
		}
	}
	if !inactive {
		t.Errorf("missing inactivity reason in %v", result.Reasons)
	}
}

func TestClassify_SingleGateFailure(t *testing.T) {
	// Healthy on every axis except win rate.
	m := domain.PerformanceMetrics{
		WinRate:        55,
		TotalPnL:       30000,
		AvgTradeSize:   2000,
		TotalTrades:    40,
		MaxTradeSize:   6000,
		RecentActivity: testNow,
	}

	result := newTestClassifier().Classify(m)
	if result.Qualifies {
		t.Fatal("expected disqualification on win rate")
	}
	if !reflect.DeepEqual(result.Reasons, []string{"win rate too low"}) {
		t.Errorf("Reasons = %v, want exactly the win-rate gate", result.Reasons)
	}
}

func TestClassify_BoundaryValuesPass(t *testing.T) {
	// Gates are inclusive: exactly at threshold passes.
	m := qualifyingMetrics()
	m.WinRate = 60
	m.TotalPnL = 20000
	m.AvgTradeSize = 1500
	m.TotalTrades = 30
	m.MaxTradeSize = 5000

	result := newTestClassifier().Classify(m)
	if !result.Qualifies {
		t.Errorf("boundary metrics should qualify, got reasons %v", result.Reasons)
	}
}

func TestClassify_InvalidMetrics(t *testing.T) {
	m := qualifyingMetrics()
	m.SharpeRatio = math.NaN()

	result := newTestClassifier().Classify(m)
	if result.Qualifies {
		t.Fatal("NaN metrics qualified")
	}
	if !reflect.DeepEqual(result.Reasons, []string{"invalid metrics"}) {
		t.Errorf("Reasons = %v, want invalid-metrics", result.Reasons)
	}
	if result.Category != domain.CategoryUnclassified {
		t.Errorf("invalid metrics should be unclassified, got %s", result.Category)
	}
}

func TestClassify_InsufficientData(t *testing.T) {
	result := newTestClassifier().Classify(domain.PerformanceMetrics{
		InsufficientData: true,
		RecentActivity:   testNow,
	})

	if result.Qualifies {
		t.Fatal("insufficient history qualified")
	}
	if !reflect.DeepEqual(result.Reasons, []string{"insufficient transaction history"}) {
		t.Errorf("Reasons = %v", result.Reasons)
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		m    domain.PerformanceMetrics
		want string
	}{
		{
			name: "early entries and short holds make a sniper",
			m:    domain.PerformanceMetrics{EarlyEntryRate: 40, AvgHoldTimeHours: 5},
			want: domain.CategorySniper,
		},
		{
			name: "day-scale holds make a hunter",
			m:    domain.PerformanceMetrics{EarlyEntryRate: 10, AvgHoldTimeHours: 24},
			want: domain.CategoryHunter,
		},
		{
			name: "long holds with size make a trader",
			m:    domain.PerformanceMetrics{AvgHoldTimeHours: 72, AvgTradeSize: 20000},
			want: domain.CategoryTrader,
		},
		{
			name: "long holds without size stay unclassified",
			m:    domain.PerformanceMetrics{AvgHoldTimeHours: 72, AvgTradeSize: 500},
			want: domain.CategoryUnclassified,
		},
		{
			name: "sniper takes precedence over hunter",
			m:    domain.PerformanceMetrics{EarlyEntryRate: 50, AvgHoldTimeHours: 4},
			want: domain.CategorySniper,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := categorize(tt.m); got != tt.want {
				t.Errorf("categorize() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	c := newTestClassifier()
	m := qualifyingMetrics()

	first := c.Classify(m)
	second := c.Classify(m)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("same metrics produced different results:\n%+v\n%+v", first, second)
	}
}

func TestPerformanceScore_Ordering(t *testing.T) {
	weak := performanceScore(domain.PerformanceMetrics{
		WinRate: 40, TotalPnL: 2000, TotalTrades: 10, AvgTradeSize: 500,
	})
	strong := performanceScore(domain.PerformanceMetrics{
		WinRate: 80, TotalPnL: 100000, TotalTrades: 60, AvgTradeSize: 5000, SharpeRatio: 0.3,
	})

	if strong <= weak {
		t.Errorf("stronger metrics should rank higher: %f <= %f", strong, weak)
	}
	if weak < 0 || strong > 100 {
		t.Errorf("scores out of range: weak=%f strong=%f", weak, strong)
	}
}
