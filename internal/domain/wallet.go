package domain

// Behavioral categories assigned by the classifier.
const (
	CategorySniper       = "sniper"
	CategoryHunter       = "hunter"
	CategoryTrader       = "trader"
	CategoryUnclassified = "unclassified"
)

// Wallet lifecycle states. Transitions: Candidate -> Active -> Deactivated.
// A deactivated address may re-enter as a fresh candidate through discovery.
const (
	WalletStatusCandidate   = "candidate"
	WalletStatusActive      = "active"
	WalletStatusDeactivated = "deactivated"
)

// PerformanceMetrics is a recomputed-on-demand view of a wallet's trading
// history. Never persisted on its own; WalletRecord carries the latest
// snapshot.
type PerformanceMetrics struct {
	TotalPnL         float64
	WinRate          float64 // 0..100
	TotalTrades      int
	AvgTradeSize     float64
	MaxTradeSize     float64
	MinTradeSize     float64
	SharpeRatio      float64 // smoothness proxy, not a textbook Sharpe
	MaxDrawdown      float64
	AvgHoldTimeHours float64
	EarlyEntryRate   float64 // 0..100
	RecentActivity   int64   // Unix ms of most recent trade
	InsufficientData bool    // set when history is below the minimum
}

// WalletRecord is the mutable tracking entity for one wallet address.
// Corresponds to wallets table in PostgreSQL. Records are never deleted;
// deactivation is a status change that preserves history.
type WalletRecord struct {
	Address            string // primary key, base58
	Category           string // sniper | hunter | trader | unclassified
	Metrics            PerformanceMetrics
	PerformanceScore   float64 // 0..100 ranking score, not a qualification gate
	Status             string  // candidate | active | deactivated
	DeactivationReason string  // set only when Status is deactivated
	LastEvaluatedAt    int64   // Unix ms of the last evaluation sweep
	CreatedAt          int64   // record creation timestamp (ms)
}

// IsActive reports whether the wallet is currently tracked.
func (w *WalletRecord) IsActive() bool {
	return w.Status == WalletStatusActive
}
