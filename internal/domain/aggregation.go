package domain

// Risk levels derived from the suspicion score.
const (
	RiskLevelLow    = "LOW"
	RiskLevelMedium = "MEDIUM"
	RiskLevelHigh   = "HIGH"
)

// Purchase is a single buy claimed by a position aggregation.
// Serialized as JSONB inside the aggregation row.
type Purchase struct {
	TransactionID string  `json:"transaction_id"` // swap transaction that produced the buy
	AmountUSD     float64 `json:"amount_usd"`     // buy size in USD
	Timestamp     int64   `json:"timestamp"`      // Unix timestamp in milliseconds
}

// PositionAggregation is a cluster of similarly sized buys for one
// (wallet, token) pair that looks like a split position.
// Uniquely identified by (WalletAddress, TokenAddress, FirstBuyTime);
// AggregationID is the sha256 hash of that triple.
// Corresponds to position_aggregations table in PostgreSQL.
type PositionAggregation struct {
	AggregationID              string
	WalletAddress              string
	TokenAddress               string
	TokenSymbol                string
	TotalUSD                   float64
	PurchaseCount              int
	AvgPurchaseSize            float64
	MaxPurchaseSize            float64
	MinPurchaseSize            float64
	SizeStdDeviation           float64
	SizeCoefficientOfVariation float64
	TimeWindowMinutes          float64 // span between first and last buy
	FirstBuyTime               int64   // Unix ms
	LastBuyTime                int64   // Unix ms
	SuspicionScore             float64 // 0..100
	RiskLevel                  string  // LOW | MEDIUM | HIGH
	Purchases                  []Purchase
	IsProcessed                bool
	AlertSent                  bool
	CreatedAt                  int64 // record creation timestamp (ms)
}

// RiskLevelForScore maps a suspicion score to a risk level.
// score >= 75 -> HIGH, 50 <= score < 75 -> MEDIUM, else LOW.
func RiskLevelForScore(score float64) string {
	switch {
	case score >= 75:
		return RiskLevelHigh
	case score >= 50:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

// ScoreHistoryPoint is one append-only analytics record emitted whenever
// an aggregation closes. Stored in ClickHouse for reporting.
type ScoreHistoryPoint struct {
	AggregationID  string
	WalletAddress  string
	TokenAddress   string
	SuspicionScore float64
	RiskLevel      string
	PurchaseCount  int
	TotalUSD       float64
	Timestamp      int64 // Unix ms, aggregation LastBuyTime
}
