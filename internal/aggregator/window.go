package aggregator

import (
	"sort"

	"wallet-sentinel/internal/domain"
	"wallet-sentinel/internal/idhash"
)

// window is the in-memory open cluster of buys for one (wallet, token)
// key. It only exists until it is superseded or persisted; ineligible
// windows are discarded without ever touching storage.
type window struct {
	wallet      string
	token       string
	tokenSymbol string
	purchases   []domain.Purchase
	totalUSD    float64
}

func newWindow(wallet, token, symbol string) *window {
	return &window{
		wallet:      wallet,
		token:       token,
		tokenSymbol: symbol,
	}
}

// contains reports whether the window already claims the transaction.
func (w *window) contains(transactionID string) bool {
	for _, p := range w.purchases {
		if p.TransactionID == transactionID {
			return true
		}
	}
	return false
}

// add appends a purchase keeping purchases ordered by timestamp, so a
// slightly late event still lands in its chronological slot.
func (w *window) add(p domain.Purchase) {
	w.purchases = append(w.purchases, p)
	sort.Slice(w.purchases, func(i, j int) bool {
		if w.purchases[i].Timestamp != w.purchases[j].Timestamp {
			return w.purchases[i].Timestamp < w.purchases[j].Timestamp
		}
		return w.purchases[i].TransactionID < w.purchases[j].TransactionID
	})
	w.totalUSD += p.AmountUSD
}

// firstBuyTime returns the earliest purchase timestamp, 0 when empty.
func (w *window) firstBuyTime() int64 {
	if len(w.purchases) == 0 {
		return 0
	}
	return w.purchases[0].Timestamp
}

// lastBuyTime returns the latest purchase timestamp, 0 when empty.
func (w *window) lastBuyTime() int64 {
	if len(w.purchases) == 0 {
		return 0
	}
	return w.purchases[len(w.purchases)-1].Timestamp
}

// sizes returns the purchase amounts in chronological order.
func (w *window) sizes() []float64 {
	out := make([]float64, len(w.purchases))
	for i, p := range w.purchases {
		out[i] = p.AmountUSD
	}
	return out
}

// spanMinutes is the time spread between first and last buy.
func (w *window) spanMinutes() float64 {
	if len(w.purchases) < 2 {
		return 0
	}
	return float64(w.lastBuyTime()-w.firstBuyTime()) / 60000.0
}

// covWith returns the coefficient of variation the window would have if
// the given amount joined it.
func (w *window) covWith(amountUSD float64) float64 {
	sizes := append(w.sizes(), amountUSD)
	_, _, cov := sizeStats(sizes)
	return cov
}

// eligible reports whether the window qualifies for persistence.
func (w *window) eligible(minPurchases int, minTotalUSD float64) bool {
	return len(w.purchases) >= minPurchases && w.totalUSD >= minTotalUSD
}

// toAggregation materializes the window into a persistent record,
// computing its stats, suspicion score and risk level.
func (w *window) toAggregation(sizeTolerance float64) *domain.PositionAggregation {
	sizes := w.sizes()
	mean, stddev, cov := sizeStats(sizes)

	minSize, maxSize := sizes[0], sizes[0]
	for _, s := range sizes {
		if s < minSize {
			minSize = s
		}
		if s > maxSize {
			maxSize = s
		}
	}

	span := w.spanMinutes()
	score := suspicionScore(len(w.purchases), w.totalUSD, cov, span, sizeTolerance)

	purchases := make([]domain.Purchase, len(w.purchases))
	copy(purchases, w.purchases)

	return &domain.PositionAggregation{
		AggregationID:              idhash.ComputeAggregationID(w.wallet, w.token, w.firstBuyTime()),
		WalletAddress:              w.wallet,
		TokenAddress:               w.token,
		TokenSymbol:                w.tokenSymbol,
		TotalUSD:                   w.totalUSD,
		PurchaseCount:              len(w.purchases),
		AvgPurchaseSize:            mean,
		MaxPurchaseSize:            maxSize,
		MinPurchaseSize:            minSize,
		SizeStdDeviation:           stddev,
		SizeCoefficientOfVariation: cov,
		TimeWindowMinutes:          span,
		FirstBuyTime:               w.firstBuyTime(),
		LastBuyTime:                w.lastBuyTime(),
		SuspicionScore:             score,
		RiskLevel:                  domain.RiskLevelForScore(score),
		Purchases:                  purchases,
	}
}
