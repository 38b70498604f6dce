package domain

// NormalizedSwap represents a single token swap already decoded by the
// upstream normalizer. Corresponds to swaps table in PostgreSQL.
// Immutable once produced; one record per on-chain swap.
type NormalizedSwap struct {
	TransactionID string  // unique transaction identifier
	WalletAddress string  // base58 wallet address
	TokenAddress  string  // base58 token mint address
	TokenSymbol   string  // display symbol, may be empty
	AmountUSD     float64 // swap size in USD, must be > 0
	Timestamp     int64   // Unix timestamp in milliseconds
	SwapType      string  // "buy" | "sell"
	Price         float64 // execution price, 0 if unknown
}

// Swap type constants
const (
	SwapTypeBuy  = "buy"
	SwapTypeSell = "sell"
)

// IsBuy reports whether the swap is a purchase.
func (s *NormalizedSwap) IsBuy() bool {
	return s.SwapType == SwapTypeBuy
}

// IsSell reports whether the swap is a sale.
func (s *NormalizedSwap) IsSell() bool {
	return s.SwapType == SwapTypeSell
}

// Validate checks structural invariants of a normalized swap.
// It does not hit storage; address curve checks live in address.go.
func (s *NormalizedSwap) Validate() error {
	if s == nil {
		return ErrInvalidSwap
	}
	if s.TransactionID == "" || s.WalletAddress == "" || s.TokenAddress == "" {
		return ErrInvalidSwap
	}
	if s.AmountUSD <= 0 {
		return ErrInvalidSwap
	}
	if s.SwapType != SwapTypeBuy && s.SwapType != SwapTypeSell {
		return ErrInvalidSwap
	}
	if s.Timestamp <= 0 {
		return ErrInvalidSwap
	}
	return nil
}
