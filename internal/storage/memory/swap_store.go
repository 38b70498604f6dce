package memory

import (
	"context"
	"sort"
	"sync"

	"wallet-sentinel/internal/domain"
	"wallet-sentinel/internal/storage"
)

// aggregationMark records which aggregation claimed a transaction.
type aggregationMark struct {
	aggregationID string
	score         float64
}

// SwapStore is an in-memory implementation of storage.SwapStore.
type SwapStore struct {
	mu    sync.RWMutex
	data  map[string]*domain.NormalizedSwap // keyed by transaction_id
	marks map[string]aggregationMark        // transaction_id -> claim
}

// NewSwapStore creates a new in-memory swap store.
func NewSwapStore() *SwapStore {
	return &SwapStore{
		data:  make(map[string]*domain.NormalizedSwap),
		marks: make(map[string]aggregationMark),
	}
}

// Insert adds a new swap. Returns ErrDuplicateKey if exists.
func (s *SwapStore) Insert(_ context.Context, swap *domain.NormalizedSwap) error {
	if swap == nil || swap.TransactionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[swap.TransactionID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *swap
	s.data[swap.TransactionID] = &copy
	return nil
}

// GetWalletHistory retrieves up to limit swaps for a wallet, most recent first.
func (s *SwapStore) GetWalletHistory(_ context.Context, address string, limit int) ([]*domain.NormalizedSwap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.NormalizedSwap
	for _, swap := range s.data {
		if swap.WalletAddress == address {
			copy := *swap
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp > result[j].Timestamp
		}
		return result[i].TransactionID > result[j].TransactionID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// IsTransactionAggregated reports whether the transaction has been claimed.
func (s *SwapStore) IsTransactionAggregated(_ context.Context, transactionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, marked := s.marks[transactionID]
	return marked, nil
}

// MarkAggregated links the given transactions to an aggregation. The whole
// set is applied under one lock so readers never see a partial claim.
func (s *SwapStore) MarkAggregated(_ context.Context, transactionIDs []string, aggregationID string, score float64) error {
	if aggregationID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range transactionIDs {
		s.marks[id] = aggregationMark{aggregationID: aggregationID, score: score}
	}
	return nil
}

// TokenFirstTradeAt returns the earliest swap timestamp for a token.
func (s *SwapStore) TokenFirstTradeAt(_ context.Context, tokenAddress string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var first int64
	for _, swap := range s.data {
		if swap.TokenAddress != tokenAddress {
			continue
		}
		if first == 0 || swap.Timestamp < first {
			first = swap.Timestamp
		}
	}
	if first == 0 {
		return 0, storage.ErrNotFound
	}
	return first, nil
}

// GetDistinctWallets returns wallet addresses with activity at or after since.
func (s *SwapStore) GetDistinctWallets(_ context.Context, since int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, swap := range s.data {
		if swap.Timestamp >= since {
			seen[swap.WalletAddress] = struct{}{}
		}
	}

	result := make([]string, 0, len(seen))
	for address := range seen {
		result = append(result, address)
	}
	sort.Strings(result)
	return result, nil
}

var _ storage.SwapStore = (*SwapStore)(nil)
