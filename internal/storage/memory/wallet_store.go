package memory

import (
	"context"
	"sort"
	"sync"

	"wallet-sentinel/internal/domain"
	"wallet-sentinel/internal/storage"
)

// WalletStore is an in-memory implementation of storage.WalletStore.
type WalletStore struct {
	mu   sync.RWMutex
	data map[string]*domain.WalletRecord // keyed by address
}

// NewWalletStore creates a new in-memory wallet store.
func NewWalletStore() *WalletStore {
	return &WalletStore{
		data: make(map[string]*domain.WalletRecord),
	}
}

// Upsert inserts or replaces a wallet record by address.
func (s *WalletStore) Upsert(_ context.Context, w *domain.WalletRecord) error {
	if w == nil || w.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *w
	if existing, ok := s.data[w.Address]; ok && existing.CreatedAt != 0 {
		copy.CreatedAt = existing.CreatedAt
	}
	s.data[w.Address] = &copy
	return nil
}

// GetByAddress retrieves a wallet record. Returns ErrNotFound if not exists.
func (s *WalletStore) GetByAddress(_ context.Context, address string) (*domain.WalletRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.data[address]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *w
	return &copy, nil
}

// GetByStatus retrieves wallets in a status, performance_score DESC.
func (s *WalletStore) GetByStatus(_ context.Context, status string) ([]*domain.WalletRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.WalletRecord
	for _, w := range s.data {
		if w.Status == status {
			copy := *w
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].PerformanceScore != result[j].PerformanceScore {
			return result[i].PerformanceScore > result[j].PerformanceScore
		}
		return result[i].Address < result[j].Address
	})
	return result, nil
}

// GetActive is shorthand for GetByStatus(WalletStatusActive).
func (s *WalletStore) GetActive(ctx context.Context) ([]*domain.WalletRecord, error) {
	return s.GetByStatus(ctx, domain.WalletStatusActive)
}

var _ storage.WalletStore = (*WalletStore)(nil)
