package memory

import (
	"context"
	"sort"
	"sync"

	"wallet-sentinel/internal/domain"
	"wallet-sentinel/internal/storage"
)

// AggregationStore is an in-memory implementation of storage.AggregationStore.
type AggregationStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PositionAggregation // keyed by aggregation_id
}

// NewAggregationStore creates a new in-memory aggregation store.
func NewAggregationStore() *AggregationStore {
	return &AggregationStore{
		data: make(map[string]*domain.PositionAggregation),
	}
}

// copyAggregation deep-copies a record including its purchase list.
func copyAggregation(a *domain.PositionAggregation) *domain.PositionAggregation {
	out := *a
	out.Purchases = make([]domain.Purchase, len(a.Purchases))
	copy(out.Purchases, a.Purchases)
	return &out
}

// Upsert inserts or replaces the aggregation by its id. An extension of
// an already-stored aggregation keeps its processed flags.
func (s *AggregationStore) Upsert(_ context.Context, a *domain.PositionAggregation) error {
	if a == nil || a.AggregationID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record := copyAggregation(a)
	if existing, ok := s.data[a.AggregationID]; ok {
		record.IsProcessed = existing.IsProcessed
		record.AlertSent = existing.AlertSent
		record.CreatedAt = existing.CreatedAt
	}
	s.data[a.AggregationID] = record
	return nil
}

// GetByID retrieves an aggregation. Returns ErrNotFound if not exists.
func (s *AggregationStore) GetByID(_ context.Context, aggregationID string) (*domain.PositionAggregation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.data[aggregationID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyAggregation(a), nil
}

// GetByWalletToken retrieves aggregations for a pair, first_buy_time ASC.
func (s *AggregationStore) GetByWalletToken(_ context.Context, wallet, token string) ([]*domain.PositionAggregation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PositionAggregation
	for _, a := range s.data {
		if a.WalletAddress == wallet && a.TokenAddress == token {
			result = append(result, copyAggregation(a))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].FirstBuyTime < result[j].FirstBuyTime
	})
	return result, nil
}

// GetUnprocessed retrieves unhandled aggregations, first_buy_time ASC.
func (s *AggregationStore) GetUnprocessed(_ context.Context) ([]*domain.PositionAggregation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PositionAggregation
	for _, a := range s.data {
		if !a.IsProcessed {
			result = append(result, copyAggregation(a))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].FirstBuyTime != result[j].FirstBuyTime {
			return result[i].FirstBuyTime < result[j].FirstBuyTime
		}
		return result[i].AggregationID < result[j].AggregationID
	})
	return result, nil
}

// MarkProcessed flags an aggregation handled. Returns ErrNotFound if not exists.
func (s *AggregationStore) MarkProcessed(_ context.Context, aggregationID string, alertSent bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.data[aggregationID]
	if !ok {
		return storage.ErrNotFound
	}
	a.IsProcessed = true
	if alertSent {
		a.AlertSent = true
	}
	return nil
}

var _ storage.AggregationStore = (*AggregationStore)(nil)
