package memory

import (
	"context"
	"sort"
	"sync"

	"wallet-sentinel/internal/domain"
	"wallet-sentinel/internal/storage"
)

// ScoreHistoryStore is an in-memory implementation of storage.ScoreHistoryStore.
type ScoreHistoryStore struct {
	mu   sync.RWMutex
	data []*domain.ScoreHistoryPoint
}

// NewScoreHistoryStore creates a new in-memory score history store.
func NewScoreHistoryStore() *ScoreHistoryStore {
	return &ScoreHistoryStore{}
}

// InsertBulk appends points. The history is append-only; duplicates are kept.
func (s *ScoreHistoryStore) InsertBulk(_ context.Context, points []*domain.ScoreHistoryPoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		if p == nil || p.AggregationID == "" {
			return storage.ErrInvalidInput
		}
		copy := *p
		s.data = append(s.data, &copy)
	}
	return nil
}

// GetByWallet retrieves all points for a wallet, timestamp ASC.
func (s *ScoreHistoryStore) GetByWallet(_ context.Context, address string) ([]*domain.ScoreHistoryPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ScoreHistoryPoint
	for _, p := range s.data {
		if p.WalletAddress == address {
			copy := *p
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})
	return result, nil
}

var _ storage.ScoreHistoryStore = (*ScoreHistoryStore)(nil)
