package clickhouse

import (
	"context"
	"fmt"

	"wallet-sentinel/internal/domain"
	"wallet-sentinel/internal/storage"
)

// ScoreHistoryStore implements storage.ScoreHistoryStore using ClickHouse.
// The history is append-only; MergeTree does not enforce uniqueness and
// the contract tolerates duplicate points.
type ScoreHistoryStore struct {
	conn *Conn
}

// NewScoreHistoryStore creates a new ScoreHistoryStore.
func NewScoreHistoryStore(conn *Conn) *ScoreHistoryStore {
	return &ScoreHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ScoreHistoryStore = (*ScoreHistoryStore)(nil)

// InsertBulk adds multiple points in one batch.
func (s *ScoreHistoryStore) InsertBulk(ctx context.Context, points []*domain.ScoreHistoryPoint) (err error) {
	defer observe("insert_score_history")(&err)

	if len(points) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO score_history (
			aggregation_id, wallet_address, token_address,
			suspicion_score, risk_level, purchase_count, total_usd, timestamp
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if p == nil || p.AggregationID == "" {
			return storage.ErrInvalidInput
		}
		err = batch.Append(
			p.AggregationID, p.WalletAddress, p.TokenAddress,
			p.SuspicionScore, p.RiskLevel, uint32(p.PurchaseCount), p.TotalUSD, p.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByWallet retrieves all points for a wallet, ordered by timestamp ASC.
func (s *ScoreHistoryStore) GetByWallet(ctx context.Context, address string) (points []*domain.ScoreHistoryPoint, err error) {
	defer observe("get_score_history_by_wallet")(&err)

	query := `
		SELECT aggregation_id, wallet_address, token_address,
		       suspicion_score, risk_level, purchase_count, total_usd, timestamp
		FROM score_history
		WHERE wallet_address = ?
		ORDER BY timestamp ASC
	`

	rows, err := s.conn.Query(ctx, query, address)
	if err != nil {
		return nil, fmt.Errorf("get score history by wallet: %w", err)
	}
	defer rows.Close()

	var result []*domain.ScoreHistoryPoint
	for rows.Next() {
		var p domain.ScoreHistoryPoint
		var purchaseCount uint32

		err := rows.Scan(
			&p.AggregationID, &p.WalletAddress, &p.TokenAddress,
			&p.SuspicionScore, &p.RiskLevel, &purchaseCount, &p.TotalUSD, &p.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan score history row: %w", err)
		}
		p.PurchaseCount = int(purchaseCount)
		result = append(result, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate score history rows: %w", err)
	}
	return result, nil
}
