package storage

import (
	"context"

	"wallet-sentinel/internal/domain"
)

// SwapStore provides access to normalized swap storage.
type SwapStore interface {
	// Insert adds a new swap. Returns ErrDuplicateKey if transaction_id exists.
	Insert(ctx context.Context, s *domain.NormalizedSwap) error

	// GetWalletHistory retrieves up to limit swaps for a wallet,
	// ordered by timestamp DESC (most recent first). limit <= 0 means no cap.
	GetWalletHistory(ctx context.Context, address string, limit int) ([]*domain.NormalizedSwap, error)

	// IsTransactionAggregated reports whether the transaction has already
	// been claimed by a position aggregation.
	IsTransactionAggregated(ctx context.Context, transactionID string) (bool, error)

	// MarkAggregated links the given transactions to an aggregation and
	// records its suspicion score. The whole set is applied atomically.
	MarkAggregated(ctx context.Context, transactionIDs []string, aggregationID string, score float64) error

	// TokenFirstTradeAt returns the timestamp (ms) of the earliest stored
	// swap for a token. Returns ErrNotFound if the token has no swaps.
	TokenFirstTradeAt(ctx context.Context, tokenAddress string) (int64, error)

	// GetDistinctWallets returns all wallet addresses with at least one
	// swap at or after since (ms).
	GetDistinctWallets(ctx context.Context, since int64) ([]string, error)
}

// AggregationStore provides access to position aggregation storage.
type AggregationStore interface {
	// Upsert inserts or replaces the aggregation identified by
	// (wallet_address, token_address, first_buy_time).
	Upsert(ctx context.Context, a *domain.PositionAggregation) error

	// GetByID retrieves an aggregation by its id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, aggregationID string) (*domain.PositionAggregation, error)

	// GetByWalletToken retrieves all aggregations for a (wallet, token)
	// pair, ordered by first_buy_time ASC.
	GetByWalletToken(ctx context.Context, wallet, token string) ([]*domain.PositionAggregation, error)

	// GetUnprocessed retrieves aggregations not yet handled downstream,
	// ordered by first_buy_time ASC.
	GetUnprocessed(ctx context.Context) ([]*domain.PositionAggregation, error)

	// MarkProcessed sets is_processed (and alert_sent when alertSent is
	// true) on an existing aggregation. Returns ErrNotFound if not exists.
	MarkProcessed(ctx context.Context, aggregationID string, alertSent bool) error
}

// WalletStore provides access to tracked wallet records.
type WalletStore interface {
	// Upsert inserts or replaces a wallet record by address.
	Upsert(ctx context.Context, w *domain.WalletRecord) error

	// GetByAddress retrieves a wallet record. Returns ErrNotFound if not exists.
	GetByAddress(ctx context.Context, address string) (*domain.WalletRecord, error)

	// GetByStatus retrieves all wallets in the given lifecycle status,
	// ordered by performance_score DESC.
	GetByStatus(ctx context.Context, status string) ([]*domain.WalletRecord, error)

	// GetActive is shorthand for GetByStatus(WalletStatusActive).
	GetActive(ctx context.Context) ([]*domain.WalletRecord, error)
}

// ScoreHistoryStore provides access to the append-only suspicion score
// history used for analytics and reporting.
type ScoreHistoryStore interface {
	// InsertBulk adds multiple points. Duplicate points are tolerated.
	InsertBulk(ctx context.Context, points []*domain.ScoreHistoryPoint) error

	// GetByWallet retrieves all points for a wallet, ordered by timestamp ASC.
	GetByWallet(ctx context.Context, address string) ([]*domain.ScoreHistoryPoint, error)
}
